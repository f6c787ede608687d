package model

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Client is a payroll customer of the firm. Consumed read-only by the
// devis/facture editor.
type Client struct {
	gorm.Model
	RaisonSociale string `gorm:"not null;index"`
	Contact       string
	Email         string
	Telephone     string
	Adresse       string
	CodePostal    string
	Ville         string
	Pays          string
	SIRET         string `gorm:"index"`
	NumeroTVA     string
	Notes         string
	Actif         bool `gorm:"not null;default:true"`
}

// SaveClient creates or updates a client.
func (store *Store) SaveClient(c *Client) error {
	return store.db.Save(c).Error
}

// LoadClient loads one client by id.
func (store *Store) LoadClient(id any) (*Client, error) {
	c := &Client{}
	result := store.db.First(c, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrClientIntrouvable
		}
		return nil, fmt.Errorf("load client %v: %w", id, result.Error)
	}
	return c, nil
}

// LoadAllClients returns all clients ordered by raison sociale.
func (store *Store) LoadAllClients() ([]*Client, error) {
	var cs []*Client
	result := store.db.Order("raison_sociale ASC").Find(&cs)
	return cs, result.Error
}

// SearchClients matches the query against raison sociale, email and ville.
func (store *Store) SearchClients(query string) ([]*Client, error) {
	var cs []*Client
	pattern := "%" + query + "%"
	result := store.db.
		Where("raison_sociale LIKE ? OR email LIKE ? OR ville LIKE ?",
			pattern, pattern, pattern).
		Order("raison_sociale ASC").Find(&cs)
	return cs, result.Error
}

// DeleteClient removes a client. Devis and factures keep their client_id;
// the operator is expected to clean those up first.
func (store *Store) DeleteClient(c *Client) error {
	return store.db.Delete(c).Error
}
