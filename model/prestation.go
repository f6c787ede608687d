package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Prestation is one entry of the service catalogue. The code is a stable,
// human-readable identifier and cannot be changed after creation.
type Prestation struct {
	gorm.Model
	Code         string `gorm:"size:40;not null;uniqueIndex"`
	Categorie    string
	Nom          string `gorm:"not null"`
	Description  string
	PrixUnitaire decimal.Decimal `sql:"type:decimal(20,8);"`
	Unite        string          // ex: heure, jour, bulletin, forfait
	Actif        bool            `gorm:"not null;default:true"`
}

// CreatePrestation inserts a new catalogue entry. The code is normalized to
// upper case; a duplicate code maps to ErrCodePrestationExiste so the
// operator gets a specific message instead of a generic store failure.
func (store *Store) CreatePrestation(p *Prestation) error {
	p.Code = strings.ToUpper(strings.TrimSpace(p.Code))
	if err := store.db.Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrCodePrestationExiste
		}
		return fmt.Errorf("create prestation: %w", err)
	}
	return nil
}

// UpdatePrestation updates a catalogue entry. The code is never modified.
func (store *Store) UpdatePrestation(p *Prestation) error {
	return store.db.Model(p).Omit("code").
		Select("categorie", "nom", "description", "prix_unitaire", "unite", "actif").
		Updates(p).Error
}

// FindPrestation loads one catalogue entry by id. Part of the Catalogue
// interface consumed by DocumentDraft.
func (store *Store) FindPrestation(id uint) (*Prestation, error) {
	p := &Prestation{}
	result := store.db.First(p, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrPrestationIntrouvable
		}
		return nil, fmt.Errorf("find prestation %d: %w", id, result.Error)
	}
	return p, nil
}

// LoadPrestations returns the catalogue ordered by code. With activeOnly the
// deactivated entries are skipped (the editor dropdown only offers active
// ones; existing lines keep their snapshot regardless).
func (store *Store) LoadPrestations(activeOnly bool) ([]*Prestation, error) {
	var ps []*Prestation
	q := store.db.Order("code ASC")
	if activeOnly {
		q = q.Where("actif = ?", true)
	}
	result := q.Find(&ps)
	return ps, result.Error
}

// DeactivatePrestation soft-removes a catalogue entry. Rows are never hard
// deleted so historical lignes keep a resolvable reference.
func (store *Store) DeactivatePrestation(id uint) error {
	return store.db.Model(&Prestation{}).Where("id = ?", id).
		Update("actif", false).Error
}

// isUniqueViolation detects a unique constraint error across the sqlite and
// postgres drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
