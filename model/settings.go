package model

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Parametres holds the firm's own identity and the invoicing defaults.
// There is exactly one row (single tenant).
type Parametres struct {
	gorm.Model
	NomEntreprise         string
	Adresse               string
	CodePostal            string
	Ville                 string
	Telephone             string
	Email                 string
	SIRET                 string
	NumeroTVA             string
	TauxTVADefaut         decimal.Decimal `sql:"type:decimal(20,8);"`
	DelaiPaiementDefaut   int
	ConditionsGenerales   string
	ConditionsReglement   string
	NumeroDevisTemplate   string
	NumeroFactureTemplate string
	LogoChemin            string
	LogoFilename          string
	LogoTaille            int64
}

// LoadParametres loads the settings row, initializing defaults when none
// exists yet.
func (store *Store) LoadParametres() (*Parametres, error) {
	p := &Parametres{}
	result := store.db.FirstOrInit(p)
	if result.Error != nil {
		return nil, result.Error
	}
	if p.ID == 0 {
		p.NomEntreprise = "EMAPAIE"
		p.TauxTVADefaut = decimal.RequireFromString("20.00")
		p.DelaiPaiementDefaut = 30
		p.NumeroDevisTemplate = "DEV-%YYYY%-%04C%"
		p.NumeroFactureTemplate = "FAC-%YYYY%-%04C%"
	}
	return p, nil
}

// SaveParametres saves the settings row.
func (store *Store) SaveParametres(p *Parametres) error {
	return store.db.Save(p).Error
}

// SetLogo stores the logo metadata after the blob has been uploaded.
func (store *Store) SetLogo(chemin, filename string, taille int64) error {
	p, err := store.LoadParametres()
	if err != nil {
		return err
	}
	if p.LogoChemin != "" && p.LogoChemin != chemin {
		_ = store.Blobs.Delete(p.LogoChemin)
	}
	p.LogoChemin = chemin
	p.LogoFilename = filename
	p.LogoTaille = taille
	return store.SaveParametres(p)
}

// RemoveLogo clears the logo fields and deletes the blob.
func (store *Store) RemoveLogo() error {
	p, err := store.LoadParametres()
	if err != nil {
		return err
	}
	if p.LogoChemin != "" {
		_ = store.Blobs.Delete(p.LogoChemin)
	}
	p.LogoChemin = ""
	p.LogoFilename = ""
	p.LogoTaille = 0
	return store.SaveParametres(p)
}
