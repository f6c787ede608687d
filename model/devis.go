package model

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type StatutDevis string

const (
	DevisBrouillon StatutDevis = "brouillon"
	DevisEnvoye    StatutDevis = "envoye"
	DevisAccepte   StatutDevis = "accepte"
	DevisRefuse    StatutDevis = "refuse"
	DevisExpire    StatutDevis = "expire"
)

// Valide reports whether s is a member of the devis status enum. The
// statuses themselves are freely settable by the operator; only enum
// membership is checked.
func (s StatutDevis) Valide() bool {
	switch s {
	case DevisBrouillon, DevisEnvoye, DevisAccepte, DevisRefuse, DevisExpire:
		return true
	}
	return false
}

// Devis is a persisted quote. The stored montant columns are denormalized
// for list views; LoadDevis recomputes them from the lignes.
type Devis struct {
	gorm.Model
	Numero       string `gorm:"uniqueIndex"`
	Counter      uint
	ClientID     uint
	Client       Client
	DateEmission time.Time
	DateValidite time.Time
	TauxTVA      decimal.Decimal `sql:"type:decimal(20,8);"`
	MontantHT    decimal.Decimal `sql:"type:decimal(20,8);"`
	MontantTVA   decimal.Decimal `sql:"type:decimal(20,8);"`
	MontantTTC   decimal.Decimal `sql:"type:decimal(20,8);"`
	Statut       StatutDevis     `gorm:"type:text;not null;default:brouillon;index"`
	Notes        string
	Conditions   string
	Lignes       []LigneDevis `gorm:"foreignKey:DevisID"`
	// Set once the devis has been converted into a facture.
	FactureID uint
}

// LigneDevis is one persisted line of a devis.
type LigneDevis struct {
	ID             uint `gorm:"primarykey"`
	CreatedAt      time.Time
	DevisID        uint
	PrestationID   uint // 0 for free-text lines
	Description    string
	Quantite       decimal.Decimal `sql:"type:decimal(20,8);"`
	PrixUnitaire   decimal.Decimal `sql:"type:decimal(20,8);"`
	RemisePourcent decimal.Decimal `sql:"type:decimal(20,8);"`
	MontantHT      decimal.Decimal `sql:"type:decimal(20,8);"`
	Ordre          int
}

func (LigneDevis) TableName() string { return "lignes_devis" }

// SaveDevis persists a devis and fully replaces its lignes (hard delete +
// recreate with fresh ordre values) in one transaction.
func (store *Store) SaveDevis(d *Devis) error {
	return store.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Client").Save(d).Error; err != nil {
			return fmt.Errorf("save devis: %w", err)
		}
		if err := tx.Where("devis_id = ?", d.ID).Delete(&LigneDevis{}).Error; err != nil {
			return fmt.Errorf("delete lignes devis: %w", err)
		}
		if len(d.Lignes) > 0 {
			for i := range d.Lignes {
				d.Lignes[i].ID = 0
				d.Lignes[i].DevisID = d.ID
				d.Lignes[i].Ordre = i
			}
			if err := tx.Omit("ID").Create(&d.Lignes).Error; err != nil {
				return fmt.Errorf("recreate lignes devis: %w", err)
			}
		}
		return nil
	})
}

// LoadDevis loads one devis with its lignes ordered by ordre and recomputes
// the totals from the lignes.
func (store *Store) LoadDevis(id any) (*Devis, error) {
	var d Devis
	result := store.db.
		Preload("Lignes", func(db *gorm.DB) *gorm.DB {
			return db.Order("lignes_devis.ordre ASC")
		}).
		Preload("Client").
		First(&d, id)
	if result.Error != nil {
		return nil, fmt.Errorf("load devis %v: %w", id, result.Error)
	}
	calculerTotauxDevis(&d)
	return &d, nil
}

// LoadAllDevis returns all devis ordered by date d'émission, newest first.
func (store *Store) LoadAllDevis() ([]*Devis, error) {
	var ds []*Devis
	result := store.db.Preload("Client").
		Order("date_emission DESC, id DESC").Find(&ds)
	return ds, result.Error
}

// LoadDevisForClient returns the devis of one client, newest first.
func (store *Store) LoadDevisForClient(clientID uint) ([]*Devis, error) {
	var ds []*Devis
	result := store.db.Where("client_id = ?", clientID).
		Order("date_emission DESC, id DESC").Find(&ds)
	return ds, result.Error
}

// DeleteDevis removes a devis and its lignes.
func (store *Store) DeleteDevis(d *Devis) error {
	return store.db.Select("Lignes").Delete(d).Error
}

// ChangerStatutDevis sets the status of a devis. Any enum member may be set
// directly by the operator; there is no transition guard apart from the
// programmatic conversion.
func (store *Store) ChangerStatutDevis(id uint, statut StatutDevis) error {
	if !statut.Valide() {
		return ErrStatutInconnu
	}
	return store.db.Model(&Devis{}).Where("id = ?", id).
		Update("statut", statut).Error
}

// GetMaxDevisCounter returns the highest numbering counter used so far.
func (store *Store) GetMaxDevisCounter() (uint, error) {
	var max sql.NullInt64
	err := store.db.Model(&Devis{}).
		Select("COALESCE(MAX(counter), 0)").Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return uint(max.Int64), nil
}

func calculerTotauxDevis(d *Devis) {
	montants := make([]decimal.Decimal, len(d.Lignes))
	for i, l := range d.Lignes {
		montants[i] = l.MontantHT
	}
	t := CalculerTotaux(montants, d.TauxTVA)
	d.MontantHT = t.TotalHT
	d.MontantTVA = t.TotalTVA
	d.MontantTTC = t.TotalTTC
}

// EnDevis flattens a devis draft into the persisted shape. The caller is
// expected to have run ValidateForSave first.
func (d *DocumentDraft) EnDevis() *Devis {
	dv := &Devis{
		ClientID:     d.ClientID,
		DateEmission: d.DateEmission,
		DateValidite: d.DateEcheance,
		TauxTVA:      d.TauxTVA,
		MontantHT:    d.Totaux.TotalHT,
		MontantTVA:   d.Totaux.TotalTVA,
		MontantTTC:   d.Totaux.TotalTTC,
		Statut:       StatutDevis(d.Statut),
		Notes:        d.Notes,
		Conditions:   d.Conditions,
	}
	dv.ID = d.ID
	for _, l := range d.Lignes {
		dv.Lignes = append(dv.Lignes, LigneDevis{
			PrestationID:   l.PrestationID,
			Description:    l.Description,
			Quantite:       l.Quantite,
			PrixUnitaire:   l.PrixUnitaire,
			RemisePourcent: l.RemisePourcent,
			MontantHT:      l.MontantHT,
			Ordre:          l.Ordre,
		})
	}
	return dv
}

// DraftFromDevis hydrates an editable draft from a persisted devis.
func DraftFromDevis(cat Catalogue, dv *Devis) *DocumentDraft {
	d := NewDevisDraft(cat, dv.ClientID)
	d.ID = dv.ID
	d.DateEmission = dv.DateEmission
	d.DateEcheance = dv.DateValidite
	d.TauxTVA = dv.TauxTVA
	d.Statut = string(dv.Statut)
	d.Notes = dv.Notes
	d.Conditions = dv.Conditions
	for i, l := range dv.Lignes {
		d.Lignes = append(d.Lignes, LigneDraft{
			PrestationID:   l.PrestationID,
			Description:    l.Description,
			Quantite:       l.Quantite,
			PrixUnitaire:   l.PrixUnitaire,
			RemisePourcent: l.RemisePourcent,
			Ordre:          i,
		})
	}
	d.recalculer()
	return d
}
