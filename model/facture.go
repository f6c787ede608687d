package model

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type StatutFacture string

const (
	FactureBrouillon StatutFacture = "brouillon"
	FactureEnvoyee   StatutFacture = "envoyee"
	FacturePayee     StatutFacture = "payee"
	FacturePartiel   StatutFacture = "partiel"
	FactureRetard    StatutFacture = "retard"
	FactureAnnulee   StatutFacture = "annulee"
)

// Valide reports whether s is a member of the facture status enum.
func (s StatutFacture) Valide() bool {
	switch s {
	case FactureBrouillon, FactureEnvoyee, FacturePayee, FacturePartiel,
		FactureRetard, FactureAnnulee:
		return true
	}
	return false
}

// Ouverte reports whether the facture still awaits payment.
func (s StatutFacture) Ouverte() bool {
	return s == FactureEnvoyee || s == FacturePartiel || s == FactureRetard
}

// Facture is a persisted invoice. DevisID is set when the facture was
// created by converting a devis.
type Facture struct {
	gorm.Model
	Numero       string `gorm:"uniqueIndex"`
	Counter      uint
	ClientID     uint
	Client       Client
	DevisID      uint `gorm:"index"`
	DateEmission time.Time
	DateEcheance time.Time
	TauxTVA      decimal.Decimal `sql:"type:decimal(20,8);"`
	MontantHT    decimal.Decimal `sql:"type:decimal(20,8);"`
	MontantTVA   decimal.Decimal `sql:"type:decimal(20,8);"`
	MontantTTC   decimal.Decimal `sql:"type:decimal(20,8);"`
	MontantPaye  decimal.Decimal `sql:"type:decimal(20,8);"`
	Statut       StatutFacture   `gorm:"type:text;not null;default:brouillon;index"`
	Notes        string
	Conditions   string
	Lignes       []LigneFacture `gorm:"foreignKey:FactureID"`
}

// ResteAPayer is the open balance of the facture.
func (f *Facture) ResteAPayer() decimal.Decimal {
	return f.MontantTTC.Sub(f.MontantPaye)
}

// LigneFacture is one persisted line of a facture.
type LigneFacture struct {
	ID             uint `gorm:"primarykey"`
	CreatedAt      time.Time
	FactureID      uint
	PrestationID   uint // 0 for free-text lines
	Description    string
	Quantite       decimal.Decimal `sql:"type:decimal(20,8);"`
	PrixUnitaire   decimal.Decimal `sql:"type:decimal(20,8);"`
	RemisePourcent decimal.Decimal `sql:"type:decimal(20,8);"`
	MontantHT      decimal.Decimal `sql:"type:decimal(20,8);"`
	Ordre          int
}

func (LigneFacture) TableName() string { return "lignes_factures" }

// InferStatutPaiement derives a facture status from the paid amount: payee
// when the total is covered, partiel for a partial payment, otherwise the
// current status is kept. The nudge is one-directional and evaluated only
// when the paid amount is edited; the operator can still override the status
// afterwards.
func InferStatutPaiement(totalTTC, montantPaye decimal.Decimal, actuel StatutFacture) StatutFacture {
	switch {
	case montantPaye.GreaterThanOrEqual(totalTTC):
		return FacturePayee
	case montantPaye.IsPositive():
		return FacturePartiel
	default:
		return actuel
	}
}

// SaveFacture persists a facture and fully replaces its lignes (hard delete
// + recreate with fresh ordre values) in one transaction.
func (store *Store) SaveFacture(f *Facture) error {
	return store.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Client").Save(f).Error; err != nil {
			return fmt.Errorf("save facture: %w", err)
		}
		if err := tx.Where("facture_id = ?", f.ID).Delete(&LigneFacture{}).Error; err != nil {
			return fmt.Errorf("delete lignes facture: %w", err)
		}
		if len(f.Lignes) > 0 {
			for i := range f.Lignes {
				f.Lignes[i].ID = 0
				f.Lignes[i].FactureID = f.ID
				f.Lignes[i].Ordre = i
			}
			if err := tx.Omit("ID").Create(&f.Lignes).Error; err != nil {
				return fmt.Errorf("recreate lignes facture: %w", err)
			}
		}
		return nil
	})
}

// LoadFacture loads one facture with its lignes ordered by ordre and
// recomputes the totals from the lignes.
func (store *Store) LoadFacture(id any) (*Facture, error) {
	var f Facture
	result := store.db.
		Preload("Lignes", func(db *gorm.DB) *gorm.DB {
			return db.Order("lignes_factures.ordre ASC")
		}).
		Preload("Client").
		First(&f, id)
	if result.Error != nil {
		return nil, fmt.Errorf("load facture %v: %w", id, result.Error)
	}
	calculerTotauxFacture(&f)
	return &f, nil
}

// LoadAllFactures returns all factures ordered by date d'émission, newest
// first.
func (store *Store) LoadAllFactures() ([]*Facture, error) {
	var fs []*Facture
	result := store.db.Preload("Client").
		Order("date_emission DESC, id DESC").Find(&fs)
	return fs, result.Error
}

// LoadFacturesForClient returns the factures of one client, newest first.
func (store *Store) LoadFacturesForClient(clientID uint) ([]*Facture, error) {
	var fs []*Facture
	result := store.db.Where("client_id = ?", clientID).
		Order("date_emission DESC, id DESC").Find(&fs)
	return fs, result.Error
}

// DeleteFacture removes a facture and its lignes.
func (store *Store) DeleteFacture(f *Facture) error {
	return store.db.Select("Lignes").Delete(f).Error
}

// ChangerStatutFacture sets the status of a facture after checking enum
// membership.
func (store *Store) ChangerStatutFacture(id uint, statut StatutFacture) error {
	if !statut.Valide() {
		return ErrStatutInconnu
	}
	return store.db.Model(&Facture{}).Where("id = ?", id).
		Update("statut", statut).Error
}

// GetMaxFactureCounter returns the highest numbering counter used so far.
func (store *Store) GetMaxFactureCounter() (uint, error) {
	var max sql.NullInt64
	err := store.db.Model(&Facture{}).
		Select("COALESCE(MAX(counter), 0)").Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return uint(max.Int64), nil
}

// ConvertirDevisEnFacture creates a facture from a persisted devis and marks
// the devis accepte, whatever its status was before. The facture is created
// first; if updating the devis afterwards fails, the facture is NOT rolled
// back. The error is returned together with the created facture and the
// operator has to correct the devis manually.
func (store *Store) ConvertirDevisEnFacture(devisID uint, numero string, counter uint) (*Facture, error) {
	dv, err := store.LoadDevis(devisID)
	if err != nil {
		return nil, err
	}
	draft := NewFactureDraftFromDevis(store, dv)
	f := draft.EnFacture()
	f.Numero = numero
	f.Counter = counter
	if err := store.SaveFacture(f); err != nil {
		return nil, err
	}
	err = store.db.Model(&Devis{}).Where("id = ?", devisID).
		Updates(map[string]any{
			"statut":     DevisAccepte,
			"facture_id": f.ID,
		}).Error
	if err != nil {
		return f, fmt.Errorf("facture %s créée mais devis %s non accepté: %w",
			f.Numero, dv.Numero, err)
	}
	return f, nil
}

func calculerTotauxFacture(f *Facture) {
	montants := make([]decimal.Decimal, len(f.Lignes))
	for i, l := range f.Lignes {
		montants[i] = l.MontantHT
	}
	t := CalculerTotaux(montants, f.TauxTVA)
	f.MontantHT = t.TotalHT
	f.MontantTVA = t.TotalTVA
	f.MontantTTC = t.TotalTTC
}

// EnFacture flattens a facture draft into the persisted shape. The caller is
// expected to have run ValidateForSave first.
func (d *DocumentDraft) EnFacture() *Facture {
	f := &Facture{
		ClientID:     d.ClientID,
		DevisID:      d.DevisID,
		DateEmission: d.DateEmission,
		DateEcheance: d.DateEcheance,
		TauxTVA:      d.TauxTVA,
		MontantHT:    d.Totaux.TotalHT,
		MontantTVA:   d.Totaux.TotalTVA,
		MontantTTC:   d.Totaux.TotalTTC,
		MontantPaye:  d.MontantPaye,
		Statut:       StatutFacture(d.Statut),
		Notes:        d.Notes,
		Conditions:   d.Conditions,
	}
	f.ID = d.ID
	for _, l := range d.Lignes {
		f.Lignes = append(f.Lignes, LigneFacture{
			PrestationID:   l.PrestationID,
			Description:    l.Description,
			Quantite:       l.Quantite,
			PrixUnitaire:   l.PrixUnitaire,
			RemisePourcent: l.RemisePourcent,
			MontantHT:      l.MontantHT,
			Ordre:          l.Ordre,
		})
	}
	return f
}

// DraftFromFacture hydrates an editable draft from a persisted facture.
func DraftFromFacture(cat Catalogue, f *Facture) *DocumentDraft {
	d := NewFactureDraft(cat, f.ClientID)
	d.ID = f.ID
	d.DevisID = f.DevisID
	d.DateEmission = f.DateEmission
	d.DateEcheance = f.DateEcheance
	d.TauxTVA = f.TauxTVA
	d.MontantPaye = f.MontantPaye
	d.Statut = string(f.Statut)
	d.Notes = f.Notes
	d.Conditions = f.Conditions
	for i, l := range f.Lignes {
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
