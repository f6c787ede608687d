package model

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// fakeCatalogue serves prestations from a map, standing in for the store.
type fakeCatalogue map[uint]*Prestation

func (f fakeCatalogue) FindPrestation(id uint) (*Prestation, error) {
	p, ok := f[id]
	if !ok {
		return nil, ErrPrestationIntrouvable
	}
	return p, nil
}

func testCatalogue() fakeCatalogue {
	return fakeCatalogue{
		1: {
			Model:        gorm.Model{ID: 1},
			Code:         "PAIE-M10",
			Nom:          "Gestion de paie, 1 à 10 salariés",
			PrixUnitaire: d("32.00"),
			Actif:        true,
		},
	}
}

func TestNewDraftDefaults(t *testing.T) {
	before := time.Now()
	dr := NewDevisDraft(testCatalogue(), 7)
	after := time.Now()

	if dr.Type != TypeDevis {
		t.Errorf("Type = %s, want devis", dr.Type)
	}
	if dr.Statut != string(DevisBrouillon) {
		t.Errorf("Statut = %s, want brouillon", dr.Statut)
	}
	if !dr.TauxTVA.Equal(d("20.00")) {
		t.Errorf("TauxTVA = %s, want 20.00", dr.TauxTVA)
	}
	if dr.DateEmission.Before(before) || dr.DateEmission.After(after) {
		t.Errorf("DateEmission = %s, want now", dr.DateEmission)
	}
	wantEcheance := dr.DateEmission.Add(30 * 24 * time.Hour)
	if !dr.DateEcheance.Equal(wantEcheance) {
		t.Errorf("DateEcheance = %s, want emission + 30 days", dr.DateEcheance)
	}
}

func TestDraftTotalsExample(t *testing.T) {
	dr := NewDevisDraft(testCatalogue(), 1)
	i := dr.AddLigne(nil)
	if err := dr.SetChamp(i, ChampDescription, "Gestion de paie"); err != nil {
		t.Fatal(err)
	}
	if err := dr.SetChamp(i, ChampQuantite, "2"); err != nil {
		t.Fatal(err)
	}
	if err := dr.SetChamp(i, ChampPrixUnitaire, "100"); err != nil {
		t.Fatal(err)
	}

	if !dr.Totaux.TotalHT.Equal(d("200")) {
		t.Errorf("TotalHT = %s, want 200", dr.Totaux.TotalHT)
	}
	if !dr.Totaux.TotalTVA.Equal(d("40")) {
		t.Errorf("TotalTVA = %s, want 40", dr.Totaux.TotalTVA)
	}
	if !dr.Totaux.TotalTTC.Equal(d("240")) {
		t.Errorf("TotalTTC = %s, want 240", dr.Totaux.TotalTTC)
	}
}

func TestAddRemoveLignesKeepsOrdreDense(t *testing.T) {
	dr := NewDevisDraft(testCatalogue(), 1)
	for i := 0; i < 4; i++ {
		dr.AddLigne(nil)
	}
	if err := dr.RemoveLigne(1); err != nil {
		t.Fatal(err)
	}
	if len(dr.Lignes) != 3 {
		t.Fatalf("len(Lignes) = %d, want 3", len(dr.Lignes))
	}
	for i, l := range dr.Lignes {
		if l.Ordre != i {
			t.Errorf("Lignes[%d].Ordre = %d, want %d", i, l.Ordre, i)
		}
	}

	if err := dr.RemoveLigne(5); !errors.Is(err, ErrIndexLigne) {
		t.Errorf("RemoveLigne(5) = %v, want ErrIndexLigne", err)
	}
	if err := dr.RemoveLigne(-1); !errors.Is(err, ErrIndexLigne) {
		t.Errorf("RemoveLigne(-1) = %v, want ErrIndexLigne", err)
	}
}

func TestSetChampLenientParsing(t *testing.T) {
	dr := NewDevisDraft(testCatalogue(), 1)
	i := dr.AddLigne(nil)

	// comma as decimal separator
	if err := dr.SetChamp(i, ChampPrixUnitaire, "32,50"); err != nil {
		t.Fatal(err)
	}
	if !dr.Lignes[i].PrixUnitaire.Equal(d("32.50")) {
		t.Errorf("PrixUnitaire = %s, want 32.50", dr.Lignes[i].PrixUnitaire)
	}

	// garbage becomes zero
	if err := dr.SetChamp(i, ChampQuantite, "abc"); err != nil {
		t.Fatal(err)
	}
	if !dr.Lignes[i].Quantite.IsZero() {
		t.Errorf("Quantite = %s, want 0", dr.Lignes[i].Quantite)
	}
}

func TestSetChampRejectsInvalid(t *testing.T) {
	dr := NewDevisDraft(testCatalogue(), 1)
	i := dr.AddLigne(nil)

	var verr *ValidationError
	if err := dr.SetChamp(i, ChampQuantite, "-1"); !errors.As(err, &verr) || verr.Kind != ValidationQuantiteInvalide {
		t.Errorf("negative quantite: %v, want quantite_invalide", err)
	}
	if err := dr.SetChamp(i, ChampPrixUnitaire, "-0.01"); !errors.As(err, &verr) || verr.Kind != ValidationPrixInvalide {
		t.Errorf("negative prix: %v, want prix_invalide", err)
	}
	if err := dr.SetChamp(i, ChampRemise, "101"); !errors.As(err, &verr) || verr.Kind != ValidationRemiseInvalide {
		t.Errorf("remise > 100: %v, want remise_invalide", err)
	}

	// rejected input leaves the line unchanged
	if !dr.Lignes[i].Quantite.Equal(d("1")) {
		t.Errorf("Quantite = %s, want default 1", dr.Lignes[i].Quantite)
	}
}

func TestSetPrestationSnapshot(t *testing.T) {
	dr := NewDevisDraft(testCatalogue(), 1)
	i := dr.AddLigne(nil)
	if err := dr.SetChamp(i, ChampQuantite, "12"); err != nil {
		t.Fatal(err)
	}
	if err := dr.SetChamp(i, ChampRemise, "10"); err != nil {
		t.Fatal(err)
	}

	if err := dr.SetPrestation(i, 1); err != nil {
		t.Fatal(err)
	}
	l := dr.Lignes[i]
	if l.PrestationID != 1 {
		t.Errorf("PrestationID = %d, want 1", l.PrestationID)
	}
	if l.Description != "Gestion de paie, 1 à 10 salariés" {
		t.Errorf("Description = %q", l.Description)
	}
	if !l.PrixUnitaire.Equal(d("32.00")) {
		t.Errorf("PrixUnitaire = %s, want 32.00", l.PrixUnitaire)
	}
	// quantite and remise survive the binding
	if !l.Quantite.Equal(d("12")) || !l.RemisePourcent.Equal(d("10")) {
		t.Errorf("quantite/remise not preserved: %s / %s", l.Quantite, l.RemisePourcent)
	}
	// 12 * 32.00 * 0.9
	if !l.MontantHT.Equal(d("345.60")) {
		t.Errorf("MontantHT = %s, want 345.60", l.MontantHT)
	}

	// catalogue miss leaves the line unchanged
	if err := dr.SetPrestation(i, 99); !errors.Is(err, ErrPrestationIntrouvable) {
		t.Errorf("SetPrestation(99) = %v, want prestation introuvable", err)
	}
	if dr.Lignes[i].PrestationID != 1 {
		t.Error("line changed after catalogue miss")
	}
}

func TestValidateForSave(t *testing.T) {
	dr := NewDevisDraft(testCatalogue(), 1)

	var verr *ValidationError
	if err := dr.ValidateForSave(); !errors.As(err, &verr) || verr.Kind != ValidationAucuneLigne {
		t.Errorf("empty draft: %v, want aucune_ligne", err)
	}

	i := dr.AddLigne(nil)
	// default ligne has quantite 1 but neither description nor prestation
	if err := dr.ValidateForSave(); !errors.As(err, &verr) || verr.Kind != ValidationLigneInvalide {
		t.Errorf("blank ligne: %v, want ligne_invalide", err)
	}
	if verr.Ligne != i {
		t.Errorf("Ligne = %d, want %d", verr.Ligne, i)
	}

	if err := dr.SetChamp(i, ChampDescription, "Forfait annuel"); err != nil {
		t.Fatal(err)
	}
	if err := dr.ValidateForSave(); err != nil {
		t.Errorf("valid draft: %v", err)
	}

	if err := dr.SetChamp(i, ChampQuantite, "0"); err != nil {
		t.Fatal(err)
	}
	if err := dr.ValidateForSave(); !errors.As(err, &verr) || verr.Kind != ValidationLigneInvalide {
		t.Errorf("zero quantite: %v, want ligne_invalide", err)
	}
}

func TestSetMontantPayeNudgesStatut(t *testing.T) {
	dr := NewFactureDraft(testCatalogue(), 1)
	i := dr.AddLigne(nil)
	if err := dr.SetChamp(i, ChampDescription, "Paie"); err != nil {
		t.Fatal(err)
	}
	if err := dr.SetChamp(i, ChampQuantite, "2"); err != nil {
		t.Fatal(err)
	}
	if err := dr.SetChamp(i, ChampPrixUnitaire, "100"); err != nil {
		t.Fatal(err)
	}
	dr.Statut = string(FactureEnvoyee)

	if err := dr.SetMontantPaye("100"); err != nil {
		t.Fatal(err)
	}
	if dr.Statut != string(FacturePartiel) {
		t.Errorf("Statut = %s, want partiel", dr.Statut)
	}
	if !dr.ResteAPayer().Equal(d("140")) {
		t.Errorf("ResteAPayer = %s, want 140", dr.ResteAPayer())
	}

	if err := dr.SetMontantPaye("240"); err != nil {
		t.Fatal(err)
	}
	if dr.Statut != string(FacturePayee) {
		t.Errorf("Statut = %s, want payee", dr.Statut)
	}

	if err := dr.SetMontantPaye("-5"); err == nil {
		t.Error("negative montant paye accepted")
	}
}

func TestSetMontantPayeConserveStatutManuel(t *testing.T) {
	dr := NewFactureDraft(testCatalogue(), 1)
	i := dr.AddLigne(nil)
	if err := dr.SetChamp(i, ChampDescription, "Paie"); err != nil {
		t.Fatal(err)
	}
	if err := dr.SetChamp(i, ChampQuantite, "2"); err != nil {
		t.Fatal(err)
	}
	if err := dr.SetChamp(i, ChampPrixUnitaire, "100"); err != nil {
		t.Fatal(err)
	}
	dr.Statut = string(FactureEnvoyee)
	if err := dr.SetMontantPaye("100"); err != nil {
		t.Fatal(err)
	}
	if dr.Statut != string(FacturePartiel) {
		t.Fatalf("Statut = %s, want partiel", dr.Statut)
	}

	// The operator overrides the status; an unchanged paid amount (as a
	// form round trip submits it) must not flip it back.
	dr.Statut = string(FactureAnnulee)
	if err := dr.SetMontantPaye("100"); err != nil {
		t.Fatal(err)
	}
	if dr.Statut != string(FactureAnnulee) {
		t.Errorf("Statut = %s, want annulee after unchanged amount", dr.Statut)
	}

	// Editing the amount again re-evaluates the nudge.
	if err := dr.SetMontantPaye("150"); err != nil {
		t.Fatal(err)
	}
	if dr.Statut != string(FacturePartiel) {
		t.Errorf("Statut = %s, want partiel after new amount", dr.Statut)
	}
}

func TestSetChampInconnu(t *testing.T) {
	dr := NewDevisDraft(testCatalogue(), 1)
	i := dr.AddLigne(nil)
	if err := dr.SetChamp(i, Champ("couleur"), "bleu"); !errors.Is(err, ErrChampInconnu) {
		t.Errorf("unknown champ: %v, want ErrChampInconnu", err)
	}
}

func TestAddLigneDefault(t *testing.T) {
	dr := NewDevisDraft(testCatalogue(), 1)
	i := dr.AddLigne(nil)
	l := dr.Lignes[i]
	if !l.Quantite.Equal(decimal.NewFromInt(1)) {
		t.Errorf("Quantite = %s, want 1", l.Quantite)
	}
	if !l.PrixUnitaire.IsZero() || !l.RemisePourcent.IsZero() || !l.MontantHT.IsZero() {
		t.Errorf("new ligne not zeroed: %+v", l)
	}
}
