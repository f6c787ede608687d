package model

import (
	"errors"
	"testing"
	"time"
)

func TestInferStatutPaiement(t *testing.T) {
	total := d("240.00")
	testdata := []struct {
		paye   string
		actuel StatutFacture
		want   StatutFacture
	}{
		{"240.00", FactureEnvoyee, FacturePayee},
		{"300.00", FactureRetard, FacturePayee},
		{"100.00", FactureEnvoyee, FacturePartiel},
		{"0.01", FactureRetard, FacturePartiel},
		{"0", FactureEnvoyee, FactureEnvoyee},
		{"0", FactureBrouillon, FactureBrouillon},
		{"-10", FactureEnvoyee, FactureEnvoyee},
	}
	for _, td := range testdata {
		got := InferStatutPaiement(total, d(td.paye), td.actuel)
		if got != td.want {
			t.Errorf("InferStatutPaiement(240, %s, %s) = %s, want %s",
				td.paye, td.actuel, got, td.want)
		}
	}
}

func TestSaveLoadFactureRoundTrip(t *testing.T) {
	store := newTestStore(t)
	client := mustSaveClient(t, store)

	f := &Facture{
		Numero:       "F-2026-0001",
		Counter:      1,
		ClientID:     client.ID,
		DateEmission: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		DateEcheance: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		TauxTVA:      d("20.00"),
		Statut:       FactureEnvoyee,
		Conditions:   "Paiement à 30 jours.",
		Lignes: []LigneFacture{
			{Description: "Gestion de paie", Quantite: d("12"), PrixUnitaire: d("32.00"), MontantHT: d("384.00")},
			{Description: "Entrée salarié", Quantite: d("2"), PrixUnitaire: d("45.00"), MontantHT: d("90.00")},
			{Description: "Attestation", Quantite: d("1"), PrixUnitaire: d("15.00"), MontantHT: d("15.00")},
		},
	}
	if err := store.SaveFacture(f); err != nil {
		t.Fatalf("save facture: %v", err)
	}

	loaded, err := store.LoadFacture(f.ID)
	if err != nil {
		t.Fatalf("load facture: %v", err)
	}
	if len(loaded.Lignes) != 3 {
		t.Fatalf("got %d lignes, want 3", len(loaded.Lignes))
	}
	for i, l := range loaded.Lignes {
		if l.Ordre != i {
			t.Errorf("ligne %d has ordre %d", i, l.Ordre)
		}
	}
	if loaded.Lignes[1].Description != "Entrée salarié" {
		t.Errorf("ligne order not preserved: got %q", loaded.Lignes[1].Description)
	}
	if !loaded.MontantHT.Equal(d("489.00")) {
		t.Errorf("MontantHT = %s, want 489.00", loaded.MontantHT)
	}
	if !loaded.MontantTTC.Equal(d("586.80")) {
		t.Errorf("MontantTTC = %s, want 586.80", loaded.MontantTTC)
	}
	if loaded.Client.RaisonSociale != client.RaisonSociale {
		t.Errorf("client not preloaded: %q", loaded.Client.RaisonSociale)
	}

	// Removing the middle line and saving again must recompact the order.
	loaded.Lignes = append(loaded.Lignes[:1], loaded.Lignes[2:]...)
	if err := store.SaveFacture(loaded); err != nil {
		t.Fatalf("save facture again: %v", err)
	}
	again, err := store.LoadFacture(f.ID)
	if err != nil {
		t.Fatalf("reload facture: %v", err)
	}
	if len(again.Lignes) != 2 {
		t.Fatalf("got %d lignes after removal, want 2", len(again.Lignes))
	}
	if again.Lignes[0].Ordre != 0 || again.Lignes[1].Ordre != 1 {
		t.Errorf("ordre not dense after removal: %d, %d",
			again.Lignes[0].Ordre, again.Lignes[1].Ordre)
	}
	if again.Lignes[1].Description != "Attestation" {
		t.Errorf("wrong ligne kept: %q", again.Lignes[1].Description)
	}
}

func TestChangerStatutFacture(t *testing.T) {
	store := newTestStore(t)
	client := mustSaveClient(t, store)
	f := &Facture{Numero: "F-2026-0002", ClientID: client.ID, Statut: FactureBrouillon}
	if err := store.SaveFacture(f); err != nil {
		t.Fatalf("save facture: %v", err)
	}

	if err := store.ChangerStatutFacture(f.ID, "comptabilisee"); !errors.Is(err, ErrStatutInconnu) {
		t.Errorf("unknown status: got %v, want ErrStatutInconnu", err)
	}
	if err := store.ChangerStatutFacture(f.ID, FactureEnvoyee); err != nil {
		t.Fatalf("change status: %v", err)
	}
	loaded, err := store.LoadFacture(f.ID)
	if err != nil {
		t.Fatalf("load facture: %v", err)
	}
	if loaded.Statut != FactureEnvoyee {
		t.Errorf("statut = %s, want envoyee", loaded.Statut)
	}
}

func TestConvertirDevisEnFacture(t *testing.T) {
	store := newTestStore(t)
	client := mustSaveClient(t, store)

	dv := &Devis{
		Numero:       "D-2026-0007",
		Counter:      7,
		ClientID:     client.ID,
		DateEmission: time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC),
		DateValidite: time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
		TauxTVA:      d("10.00"),
		Statut:       DevisEnvoye,
		Notes:        "Mise en place au 1er mars.",
		Lignes: []LigneDevis{
			{Description: "Gestion de paie", Quantite: d("8"), PrixUnitaire: d("32.00"), MontantHT: d("256.00")},
			{Description: "Paramétrage initial", Quantite: d("1"), PrixUnitaire: d("150.00"), RemisePourcent: d("10"), MontantHT: d("135.00")},
		},
	}
	if err := store.SaveDevis(dv); err != nil {
		t.Fatalf("save devis: %v", err)
	}

	f, err := store.ConvertirDevisEnFacture(dv.ID, "F-2026-0003", 3)
	if err != nil {
		t.Fatalf("convertir devis: %v", err)
	}
	if f.Numero != "F-2026-0003" || f.Counter != 3 {
		t.Errorf("numero/counter = %s/%d", f.Numero, f.Counter)
	}
	if f.DevisID != dv.ID {
		t.Errorf("facture DevisID = %d, want %d", f.DevisID, dv.ID)
	}
	if f.Statut != FactureBrouillon {
		t.Errorf("facture statut = %s, want brouillon", f.Statut)
	}
	if f.Notes != dv.Notes {
		t.Errorf("notes not copied: %q", f.Notes)
	}
	if f.Conditions != "Paiement à 30 jours." {
		t.Errorf("conditions = %q", f.Conditions)
	}
	if !f.TauxTVA.Equal(d("10.00")) {
		t.Errorf("taux TVA = %s, want 10.00", f.TauxTVA)
	}
	if len(f.Lignes) != 2 {
		t.Fatalf("got %d lignes, want 2", len(f.Lignes))
	}
	if !f.Lignes[1].MontantHT.Equal(d("135.00")) {
		t.Errorf("ligne 1 MontantHT = %s, want 135.00", f.Lignes[1].MontantHT)
	}
	if !f.MontantTTC.Equal(d("430.10")) {
		t.Errorf("MontantTTC = %s, want 430.10", f.MontantTTC)
	}

	reloaded, err := store.LoadDevis(dv.ID)
	if err != nil {
		t.Fatalf("reload devis: %v", err)
	}
	if reloaded.Statut != DevisAccepte {
		t.Errorf("devis statut = %s, want accepte", reloaded.Statut)
	}
	if reloaded.FactureID != f.ID {
		t.Errorf("devis FactureID = %d, want %d", reloaded.FactureID, f.ID)
	}
}

func TestGetMaxFactureCounter(t *testing.T) {
	store := newTestStore(t)
	client := mustSaveClient(t, store)

	n, err := store.GetMaxFactureCounter()
	if err != nil {
		t.Fatalf("max counter: %v", err)
	}
	if n != 0 {
		t.Errorf("empty table counter = %d, want 0", n)
	}
	for i, num := range []string{"F-2026-0004", "F-2026-0009"} {
		f := &Facture{Numero: num, Counter: uint(4 + 5*i), ClientID: client.ID, Statut: FactureBrouillon}
		if err := store.SaveFacture(f); err != nil {
			t.Fatalf("save facture: %v", err)
		}
	}
	n, err = store.GetMaxFactureCounter()
	if err != nil {
		t.Fatalf("max counter: %v", err)
	}
	if n != 9 {
		t.Errorf("counter = %d, want 9", n)
	}
}
