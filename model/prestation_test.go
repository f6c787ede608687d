package model

import (
	"errors"
	"testing"
)

func TestCreatePrestationNormalizesCode(t *testing.T) {
	store := newTestStore(t)
	p := &Prestation{
		Code:         "  paie-m10 ",
		Nom:          "Gestion de paie, 1 à 10 salariés",
		PrixUnitaire: d("32.00"),
		Unite:        "bulletin",
		Actif:        true,
	}
	if err := store.CreatePrestation(p); err != nil {
		t.Fatalf("create prestation: %v", err)
	}
	if p.Code != "PAIE-M10" {
		t.Errorf("code = %q, want PAIE-M10", p.Code)
	}

	dup := &Prestation{Code: "paie-M10", Nom: "Doublon", Actif: true}
	if err := store.CreatePrestation(dup); !errors.Is(err, ErrCodePrestationExiste) {
		t.Errorf("duplicate code: got %v, want ErrCodePrestationExiste", err)
	}
}

func TestUpdatePrestationKeepsCode(t *testing.T) {
	store := newTestStore(t)
	p := &Prestation{Code: "ATT-01", Nom: "Attestation", PrixUnitaire: d("15.00"), Actif: true}
	if err := store.CreatePrestation(p); err != nil {
		t.Fatalf("create prestation: %v", err)
	}

	p.Code = "ATT-99"
	p.Nom = "Attestation employeur"
	p.PrixUnitaire = d("18.00")
	if err := store.UpdatePrestation(p); err != nil {
		t.Fatalf("update prestation: %v", err)
	}

	loaded, err := store.FindPrestation(p.ID)
	if err != nil {
		t.Fatalf("find prestation: %v", err)
	}
	if loaded.Code != "ATT-01" {
		t.Errorf("code changed to %q", loaded.Code)
	}
	if loaded.Nom != "Attestation employeur" || !loaded.PrixUnitaire.Equal(d("18.00")) {
		t.Errorf("update not applied: %q / %s", loaded.Nom, loaded.PrixUnitaire)
	}
}

func TestFindPrestationIntrouvable(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.FindPrestation(42); !errors.Is(err, ErrPrestationIntrouvable) {
		t.Errorf("got %v, want ErrPrestationIntrouvable", err)
	}
}

func TestDeactivatePrestation(t *testing.T) {
	store := newTestStore(t)
	active := &Prestation{Code: "PAIE-M10", Nom: "Gestion de paie", Actif: true}
	retired := &Prestation{Code: "DADS-01", Nom: "Déclaration annuelle", Actif: true}
	for _, p := range []*Prestation{active, retired} {
		if err := store.CreatePrestation(p); err != nil {
			t.Fatalf("create prestation %s: %v", p.Code, err)
		}
	}
	if err := store.DeactivatePrestation(retired.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	all, err := store.LoadPrestations(false)
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d prestations, want 2", len(all))
	}
	// Ordered by code.
	if all[0].Code != "DADS-01" || all[1].Code != "PAIE-M10" {
		t.Errorf("wrong order: %s, %s", all[0].Code, all[1].Code)
	}

	actives, err := store.LoadPrestations(true)
	if err != nil {
		t.Fatalf("load active: %v", err)
	}
	if len(actives) != 1 || actives[0].Code != "PAIE-M10" {
		t.Errorf("active set wrong: %v", actives)
	}

	// The deactivated entry must stay resolvable for existing lignes.
	if _, err := store.FindPrestation(retired.ID); err != nil {
		t.Errorf("deactivated prestation not found: %v", err)
	}
}
