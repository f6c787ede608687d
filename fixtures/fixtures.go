// Package fixtures provides test stores and seed data for the model and
// controller tests.
package fixtures

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"

	"github.com/emapaie/billing/model"
)

// NewTestStore opens an in-memory SQLite store with its blob directory under
// the test's temp dir.
func NewTestStore(t *testing.T) *model.Store {
	t.Helper()
	cfg := &model.Config{
		Basedir:      t.TempDir(),
		CookieSecret: "fixtures-cookie-secret",
		Mode:         "test",
	}
	store, err := model.Open(sqlite.Open(":memory:"), cfg)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	return store
}

// TestData holds the rows created by SeedTestData.
type TestData struct {
	Client      *model.Client
	Prestations []*model.Prestation
	Parametres  *model.Parametres
	User        *model.User
}

// SeedTestData creates a client, two catalogue prestations, the parametres
// row and a user.
func SeedTestData(t *testing.T, store *model.Store) *TestData {
	t.Helper()

	client := Client()
	if err := store.SaveClient(client); err != nil {
		t.Fatalf("seed client: %v", err)
	}

	prestations := []*model.Prestation{
		Prestation(),
		Prestation(
			WithPrestationCode("PAIE-M50"),
			WithPrestationNom("Gestion de paie, 11 à 50 salariés"),
			WithPrestationPrix("28.00"),
		),
	}
	for _, p := range prestations {
		if err := store.CreatePrestation(p); err != nil {
			t.Fatalf("seed prestation %s: %v", p.Code, err)
		}
	}

	params, err := store.LoadParametres()
	if err != nil {
		t.Fatalf("seed parametres: %v", err)
	}
	if err := store.SaveParametres(params); err != nil {
		t.Fatalf("save parametres: %v", err)
	}

	user := &model.User{
		Email:    "admin@emapaie.example",
		FullName: "Admin Test",
	}
	if err := store.SetPassword(user, "motdepasse"); err != nil {
		t.Fatalf("set password: %v", err)
	}
	if err := store.CreateUser(user); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	return &TestData{
		Client:      client,
		Prestations: prestations,
		Parametres:  params,
		User:        user,
	}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic("fixtures: bad decimal literal " + s)
	}
	return d
}

// ---- Client ----

type ClientOption func(*model.Client)

func Client(opts ...ClientOption) *model.Client {
	c := &model.Client{
		RaisonSociale: "Boulangerie Martin SARL",
		Contact:       "Sophie Martin",
		Email:         "contact@boulangerie-martin.example",
		Telephone:     "04 91 00 00 00",
		Adresse:       "12 rue de la République",
		CodePostal:    "13001",
		Ville:         "Marseille",
		SIRET:         "12345678900012",
		NumeroTVA:     "FR12345678900",
		Actif:         true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithRaisonSociale(rs string) ClientOption {
	return func(c *model.Client) { c.RaisonSociale = rs }
}

func WithClientEmail(email string) ClientOption {
	return func(c *model.Client) { c.Email = email }
}

// ---- Prestation ----

type PrestationOption func(*model.Prestation)

func Prestation(opts ...PrestationOption) *model.Prestation {
	p := &model.Prestation{
		Code:         "PAIE-M10",
		Categorie:    "Paie",
		Nom:          "Gestion de paie, 1 à 10 salariés",
		Description:  "Bulletins, DSN et déclarations sociales mensuelles.",
		PrixUnitaire: dec("32.00"),
		Unite:        "bulletin",
		Actif:        true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func WithPrestationCode(code string) PrestationOption {
	return func(p *model.Prestation) { p.Code = code }
}

func WithPrestationNom(nom string) PrestationOption {
	return func(p *model.Prestation) { p.Nom = nom }
}

func WithPrestationPrix(prix string) PrestationOption {
	return func(p *model.Prestation) { p.PrixUnitaire = dec(prix) }
}

func WithPrestationActif(actif bool) PrestationOption {
	return func(p *model.Prestation) { p.Actif = actif }
}

// ---- Lignes ----

// Ligne builds a free-text line with the given quantity, unit price and
// discount percentage, montant included.
func Ligne(description, quantite, prix, remise string) model.LigneDevis {
	q, p, r := dec(quantite), dec(prix), dec(remise)
	return model.LigneDevis{
		Description:    description,
		Quantite:       q,
		PrixUnitaire:   p,
		RemisePourcent: r,
		MontantHT:      model.MontantLigne(q, p, r),
	}
}

// ---- Devis ----

type DevisOption func(*model.Devis)

func Devis(clientID uint, opts ...DevisOption) *model.Devis {
	d := &model.Devis{
		Numero:       "DEV-2026-0001",
		Counter:      1,
		ClientID:     clientID,
		DateEmission: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		DateValidite: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		TauxTVA:      dec("20.00"),
		Statut:       model.DevisBrouillon,
		Conditions:   "Devis valable 30 jours.",
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func WithDevisNumero(numero string, counter uint) DevisOption {
	return func(d *model.Devis) {
		d.Numero = numero
		d.Counter = counter
	}
}

func WithDevisStatut(s model.StatutDevis) DevisOption {
	return func(d *model.Devis) { d.Statut = s }
}

func WithDevisTauxTVA(taux string) DevisOption {
	return func(d *model.Devis) { d.TauxTVA = dec(taux) }
}

// WithDevisLignes replaces the lignes. Ordre values are assigned in slice
// order.
func WithDevisLignes(lignes ...model.LigneDevis) DevisOption {
	return func(d *model.Devis) {
		for i := range lignes {
			lignes[i].Ordre = i
		}
		d.Lignes = lignes
	}
}

// ---- Facture ----

type FactureOption func(*model.Facture)

func Facture(clientID uint, opts ...FactureOption) *model.Facture {
	f := &model.Facture{
		Numero:       "FAC-2026-0001",
		Counter:      1,
		ClientID:     clientID,
		DateEmission: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		DateEcheance: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		TauxTVA:      dec("20.00"),
		Statut:       model.FactureBrouillon,
		Conditions:   "Paiement à 30 jours.",
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func WithFactureNumero(numero string, counter uint) FactureOption {
	return func(f *model.Facture) {
		f.Numero = numero
		f.Counter = counter
	}
}

func WithFactureStatut(s model.StatutFacture) FactureOption {
	return func(f *model.Facture) { f.Statut = s }
}

func WithMontantPaye(paye string) FactureOption {
	return func(f *model.Facture) { f.MontantPaye = dec(paye) }
}

// WithFactureLignes replaces the lignes. Ordre values are assigned in slice
// order.
func WithFactureLignes(lignes ...model.LigneDevis) FactureOption {
	return func(f *model.Facture) {
		for i, l := range lignes {
			f.Lignes = append(f.Lignes, model.LigneFacture{
				PrestationID:   l.PrestationID,
				Description:    l.Description,
				Quantite:       l.Quantite,
				PrixUnitaire:   l.PrixUnitaire,
				RemisePourcent: l.RemisePourcent,
				MontantHT:      l.MontantHT,
				Ordre:          i,
			})
		}
	}
}
