package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TypeDocument distinguishes the two editable document kinds.
type TypeDocument string

const (
	TypeDevis   TypeDocument = "devis"
	TypeFacture TypeDocument = "facture"
)

// Champ names an editable line field.
type Champ string

const (
	ChampDescription  Champ = "description"
	ChampQuantite     Champ = "quantite"
	ChampPrixUnitaire Champ = "prix_unitaire"
	ChampRemise       Champ = "remise_pourcent"
)

// delaiPaiement is the fixed grace period for the validity date of a devis
// and the due date of a facture.
const delaiPaiement = 30 * 24 * time.Hour

// Catalogue resolves prestation references when a line is bound to a
// catalogue entry. *Store implements it.
type Catalogue interface {
	FindPrestation(id uint) (*Prestation, error)
}

// LigneDraft is one editable line of a DocumentDraft. MontantHT is derived
// and kept consistent by the draft after every mutation.
type LigneDraft struct {
	PrestationID   uint // 0 for free-text lines
	Description    string
	Quantite       decimal.Decimal
	PrixUnitaire   decimal.Decimal
	RemisePourcent decimal.Decimal
	MontantHT      decimal.Decimal
	Ordre          int
}

// DocumentDraft is the editable state of one devis or facture before it is
// persisted. It owns the ordered line collection and recomputes the line
// amounts and document totals synchronously on every mutation, so Totaux is
// always consistent with Lignes.
type DocumentDraft struct {
	Type         TypeDocument
	ID           uint // non-zero when hydrated from a persisted document
	ClientID     uint
	DateEmission time.Time
	// DateEcheance is the validity date of a devis or the due date of a
	// facture.
	DateEcheance time.Time
	TauxTVA      decimal.Decimal
	Statut       string
	Notes        string
	Conditions   string
	Lignes       []LigneDraft
	Totaux       Totaux

	// Facture only.
	MontantPaye decimal.Decimal
	DevisID     uint // set when created through a devis conversion

	catalogue Catalogue
}

// NewDevisDraft creates an empty devis draft for the given client with the
// default dates and TVA rate.
func NewDevisDraft(cat Catalogue, clientID uint) *DocumentDraft {
	d := newDraft(TypeDevis, cat, clientID)
	d.Statut = string(DevisBrouillon)
	return d
}

// NewFactureDraft creates an empty facture draft for the given client.
func NewFactureDraft(cat Catalogue, clientID uint) *DocumentDraft {
	d := newDraft(TypeFacture, cat, clientID)
	d.Statut = string(FactureBrouillon)
	return d
}

func newDraft(t TypeDocument, cat Catalogue, clientID uint) *DocumentDraft {
	now := time.Now()
	return &DocumentDraft{
		Type:         t,
		ClientID:     clientID,
		DateEmission: now,
		DateEcheance: now.Add(delaiPaiement),
		TauxTVA:      decimal.RequireFromString("20.00"),
		MontantPaye:  decimal.Zero,
		catalogue:    cat,
	}
}

// NewFactureDraftFromDevis builds a facture draft from a persisted devis:
// all lines are copied verbatim (quantite, prix, remise) with fresh ordre
// values and without their persisted identity, notes and the TVA rate are
// copied, the conditions get the default payment terms and DevisID links
// back to the source.
func NewFactureDraftFromDevis(cat Catalogue, devis *Devis) *DocumentDraft {
	d := NewFactureDraft(cat, devis.ClientID)
	d.DevisID = devis.ID
	d.TauxTVA = devis.TauxTVA
	d.Notes = devis.Notes
	d.Conditions = "Paiement à 30 jours."
	for i, l := range devis.Lignes {
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

// AddLigne appends a line at the next ordre and returns its index. A nil
// initial gives the default line (quantite 1, everything else zero).
func (d *DocumentDraft) AddLigne(initial *LigneDraft) int {
	l := LigneDraft{
		Quantite:       decimal.NewFromInt(1),
		PrixUnitaire:   decimal.Zero,
		RemisePourcent: decimal.Zero,
	}
	if initial != nil {
		l = *initial
	}
	l.Ordre = len(d.Lignes)
	d.Lignes = append(d.Lignes, l)
	d.recalculer()
	return l.Ordre
}

// RemoveLigne deletes the line at index and renumbers the remaining lines so
// that ordre stays a dense 0..n-1 sequence.
func (d *DocumentDraft) RemoveLigne(index int) error {
	if index < 0 || index >= len(d.Lignes) {
		return ErrIndexLigne
	}
	d.Lignes = append(d.Lignes[:index], d.Lignes[index+1:]...)
	for i := range d.Lignes {
		d.Lignes[i].Ordre = i
	}
	d.recalculer()
	return nil
}

// SetPrestation binds the line at index to a catalogue prestation. The
// prestation's nom and prix unitaire are copied into the line (a one-time
// snapshot, later catalogue edits do not propagate); quantite and remise are
// preserved. On a catalogue miss the line is left unchanged.
func (d *DocumentDraft) SetPrestation(index int, prestationID uint) error {
	if index < 0 || index >= len(d.Lignes) {
		return ErrIndexLigne
	}
	p, err := d.catalogue.FindPrestation(prestationID)
	if err != nil {
		return ErrPrestationIntrouvable
	}
	l := &d.Lignes[index]
	l.PrestationID = p.ID
	l.Description = p.Nom
	l.PrixUnitaire = p.PrixUnitaire
	d.recalculer()
	return nil
}

// SetChamp updates one field of the line at index. Numeric fields are parsed
// permissively: input that does not parse becomes 0. Negative values and a
// remise outside [0,100] are rejected with a ValidationError and leave the
// line unchanged.
func (d *DocumentDraft) SetChamp(index int, champ Champ, valeur string) error {
	if index < 0 || index >= len(d.Lignes) {
		return ErrIndexLigne
	}
	l := &d.Lignes[index]
	switch champ {
	case ChampDescription:
		l.Description = valeur
	case ChampQuantite:
		q := parseDecimal(valeur)
		if q.IsNegative() {
			return validationErr(ValidationQuantiteInvalide, index)
		}
		l.Quantite = q
	case ChampPrixUnitaire:
		p := parseDecimal(valeur)
		if p.IsNegative() {
			return validationErr(ValidationPrixInvalide, index)
		}
		l.PrixUnitaire = p
	case ChampRemise:
		r := parseDecimal(valeur)
		if r.IsNegative() || r.GreaterThan(hundred) {
			return validationErr(ValidationRemiseInvalide, index)
		}
		l.RemisePourcent = r
	default:
		return ErrChampInconnu
	}
	d.recalculer()
	return nil
}

// SetTauxTVA updates the document TVA rate and recomputes totals. Values
// outside [0,100] are rejected.
func (d *DocumentDraft) SetTauxTVA(valeur string) error {
	t := parseDecimal(valeur)
	if t.IsNegative() || t.GreaterThan(hundred) {
		return validationErr(ValidationRemiseInvalide, -1)
	}
	d.TauxTVA = t
	d.recalculer()
	return nil
}

// SetMontantPaye updates the paid amount of a facture draft and recomputes
// totals. Only when the amount actually changes is the status nudged to
// payee or partiel (one-directional). A form that round-trips an unchanged
// amount leaves a manually set status alone.
func (d *DocumentDraft) SetMontantPaye(valeur string) error {
	m := parseDecimal(valeur)
	if m.IsNegative() {
		return validationErr(ValidationPrixInvalide, -1)
	}
	change := !m.Equal(d.MontantPaye)
	d.MontantPaye = m
	d.recalculer()
	if change {
		d.Statut = string(InferStatutPaiement(d.Totaux.TotalTTC, d.MontantPaye, StatutFacture(d.Statut)))
	}
	return nil
}

// ResteAPayer is the open balance of a facture draft.
func (d *DocumentDraft) ResteAPayer() decimal.Decimal {
	return d.Totaux.TotalTTC.Sub(d.MontantPaye)
}

// ValidateForSave checks that the draft can be flattened into a persisted
// document: at least one line, and every line billable (quantite > 0 and
// either a prestation reference or a description).
func (d *DocumentDraft) ValidateForSave() error {
	if len(d.Lignes) == 0 {
		return validationErr(ValidationAucuneLigne, -1)
	}
	for i, l := range d.Lignes {
		if !l.Quantite.IsPositive() {
			return validationErr(ValidationLigneInvalide, i)
		}
		if l.PrestationID == 0 && strings.TrimSpace(l.Description) == "" {
			return validationErr(ValidationLigneInvalide, i)
		}
	}
	return nil
}

// recalculer re-derives every line amount and the document totals. Called
// after each mutation, never deferred.
func (d *DocumentDraft) recalculer() {
	montants := make([]decimal.Decimal, len(d.Lignes))
	for i := range d.Lignes {
		d.Lignes[i].MontantHT = MontantLigne(
			d.Lignes[i].Quantite,
			d.Lignes[i].PrixUnitaire,
			d.Lignes[i].RemisePourcent,
		)
		montants[i] = d.Lignes[i].MontantHT
	}
	d.Totaux = CalculerTotaux(montants, d.TauxTVA)
}

// parseDecimal parses operator input leniently: commas are accepted as
// decimal separators and anything unparsable becomes zero.
func parseDecimal(s string) decimal.Decimal {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return v
}
