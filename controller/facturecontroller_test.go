package controller

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/emapaie/billing/fixtures"
	"github.com/emapaie/billing/model"

	"github.com/labstack/echo/v4"
)

// postDraftForm runs bindDraft against an editor form submission.
func postDraftForm(t *testing.T, ctrl *controller, form url.Values) *model.DocumentDraft {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/facture/edit/1",
		strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	d, _, err := ctrl.bindDraft(c, model.TypeFacture)
	if err != nil {
		t.Fatalf("bindDraft: %v", err)
	}
	return d
}

func TestBindDraftConserveStatutManuel(t *testing.T) {
	store := fixtures.NewTestStore(t)
	data := fixtures.SeedTestData(t, store)
	ctrl := &controller{model: store}

	// A partially paid facture: 240.00 TTC, 100.00 already recorded.
	f := fixtures.Facture(data.Client.ID,
		fixtures.WithFactureLignes(fixtures.Ligne("Gestion de paie", "2", "100.00", "0")),
		fixtures.WithFactureStatut(model.FacturePartiel),
		fixtures.WithMontantPaye("100.00"))
	if err := store.SaveFacture(f); err != nil {
		t.Fatalf("save facture: %v", err)
	}

	form := url.Values{}
	form.Set("documentid", strconv.Itoa(int(f.ID)))
	form.Set("clientid", strconv.Itoa(int(data.Client.ID)))
	form.Set("statut", string(model.FactureAnnulee))
	form.Set("tauxtva", "20.00")
	form.Set("montantpaye", "100.00")
	form.Set("lignes[0].description", "Gestion de paie")
	form.Set("lignes[0].quantite", "2")
	form.Set("lignes[0].prixunitaire", "100.00")
	form.Set("lignes[0].remise", "0")

	// Unchanged paid amount: the submitted status must survive the save.
	d := postDraftForm(t, ctrl, form)
	if d.Statut != string(model.FactureAnnulee) {
		t.Errorf("Statut = %s, want annulee", d.Statut)
	}
	if !d.MontantPaye.Equal(f.MontantPaye) {
		t.Errorf("MontantPaye = %s, want %s", d.MontantPaye, f.MontantPaye)
	}

	// An edited paid amount still nudges.
	form.Set("statut", string(model.FactureEnvoyee))
	form.Set("montantpaye", "240.00")
	d = postDraftForm(t, ctrl, form)
	if d.Statut != string(model.FacturePayee) {
		t.Errorf("Statut = %s, want payee after full payment", d.Statut)
	}
}
