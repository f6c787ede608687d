package controller

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/emapaie/billing/fixtures"
	"github.com/emapaie/billing/model"

	"github.com/labstack/echo/v4"
)

func setupTestAPI(t *testing.T) (*echo.Echo, *model.Store, *fixtures.TestData) {
	t.Helper()
	store := fixtures.NewTestStore(t)
	data := fixtures.SeedTestData(t, store)

	e := echo.New()
	ctrl := &controller{model: store}

	// Register routes without auth middleware for testing
	api := e.Group("/api/v1")
	api.GET("/clients", ctrl.apiClientList)
	api.GET("/clients/:id", ctrl.apiClientGet)
	api.GET("/devis", ctrl.apiDevisList)
	api.GET("/devis/:id", ctrl.apiDevisGet)
	api.GET("/factures", ctrl.apiFactureList)
	api.GET("/factures/:id", ctrl.apiFactureGet)

	return e, store, data
}

func callAPI(t *testing.T, e *echo.Echo, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	path := target
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	e.Router().Find(http.MethodGet, path, c)
	if err := c.Handler()(c); err != nil {
		t.Fatalf("Handler error: %v", err)
	}
	return rec
}

func TestAPIClientList(t *testing.T) {
	e, _, data := setupTestAPI(t)

	rec := callAPI(t, e, "/api/v1/clients")
	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusOK)
	}

	var result APIClientList
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("JSON unmarshal error: %v", err)
	}
	if result.Total != 1 || len(result.Items) != 1 {
		t.Fatalf("Total/Items = %d/%d, want 1/1", result.Total, len(result.Items))
	}
	if result.Items[0].RaisonSociale != data.Client.RaisonSociale {
		t.Errorf("RaisonSociale = %q, want %q",
			result.Items[0].RaisonSociale, data.Client.RaisonSociale)
	}
}

func TestAPIClientListXML(t *testing.T) {
	e, _, data := setupTestAPI(t)

	rec := callAPI(t, e, "/api/v1/clients?format=xml")
	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.Contains(ct, "xml") {
		t.Errorf("Content-Type = %q, want XML", ct)
	}

	var result struct {
		XMLName xml.Name    `xml:"clients"`
		Clients []APIClient `xml:"client"`
	}
	if err := xml.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("XML unmarshal error: %v", err)
	}
	if len(result.Clients) != 1 {
		t.Fatalf("got %d clients, want 1", len(result.Clients))
	}
	if result.Clients[0].RaisonSociale != data.Client.RaisonSociale {
		t.Errorf("RaisonSociale = %q, want %q",
			result.Clients[0].RaisonSociale, data.Client.RaisonSociale)
	}
}

func TestAPIClientGet(t *testing.T) {
	e, _, data := setupTestAPI(t)

	rec := callAPI(t, e, fmt.Sprintf("/api/v1/clients/%d", data.Client.ID))
	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusOK)
	}

	var result APIClient
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("JSON unmarshal error: %v", err)
	}
	if result.ID != data.Client.ID {
		t.Errorf("ID = %d, want %d", result.ID, data.Client.ID)
	}
	if result.SIRET != data.Client.SIRET {
		t.Errorf("SIRET = %q, want %q", result.SIRET, data.Client.SIRET)
	}
}

func TestAPIClientGet_NotFound(t *testing.T) {
	e, _, _ := setupTestAPI(t)

	rec := callAPI(t, e, "/api/v1/clients/9999")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	var result APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("JSON unmarshal error: %v", err)
	}
	if result.Code != "not_found" {
		t.Errorf("error code = %q, want not_found", result.Code)
	}
}

func TestAPIFactureGet(t *testing.T) {
	e, store, data := setupTestAPI(t)

	f := fixtures.Facture(data.Client.ID,
		fixtures.WithFactureLignes(fixtures.Ligne("Gestion de paie", "12", "32.00", "0")))
	if err := store.SaveFacture(f); err != nil {
		t.Fatalf("save facture: %v", err)
	}

	rec := callAPI(t, e, fmt.Sprintf("/api/v1/factures/%d", f.ID))
	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusOK)
	}

	var result APIFacture
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("JSON unmarshal error: %v", err)
	}
	if result.Numero != f.Numero {
		t.Errorf("Numero = %q, want %q", result.Numero, f.Numero)
	}
	if len(result.Lignes) != len(f.Lignes) {
		t.Errorf("got %d lignes, want %d", len(result.Lignes), len(f.Lignes))
	}
}
