package controller

import (
	"encoding/xml"
	"errors"
	"net/http"
	"time"

	"github.com/emapaie/billing/model"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type ExportFactures struct {
	XMLName  xml.Name     `xml:"factures"`
	Version  string       `xml:"version,attr,omitempty"`
	Factures []APIFacture `xml:"facture"`
}

type APIFacture struct {
	ID           uint       `json:"id" xml:"id,attr"`
	Numero       string     `json:"numero" xml:"numero"`
	ClientID     uint       `json:"client_id" xml:"client_id"`
	DevisID      uint       `json:"devis_id,omitempty" xml:"devis_id,omitempty"`
	Statut       string     `json:"statut" xml:"statut"`
	DateEmission time.Time  `json:"date_emission" xml:"date_emission"`
	DateEcheance time.Time  `json:"date_echeance" xml:"date_echeance"`
	TauxTVA      string     `json:"taux_tva" xml:"taux_tva"`
	MontantHT    string     `json:"montant_ht" xml:"montant_ht"`
	MontantTVA   string     `json:"montant_tva" xml:"montant_tva"`
	MontantTTC   string     `json:"montant_ttc" xml:"montant_ttc"`
	MontantPaye  string     `json:"montant_paye" xml:"montant_paye"`
	ResteAPayer  string     `json:"reste_a_payer" xml:"reste_a_payer"`
	Notes        string     `json:"notes,omitempty" xml:"notes,omitempty"`
	Conditions   string     `json:"conditions,omitempty" xml:"conditions,omitempty"`
	Lignes       []APILigne `json:"lignes" xml:"lignes>ligne"`
	CreatedAt    time.Time  `json:"created_at" xml:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" xml:"updated_at"`
}

type APIFactureList struct {
	XMLName struct{}     `json:"-" xml:"factures"`
	Items   []APIFacture `json:"items" xml:"facture"`
	Total   int          `json:"total" xml:"total,attr"`
}

func factureToAPI(f *model.Facture) APIFacture {
	lignes := make([]APILigne, len(f.Lignes))
	for i, l := range f.Lignes {
		lignes[i] = APILigne{
			PrestationID:   l.PrestationID,
			Description:    l.Description,
			Quantite:       l.Quantite.String(),
			PrixUnitaire:   l.PrixUnitaire.String(),
			RemisePourcent: l.RemisePourcent.String(),
			MontantHT:      l.MontantHT.String(),
			Ordre:          l.Ordre,
		}
	}
	return APIFacture{
		ID:           f.ID,
		Numero:       f.Numero,
		ClientID:     f.ClientID,
		DevisID:      f.DevisID,
		Statut:       string(f.Statut),
		DateEmission: f.DateEmission,
		DateEcheance: f.DateEcheance,
		TauxTVA:      f.TauxTVA.String(),
		MontantHT:    f.MontantHT.String(),
		MontantTVA:   f.MontantTVA.String(),
		MontantTTC:   f.MontantTTC.String(),
		MontantPaye:  f.MontantPaye.String(),
		ResteAPayer:  f.ResteAPayer().String(),
		Notes:        f.Notes,
		Conditions:   f.Conditions,
		Lignes:       lignes,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// apiFactureList handles GET /api/v1/factures
func (ctrl *controller) apiFactureList(c echo.Context) error {
	factures, err := ctrl.model.LoadAllFactures()
	if err != nil {
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not load factures"))
	}
	statut := c.QueryParam("statut")
	items := make([]APIFacture, 0, len(factures))
	for _, f := range factures {
		if statut != "" && string(f.Statut) != statut {
			continue
		}
		items = append(items, factureToAPI(f))
	}
	return respond(c, http.StatusOK, APIFactureList{Items: items, Total: len(items)})
}

// apiFactureGet handles GET /api/v1/factures/:id
func (ctrl *controller) apiFactureGet(c echo.Context) error {
	f, err := ctrl.model.LoadFacture(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respond(c, http.StatusNotFound, apiError("not_found", "facture not found"))
		}
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not load facture"))
	}
	return respond(c, http.StatusOK, factureToAPI(f))
}

// apiFactureFacturX handles GET /api/v1/factures/:id/facturx
func (ctrl *controller) apiFactureFacturX(c echo.Context) error {
	f, err := ctrl.model.LoadFacture(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respond(c, http.StatusNotFound, apiError("not_found", "facture not found"))
		}
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not load facture"))
	}
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	res.WriteHeader(http.StatusOK)
	return ctrl.model.WriteFacturX(f, res)
}
