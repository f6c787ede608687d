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

type ExportDevis struct {
	XMLName xml.Name   `xml:"devis_list"`
	Version string     `xml:"version,attr,omitempty"`
	Devis   []APIDevis `xml:"devis"`
}

type APILigne struct {
	PrestationID   uint   `json:"prestation_id,omitempty" xml:"prestation_id,omitempty"`
	Description    string `json:"description" xml:"description"`
	Quantite       string `json:"quantite" xml:"quantite"`
	PrixUnitaire   string `json:"prix_unitaire" xml:"prix_unitaire"`
	RemisePourcent string `json:"remise_pourcent" xml:"remise_pourcent"`
	MontantHT      string `json:"montant_ht" xml:"montant_ht"`
	Ordre          int    `json:"ordre" xml:"ordre"`
}

type APIDevis struct {
	ID           uint       `json:"id" xml:"id,attr"`
	Numero       string     `json:"numero" xml:"numero"`
	ClientID     uint       `json:"client_id" xml:"client_id"`
	Statut       string     `json:"statut" xml:"statut"`
	DateEmission time.Time  `json:"date_emission" xml:"date_emission"`
	DateValidite time.Time  `json:"date_validite" xml:"date_validite"`
	TauxTVA      string     `json:"taux_tva" xml:"taux_tva"`
	MontantHT    string     `json:"montant_ht" xml:"montant_ht"`
	MontantTVA   string     `json:"montant_tva" xml:"montant_tva"`
	MontantTTC   string     `json:"montant_ttc" xml:"montant_ttc"`
	Notes        string     `json:"notes,omitempty" xml:"notes,omitempty"`
	Conditions   string     `json:"conditions,omitempty" xml:"conditions,omitempty"`
	FactureID    uint       `json:"facture_id,omitempty" xml:"facture_id,omitempty"`
	Lignes       []APILigne `json:"lignes" xml:"lignes>ligne"`
	CreatedAt    time.Time  `json:"created_at" xml:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" xml:"updated_at"`
}

type APIDevisList struct {
	XMLName struct{}   `json:"-" xml:"devis_list"`
	Items   []APIDevis `json:"items" xml:"devis"`
	Total   int        `json:"total" xml:"total,attr"`
}

func devisToAPI(dv *model.Devis) APIDevis {
	lignes := make([]APILigne, len(dv.Lignes))
	for i, l := range dv.Lignes {
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
	return APIDevis{
		ID:           dv.ID,
		Numero:       dv.Numero,
		ClientID:     dv.ClientID,
		Statut:       string(dv.Statut),
		DateEmission: dv.DateEmission,
		DateValidite: dv.DateValidite,
		TauxTVA:      dv.TauxTVA.String(),
		MontantHT:    dv.MontantHT.String(),
		MontantTVA:   dv.MontantTVA.String(),
		MontantTTC:   dv.MontantTTC.String(),
		Notes:        dv.Notes,
		Conditions:   dv.Conditions,
		FactureID:    dv.FactureID,
		Lignes:       lignes,
		CreatedAt:    dv.CreatedAt,
		UpdatedAt:    dv.UpdatedAt,
	}
}

// apiDevisList handles GET /api/v1/devis
func (ctrl *controller) apiDevisList(c echo.Context) error {
	devis, err := ctrl.model.LoadAllDevis()
	if err != nil {
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not load devis"))
	}
	statut := c.QueryParam("statut")
	items := make([]APIDevis, 0, len(devis))
	for _, dv := range devis {
		if statut != "" && string(dv.Statut) != statut {
			continue
		}
		items = append(items, devisToAPI(dv))
	}
	return respond(c, http.StatusOK, APIDevisList{Items: items, Total: len(items)})
}

// apiDevisGet handles GET /api/v1/devis/:id
func (ctrl *controller) apiDevisGet(c echo.Context) error {
	dv, err := ctrl.model.LoadDevis(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respond(c, http.StatusNotFound, apiError("not_found", "devis not found"))
		}
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not load devis"))
	}
	return respond(c, http.StatusOK, devisToAPI(dv))
}
