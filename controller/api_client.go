package controller

import (
	"encoding/xml"
	"errors"
	"net/http"
	"time"

	"github.com/emapaie/billing/model"

	"github.com/labstack/echo/v4"
)

type ExportClients struct {
	XMLName xml.Name    `xml:"clients"`
	Version string      `xml:"version,attr,omitempty"`
	Clients []APIClient `xml:"client"`
}

type APIClient struct {
	ID            uint      `json:"id" xml:"id,attr"`
	RaisonSociale string    `json:"raison_sociale" xml:"raison_sociale"`
	Contact       string    `json:"contact,omitempty" xml:"contact,omitempty"`
	Email         string    `json:"email,omitempty" xml:"email,omitempty"`
	Telephone     string    `json:"telephone,omitempty" xml:"telephone,omitempty"`
	Adresse       string    `json:"adresse,omitempty" xml:"adresse,omitempty"`
	CodePostal    string    `json:"code_postal,omitempty" xml:"code_postal,omitempty"`
	Ville         string    `json:"ville,omitempty" xml:"ville,omitempty"`
	Pays          string    `json:"pays,omitempty" xml:"pays,omitempty"`
	SIRET         string    `json:"siret,omitempty" xml:"siret,omitempty"`
	NumeroTVA     string    `json:"numero_tva,omitempty" xml:"numero_tva,omitempty"`
	Notes         string    `json:"notes,omitempty" xml:"notes,omitempty"`
	Actif         bool      `json:"actif" xml:"actif"`
	CreatedAt     time.Time `json:"created_at" xml:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" xml:"updated_at"`
}

type APIClientList struct {
	XMLName struct{}    `json:"-" xml:"clients"`
	Items   []APIClient `json:"items" xml:"client"`
	Total   int         `json:"total" xml:"total,attr"`
}

func clientToAPI(cl *model.Client) APIClient {
	return APIClient{
		ID:            cl.ID,
		RaisonSociale: cl.RaisonSociale,
		Contact:       cl.Contact,
		Email:         cl.Email,
		Telephone:     cl.Telephone,
		Adresse:       cl.Adresse,
		CodePostal:    cl.CodePostal,
		Ville:         cl.Ville,
		Pays:          cl.Pays,
		SIRET:         cl.SIRET,
		NumeroTVA:     cl.NumeroTVA,
		Notes:         cl.Notes,
		Actif:         cl.Actif,
		CreatedAt:     cl.CreatedAt,
		UpdatedAt:     cl.UpdatedAt,
	}
}

// apiClientList handles GET /api/v1/clients
func (ctrl *controller) apiClientList(c echo.Context) error {
	var (
		clients []*model.Client
		err     error
	)
	if q := c.QueryParam("q"); q != "" {
		clients, err = ctrl.model.SearchClients(q)
	} else {
		clients, err = ctrl.model.LoadAllClients()
	}
	if err != nil {
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not load clients"))
	}

	items := make([]APIClient, len(clients))
	for i, cl := range clients {
		items[i] = clientToAPI(cl)
	}
	return respond(c, http.StatusOK, APIClientList{Items: items, Total: len(items)})
}

// apiClientGet handles GET /api/v1/clients/:id
func (ctrl *controller) apiClientGet(c echo.Context) error {
	cl, err := ctrl.model.LoadClient(c.Param("id"))
	if err != nil {
		if errors.Is(err, model.ErrClientIntrouvable) {
			return respond(c, http.StatusNotFound, apiError("not_found", "client not found"))
		}
		return respond(c, http.StatusInternalServerError, apiError("db_error", "could not load client"))
	}
	return respond(c, http.StatusOK, clientToAPI(cl))
}
