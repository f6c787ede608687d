package controller

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/emapaie/billing/model"

	"github.com/labstack/echo/v4"
)

func (ctrl *controller) clientInit(e *echo.Echo) {
	g := e.Group("/client")
	g.Use(ctrl.authMiddleware)
	g.GET("/new", ctrl.clientEdit)
	g.POST("/new", ctrl.clientEdit)
	g.GET("/:id", ctrl.clientDetail)
	g.GET("/edit/:id", ctrl.clientEdit)
	g.POST("/edit/:id", ctrl.clientEdit)
	g.DELETE("/delete/:id", ctrl.clientDelete)
	lg := e.Group("/clients", ctrl.authMiddleware)
	lg.GET("", ctrl.clientList)
}

type clientForm struct {
	RaisonSociale string `form:"raisonsociale"`
	Contact       string `form:"contact"`
	Email         string `form:"email"`
	Telephone     string `form:"telephone"`
	Adresse       string `form:"adresse"`
	CodePostal    string `form:"codepostal"`
	Ville         string `form:"ville"`
	Pays          string `form:"pays"`
	SIRET         string `form:"siret"`
	NumeroTVA     string `form:"numerotva"`
	Notes         string `form:"notes"`
	Actif         bool   `form:"actif"`
}

func (ctrl *controller) clientList(c echo.Context) error {
	m := ctrl.defaultResponseMap(c, "Clients")
	var clients []*model.Client
	var err error
	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		clients, err = ctrl.model.SearchClients(q)
		m["query"] = q
	} else {
		clients, err = ctrl.model.LoadAllClients()
	}
	if err != nil {
		return ErrInvalid(err, "Erreur lors du chargement des clients")
	}
	m["clients"] = clients
	return c.Render(http.StatusOK, "clientlist.html", m)
}

func (ctrl *controller) clientDetail(c echo.Context) error {
	m := ctrl.defaultResponseMap(c, "Fiche client")
	client, err := ctrl.model.LoadClient(c.Param("id"))
	if err != nil {
		return ErrNotFound(err)
	}
	devis, err := ctrl.model.LoadDevisForClient(client.ID)
	if err != nil {
		return ErrInvalid(err, "Erreur lors du chargement des devis")
	}
	factures, err := ctrl.model.LoadFacturesForClient(client.ID)
	if err != nil {
		return ErrInvalid(err, "Erreur lors du chargement des factures")
	}
	documents, err := ctrl.model.LoadDocumentsForClient(client.ID)
	if err != nil {
		return ErrInvalid(err, "Erreur lors du chargement des documents")
	}
	m["title"] = client.RaisonSociale
	m["client"] = client
	m["devis"] = devis
	m["factures"] = factures
	m["documents"] = documents
	return c.Render(http.StatusOK, "clientdetail.html", m)
}

func (ctrl *controller) clientEdit(c echo.Context) error {
	m := ctrl.defaultResponseMap(c, "Client")
	client := &model.Client{Actif: true}
	if id := c.Param("id"); id != "" {
		var err error
		client, err = ctrl.model.LoadClient(id)
		if err != nil {
			return ErrNotFound(err)
		}
	}

	switch c.Request().Method {
	case http.MethodGet:
		if client.ID == 0 {
			m["title"] = "Nouveau client"
			m["action"] = "/client/new"
		} else {
			m["title"] = client.RaisonSociale
			m["action"] = fmt.Sprintf("/client/edit/%d", client.ID)
		}
		m["client"] = client
		m["submit"] = "Enregistrer"
		m["cancel"] = "/clients"
		return c.Render(http.StatusOK, "clientedit.html", m)
	case http.MethodPost:
		cf := new(clientForm)
		if err := c.Bind(cf); err != nil {
			return ErrInvalid(err, "Erreur lors du traitement du formulaire")
		}
		if strings.TrimSpace(cf.RaisonSociale) == "" {
			return ErrInvalid(fmt.Errorf("raison sociale empty"), "La raison sociale est obligatoire")
		}
		client.RaisonSociale = strings.TrimSpace(cf.RaisonSociale)
		client.Contact = cf.Contact
		client.Email = cf.Email
		client.Telephone = cf.Telephone
		client.Adresse = cf.Adresse
		client.CodePostal = cf.CodePostal
		client.Ville = cf.Ville
		client.Pays = cf.Pays
		client.SIRET = cf.SIRET
		client.NumeroTVA = cf.NumeroTVA
		client.Notes = cf.Notes
		client.Actif = cf.Actif
		if err := ctrl.model.SaveClient(client); err != nil {
			return ErrInvalid(err, "Erreur lors de l'enregistrement du client")
		}
		return c.Redirect(http.StatusSeeOther, fmt.Sprintf("/client/%d", client.ID))
	}
	return nil
}

func (ctrl *controller) clientDelete(c echo.Context) error {
	client, err := ctrl.model.LoadClient(c.Param("id"))
	if err != nil {
		return ErrNotFound(err)
	}
	factures, err := ctrl.model.LoadFacturesForClient(client.ID)
	if err != nil {
		return ErrInvalid(err, "Erreur lors du chargement des factures")
	}
	if len(factures) > 0 {
		return echo.NewHTTPError(http.StatusForbidden,
			"Ce client a des factures et ne peut pas être supprimé")
	}
	if err := ctrl.model.DeleteClient(client); err != nil {
		return ErrInvalid(err, "Erreur lors de la suppression du client")
	}
	_ = AddFlash(c, "success", "Client supprimé.")
	return c.Redirect(http.StatusSeeOther, "/clients")
}
