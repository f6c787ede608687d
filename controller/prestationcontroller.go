package controller

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/emapaie/billing/model"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

func (ctrl *controller) prestationInit(e *echo.Echo) {
	g := e.Group("/prestation")
	g.Use(ctrl.authMiddleware)
	g.GET("/new", ctrl.prestationEdit)
	g.POST("/new", ctrl.prestationEdit)
	g.GET("/edit/:id", ctrl.prestationEdit)
	g.POST("/edit/:id", ctrl.prestationEdit)
	g.POST("/deactivate/:id", ctrl.prestationDeactivate)
	lg := e.Group("/prestations", ctrl.authMiddleware)
	lg.GET("", ctrl.prestationList)
}

type prestationForm struct {
	Code         string `form:"code"`
	Categorie    string `form:"categorie"`
	Nom          string `form:"nom"`
	Description  string `form:"description"`
	PrixUnitaire string `form:"prixunitaire"`
	Unite        string `form:"unite"`
	Actif        bool   `form:"actif"`
}

func (ctrl *controller) prestationList(c echo.Context) error {
	m := ctrl.defaultResponseMap(c, "Catalogue des prestations")
	activeOnly := c.QueryParam("all") == ""
	prestations, err := ctrl.model.LoadPrestations(activeOnly)
	if err != nil {
		return ErrInvalid(err, "Erreur lors du chargement du catalogue")
	}
	m["prestations"] = prestations
	m["activeOnly"] = activeOnly
	return c.Render(http.StatusOK, "prestationlist.html", m)
}

func (ctrl *controller) prestationEdit(c echo.Context) error {
	m := ctrl.defaultResponseMap(c, "Prestation")
	isNew := c.Param("id") == ""
	p := &model.Prestation{Actif: true}
	if !isNew {
		var err error
		p, err = ctrl.model.FindPrestation(paramUint(c, "id"))
		if err != nil {
			return ErrNotFound(err)
		}
	}

	switch c.Request().Method {
	case http.MethodGet:
		if isNew {
			m["title"] = "Nouvelle prestation"
			m["action"] = "/prestation/new"
		} else {
			m["title"] = p.Nom
			m["action"] = fmt.Sprintf("/prestation/edit/%d", p.ID)
		}
		m["prestation"] = p
		m["submit"] = "Enregistrer"
		m["cancel"] = "/prestations"
		return c.Render(http.StatusOK, "prestationedit.html", m)
	case http.MethodPost:
		pf := new(prestationForm)
		if err := c.Bind(pf); err != nil {
			return ErrInvalid(err, "Erreur lors du traitement du formulaire")
		}
		prix, err := decimal.NewFromString(commaperiod.Replace(strings.TrimSpace(pf.PrixUnitaire)))
		if err != nil {
			return ErrInvalid(err, "Le prix unitaire est invalide")
		}
		p.Categorie = pf.Categorie
		p.Nom = strings.TrimSpace(pf.Nom)
		p.Description = pf.Description
		p.PrixUnitaire = prix
		p.Unite = pf.Unite
		p.Actif = pf.Actif
		if p.Nom == "" {
			return ErrInvalid(fmt.Errorf("nom empty"), "Le nom de la prestation est obligatoire")
		}

		if isNew {
			p.Code = pf.Code
			err = ctrl.model.CreatePrestation(p)
			if errors.Is(err, model.ErrCodePrestationExiste) {
				_ = AddFlash(c, "warning",
					fmt.Sprintf("Le code %q est déjà utilisé par une autre prestation.", strings.ToUpper(pf.Code)))
				return c.Redirect(http.StatusSeeOther, "/prestation/new")
			}
		} else {
			// the code is immutable once created
			err = ctrl.model.UpdatePrestation(p)
		}
		if err != nil {
			return ErrInvalid(err, "Erreur lors de l'enregistrement de la prestation")
		}
		return c.Redirect(http.StatusSeeOther, "/prestations")
	}
	return nil
}

func (ctrl *controller) prestationDeactivate(c echo.Context) error {
	if err := ctrl.model.DeactivatePrestation(paramUint(c, "id")); err != nil {
		return ErrInvalid(err, "Erreur lors de la désactivation de la prestation")
	}
	_ = AddFlash(c, "success", "Prestation désactivée. Les documents existants la conservent.")
	return c.Redirect(http.StatusSeeOther, "/prestations")
}
