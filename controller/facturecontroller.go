package controller

import (
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/emapaie/billing/model"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

func (ctrl *controller) factureInit(e *echo.Echo) {
	g := e.Group("/facture")
	g.Use(ctrl.authMiddleware)
	g.GET("/new/:clientid", ctrl.factureNew)
	g.POST("/new", ctrl.factureNew)
	g.GET("/detail/:id", ctrl.factureDetail)
	g.GET("/edit/:id", ctrl.factureEdit)
	g.POST("/edit/:id", ctrl.factureEdit)
	g.DELETE("/delete/:id", ctrl.factureDelete)
	g.POST("/status/:id", ctrl.factureStatusChange)
	g.POST("/paiement/:id", ctrl.facturePaiement)
	g.GET("/pdf/:id", ctrl.facturePDF)
	g.GET("/preview/:id", ctrl.facturePreview)
	g.GET("/facturx/:id", ctrl.factureFacturX)
	lg := e.Group("/factures", ctrl.authMiddleware)
	lg.GET("", ctrl.factureList)
}

func (ctrl *controller) factureNew(c echo.Context) error {
	m := ctrl.defaultResponseMap(c, "Nouvelle facture")
	switch c.Request().Method {
	case http.MethodGet:
		params, err := ctrl.model.LoadParametres()
		if err != nil {
			return ErrInvalid(err, "Erreur lors du chargement des paramètres")
		}
		client, err := ctrl.model.LoadClient(c.Param("clientid"))
		if err != nil {
			return ErrNotFound(err)
		}
		counter, err := ctrl.model.GetMaxFactureCounter()
		if err != nil {
			return ErrInvalid(err, "Erreur lors du calcul du numéro")
		}

		d := model.NewFactureDraft(ctrl.model, client.ID)
		d.TauxTVA = params.TauxTVADefaut
		if params.ConditionsReglement != "" {
			d.Conditions = params.ConditionsReglement
		}
		d.AddLigne(nil)

		prestations, err := ctrl.model.LoadPrestations(true)
		if err != nil {
			return ErrInvalid(err, "Erreur lors du chargement du catalogue")
		}

		m["draft"] = d
		m["client"] = client
		m["prestations"] = prestations
		m["numero"] = formatNumero(params.NumeroFactureTemplate, fmt.Sprint(client.ID), int(counter+1))
		m["counter"] = counter + 1
		m["submit"] = "Créer la facture"
		m["action"] = "/facture/new"
		m["cancel"] = fmt.Sprintf("/client/%d", client.ID)
		return c.Render(http.StatusOK, "factureedit.html", m)

	case http.MethodPost:
		d, f, err := ctrl.bindDraft(c, model.TypeFacture)
		if err != nil {
			return ErrInvalid(err, "Erreur lors du traitement de la facture")
		}
		fa := d.EnFacture()
		fa.Numero = f.Numero
		fa.Counter = f.Counter
		if err := ctrl.model.SaveFacture(fa); err != nil {
			return ErrInvalid(err, "Erreur lors de l'enregistrement de la facture")
		}
		return c.Redirect(http.StatusSeeOther, fmt.Sprintf("/facture/detail/%d", fa.ID))
	}
	return nil
}

func (ctrl *controller) factureDetail(c echo.Context) error {
	m := ctrl.defaultResponseMap(c, "Facture")
	f, err := ctrl.model.LoadFacture(c.Param("id"))
	if err != nil {
		return ErrNotFound(err)
	}
	if f.DevisID != 0 {
		if dv, err := ctrl.model.LoadDevis(f.DevisID); err == nil {
			m["devisSource"] = dv
		}
	}
	m["title"] = "Facture " + f.Numero
	m["facture"] = f
	m["client"] = f.Client
	m["reste"] = f.ResteAPayer().StringFixed(2)
	return c.Render(http.StatusOK, "facturedetail.html", m)
}

func (ctrl *controller) factureEdit(c echo.Context) error {
	m := ctrl.defaultResponseMap(c, "Modifier la facture")
	f, err := ctrl.model.LoadFacture(c.Param("id"))
	if err != nil {
		return ErrNotFound(err)
	}
	switch c.Request().Method {
	case http.MethodGet:
		prestations, err := ctrl.model.LoadPrestations(true)
		if err != nil {
			return ErrInvalid(err, "Erreur lors du chargement du catalogue")
		}
		m["title"] = "Facture " + f.Numero
		m["draft"] = model.DraftFromFacture(ctrl.model, f)
		m["client"] = f.Client
		m["prestations"] = prestations
		m["numero"] = f.Numero
		m["counter"] = f.Counter
		m["submit"] = "Enregistrer la facture"
		m["action"] = "/facture/edit/" + c.Param("id")
		m["cancel"] = "/facture/detail/" + c.Param("id")
		return c.Render(http.StatusOK, "factureedit.html", m)
	case http.MethodPost:
		d, _, err := ctrl.bindDraft(c, model.TypeFacture)
		if err != nil {
			return ErrInvalid(err, "Erreur lors du traitement de la facture")
		}
		updated := d.EnFacture()
		updated.ID = f.ID
		updated.Numero = f.Numero
		updated.Counter = f.Counter
		updated.DevisID = f.DevisID
		if err := ctrl.model.SaveFacture(updated); err != nil {
			return ErrInvalid(err, "Erreur lors de l'enregistrement de la facture")
		}
		return c.Redirect(http.StatusSeeOther, "/facture/detail/"+c.Param("id"))
	}
	return nil
}

func (ctrl *controller) factureDelete(c echo.Context) error {
	f, err := ctrl.model.LoadFacture(c.Param("id"))
	if err != nil {
		return ErrNotFound(err)
	}
	clientID := f.ClientID
	if err := ctrl.model.DeleteFacture(f); err != nil {
		return ErrInvalid(err, "Erreur lors de la suppression de la facture")
	}
	_ = AddFlash(c, "success", "Facture supprimée.")
	return c.Redirect(http.StatusSeeOther, fmt.Sprintf("/client/%d", clientID))
}

func (ctrl *controller) factureStatusChange(c echo.Context) error {
	id := paramUint(c, "id")
	if id == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "identifiant de facture invalide")
	}
	statut := model.StatutFacture(strings.TrimSpace(c.FormValue("statut")))
	if err := ctrl.model.ChangerStatutFacture(id, statut); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "statut inconnu")
	}
	return c.JSON(http.StatusOK, map[string]string{"statut": string(statut)})
}

// facturePaiement records the paid amount; the status nudge (payee/partiel)
// happens in the draft.
func (ctrl *controller) facturePaiement(c echo.Context) error {
	f, err := ctrl.model.LoadFacture(c.Param("id"))
	if err != nil {
		return ErrNotFound(err)
	}
	d := model.DraftFromFacture(ctrl.model, f)
	if err := d.SetMontantPaye(c.FormValue("montantpaye")); err != nil {
		return ErrInvalid(err, "Le montant payé est invalide")
	}
	updated := d.EnFacture()
	updated.Numero = f.Numero
	updated.Counter = f.Counter
	if err := ctrl.model.SaveFacture(updated); err != nil {
		return ErrInvalid(err, "Erreur lors de l'enregistrement du paiement")
	}
	return c.JSON(http.StatusOK, map[string]string{
		"statut":      libelleStatutFacture(updated.Statut),
		"montantpaye": updated.MontantPaye.StringFixed(2),
		"reste":       updated.ResteAPayer().StringFixed(2),
	})
}

func (ctrl *controller) facturePDF(c echo.Context) error {
	logger := c.Get("logger").(*slog.Logger)
	f, err := ctrl.model.LoadFacture(c.Param("id"))
	if err != nil {
		return ErrNotFound(err)
	}
	pdfPath := filepath.Join(ctrl.model.Config.Basedir, "pdf", fmt.Sprintf("facture_%d.pdf", f.ID))
	if err := ensureDir(filepath.Dir(pdfPath)); err != nil {
		return ErrInvalid(err, "Erreur lors de la préparation du PDF")
	}
	if err := ctrl.model.CreateFacturePDF(f, pdfPath, logger); err != nil {
		return ErrInvalid(err, "Erreur lors de la génération du PDF")
	}
	return c.Attachment(pdfPath, fmt.Sprintf("%s.pdf", f.Numero))
}

// factureFacturX streams the Factur-X (EN16931) XML of a facture.
func (ctrl *controller) factureFacturX(c echo.Context) error {
	f, err := ctrl.model.LoadFacture(c.Param("id"))
	if err != nil {
		return ErrNotFound(err)
	}
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	res.Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="%s.xml"`, f.Numero))
	res.WriteHeader(http.StatusOK)
	return ctrl.model.WriteFacturX(f, res)
}

func (ctrl *controller) factureList(c echo.Context) error {
	m := ctrl.defaultResponseMap(c, "Factures")
	factures, err := ctrl.model.LoadAllFactures()
	if err != nil {
		return ErrInvalid(err, "Erreur lors du chargement des factures")
	}

	statut := strings.TrimSpace(c.QueryParam("statut"))
	switch statut {
	case "":
		m["title"] = "Toutes les factures"
	case "ouvertes":
		m["title"] = "Factures en attente de paiement"
		filtered := factures[:0]
		for _, f := range factures {
			if f.Statut.Ouverte() {
				filtered = append(filtered, f)
			}
		}
		factures = filtered
	default:
		m["title"] = "Factures " + statut
		filtered := factures[:0]
		for _, f := range factures {
			if string(f.Statut) == statut {
				filtered = append(filtered, f)
			}
		}
		factures = filtered
	}

	var totalTTC, totalPaye decimal.Decimal
	for _, f := range factures {
		totalTTC = totalTTC.Add(f.MontantTTC)
		totalPaye = totalPaye.Add(f.MontantPaye)
	}
	m["factures"] = factures
	m["totalTTC"] = totalTTC.StringFixed(2)
	m["totalPaye"] = totalPaye.StringFixed(2)
	m["statut"] = statut
	return c.Render(http.StatusOK, "facturelist.html", m)
}

func libelleStatutFacture(s model.StatutFacture) string {
	switch s {
	case model.FactureBrouillon:
		return "Brouillon"
	case model.FactureEnvoyee:
		return "Envoyée"
	case model.FacturePayee:
		return "Payée"
	case model.FacturePartiel:
		return "Paiement partiel"
	case model.FactureRetard:
		return "En retard"
	case model.FactureAnnulee:
		return "Annulée"
	default:
		return string(s)
	}
}
