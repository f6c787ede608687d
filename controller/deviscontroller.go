package controller

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emapaie/billing/model"

	"github.com/go-playground/form/v4"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

func (ctrl *controller) devisInit(e *echo.Echo) {
	g := e.Group("/devis")
	g.Use(ctrl.authMiddleware)
	g.GET("/new/:clientid", ctrl.devisNew)
	g.POST("/new", ctrl.devisNew)
	g.GET("/detail/:id", ctrl.devisDetail)
	g.GET("/edit/:id", ctrl.devisEdit)
	g.POST("/edit/:id", ctrl.devisEdit)
	g.DELETE("/delete/:id", ctrl.devisDelete)
	g.POST("/status/:id", ctrl.devisStatusChange)
	g.POST("/convert/:id", ctrl.devisConvert)
	g.GET("/pdf/:id", ctrl.devisPDF)
	g.GET("/preview/:id", ctrl.devisPreview)
	lg := e.Group("/devislist", ctrl.authMiddleware)
	lg.GET("", ctrl.devisList)
}

// ligneForm is one submitted line of the devis/facture editor.
type ligneForm struct {
	PrestationID uint   `form:"prestationid"`
	Description  string `form:"description"`
	Quantite     string `form:"quantite"`
	PrixUnitaire string `form:"prixunitaire"`
	Remise       string `form:"remise"`
}

type documentForm struct {
	DocumentID   uint        `form:"documentid"`
	ClientID     uint        `form:"clientid"`
	Numero       string      `form:"numero"`
	Counter      uint        `form:"counter"`
	DateEmission time.Time   `form:"dateemission"`
	DateEcheance time.Time   `form:"dateecheance"`
	TauxTVA      string      `form:"tauxtva"`
	Statut       string      `form:"statut"`
	Notes        string      `form:"notes"`
	Conditions   string      `form:"conditions"`
	MontantPaye  string      `form:"montantpaye"`
	Lignes       []ligneForm `form:"lignes"`
}

// bindDraft decodes the editor form into a document draft. Lines with an
// empty quantity are skipped (the editor always submits one trailing blank
// row). Numeric input goes through the draft's lenient parsing; negative
// values surface as a validation error.
func (ctrl *controller) bindDraft(c echo.Context, t model.TypeDocument) (*model.DocumentDraft, *documentForm, error) {
	f := documentForm{}
	dec := form.NewDecoder()
	dec.RegisterCustomTypeFunc(func(vals []string) (interface{}, error) {
		return time.Parse("2006-01-02", vals[0])
	}, time.Time{})
	if err := c.Request().ParseForm(); err != nil {
		return nil, nil, err
	}
	if err := dec.Decode(&f, c.Request().Form); err != nil {
		return nil, nil, err
	}

	var d *model.DocumentDraft
	if t == model.TypeDevis {
		d = model.NewDevisDraft(ctrl.model, f.ClientID)
	} else {
		d = model.NewFactureDraft(ctrl.model, f.ClientID)
	}
	d.ID = f.DocumentID
	if !f.DateEmission.IsZero() {
		d.DateEmission = f.DateEmission
	}
	if !f.DateEcheance.IsZero() {
		d.DateEcheance = f.DateEcheance
	}
	if f.Statut != "" {
		d.Statut = f.Statut
	}
	d.Notes = f.Notes
	d.Conditions = f.Conditions
	if err := d.SetTauxTVA(f.TauxTVA); err != nil {
		return nil, nil, err
	}

	for _, lf := range f.Lignes {
		if strings.TrimSpace(lf.Quantite) == "" {
			continue
		}
		i := d.AddLigne(&model.LigneDraft{PrestationID: lf.PrestationID})
		if err := d.SetChamp(i, model.ChampDescription, lf.Description); err != nil {
			return nil, nil, err
		}
		if err := d.SetChamp(i, model.ChampQuantite, lf.Quantite); err != nil {
			return nil, nil, err
		}
		if err := d.SetChamp(i, model.ChampPrixUnitaire, lf.PrixUnitaire); err != nil {
			return nil, nil, err
		}
		if err := d.SetChamp(i, model.ChampRemise, lf.Remise); err != nil {
			return nil, nil, err
		}
	}
	if t == model.TypeFacture {
		// Seed the persisted amount first so the payment nudge in
		// SetMontantPaye only fires when the operator edited the field,
		// not on every save of the form.
		if f.DocumentID != 0 {
			if prev, err := ctrl.model.LoadFacture(f.DocumentID); err == nil {
				d.MontantPaye = prev.MontantPaye
			}
		}
		if err := d.SetMontantPaye(f.MontantPaye); err != nil {
			return nil, nil, err
		}
	}
	if err := d.ValidateForSave(); err != nil {
		return nil, nil, err
	}
	return d, &f, nil
}

func (ctrl *controller) devisNew(c echo.Context) error {
	m := ctrl.defaultResponseMap(c, "Nouveau devis")
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
		counter, err := ctrl.model.GetMaxDevisCounter()
		if err != nil {
			return ErrInvalid(err, "Erreur lors du calcul du numéro")
		}

		d := model.NewDevisDraft(ctrl.model, client.ID)
		d.TauxTVA = params.TauxTVADefaut
		if params.ConditionsGenerales != "" {
			d.Conditions = params.ConditionsGenerales
		}
		d.AddLigne(nil)

		prestations, err := ctrl.model.LoadPrestations(true)
		if err != nil {
			return ErrInvalid(err, "Erreur lors du chargement du catalogue")
		}

		m["draft"] = d
		m["client"] = client
		m["prestations"] = prestations
		m["numero"] = formatNumero(params.NumeroDevisTemplate, fmt.Sprint(client.ID), int(counter+1))
		m["counter"] = counter + 1
		m["submit"] = "Créer le devis"
		m["action"] = "/devis/new"
		m["cancel"] = fmt.Sprintf("/client/%d", client.ID)
		return c.Render(http.StatusOK, "devisedit.html", m)

	case http.MethodPost:
		d, f, err := ctrl.bindDraft(c, model.TypeDevis)
		if err != nil {
			return ErrInvalid(err, "Erreur lors du traitement du devis")
		}
		dv := d.EnDevis()
		dv.Numero = f.Numero
		dv.Counter = f.Counter
		if err := ctrl.model.SaveDevis(dv); err != nil {
			return ErrInvalid(err, "Erreur lors de l'enregistrement du devis")
		}
		return c.Redirect(http.StatusSeeOther, fmt.Sprintf("/devis/detail/%d", dv.ID))
	}
	return nil
}

func (ctrl *controller) devisDetail(c echo.Context) error {
	m := ctrl.defaultResponseMap(c, "Devis")
	dv, err := ctrl.model.LoadDevis(c.Param("id"))
	if err != nil {
		return ErrNotFound(err)
	}
	m["title"] = "Devis " + dv.Numero
	m["devis"] = dv
	m["client"] = dv.Client
	return c.Render(http.StatusOK, "devisdetail.html", m)
}

func (ctrl *controller) devisEdit(c echo.Context) error {
	m := ctrl.defaultResponseMap(c, "Modifier le devis")
	dv, err := ctrl.model.LoadDevis(c.Param("id"))
	if err != nil {
		return ErrNotFound(err)
	}
	switch c.Request().Method {
	case http.MethodGet:
		prestations, err := ctrl.model.LoadPrestations(true)
		if err != nil {
			return ErrInvalid(err, "Erreur lors du chargement du catalogue")
		}
		m["title"] = "Devis " + dv.Numero
		m["draft"] = model.DraftFromDevis(ctrl.model, dv)
		m["client"] = dv.Client
		m["prestations"] = prestations
		m["numero"] = dv.Numero
		m["counter"] = dv.Counter
		m["submit"] = "Enregistrer le devis"
		m["action"] = "/devis/edit/" + c.Param("id")
		m["cancel"] = "/devis/detail/" + c.Param("id")
		return c.Render(http.StatusOK, "devisedit.html", m)
	case http.MethodPost:
		d, _, err := ctrl.bindDraft(c, model.TypeDevis)
		if err != nil {
			return ErrInvalid(err, "Erreur lors du traitement du devis")
		}
		updated := d.EnDevis()
		updated.ID = dv.ID
		updated.Numero = dv.Numero
		updated.Counter = dv.Counter
		updated.FactureID = dv.FactureID
		if err := ctrl.model.SaveDevis(updated); err != nil {
			return ErrInvalid(err, "Erreur lors de l'enregistrement du devis")
		}
		return c.Redirect(http.StatusSeeOther, "/devis/detail/"+c.Param("id"))
	}
	return nil
}

func (ctrl *controller) devisDelete(c echo.Context) error {
	dv, err := ctrl.model.LoadDevis(c.Param("id"))
	if err != nil {
		return ErrNotFound(err)
	}
	clientID := dv.ClientID
	if err := ctrl.model.DeleteDevis(dv); err != nil {
		return ErrInvalid(err, "Erreur lors de la suppression du devis")
	}
	_ = AddFlash(c, "success", "Devis supprimé.")
	return c.Redirect(http.StatusSeeOther, fmt.Sprintf("/client/%d", clientID))
}

func (ctrl *controller) devisStatusChange(c echo.Context) error {
	id := paramUint(c, "id")
	if id == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "identifiant de devis invalide")
	}
	statut := model.StatutDevis(strings.TrimSpace(c.FormValue("statut")))
	if err := ctrl.model.ChangerStatutDevis(id, statut); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "statut inconnu")
	}
	return c.JSON(http.StatusOK, map[string]string{"statut": string(statut)})
}

// devisConvert creates a facture from the devis and marks the devis accepte.
// The facture survives even when the devis update fails afterwards; in that
// case the operator gets a warning and has to correct the devis by hand.
func (ctrl *controller) devisConvert(c echo.Context) error {
	id := paramUint(c, "id")
	params, err := ctrl.model.LoadParametres()
	if err != nil {
		return ErrInvalid(err, "Erreur lors du chargement des paramètres")
	}
	dv, err := ctrl.model.LoadDevis(id)
	if err != nil {
		return ErrNotFound(err)
	}
	counter, err := ctrl.model.GetMaxFactureCounter()
	if err != nil {
		return ErrInvalid(err, "Erreur lors du calcul du numéro de facture")
	}
	numero := formatNumero(params.NumeroFactureTemplate, fmt.Sprint(dv.ClientID), int(counter+1))

	f, err := ctrl.model.ConvertirDevisEnFacture(id, numero, counter+1)
	if err != nil {
		if f != nil {
			// facture created, devis not updated
			_ = AddFlash(c, "warning",
				fmt.Sprintf("La facture %s a été créée mais le devis n'a pas pu être marqué accepté.", f.Numero))
			return c.Redirect(http.StatusSeeOther, fmt.Sprintf("/facture/detail/%d", f.ID))
		}
		return ErrInvalid(err, "Erreur lors de la conversion du devis")
	}
	_ = AddFlash(c, "success", fmt.Sprintf("Facture %s créée à partir du devis %s.", f.Numero, dv.Numero))
	return c.Redirect(http.StatusSeeOther, fmt.Sprintf("/facture/detail/%d", f.ID))
}

func ensureDir(dirName string) error {
	err := os.MkdirAll(dirName, 0755)
	if err != nil {
		return err
	}
	return nil
}

func (ctrl *controller) devisPDF(c echo.Context) error {
	logger := c.Get("logger").(*slog.Logger)
	dv, err := ctrl.model.LoadDevis(c.Param("id"))
	if err != nil {
		return ErrNotFound(err)
	}
	pdfPath := filepath.Join(ctrl.model.Config.Basedir, "pdf", fmt.Sprintf("devis_%d.pdf", dv.ID))
	if err := ensureDir(filepath.Dir(pdfPath)); err != nil {
		return ErrInvalid(err, "Erreur lors de la préparation du PDF")
	}
	if err := ctrl.model.CreateDevisPDF(dv, pdfPath, logger); err != nil {
		return ErrInvalid(err, "Erreur lors de la génération du PDF")
	}
	return c.Attachment(pdfPath, fmt.Sprintf("%s.pdf", dv.Numero))
}

func (ctrl *controller) devisList(c echo.Context) error {
	m := ctrl.defaultResponseMap(c, "Devis")
	devis, err := ctrl.model.LoadAllDevis()
	if err != nil {
		return ErrInvalid(err, "Erreur lors du chargement des devis")
	}

	statut := strings.TrimSpace(c.QueryParam("statut"))
	if statut != "" {
		filtered := devis[:0]
		for _, d := range devis {
			if string(d.Statut) == statut {
				filtered = append(filtered, d)
			}
		}
		devis = filtered
		m["statut"] = statut
	}

	var total decimal.Decimal
	for _, d := range devis {
		total = total.Add(d.MontantTTC)
	}
	m["devislist"] = devis
	m["total"] = total.StringFixed(2)
	return c.Render(http.StatusOK, "devislist.html", m)
}

func libelleStatutDevis(s model.StatutDevis) string {
	switch s {
	case model.DevisBrouillon:
		return "Brouillon"
	case model.DevisEnvoye:
		return "Envoyé"
	case model.DevisAccepte:
		return "Accepté"
	case model.DevisRefuse:
		return "Refusé"
	case model.DevisExpire:
		return "Expiré"
	default:
		return string(s)
	}
}
