package controller

import (
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type settingsForm struct {
	Nomentreprise   string `form:"nomentreprise"`
	Adresse         string `form:"adresse"`
	Codepostal      string `form:"codepostal"`
	Ville           string `form:"ville"`
	Telephone       string `form:"telephone"`
	Email           string `form:"email"`
	Siret           string `form:"siret"`
	Numerotva       string `form:"numerotva"`
	Tauxtva         string `form:"tauxtva"`
	Delaipaiement   string `form:"delaipaiement"`
	Conditions      string `form:"conditions"`
	Reglement       string `form:"reglement"`
	Devistemplate   string `form:"devistemplate"`
	Facturetemplate string `form:"facturetemplate"`
}

func (ctrl *controller) settingsInit(e *echo.Echo) {
	g := e.Group("/settings")
	g.Use(ctrl.authMiddleware)
	g.GET("/profile", ctrl.showProfile)
	g.POST("/profile", ctrl.updateProfile)
	g.POST("/logo", ctrl.uploadLogo)
	g.POST("/logo/remove", ctrl.removeLogo)
	g.GET("", ctrl.settingslist)
	g.POST("", ctrl.settingslist)
}

func (ctrl *controller) settingslist(c echo.Context) error {
	m := ctrl.defaultResponseMap(c, "Paramètres")
	m["action"] = "/settings"
	m["submit"] = "Enregistrer"
	m["cancel"] = "/"
	switch c.Request().Method {
	case http.MethodGet:
		params, err := ctrl.model.LoadParametres()
		if err != nil {
			return ErrInvalid(err, "Erreur lors du chargement des paramètres")
		}
		m["parametres"] = params
		return c.Render(http.StatusOK, "settingslist.html", m)
	case http.MethodPost:
		sf := new(settingsForm)
		if err := c.Bind(sf); err != nil {
			return ErrInvalid(err, "Erreur lors du traitement du formulaire")
		}
		params, err := ctrl.model.LoadParametres()
		if err != nil {
			return ErrInvalid(err, "Erreur lors du chargement des paramètres")
		}

		taux, err := decimal.NewFromString(commaperiod.Replace(strings.TrimSpace(sf.Tauxtva)))
		if err != nil {
			return ErrInvalid(err, "Le taux de TVA par défaut est invalide")
		}
		delai, err := strconv.Atoi(strings.TrimSpace(sf.Delaipaiement))
		if err != nil || delai < 0 {
			return ErrInvalid(err, "Le délai de paiement est invalide")
		}

		params.NomEntreprise = sf.Nomentreprise
		params.Adresse = sf.Adresse
		params.CodePostal = sf.Codepostal
		params.Ville = sf.Ville
		params.Telephone = sf.Telephone
		params.Email = sf.Email
		params.SIRET = sf.Siret
		params.NumeroTVA = sf.Numerotva
		params.TauxTVADefaut = taux
		params.DelaiPaiementDefaut = delai
		params.ConditionsGenerales = sf.Conditions
		params.ConditionsReglement = sf.Reglement
		if t := strings.TrimSpace(sf.Devistemplate); t != "" {
			params.NumeroDevisTemplate = t
		}
		if t := strings.TrimSpace(sf.Facturetemplate); t != "" {
			params.NumeroFactureTemplate = t
		}

		if err := ctrl.model.SaveParametres(params); err != nil {
			return ErrInvalid(err, "Erreur lors de l'enregistrement des paramètres")
		}
		_ = AddFlash(c, "success", "Paramètres enregistrés.")
		return c.Redirect(http.StatusSeeOther, "/settings")
	}
	return nil
}

// uploadLogo stores the firm logo in the blob store under a reserved
// directory that no client id can collide with.
func (ctrl *controller) uploadLogo(c echo.Context) error {
	fh, err := c.FormFile("logo")
	if err != nil {
		_ = AddFlash(c, "warning", "Aucun fichier sélectionné.")
		return c.Redirect(http.StatusSeeOther, "/settings")
	}
	ext := strings.ToLower(path.Ext(fh.Filename))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".svg":
	default:
		_ = AddFlash(c, "warning", "Le logo doit être un fichier PNG, JPEG ou SVG.")
		return c.Redirect(http.StatusSeeOther, "/settings")
	}
	src, err := fh.Open()
	if err != nil {
		return ErrInvalid(err, "Erreur lors de la lecture du fichier")
	}
	defer src.Close()

	chemin := path.Join("entreprise", fmt.Sprintf("logo_%s%s", uuid.NewString()[:8], ext))
	if err := ctrl.model.Blobs.Upload(chemin, src, fh.Size); err != nil {
		return ErrInvalid(err, "Erreur lors de l'enregistrement du logo")
	}
	if err := ctrl.model.SetLogo(chemin, fh.Filename, fh.Size); err != nil {
		return ErrInvalid(err, "Erreur lors de l'enregistrement du logo")
	}
	_ = AddFlash(c, "success", "Logo enregistré.")
	return c.Redirect(http.StatusSeeOther, "/settings")
}

func (ctrl *controller) removeLogo(c echo.Context) error {
	if err := ctrl.model.RemoveLogo(); err != nil {
		return ErrInvalid(err, "Erreur lors de la suppression du logo")
	}
	_ = AddFlash(c, "success", "Logo supprimé.")
	return c.Redirect(http.StatusSeeOther, "/settings")
}

func (ctrl *controller) showProfile(c echo.Context) error {
	uid := c.Get("uid").(uint)
	u, err := ctrl.model.GetUserByID(uid)
	if err != nil || u == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load profile")
	}
	m := ctrl.defaultResponseMap(c, "Profil")
	m["user"] = u
	tokens, err := ctrl.model.ListAPITokens()
	if err == nil {
		m["tokens"] = tokens
	}
	return c.Render(http.StatusOK, "profile.html", m)
}

func (ctrl *controller) updateProfile(c echo.Context) error {
	uid := c.Get("uid").(uint)
	u, err := ctrl.model.GetUserByID(uid)
	if err != nil || u == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load profile")
	}

	u.FullName = strings.TrimSpace(c.FormValue("fullname"))

	if pw := c.FormValue("password"); pw != "" {
		if len(pw) < 8 {
			_ = AddFlash(c, "warning", "Le mot de passe doit contenir au moins 8 caractères.")
			return c.Redirect(http.StatusSeeOther, "/settings/profile")
		}
		if err := ctrl.model.SetPassword(u, pw); err != nil {
			return ErrInvalid(err, "Erreur lors du changement de mot de passe")
		}
	}

	if err := ctrl.model.UpdateUser(u); err != nil {
		_ = AddFlash(c, "error", "Impossible d'enregistrer le profil.")
		return c.Redirect(http.StatusSeeOther, "/settings/profile")
	}
	_ = AddFlash(c, "success", "Profil enregistré.")
	return c.Redirect(http.StatusSeeOther, "/settings/profile")
}
