package controller

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

type createTokenReq struct {
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type createTokenResp struct {
	ID     uint   `json:"id"`
	Prefix string `json:"prefix"`
	// Token is returned exactly once, at creation.
	Token string `json:"token"`
}

func (ctrl *controller) apiCreateToken(c echo.Context) error {
	var req createTokenReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apiError("bad_request", "invalid payload"))
	}
	token, rec, err := ctrl.model.CreateAPIToken(apiUserID(c), req.Name, req.ExpiresAt)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, apiError("db_error", "could not create token"))
	}
	return c.JSON(http.StatusCreated, createTokenResp{
		ID: rec.ID, Prefix: rec.TokenPrefix, Token: token,
	})
}

func (ctrl *controller) apiRevokeToken(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, apiError("bad_request", "invalid id"))
	}
	if err := ctrl.model.RevokeAPIToken(uint(id)); err != nil {
		return c.JSON(http.StatusInternalServerError, apiError("db_error", "could not revoke token"))
	}
	return c.NoContent(http.StatusNoContent)
}

// webCreateToken serves the profile page form so a first token can be
// created from a browser session (the API routes themselves require a
// token).
func (ctrl *controller) webCreateToken(c echo.Context) error {
	uid, _ := c.Get("uid").(uint)
	name := c.FormValue("name")
	token, _, err := ctrl.model.CreateAPIToken(uid, name, nil)
	if err != nil {
		return ErrInvalid(err, "Erreur lors de la création du jeton d'API")
	}
	_ = AddFlash(c, "success",
		"Jeton créé : "+token+". Copiez-le maintenant, il ne sera plus affiché.")
	return c.Redirect(http.StatusSeeOther, "/settings/profile")
}

func (ctrl *controller) webRevokeToken(c echo.Context) error {
	id := paramUint(c, "id")
	if id == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "identifiant de jeton invalide")
	}
	if err := ctrl.model.RevokeAPIToken(id); err != nil {
		return ErrInvalid(err, "Erreur lors de la révocation du jeton")
	}
	_ = AddFlash(c, "success", "Jeton révoqué.")
	return c.Redirect(http.StatusSeeOther, "/settings/profile")
}
