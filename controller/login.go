package controller

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
)

// CookieCfg controls how the session cookie is scoped and secured.
// Options are applied centrally by SessionWriter.Save().
type CookieCfg struct {
	IsProd bool
}

func cookieOptions(maxAge int, cfg CookieCfg) *sessions.Options {
	opts := &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	opts.Secure = cfg.IsProd
	return opts
}

// CookieCfgMiddleware injects a CookieCfg into the Echo context for each
// request.
func (ctrl *controller) CookieCfgMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Set("cookiecfg", CookieCfg{
			IsProd: ctrl.model.Config.Mode == "production",
		})
		return next(c)
	}
}

// authMiddleware ensures a user is authenticated before accessing protected
// routes. It reads uid from the session; on failure it redirects to /login.
func (ctrl *controller) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		sw, err := LoadSession(c)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, fmt.Errorf("cannot load session: %w", err))
		}

		var ok bool
		var uid uint
		if v, exists := sw.Values()["uid"]; exists {
			uid, ok = v.(uint)
		}
		if !ok || uid == 0 {
			return c.Redirect(http.StatusSeeOther, "/login")
		}
		c.Set("uid", uid)
		return next(c)
	}
}

// login handles GET (render form) and POST (authenticate). On successful
// POST it stores uid and the "persist" flag (remember me) in the session.
func (ctrl *controller) login(c echo.Context) error {
	if c.Request().Method == http.MethodGet {
		m := ctrl.defaultResponseMap(c, "Connexion")
		return c.Render(http.StatusOK, "login.html", m)
	}

	// POST
	email := strings.TrimSpace(strings.ToLower(c.FormValue("email")))
	password := c.FormValue("password")
	remember := c.FormValue("rememberMe") != ""

	// Authenticate (do not leak whether the user exists).
	user, err := ctrl.model.AuthenticateUser(email, password)
	if err != nil || user == nil {
		if err := AddFlash(c, "error", "Échec de la connexion. Merci de vérifier vos identifiants."); err != nil {
			return ErrInvalid(err, "Erreur lors de l'enregistrement de la session")
		}
		return c.Redirect(http.StatusSeeOther, "/login")
	}

	sw, err := LoadSession(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	sw.Values()["uid"] = user.ID
	sw.Values()["persist"] = remember

	if err := sw.Save(); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	_ = ctrl.model.TouchLastLogin(user) // best-effort
	return c.Redirect(http.StatusSeeOther, "/")
}

// logout clears the session and deletes the cookie. We bypass SessionWriter
// here to force MaxAge = -1 regardless of "persist".
func (ctrl *controller) logout(c echo.Context) error {
	sess, err := session.Get("session", c)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}
	delete(sess.Values, "uid")
	delete(sess.Values, "csrf")
	delete(sess.Values, "persist")

	if sess.Options == nil {
		sess.Options = &sessions.Options{Path: "/"}
	}
	sess.Options.MaxAge = -1

	if err := sess.Save(c.Request(), c.Response()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}
	_ = AddFlash(c, "success", "Vous êtes déconnecté.")
	return c.Redirect(http.StatusFound, "/login")
}

// generateRandomToken returns a URL-safe base64 token and its sha256 hash.
func generateRandomToken() (token string, hash []byte, err error) {
	b := make([]byte, 32)
	if _, err = rand.Read(b); err != nil {
		return "", nil, err
	}
	token = base64.RawURLEncoding.EncodeToString(b)
	h := sha256.Sum256([]byte(token))
	return token, h[:], nil
}

// constantTimeMatchToken safely compares a provided plaintext token to a
// stored hash.
func constantTimeMatchToken(providedToken string, storedHash []byte) bool {
	sum := sha256.Sum256([]byte(providedToken))
	return len(storedHash) == len(sum[:]) && hmac.Equal(storedHash, sum[:])
}

// showPasswordResetRequest renders the "request password reset" form (GET).
func (ctrl *controller) showPasswordResetRequest(c echo.Context) error {
	m := ctrl.defaultResponseMap(c, "Mot de passe oublié")
	return c.Render(http.StatusOK, "passwordreset.html", m)
}

// handlePasswordResetRequest handles the reset request (POST) in an
// enumeration-safe way.
func (ctrl *controller) handlePasswordResetRequest(c echo.Context) error {
	logger := c.Get("logger").(*slog.Logger)
	email := strings.TrimSpace(strings.ToLower(c.FormValue("email")))

	genericResponse := func() error {
		_ = AddFlash(c, "info", "Si un compte existe, un e-mail vient de vous être envoyé.")
		return c.Redirect(http.StatusSeeOther, "/login")
	}

	user, err := ctrl.model.GetUserByEMail(email)
	if err != nil || user == nil {
		return genericResponse()
	}

	token, _, err := generateRandomToken()
	if err != nil {
		logger.Error("cannot generate reset token", "error", err)
		return genericResponse()
	}

	if err := ctrl.model.SetPasswordResetToken(user, token, time.Now().UTC().Add(1*time.Hour)); err != nil {
		logger.Error("cannot store reset token", "error", err)
		return genericResponse()
	}

	resetURL := fmt.Sprintf("%s://%s/passwordreset/%s", c.Scheme(), c.Request().Host, url.PathEscape(token))

	body := fmt.Sprintf(
		"Cliquez sur ce lien pour réinitialiser votre mot de passe :\n\n%s\n\nLe lien est valable 60 minutes.",
		resetURL,
	)
	_ = ctrl.sendEmail(user.Email, "Réinitialisation de votre mot de passe", body)

	return genericResponse()
}

// showPasswordResetForm validates the token and renders the "set new
// password" form. On any failure it redirects with a neutral message.
func (ctrl *controller) showPasswordResetForm(c echo.Context) error {
	token := c.Param("token")

	user, err := ctrl.model.GetUserByResetToken(token)
	if err != nil || user == nil || !constantTimeMatchToken(token, user.PasswordResetToken) {
		_ = AddFlash(c, "error", "Le lien est invalide ou a expiré.")
		return c.Redirect(http.StatusSeeOther, "/login")
	}

	m := ctrl.defaultResponseMap(c, "Nouveau mot de passe")
	m["token"] = token
	return c.Render(http.StatusOK, "passwordresettoken.html", m)
}

// handlePasswordResetSubmit sets the new password and clears the token.
// Always responds neutrally on failure to avoid leaks.
func (ctrl *controller) handlePasswordResetSubmit(c echo.Context) error {
	token := c.Param("token")
	pass := c.FormValue("newPassword")
	confirm := c.FormValue("confirmPassword")
	logger := c.Get("logger").(*slog.Logger)

	if pass == "" || pass != confirm {
		_ = AddFlash(c, "error", "Les deux mots de passe ne correspondent pas.")
		return c.Redirect(http.StatusSeeOther, c.Request().RequestURI)
	}

	user, err := ctrl.model.GetUserByResetToken(token)
	if err != nil || user == nil || !constantTimeMatchToken(token, user.PasswordResetToken) {
		_ = AddFlash(c, "error", "Le lien est invalide ou a expiré.")
		return c.Redirect(http.StatusSeeOther, "/login")
	}

	if err := ctrl.model.SetPassword(user, pass); err != nil {
		logger.Error("cannot set password", "error", err)
		_ = AddFlash(c, "error", "Erreur interne. Merci de réessayer plus tard.")
		return c.Redirect(http.StatusSeeOther, "/login")
	}
	if err := ctrl.model.UpdateUser(user); err != nil {
		logger.Error("cannot save password", "error", err)
		_ = AddFlash(c, "error", "Erreur interne. Merci de réessayer plus tard.")
		return c.Redirect(http.StatusSeeOther, "/login")
	}
	// Clear token (best-effort after password update).
	if err := ctrl.model.ClearPasswordResetToken(user); err != nil {
		logger.Error("cannot clear reset token", "error", err)
	}

	_ = AddFlash(c, "success", "Votre mot de passe a été mis à jour. Vous pouvez vous connecter.")
	return c.Redirect(http.StatusSeeOther, "/login")
}
