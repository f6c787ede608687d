package controller

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type ctxKey string

const ctxAPIUserID ctxKey = "api_user_id"

// APIKeyAuthMiddleware authenticates API calls via "Authorization: Bearer
// <token>" or "Authorization: Api-Key <token>".
func (ctrl *controller) APIKeyAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if auth == "" {
				return c.JSON(http.StatusUnauthorized, apiError("missing_token", "Provide Authorization header"))
			}
			parts := strings.SplitN(auth, " ", 2)
			if len(parts) != 2 || (!strings.EqualFold(parts[0], "Bearer") && !strings.EqualFold(parts[0], "Api-Key")) {
				return c.JSON(http.StatusUnauthorized, apiError("bad_token", "Use Bearer or Api-Key"))
			}
			rec, err := ctrl.model.ValidateAPIToken(parts[1])
			if err != nil {
				return c.JSON(http.StatusUnauthorized, apiError("unauthorized", "Unauthorized"))
			}

			c.Set(string(ctxAPIUserID), rec.UserID)
			return next(c)
		}
	}
}

func apiUserID(c echo.Context) uint {
	if v, ok := c.Get(string(ctxAPIUserID)).(uint); ok {
		return v
	}
	return 0
}
