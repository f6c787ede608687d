package controller

import "github.com/labstack/echo/v4"

func (ctrl *controller) apiInit(e *echo.Echo) {
	// Browser-session token management lives under /settings.
	tg := e.Group("/settings/tokens", ctrl.authMiddleware)
	tg.POST("", ctrl.webCreateToken)
	tg.POST("/revoke/:id", ctrl.webRevokeToken)

	api := e.Group("/api/v1")
	api.Use(ctrl.APIKeyAuthMiddleware())

	api.POST("/tokens", ctrl.apiCreateToken)
	api.DELETE("/tokens/:id", ctrl.apiRevokeToken)

	api.GET("/clients", ctrl.apiClientList)
	api.GET("/clients/:id", ctrl.apiClientGet)
	api.GET("/devis", ctrl.apiDevisList)
	api.GET("/devis/:id", ctrl.apiDevisGet)
	api.GET("/factures", ctrl.apiFactureList)
	api.GET("/factures/:id", ctrl.apiFactureGet)
	api.GET("/factures/:id/facturx", ctrl.apiFactureFacturX)
}
