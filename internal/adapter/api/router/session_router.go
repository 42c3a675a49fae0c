package router

import (
	"github.com/labstack/echo/v4"

	"bibomarket/internal/adapter/api/handler"
	"bibomarket/internal/adapter/api/middleware"
)

func SetupSessionRouter(e *echo.Echo, sessionHandler *handler.SessionHandler, authMiddleware *middleware.AuthMiddleware) {
	// Public: installs the token
	e.POST("/v1/session", sessionHandler.BeginSession)

	protected := e.Group("/v1/session")
	protected.Use(authMiddleware.Authenticate)

	protected.GET("", sessionHandler.GetSession)    // GET /v1/session - Current user
	protected.DELETE("", sessionHandler.EndSession) // DELETE /v1/session - Sign out
}
