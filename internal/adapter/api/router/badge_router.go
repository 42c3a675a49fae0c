package router

import (
	"github.com/labstack/echo/v4"

	"bibomarket/internal/adapter/api/handler"
	"bibomarket/internal/adapter/api/middleware"
)

func SetupBadgeRouter(e *echo.Echo, badgeHandler *handler.BadgeHandler, authMiddleware *middleware.AuthMiddleware) {
	e.GET("/v1/badges", badgeHandler.GetBadges, authMiddleware.Authenticate)
}
