package router

import (
	"github.com/labstack/echo/v4"

	"bibomarket/internal/adapter/api/handler"
	"bibomarket/internal/adapter/api/middleware"
	"bibomarket/internal/infrastructure/ratelimit"
)

func Setup(e *echo.Echo, handlers *handler.Handlers, authMiddleware *middleware.AuthMiddleware, refreshLimiter *ratelimit.RateLimiter) {
	SetupHealthRouter(e, handlers.Health)
	SetupSessionRouter(e, handlers.Session, authMiddleware)
	SetupConversationRouter(e, handlers.Conversation, authMiddleware, refreshLimiter)
	SetupCartRouter(e, handlers.Cart, authMiddleware, refreshLimiter)
	SetupBadgeRouter(e, handlers.Badge, authMiddleware)
	SetupWebSocketRouter(e, handlers.WebSocket, authMiddleware)
}
