package router

import (
	"github.com/labstack/echo/v4"

	"bibomarket/internal/adapter/api/handler"
	"bibomarket/internal/adapter/api/middleware"
	"bibomarket/internal/infrastructure/ratelimit"
)

func SetupCartRouter(e *echo.Echo, cartHandler *handler.CartHandler, authMiddleware *middleware.AuthMiddleware, refreshLimiter *ratelimit.RateLimiter) {
	cartGroup := e.Group("/v1/cart")
	cartGroup.Use(authMiddleware.Authenticate)

	cartGroup.GET("", cartHandler.GetCart)
	cartGroup.POST("/refresh", cartHandler.Refresh, middleware.RateLimit(refreshLimiter, "cart.refresh"))
	cartGroup.DELETE("", cartHandler.Clear)

	// Items
	cartGroup.POST("/items", cartHandler.AddItem)
	cartGroup.PATCH("/items/:id", cartHandler.ChangeQuantity) // body: {"delta": 1} or {"delta": -1}
	cartGroup.DELETE("/items/:id", cartHandler.RemoveItem)

	// Checkout
	cartGroup.POST("/promo", cartHandler.ApplyPromo)
	cartGroup.POST("/share/whatsapp", cartHandler.ShareViaWhatsApp)
	cartGroup.POST("/order", cartHandler.PlaceOrder)
	cartGroup.DELETE("/toast", cartHandler.DismissToast)
}
