package router

import (
	"github.com/labstack/echo/v4"

	"bibomarket/internal/adapter/api/handler"
	"bibomarket/internal/adapter/api/middleware"
	"bibomarket/internal/infrastructure/ratelimit"
)

// SetupConversationRouter sets up the messaging screen routes
func SetupConversationRouter(e *echo.Echo, conversationHandler *handler.ConversationHandler, authMiddleware *middleware.AuthMiddleware, refreshLimiter *ratelimit.RateLimiter) {
	group := e.Group("/v1/conversations")
	group.Use(authMiddleware.Authenticate)

	// List and thread
	group.GET("", conversationHandler.ListConversations)
	group.GET("/view", conversationHandler.GetView)
	group.POST("/:partnerId/open", conversationHandler.OpenChat)
	group.POST("/refresh", conversationHandler.Refresh, middleware.RateLimit(refreshLimiter, "conversations.refresh"))

	// Composer
	group.POST("/messages", conversationHandler.SendMessage)
	group.DELETE("/messages/:id", conversationHandler.DeleteMessage)
	group.POST("/media", conversationHandler.StageMedia)
	group.DELETE("/media", conversationHandler.RemoveMedia)

	// Context menu
	group.POST("/menu", conversationHandler.OpenMenu)
	group.DELETE("/menu", conversationHandler.CloseMenu)
	group.POST("/click", conversationHandler.HandleClick)

	// Editing
	group.POST("/edit", conversationHandler.StartEdit)
	group.PUT("/edit", conversationHandler.SetEditDraft)
	group.POST("/edit/save", conversationHandler.SaveEdit)
	group.DELETE("/edit", conversationHandler.CancelEdit)

	messages := e.Group("/v1/messages")
	messages.Use(authMiddleware.Authenticate)
	messages.GET("/search", conversationHandler.SearchMessages) // ?query=&page=&limit=
}
