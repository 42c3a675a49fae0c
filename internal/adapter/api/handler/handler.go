package handler

// Handlers groups every gateway handler for the router.
type Handlers struct {
	Session      *SessionHandler
	Conversation *ConversationHandler
	Cart         *CartHandler
	Badge        *BadgeHandler
	Health       *HealthHandler
	WebSocket    *WebSocketHandler
}
