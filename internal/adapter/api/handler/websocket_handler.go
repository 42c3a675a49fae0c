package handler

import (
	"net/http"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	ws "bibomarket/internal/infrastructure/websocket"
	"bibomarket/pkg/errors"
	"bibomarket/pkg/logger"
	"bibomarket/pkg/response"
)

type WebSocketHandler struct {
	wsManager *ws.Manager
	upgrader  gorillaws.Upgrader
}

// NewWebSocketHandler accepts browser shells from allowedOrigins and
// native shells, which send no Origin.
func NewWebSocketHandler(wsManager *ws.Manager, allowedOrigins []string) *WebSocketHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &WebSocketHandler{
		wsManager: wsManager,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin]
			},
		},
	}
}

// HandleWebSocket upgrades the connection and streams bus events to it.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	userID, ok := c.Get("uid").(string)
	if !ok || userID == "" {
		return response.Error(c, errors.AuthRequired())
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("HandleWebSocket Error: failed to upgrade connection: %v", err)
		return nil
	}

	client := ws.NewClient(userID, conn)
	log := logger.With("client", client.ID, "user", userID, "remote", c.RealIP())
	if !h.wsManager.Add(client) {
		log.Warn("WebSocket manager stopped, rejecting connection")
		conn.Close()
		return nil
	}
	log.Debug("WebSocket connection upgraded")

	go client.ReadPump(h.wsManager)
	go client.WritePump()

	return nil
}
