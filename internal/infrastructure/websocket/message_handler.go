package websocket

import (
	"context"
	"encoding/json"
	"time"

	"bibomarket/pkg/errors"
	"bibomarket/pkg/logger"
)

// WebSocket message types
const (
	MessageTypePing   = "ping"
	MessageTypePong   = "pong"
	MessageTypeEvent  = "event"
	MessageTypeResult = "result"
	MessageTypeError  = "error"
)

// Commands the shell may send.
const (
	CommandOutsideClick = "outside_click"
	CommandRefresh      = "refresh"
)

const commandTimeout = 15 * time.Second

// WSMessage is the frame exchanged in both directions.
type WSMessage struct {
	Type      string          `json:"type"`
	Command   string          `json:"command,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CommandFunc handles one shell command and returns the result payload.
type CommandFunc func(ctx context.Context, client *Client, data json.RawMessage) (interface{}, error)

// HandleCommand registers fn for frames whose type is name.
func (m *Manager) HandleCommand(name string, fn CommandFunc) {
	m.mutex.Lock()
	m.commands[name] = fn
	m.mutex.Unlock()
}

// Add registers client. It returns false once the manager has stopped.
func (m *Manager) Add(client *Client) bool {
	select {
	case m.Register <- client:
		return true
	case <-m.done:
		return false
	}
}

// HandleClientMessage processes one incoming frame.
func (m *Manager) HandleClientMessage(client *Client, messageBytes []byte) {
	var msg WSMessage
	if err := json.Unmarshal(messageBytes, &msg); err != nil {
		logger.Warn("WebSocket: failed to unmarshal message from client %s: %v", client.ID, err)
		m.sendErrorToClient(client, "", errors.BadRequest("Invalid message format", err))
		return
	}

	if msg.Type == MessageTypePing {
		m.sendToClient(client, WSMessage{Type: MessageTypePong})
		return
	}

	m.mutex.RLock()
	fn, ok := m.commands[msg.Type]
	m.mutex.RUnlock()
	if !ok {
		logger.Debug("WebSocket: unknown message type '%s' from client %s", msg.Type, client.ID)
		m.sendErrorToClient(client, msg.Type, errors.BadRequest("Unknown message type: "+msg.Type, nil))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	result, err := fn(ctx, client, msg.Data)
	if err != nil {
		m.sendErrorToClient(client, msg.Type, err)
		return
	}
	m.sendToClient(client, WSMessage{
		Type:    MessageTypeResult,
		Command: msg.Type,
		Data:    mustRaw(result),
	})
}

func (m *Manager) sendToClient(client *Client, msg WSMessage) {
	if msg.Timestamp == "" {
		msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		logger.Error("WebSocket: failed to encode %s for client %s: %v", msg.Type, client.ID, err)
		return
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if _, ok := m.clients[client.ID]; !ok {
		return
	}
	select {
	case client.Send <- payload:
	default:
		logger.Warn("WebSocket: client %s send buffer full, dropping %s", client.ID, msg.Type)
	}
}

func (m *Manager) sendErrorToClient(client *Client, command string, err error) {
	data := ErrorData{Code: errors.CodeInternal, Message: errors.Message(err)}
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		data.Code = appErr.Code
	}
	m.sendToClient(client, WSMessage{
		Type:    MessageTypeError,
		Command: command,
		Data:    mustRaw(data),
	})
}

func mustRaw(v interface{}) json.RawMessage {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		logger.Error("WebSocket: failed to encode payload: %v", err)
		return nil
	}
	return raw
}
