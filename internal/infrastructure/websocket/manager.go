package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"bibomarket/internal/infrastructure/events"
	"bibomarket/pkg/logger"
	"bibomarket/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Client is one shell connection.
type Client struct {
	ID     string
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte
}

func NewClient(userID string, conn *websocket.Conn) *Client {
	return &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, sendBuffer),
	}
}

// Manager fans bus events out to every connected shell and dispatches the
// commands shells send back.
type Manager struct {
	clients    map[string]*Client
	Register   chan *Client
	Unregister chan *Client
	broadcast  chan []byte
	commands   map[string]CommandFunc
	mutex      sync.RWMutex
	done       chan struct{}
}

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		commands:   make(map[string]CommandFunc),
		done:       make(chan struct{}),
	}
}

// Start runs the manager loop until ctx is done, then disconnects every
// client.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		defer close(m.done)
		for {
			select {
			case client := <-m.Register:
				m.mutex.Lock()
				m.clients[client.ID] = client
				m.mutex.Unlock()
				metrics.WebSocketConnectionsActive.Inc()
				logger.Info("WebSocket: client %s registered for user %s", client.ID, client.UserID)

			case client := <-m.Unregister:
				m.remove(client.ID)

			case message := <-m.broadcast:
				m.mutex.RLock()
				var slow []string
				for id, client := range m.clients {
					select {
					case client.Send <- message:
					default:
						slow = append(slow, id)
					}
				}
				m.mutex.RUnlock()
				for _, id := range slow {
					logger.Warn("WebSocket: client %s is not keeping up, disconnecting", id)
					m.remove(id)
				}

			case <-ctx.Done():
				m.mutex.RLock()
				ids := make([]string, 0, len(m.clients))
				for id := range m.clients {
					ids = append(ids, id)
				}
				m.mutex.RUnlock()
				for _, id := range ids {
					m.remove(id)
				}
				return
			}
		}
	}()
}

// Done is closed once the manager loop has exited.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

func (m *Manager) remove(id string) {
	m.mutex.Lock()
	client, ok := m.clients[id]
	if ok {
		delete(m.clients, id)
		close(client.Send)
	}
	m.mutex.Unlock()
	if ok {
		metrics.WebSocketConnectionsActive.Dec()
		logger.Info("WebSocket: client %s unregistered", id)
	}
}

func (m *Manager) ClientCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients)
}

// Broadcast queues event for every client. It drops the event when the
// queue is full.
func (m *Manager) Broadcast(event events.Event) {
	payload, err := json.Marshal(WSMessage{
		Type:      MessageTypeEvent,
		Data:      mustRaw(event),
		Timestamp: event.Timestamp,
	})
	if err != nil {
		logger.Error("Broadcast Error: failed to encode %s: %v", event.Type, err)
		return
	}
	select {
	case m.broadcast <- payload:
	default:
		logger.Warn("WebSocket: broadcast queue full, dropping %s", event.Type)
	}
}

// Forward broadcasts everything received on ch until it is closed.
func (m *Manager) Forward(ch <-chan events.Event) {
	go func() {
		for event := range ch {
			m.Broadcast(event)
		}
	}()
}

// ReadPump reads commands from the connection until it closes.
func (c *Client) ReadPump(m *Manager) {
	defer func() {
		select {
		case m.Unregister <- c:
		case <-m.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket: client %s read error: %v", c.ID, err)
			}
			return
		}
		m.HandleClientMessage(c, message)
	}
}

// WritePump writes queued messages and keeps the connection alive with
// pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Warn("WebSocket: client %s write error: %v", c.ID, err)
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
