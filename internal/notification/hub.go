package notification

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"craftMaxxingAPI/internal/types/notification"
)

const writeWait = 10 * time.Second

var ErrNotConnected = errors.New("user is not connected")

// Message is the envelope written to websocket clients.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Conn is the subset of *websocket.Conn the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type client struct {
	conn Conn
	mu   sync.Mutex // websocket connections allow one concurrent writer
}

func (c *client) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub tracks one live connection per user.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*client)}
}

// Register replaces any existing connection for userID.
func (h *Hub) Register(userID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.clients[userID]; ok {
		existing.conn.Close()
	}
	h.clients[userID] = &client{conn: conn}
	log.Info().Str("user_id", userID).Msg("Register: websocket connected")
}

// Unregister drops conn if it is still the user's current connection.
func (h *Hub) Unregister(userID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[userID]; ok && c.conn == conn {
		c.conn.Close()
		delete(h.clients, userID)
		log.Info().Str("user_id", userID).Msg("Unregister: websocket disconnected")
	}
}

func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// Send pushes n to the recipient's live connection, if any.
func (h *Hub) Send(n *notification.Notification) error {
	h.mu.RLock()
	c, ok := h.clients[n.UserID]
	h.mu.RUnlock()
	if !ok {
		return ErrNotConnected
	}

	payload, err := json.Marshal(Message{Type: "notification", Data: n})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := c.write(payload); err != nil {
		h.Unregister(n.UserID, c.conn)
		return fmt.Errorf("failed to write notification: %w", err)
	}
	return nil
}
