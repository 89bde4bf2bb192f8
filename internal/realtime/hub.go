package realtime

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Hub maintains session_id -> set of connections and broadcasts messages.
// It is process-local; a session's debaters must reach the same instance.
type Hub struct {
	// sessionID -> map[clientID]*Client
	sessions map[string]map[string]*Client
	mu       sync.RWMutex
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithOriginCheck restricts which browser origins may open a socket.
func WithOriginCheck(check func(r *http.Request) bool) HubOption {
	return func(h *Hub) { h.upgrader.CheckOrigin = check }
}

// NewHub creates a new WebSocket hub. Without WithOriginCheck any origin may connect.
func NewHub(logger *zap.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		sessions: make(map[string]map[string]*Client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds a client to its session room.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.sessions[c.SessionID] == nil {
		h.sessions[c.SessionID] = make(map[string]*Client)
	}
	h.sessions[c.SessionID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client joined session", zap.String("client_id", c.ID), zap.String("session_id", c.SessionID))
}

// Unregister removes a client from its session room and stops its writer.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.sessions[c.SessionID]; ok {
		if _, present := m[c.ID]; present {
			delete(m, c.ID)
			c.stop()
		}
		if len(m) == 0 {
			delete(h.sessions, c.SessionID)
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left session", zap.String("client_id", c.ID), zap.String("session_id", c.SessionID))
}

// Broadcast sends an event to every client watching a session.
func (h *Hub) Broadcast(sessionID, event string, payload interface{}) {
	msg, ok := h.encode(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.sessions[sessionID] {
		c.enqueue(msg)
	}
}

// SendToClient sends an event to a single client of a session.
func (h *Hub) SendToClient(sessionID, clientID, event string, payload interface{}) {
	msg, ok := h.encode(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if c, found := h.sessions[sessionID][clientID]; found {
		c.enqueue(msg)
	}
}

// Count returns the number of connected clients in a session.
func (h *Hub) Count(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

func (h *Hub) encode(event string, payload interface{}) (WSMessage, bool) {
	var data []byte
	switch v := payload.(type) {
	case nil:
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		var err error
		if data, err = json.Marshal(payload); err != nil {
			h.logger.Error("encode event", zap.String("event", event), zap.Error(err))
			return WSMessage{}, false
		}
	}
	return WSMessage{Event: event, Data: data}, true
}
