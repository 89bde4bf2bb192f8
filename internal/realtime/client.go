package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendBuffer   = 64
	readLimit    = 16 * 1024
	writeTimeout = 10 * time.Second
)

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Seat is what a validated ticket says about a connection.
type Seat struct {
	SessionID     string
	ParticipantID string
	Name          string
}

// Authenticator resolves a raw ticket to a seat.
type Authenticator func(ticket string) (Seat, error)

// Handler receives the lifecycle and inbound events of seated clients.
// Connected runs before the read loop starts; an error closes the socket.
type Handler interface {
	Connected(ctx context.Context, c *Client) error
	Disconnected(c *Client)
	HandleEvent(ctx context.Context, c *Client, msg WSMessage)
}

// Client represents a single WebSocket connection to a debate session.
type Client struct {
	ID            string
	SessionID     string
	ParticipantID string
	Name          string
	JoinedAt      time.Time
	hub           *Hub
	conn          *websocket.Conn
	send          chan WSMessage
	done          chan struct{}
	once          sync.Once
	logger        *zap.Logger
}

// ServeWs handles the WebSocket upgrade and runs the client loop.
// The ticket travels in the ticket query parameter.
func ServeWs(hub *Hub, handler Handler, auth Authenticator, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		token := c.Query("ticket")
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "ticket required"})
			return
		}
		seat, err := auth(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid ticket"})
			return
		}

		conn, err := hub.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		id := uuid.New().String()
		client := &Client{
			ID:            id,
			SessionID:     seat.SessionID,
			ParticipantID: seat.ParticipantID,
			Name:          seat.Name,
			JoinedAt:      time.Now(),
			hub:           hub,
			conn:          conn,
			send:          make(chan WSMessage, sendBuffer),
			done:          make(chan struct{}),
			logger:        logger.With(zap.String("session_id", seat.SessionID), zap.String("client_id", id)),
		}
		hub.Register(client)
		go client.writePump()

		ctx := c.Request.Context()
		if err := handler.Connected(ctx, client); err != nil {
			client.logger.Info("connection refused", zap.Error(err))
			client.Send("session:error", map[string]string{"error": err.Error()})
			hub.Unregister(client)
			return
		}
		client.readPump(ctx, handler)
	}
}

// Send queues an event for this client only.
func (c *Client) Send(event string, payload interface{}) {
	c.hub.SendToClient(c.SessionID, c.ID, event, payload)
}

func (c *Client) enqueue(msg WSMessage) {
	select {
	case <-c.done:
	case c.send <- msg:
	default:
		c.logger.Warn("send buffer full, dropping event", zap.String("event", msg.Event))
	}
}

func (c *Client) stop() {
	c.once.Do(func() { close(c.done) })
}

func (c *Client) readPump(ctx context.Context, handler Handler) {
	defer func() {
		c.hub.Unregister(c)
		handler.Disconnected(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read failed", zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		handler.HandleEvent(ctx, c, msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			// Flush what was queued before the hub let go of this client.
			for {
				select {
				case msg := <-c.send:
					_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := c.conn.WriteJSON(msg); err != nil {
						return
					}
				default:
					_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
			}
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
