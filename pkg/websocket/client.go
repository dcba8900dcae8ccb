package websocket

import (
	"encoding/json"
	"time"

	"racebeacon/internal/models"
	"racebeacon/internal/services"
	"racebeacon/pkg/logger"

	"github.com/gorilla/websocket"
)

// EventHandler receives connection lifecycle and inbound events.
type EventHandler interface {
	HandleConnect(connectionID string)
	HandleEvent(connectionID, eventType string, data json.RawMessage) error
	HandleDisconnect(connectionID string)
}

type Config struct {
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	MaxMessageSize  int64
	WriteWait       time.Duration
	PongWait        time.Duration
	AllowedOrigins  []string
}

func DefaultConfig() Config {
	return Config{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		MaxMessageSize:  4096,
		WriteWait:       10 * time.Second,
		PongWait:        60 * time.Second,
	}
}

func (c Config) pingPeriod() time.Duration {
	return (c.PongWait * 9) / 10
}

type Client struct {
	ID      string
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	handler EventHandler
	config  Config
	rooms   map[string]bool
	log     *logger.Logger
}

func NewClient(id string, hub *Hub, conn *websocket.Conn, handler EventHandler, config Config, log *logger.Logger) *Client {
	return &Client{
		ID:      id,
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, config.SendBufferSize),
		handler: handler,
		config:  config,
		rooms:   make(map[string]bool),
		log:     log.WithSessionID(id),
	}
}

// readPump owns the disconnect path: it is the only place HandleDisconnect is
// called, so each connection is torn down exactly once.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
		c.handler.HandleDisconnect(c.ID)
	}()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.WithError(err).Warn("WebSocket read error")
			}
			break
		}

		c.handleMessage(message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.config.pingPeriod())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One event per frame; clients parse each frame as a single JSON document.
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(message []byte) {
	var msg Message
	if err := json.Unmarshal(message, &msg); err != nil || msg.Type == "" {
		c.hub.Notify(models.NewOutboundEvent(models.EventError, models.ErrorPayload{
			Code:    services.CodeValidation,
			Message: "malformed message: expected {\"type\": string, \"data\": object}",
		}), services.ToConnection(c.ID))
		return
	}

	if err := c.handler.HandleEvent(c.ID, msg.Type, msg.Data); err != nil {
		c.log.WithError(err).WithField("event", msg.Type).Debug("Event rejected")
	}
}
