package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"racebeacon/internal/models"
	"racebeacon/internal/services"
	"racebeacon/pkg/logger"
)

// Hub tracks live connections and the rooms they joined. It implements
// services.Broadcaster.
type Hub struct {
	clients map[string]*Client
	rooms   map[string]map[string]*Client
	mutex   sync.RWMutex
	closed  bool
	log     *logger.Logger
}

// Message is the wire envelope for both directions.
type Message struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		log:     log,
	}
}

// Run blocks until ctx is cancelled and then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.Shutdown()
}

// Register adds the client synchronously so that anything sent to it right
// after registration is queued in order.
func (h *Hub) Register(client *Client) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.closed {
		return false
	}
	h.clients[client.ID] = client
	h.log.WithSessionID(client.ID).Debug("Client registered")
	return true
}

// Unregister removes the client and closes its send channel. It reports
// whether the client was still registered.
func (h *Hub) Unregister(client *Client) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	current, ok := h.clients[client.ID]
	if !ok || current != client {
		return false
	}
	h.remove(client)
	h.log.WithSessionID(client.ID).Debug("Client unregistered")
	return true
}

func (h *Hub) Notify(event models.OutboundEvent, scope services.Scope) {
	data, err := encode(event)
	if err != nil {
		h.log.WithError(err).WithField("event", event.Type).Error("Failed to encode outbound event")
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	switch scope.Kind {
	case services.ScopeConnection:
		if client, ok := h.clients[scope.ConnectionID]; ok {
			h.deliver(client, data)
		}
	case services.ScopeRoom:
		for _, client := range h.rooms[scope.Room] {
			h.deliver(client, data)
		}
	case services.ScopeAllExcept:
		for id, client := range h.clients {
			if id != scope.ConnectionID {
				h.deliver(client, data)
			}
		}
	default:
		for _, client := range h.clients {
			h.deliver(client, data)
		}
	}
}

func (h *Hub) JoinRoom(connectionID, room string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	client, ok := h.clients[connectionID]
	if !ok {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]*Client)
	}
	h.rooms[room][connectionID] = client
	client.rooms[room] = true
}

func (h *Hub) LeaveRoom(connectionID, room string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if members, exists := h.rooms[room]; exists {
		if client, ok := members[connectionID]; ok {
			delete(client.rooms, room)
		}
		delete(members, connectionID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) ConnectionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return len(h.clients)
}

func (h *Hub) RoomSize(room string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return len(h.rooms[room])
}

// Shutdown closes every send channel; write pumps then send a close frame and
// tear the connections down. Later registrations are refused.
func (h *Hub) Shutdown() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.closed = true
	for _, client := range h.clients {
		h.remove(client)
	}
	h.log.Info("WebSocket hub shut down")
}

// deliver must be called with the write lock held. A client whose buffer is
// full is dropped; its read pump then runs the disconnect path.
func (h *Hub) deliver(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		h.log.WithSessionID(client.ID).Warn("Send buffer full, dropping slow client")
		h.remove(client)
	}
}

// remove must be called with the write lock held.
func (h *Hub) remove(client *Client) {
	delete(h.clients, client.ID)
	for room := range client.rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, client.ID)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	client.rooms = make(map[string]bool)
	close(client.send)
}

func encode(event models.OutboundEvent) ([]byte, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{
		Type:      event.Type,
		Data:      data,
		Timestamp: getCurrentTimestamp(),
	})
}

func getCurrentTimestamp() int64 {
	return time.Now().Unix()
}
