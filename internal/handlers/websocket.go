package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/regwatch/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// wsEvent is one message pushed to connected dashboard clients.
type wsEvent struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// WebSocketHandler pushes publication events to connected dashboards.
// Each new published classification result is broadcast as it happens so
// the dashboard updates without polling.
type WebSocketHandler struct {
	logger           arbor.ILogger
	clients          map[*websocket.Conn]bool
	clientMutex      map[*websocket.Conn]*sync.Mutex
	mu               sync.RWMutex
	serverInstanceID string // Clients use this to detect server restarts
}

// NewWebSocketHandler creates a new websocket handler
func NewWebSocketHandler(logger arbor.ILogger) *WebSocketHandler {
	return &WebSocketHandler{
		logger:           logger,
		clients:          make(map[*websocket.Conn]bool),
		clientMutex:      make(map[*websocket.Conn]*sync.Mutex),
		serverInstanceID: uuid.New().String(),
	}
}

// HandleWebSocket handles GET /ws upgrade requests.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = &sync.Mutex{}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().
		Int("clients", clientCount).
		Str("remote", r.RemoteAddr).
		Msg("WebSocket client connected")

	h.send(conn, wsEvent{
		Type:      "connected",
		Timestamp: time.Now().UTC(),
		Data:      map[string]string{"server_instance_id": h.serverInstanceID},
	})

	// Read loop exists only to detect disconnects; inbound messages are
	// ignored.
	go func() {
		defer h.removeClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// BroadcastPublished pushes a newly published classification result to all
// connected clients. Safe to call from the classifier goroutine.
func (h *WebSocketHandler) BroadcastPublished(result *models.ClassificationResult) {
	event := wsEvent{
		Type:      "result_published",
		Timestamp: time.Now().UTC(),
		Data:      result,
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		h.send(conn, event)
	}
}

// send writes one event to a client, serialized per connection. A failed
// write drops the client.
func (h *WebSocketHandler) send(conn *websocket.Conn, event wsEvent) {
	h.mu.RLock()
	mutex, ok := h.clientMutex[conn]
	h.mu.RUnlock()
	if !ok {
		return
	}

	mutex.Lock()
	err := conn.WriteJSON(event)
	mutex.Unlock()

	if err != nil {
		h.logger.Debug().Err(err).Msg("WebSocket write failed, dropping client")
		h.removeClient(conn)
	}
}

func (h *WebSocketHandler) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, conn)
	delete(h.clientMutex, conn)
	clientCount := len(h.clients)
	h.mu.Unlock()

	conn.Close()
	h.logger.Debug().Int("clients", clientCount).Msg("WebSocket client disconnected")
}

// Close disconnects all clients.
func (h *WebSocketHandler) Close() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.clients = make(map[*websocket.Conn]bool)
	h.clientMutex = make(map[*websocket.Conn]*sync.Mutex)
	h.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
}
