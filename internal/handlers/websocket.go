// -----------------------------------------------------------------------
// WebSocket Handler - broadcasts job tracking events to UI clients
// -----------------------------------------------------------------------

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/kamalcharan/kewalinvest-sub002/internal/services/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WebSocketHandler relays tracking events to connected UI clients.
// Progress events are throttled to avoid flooding the socket during large
// downloads; lifecycle events always go through.
type WebSocketHandler struct {
	logger            arbor.ILogger
	mu                sync.RWMutex
	clients           map[*websocket.Conn]*sync.Mutex
	progressThrottler *rate.Limiter
	serverInstanceID  string // Clients use this to detect a server restart
}

// NewWebSocketHandler creates the handler and subscribes it to tracking events.
func NewWebSocketHandler(eventService *events.Service, logger arbor.ILogger) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:            logger,
		clients:           make(map[*websocket.Conn]*sync.Mutex),
		progressThrottler: rate.NewLimiter(rate.Every(time.Second), 1),
		serverInstanceID:  uuid.New().String(),
	}

	for _, eventType := range []events.EventType{
		events.EventJobStarted,
		events.EventJobProgress,
		events.EventJobCompleted,
		events.EventJobFailed,
		events.EventJobCancelled,
		events.EventDashboardRefreshed,
	} {
		eventService.Subscribe(eventType, h.handleEvent)
	}

	logger.Debug().Str("server_instance_id", h.serverInstanceID).Msg("WebSocket handler initialized")

	return h
}

// HandleWebSocket handles GET /ws connection upgrades.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = &sync.Mutex{}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Int("client_count", clientCount).Msg("WebSocket client connected")

	// Greet with the instance id so clients can detect restarts
	h.writeTo(conn, map[string]interface{}{
		"type":             "connected",
		"serverInstanceId": h.serverInstanceID,
	})

	// Read loop only detects disconnect; clients never send payloads
	go func() {
		defer h.removeClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *WebSocketHandler) handleEvent(ctx context.Context, event events.Event) error {
	if event.Type == events.EventJobProgress && !h.progressThrottler.Allow() {
		return nil
	}

	h.broadcast(map[string]interface{}{
		"type":    string(event.Type),
		"payload": event.Payload,
	})
	return nil
}

func (h *WebSocketHandler) broadcast(message map[string]interface{}) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		h.writeTo(conn, message)
	}
}

// writeTo serializes writes per connection; gorilla conns do not allow
// concurrent writers.
func (h *WebSocketHandler) writeTo(conn *websocket.Conn, message map[string]interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal WebSocket message")
		return
	}

	h.mu.RLock()
	connMu, ok := h.clients[conn]
	h.mu.RUnlock()
	if !ok {
		return
	}

	connMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	connMu.Unlock()

	if err != nil {
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
	clientCount := len(h.clients)
	h.mu.Unlock()

	conn.Close()
	h.logger.Debug().Int("client_count", clientCount).Msg("WebSocket client disconnected")
}

// Close disconnects all clients.
func (h *WebSocketHandler) Close() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.clients = make(map[*websocket.Conn]*sync.Mutex)
	h.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
}
