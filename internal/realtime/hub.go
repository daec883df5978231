// Package realtime pushes application events to connected users over
// websockets. Each user subscribes per topic; delivery is best effort and a
// client that cannot keep up is disconnected.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/date-booking/internal/application"
	"github.com/example/date-booking/internal/wire"
)

const defaultSendBuffer = 64

// Options configure a Hub.
type Options struct {
	Logger *slog.Logger
	// SendBuffer bounds the frames queued per client.
	SendBuffer int
	// AllowedOrigins restricts websocket upgrades. Empty allows any origin.
	AllowedOrigins []string
}

// Hub tracks connected clients by user id and implements application.Notifier.
type Hub struct {
	mu         sync.Mutex
	clients    map[string]map[*client]struct{}
	sendBuffer int
	upgrader   websocket.Upgrader
	logger     *slog.Logger
	closed     bool
}

var _ application.Notifier = (*Hub)(nil)

// NewHub returns an empty hub.
func NewHub(opts Options) *Hub {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	buffer := opts.SendBuffer
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	h := &Hub{
		clients:    make(map[string]map[*client]struct{}),
		sendBuffer: buffer,
		logger:     logger.With("component", "realtime.Hub"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[strings.TrimRight(strings.TrimSpace(origin), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.TrimRight(origin, "/")]
		return ok
	}
}

// Serve upgrades the request and runs the connection for userID until it
// closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := newClient(h, conn, userID)
	if !h.register(c) {
		_ = conn.Close()
		return nil
	}
	go c.writePump()
	c.readPump()
	return nil
}

// Publish delivers event to every connection of event.UserID subscribed to
// event.Topic. Clients whose buffer is full are disconnected.
func (h *Hub) Publish(ctx context.Context, event application.Event) {
	if h == nil {
		return
	}
	frame, err := wire.EventFrame(event)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to encode event", "type", string(event.Type), "error", err)
		return
	}
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to encode frame", "type", string(event.Type), "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[event.UserID] {
		if !c.subscribed(event.Topic) {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.logger.WarnContext(ctx, "disconnecting slow client", "user_id", event.UserID, "topic", string(event.Topic))
			h.removeLocked(c)
		}
	}
}

// Close disconnects every client and rejects new connections.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, set := range h.clients {
		for c := range set {
			h.removeLocked(c)
		}
	}
}

// Connections reports the number of open connections of userID.
func (h *Hub) Connections(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[userID])
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
	h.logger.Debug("client connected", "user_id", c.userID)
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// removeLocked drops c and closes its send channel once.
func (h *Hub) removeLocked(c *client) {
	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
	close(c.send)
	h.logger.Debug("client disconnected", "user_id", c.userID)
}
