package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/obsidianstack/sidecar/pkg/types"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 16
)

// EventStats is the event name of every broadcast.
const EventStats = "stats"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Allow all origins; restrict at the reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the JSON envelope sent to clients.
type Message struct {
	Event string              `json:"event"`
	Data  types.StatsSnapshot `json:"data"`
}

// StatsSource supplies the snapshot to broadcast. *store.Store satisfies it.
type StatsSource interface {
	Stats() types.StatsSnapshot
}

// Hub manages WebSocket client connections and broadcasts the current
// stats snapshot to all of them every interval.
type Hub struct {
	src      StatsSource
	interval time.Duration

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool // set once Run has returned
}

// client represents one connected WebSocket client.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// New creates a Hub that reads from src and broadcasts every interval.
func New(src StatsSource, interval time.Duration) *Hub {
	return &Hub{
		src:      src,
		interval: interval,
		clients:  make(map[*client]struct{}),
	}
}

// Run starts the broadcast loop. It blocks until ctx is cancelled, then
// closes all active connections.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-t.C:
			h.broadcast()
		}
	}
}

// ServeHTTP upgrades the connection to WebSocket and serves the client. The
// current snapshot is sent immediately on connect. Blocks until the
// connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.isClosed() {
		http.Error(w, "stats stream is shut down", http.StatusServiceUnavailable)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBufSize),
	}
	if data, err := h.buildMessage(); err == nil {
		c.send <- data
	}
	if !h.register(c) {
		// Run returned between the check above and the upgrade.
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down")
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout)) //nolint:errcheck
		conn.Close()
		return
	}
	defer h.unregister(c)

	go c.writePump()
	c.readPump()
}

// Count returns the number of currently connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// register adds c unless the hub has shut down.
func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	slog.Debug("ws: client connected", "clients", n)
	return true
}

func (h *Hub) isClosed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Hub) broadcast() {
	data, err := h.buildMessage()
	if err != nil {
		slog.Error("ws: encode stats", "err", err)
		return
	}

	// Sends happen under the read lock so no channel is closed mid-send.
	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		slog.Warn("ws: client too slow, disconnecting")
		h.unregister(c)
	}
}

func (h *Hub) buildMessage() ([]byte, error) {
	return json.Marshal(Message{Event: EventStats, Data: h.src.Stats()})
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// writePump forwards queued messages to the connection and sends periodic
// pings. Runs in its own goroutine per client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				// Hub is shutting down or the client was dropped.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump processes control frames and detects disconnects. Blocks until
// the connection closes.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
