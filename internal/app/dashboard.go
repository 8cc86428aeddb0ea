package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"botwatch/clients/botstream"
)

// WebSocket upgrader for the browser-facing stream
var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	// clientSendBuffer is the per-browser backlog. Broadcast never blocks:
	// when a browser's buffer is full the message is dropped for that browser.
	clientSendBuffer = 64

	// clientWriteTimeout bounds a single frame write to a browser.
	clientWriteTimeout = 10 * time.Second
)

// hubClient is one connected browser: its conn plus the buffered channel its
// writer goroutine drains.
type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans accepted stream messages out to connected dashboard browsers.
// Writes happen on per-client goroutines so a stalled browser never
// back-pressures the stream read path.
type Hub struct {
	logger *zap.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]*hubClient
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:  logger,
		clients: make(map[*websocket.Conn]*hubClient),
	}
}

func (h *Hub) Add(conn *websocket.Conn) {
	c := &hubClient{
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
	}
	h.mu.Lock()
	h.clients[conn] = c
	h.mu.Unlock()

	go h.writeLoop(c)
}

// Remove drops a browser and closes its conn. The send channel is closed
// under the lock so Broadcast can never send to a removed client.
func (h *Hub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	c, ok := h.clients[conn]
	if ok {
		delete(h.clients, conn)
		close(c.send)
	}
	h.mu.Unlock()

	if ok {
		conn.Close()
	}
}

// Count returns the number of connected browsers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues one message for every connected browser without blocking.
// A browser that cannot keep up loses the message, not the connection.
func (h *Hub) Broadcast(msg botstream.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn("failed to marshal broadcast message", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Debug("dashboard client send buffer full, dropping message")
		}
	}
}

// writeLoop drains one browser's send channel. A failed or timed-out write
// drops the browser.
func (h *Hub) writeLoop(c *hubClient) {
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(clientWriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug("dropping dashboard client", zap.Error(err))
			h.Remove(c.conn)
			return
		}
	}
}

// CloseAll disconnects every browser.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn, c := range h.clients {
		close(c.send)
		conn.Close()
		delete(h.clients, conn)
	}
}

// startDashboard starts the HTTP server for the dashboard UI and health
// checks.
func (r *Runner) startDashboard(port int) {
	r.dashboard = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r.dashboardMux(),
	}

	go func() {
		r.clients.Logger.Info("dashboard server listening", zap.Int("port", port))
		if err := r.dashboard.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.clients.Logger.Error("dashboard server failed", zap.Error(err))
		}
	}()
}

func (r *Runner) dashboardMux() *http.ServeMux {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Latest bot status from the liveness prober
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, _ *http.Request) {
		status, _ := r.poller.Last()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(status)
	})

	// Retained stream messages, newest first
	mux.HandleFunc("/api/messages", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(r.clients.Stream.History())
	})

	// JSON stats endpoint
	mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		stats := r.GetStats()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	})

	// WebSocket endpoint re-broadcasting the bot stream to browsers
	mux.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, req, nil)
		if err != nil {
			r.clients.Logger.Error("websocket upgrade failed", zap.Error(err))
			return
		}

		r.hub.Add(conn)
		r.clients.Logger.Info("dashboard client connected",
			zap.String("remote", req.RemoteAddr))

		// Reads only to observe the close; browsers never send.
		go func() {
			defer r.hub.Remove(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})

	return mux
}
