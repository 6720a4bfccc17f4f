package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 8
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans dashboard snapshots out to websocket clients. It is
// concurrency-safe via an internal RWMutex.
type Hub struct {
	stats    *Stats
	log      *zap.Logger
	debounce time.Duration

	mu      sync.RWMutex
	clients map[*client]struct{}

	timerMu sync.Mutex
	timer   *time.Timer
}

// NewHub returns a Hub that coalesces Notify calls within debounce.
func NewHub(stats *Stats, debounce time.Duration, log *zap.Logger) *Hub {
	return &Hub{
		stats:    stats,
		log:      log.Named("dashboard"),
		debounce: debounce,
		clients:  make(map[*client]struct{}),
	}
}

// Clients is the number of connected websocket clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Notify schedules a broadcast. Calls within the debounce window share one.
func (h *Hub) Notify() {
	h.timerMu.Lock()
	defer h.timerMu.Unlock()
	if h.timer != nil {
		return
	}
	h.timer = time.AfterFunc(h.debounce, func() {
		h.timerMu.Lock()
		h.timer = nil
		h.timerMu.Unlock()
		h.broadcast()
	})
}

// Close stops a pending broadcast and disconnects every client.
func (h *Hub) Close() {
	h.timerMu.Lock()
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
	h.timerMu.Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) payload(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	snap, err := h.stats.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(snap)
}

func (h *Hub) broadcast() {
	if h.Clients() == 0 {
		return
	}
	msg, err := h.payload(context.Background())
	if err != nil {
		h.log.Warn("dashboard snapshot failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// Slow reader.
			close(c.send)
			delete(h.clients, c)
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		close(c.send)
		delete(h.clients, c)
	}
}

// ServeWS upgrades the request and streams snapshots until the client
// goes away. The first message is the current snapshot.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	msg, err := h.payload(r.Context())
	if err != nil {
		h.log.Warn("dashboard snapshot failed", zap.Error(err))
		_ = conn.Close()
		return
	}
	c.send <- msg
	h.register(c)
	h.log.Debug("websocket client connected", zap.String("remote_addr", r.RemoteAddr))

	go h.writeLoop(c)
	h.readLoop(c)

	h.unregister(c)
	h.log.Debug("websocket client disconnected", zap.String("remote_addr", r.RemoteAddr))
}

// readLoop discards client frames; it exists to observe pongs and close.
func (h *Hub) readLoop(c *client) {
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
