package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"subtrack/internal/core"
	"subtrack/internal/ports"
	"subtrack/internal/schedule"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// Snapshot is the frame pushed to dashboards on every change.
type Snapshot struct {
	Type        string                `json:"type"`
	Today       core.Date             `json:"today"`
	Occurrences []schedule.Occurrence `json:"occurrences"`
	Summary     core.Summary          `json:"summary"`
	Errors      []string              `json:"errors,omitempty"`
}

// BuildSnapshot projects subs from the current day.
func BuildSnapshot(subs []core.Subscription, opts ...schedule.Option) Snapshot {
	res := schedule.ProjectNow(subs, opts...)
	summary := core.Summarize(subs)
	summary.NextUpcoming = res.Next()

	snap := Snapshot{
		Type:        "snapshot",
		Today:       res.Today,
		Occurrences: res.Occurrences,
		Summary:     summary,
	}
	for _, err := range res.Errors {
		snap.Errors = append(snap.Errors, err.Error())
	}
	return snap
}

// UserFunc extracts the authenticated user from a request.
type UserFunc func(*http.Request) string

// WebSocketHandler streams snapshots of the caller's subscriptions. A
// watch is held for the lifetime of each connection.
type WebSocketHandler struct {
	watcher ports.Watcher
	userOf  UserFunc
	opts    []schedule.Option
	logger  *slog.Logger
	active  atomic.Int64
}

func NewWebSocketHandler(w ports.Watcher, userOf UserFunc, logger *slog.Logger, opts ...schedule.Option) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		watcher: w,
		userOf:  userOf,
		opts:    opts,
		logger:  logger.With("component", "websocket"),
	}
}

// ActiveConnections returns the number of open dashboard connections.
func (h *WebSocketHandler) ActiveConnections() int {
	return int(h.active.Load())
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := h.userOf(r)
	if userID == "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"unauthorized"}`))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	// The request context ends when ServeHTTP returns; the connection
	// outlives it.
	ctx, cancel := context.WithCancel(context.Background())
	c := &wsClient{conn: conn, send: make(chan []byte, 1)}

	stop, err := h.watcher.Watch(ctx, userID, func(subs []core.Subscription) {
		data, err := json.Marshal(BuildSnapshot(subs, h.opts...))
		if err != nil {
			h.logger.Error("failed to marshal snapshot", "error", err)
			return
		}
		c.push(data)
	})
	if err != nil {
		h.logger.Error("failed to watch subscriptions", "user_id", userID, "error", err)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "watch failed"),
			time.Now().Add(writeWait))
		conn.Close()
		cancel()
		return
	}

	h.active.Add(1)
	h.logger.Debug("websocket client connected", "user_id", userID, "total_clients", h.ActiveConnections())

	go c.writePump(ctx)
	go c.readPump(func() {
		stop()
		cancel()
		h.active.Add(-1)
		h.logger.Debug("websocket client disconnected", "user_id", userID, "total_clients", h.ActiveConnections())
	})
}

// push keeps only the newest pending frame.
func (c *wsClient) push(data []byte) {
	select {
	case c.send <- data:
		return
	default:
	}
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- data:
	default:
	}
}

// readPump reads messages from the WebSocket connection (handles pings/disconnects).
func (c *wsClient) readPump(onClose func()) {
	defer func() {
		onClose()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump writes messages to the WebSocket connection.
func (c *wsClient) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
