package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ayusman/fingervol/internal/app"
	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"
)

const (
	writeWait      = 5 * time.Second
	clientQueueLen = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// LiveMessage is pushed to websocket clients for every frame.
type LiveMessage struct {
	Hand      bool         `json:"hand"`
	Reading   *app.Reading `json:"reading,omitempty"`
	Timestamp int64        `json:"timestamp"`
}

// LiveHub is an app.Observer that broadcasts readings to websocket clients.
type LiveHub struct {
	log     *slog.Logger
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
	closed  bool
}

var _ app.Observer = (*LiveHub)(nil)

// NewLiveHub creates an empty LiveHub.
func NewLiveHub(log *slog.Logger) *LiveHub {
	if log == nil {
		log = slog.Default()
	}
	return &LiveHub{
		log:     log,
		clients: make(map[*websocket.Conn]chan []byte),
	}
}

// Clients returns the number of connected clients.
func (h *LiveHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ObserveFrame broadcasts the frame's reading. Clients that fall behind lose messages.
func (h *LiveHub) ObserveFrame(_ *gocv.Mat, reading *app.Reading) {
	if h.Clients() == 0 {
		return
	}

	msg, err := json.Marshal(LiveMessage{
		Hand:      reading != nil,
		Reading:   reading,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		h.log.Warn("failed to encode live message", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, send := range h.clients {
		select {
		case send <- msg:
		default:
		}
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *LiveHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade error", "error", err)
		return
	}

	send := make(chan []byte, clientQueueLen)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[conn] = send
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Keep connection alive by reading messages
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		select {
		case <-done:
			return
		case msg, ok := <-send:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(writeWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// Close disconnects every client and rejects new ones.
func (h *LiveHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for conn, send := range h.clients {
		close(send)
		delete(h.clients, conn)
	}
}
