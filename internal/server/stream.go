package server

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/ayusman/fingervol/internal/app"
	"gocv.io/x/gocv"
)

// FrameHub is an app.Observer that re-publishes annotated frames as MJPEG.
// Frames are only encoded while at least one client is watching.
type FrameHub struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
	done    chan struct{}
	closed  bool
}

var _ app.Observer = (*FrameHub)(nil)

// NewFrameHub creates an empty FrameHub.
func NewFrameHub() *FrameHub {
	return &FrameHub{
		clients: make(map[chan []byte]struct{}),
		done:    make(chan struct{}),
	}
}

// Close ends every stream and makes new viewers return immediately.
func (h *FrameHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.done)
}

// Clients returns the number of connected viewers.
func (h *FrameHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ObserveFrame encodes frame as JPEG and hands it to every viewer. Slow
// viewers skip frames rather than block the loop.
func (h *FrameHub) ObserveFrame(frame *gocv.Mat, _ *app.Reading) {
	if h.Clients() == 0 || frame == nil || frame.Empty() {
		return
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return
	}
	jpeg := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	h.Publish(jpeg)
}

// Publish sends an encoded JPEG to every viewer.
func (h *FrameHub) Publish(jpeg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- jpeg:
		default:
		}
	}
}

func (h *FrameHub) subscribe() chan []byte {
	ch := make(chan []byte, 1)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *FrameHub) unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *FrameHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.subscribe()
	defer h.unsubscribe(ch)

	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.done:
			return
		case jpeg := <-ch:
			fmt.Fprintf(w, "--frame\r\n")
			fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
			fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(jpeg))
			if _, err := w.Write(jpeg); err != nil {
				return
			}
			fmt.Fprintf(w, "\r\n")

			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}
