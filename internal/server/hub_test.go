package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/fingervol/internal/app"
	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestFrameHub_Stream(t *testing.T) {
	hub := NewFrameHub()
	ts := httptest.NewServer(New(Config{Frames: hub, Logger: discard}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/stream error = %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "multipart/x-mixed-replace; boundary=frame" {
		t.Errorf("unexpected Content-Type %q", ct)
	}

	waitFor(t, func() bool { return hub.Clients() == 1 })
	hub.Publish([]byte("jpegdata"))

	r := bufio.NewReader(resp.Body)
	var headers []string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read part header: %v", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		headers = append(headers, line)
	}
	want := []string{"--frame", "Content-Type: image/jpeg", "Content-Length: 8"}
	if strings.Join(headers, "|") != strings.Join(want, "|") {
		t.Errorf("part headers = %q, want %q", headers, want)
	}

	body := make([]byte, 8)
	if _, err := io.ReadFull(r, body); err != nil {
		t.Fatalf("read part body: %v", err)
	}
	if string(body) != "jpegdata" {
		t.Errorf("part body = %q", body)
	}

	cancel()
	waitFor(t, func() bool { return hub.Clients() == 0 })
}

func TestFrameHub_Close(t *testing.T) {
	hub := NewFrameHub()
	hub.Close()
	hub.Close()

	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		hub.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stream", nil))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ServeHTTP kept streaming after Close")
	}
	if hub.Clients() != 0 {
		t.Errorf("clients = %d after stream ended", hub.Clients())
	}
}

func TestFrameHub_ObserveFrame(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping gocv encode test in short mode")
	}

	hub := NewFrameHub()

	// No viewers: nothing is encoded or queued.
	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()
	frame.SetTo(gocv.NewScalar(0, 0, 0, 0))
	hub.ObserveFrame(&frame, nil)

	ch := hub.subscribe()
	defer hub.unsubscribe(ch)

	hub.ObserveFrame(&frame, nil)
	select {
	case jpeg := <-ch:
		if len(jpeg) < 4 || jpeg[0] != 0xFF || jpeg[1] != 0xD8 {
			t.Errorf("expected JPEG SOI marker, got % x", jpeg[:min(4, len(jpeg))])
		}
	default:
		t.Fatal("expected an encoded frame")
	}

	// A full queue drops instead of blocking.
	hub.Publish([]byte("a"))
	hub.Publish([]byte("b"))
	if got := <-ch; string(got) != "a" {
		t.Errorf("queued frame = %q, want a", got)
	}
}

func TestLiveHub(t *testing.T) {
	hub := NewLiveHub(discard)
	ts := httptest.NewServer(New(Config{Live: hub, Logger: discard}))
	defer ts.Close()

	// Without clients nothing is encoded.
	hub.ObserveFrame(nil, &app.Reading{Count: 1})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	waitFor(t, func() bool { return hub.Clients() == 1 })

	hub.ObserveFrame(nil, &app.Reading{Count: 4, Level: 0.8, Applied: true})
	hub.ObserveFrame(nil, nil)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first LiveMessage
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if !first.Hand || first.Reading == nil || first.Reading.Count != 4 || first.Reading.Level != 0.8 {
		t.Errorf("unexpected first message: %+v", first)
	}

	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var second map[string]json.RawMessage
	if err := json.Unmarshal(raw, &second); err != nil {
		t.Fatalf("invalid message %s: %v", raw, err)
	}
	if string(second["hand"]) != "false" {
		t.Errorf("expected hand=false, got %s", raw)
	}
	if _, ok := second["reading"]; ok {
		t.Errorf("expected reading omitted, got %s", raw)
	}

	hub.Close()
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("expected going away close, got %v", err)
	}
	waitFor(t, func() bool { return hub.Clients() == 0 })
}
