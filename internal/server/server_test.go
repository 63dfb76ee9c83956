package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/fingervol/internal/app"
	"github.com/ayusman/fingervol/internal/gesture"
	"github.com/ayusman/fingervol/internal/observe"
	"github.com/ayusman/fingervol/internal/store"
	"github.com/gorilla/websocket"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeController is an in-memory Controller.
type fakeController struct {
	mu      sync.Mutex
	enabled bool
	reading *app.Reading
}

func (c *fakeController) IsEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

func (c *fakeController) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
}

func (c *fakeController) LastReading() *app.Reading {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reading
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func serve(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	s := New(Config{Logger: discard})

	t.Run("returns 200 with JSON response", func(t *testing.T) {
		rec := serve(s, http.MethodGet, "/api/health", "")

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}

		contentType := rec.Header().Get("Content-Type")
		if contentType != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", contentType)
		}

		var response map[string]interface{}
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		if response["status"] != "ok" {
			t.Errorf("expected status 'ok', got %v", response["status"])
		}

		if _, exists := response["uptime"]; !exists {
			t.Error("expected 'uptime' field in response")
		}
	})

	t.Run("only allows GET method", func(t *testing.T) {
		methods := []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch}

		for _, method := range methods {
			rec := serve(s, method, "/api/health", "")
			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("method %s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
			}
		}
	})
}

func TestServer_NotFound(t *testing.T) {
	s := New(Config{Logger: discard})

	rec := serve(s, http.MethodGet, "/api/nonexistent", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestServer_OptionalRoutes(t *testing.T) {
	s := New(Config{Logger: discard})

	for _, path := range []string{"/api/status", "/api/readings", "/api/stream", "/api/live", "/metrics"} {
		if rec := serve(s, http.MethodGet, path, ""); rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404 without its dependency, got %d", path, rec.Code)
		}
	}
}

func TestServer_Status(t *testing.T) {
	ctrl := &fakeController{
		enabled: true,
		reading: &app.Reading{
			Fingers:   gesture.FingerState{true, true, true, false, false},
			Count:     3,
			Level:     0.6,
			Applied:   true,
			Timestamp: time.Now(),
		},
	}
	s := New(Config{Controller: ctrl, SessionID: "sess-1", Logger: discard})

	rec := serve(s, http.MethodGet, "/api/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var got struct {
		Enabled   bool   `json:"enabled"`
		SessionID string `json:"session_id"`
		Reading   struct {
			Fingers string  `json:"fingers"`
			Count   int     `json:"count"`
			Level   float64 `json:"level"`
		} `json:"reading"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !got.Enabled || got.SessionID != "sess-1" {
		t.Errorf("unexpected status: %+v", got)
	}
	if got.Reading.Fingers != "11100" || got.Reading.Count != 3 || got.Reading.Level != 0.6 {
		t.Errorf("unexpected reading: %+v", got.Reading)
	}

	t.Run("null reading without a hand", func(t *testing.T) {
		s := New(Config{Controller: &fakeController{}, Logger: discard})
		rec := serve(s, http.MethodGet, "/api/status", "")
		if !strings.Contains(rec.Body.String(), `"reading":null`) {
			t.Errorf("expected null reading, got %s", rec.Body.String())
		}
	})
}

func TestServer_SetEnabled(t *testing.T) {
	st := newTestStore(t)
	ctrl := &fakeController{enabled: true}
	s := New(Config{Controller: ctrl, Store: st, Logger: discard})

	tests := []struct {
		name        string
		body        string
		wantStatus  int
		wantEnabled bool
	}{
		{name: "disable", body: `{"enabled": false}`, wantStatus: http.StatusOK, wantEnabled: false},
		{name: "enable", body: `{"enabled": true}`, wantStatus: http.StatusOK, wantEnabled: true},
		{name: "missing field", body: `{}`, wantStatus: http.StatusBadRequest, wantEnabled: true},
		{name: "invalid json", body: `{not json`, wantStatus: http.StatusBadRequest, wantEnabled: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(s, http.MethodPut, "/api/enabled", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if ctrl.IsEnabled() != tt.wantEnabled {
				t.Errorf("enabled = %v, want %v", ctrl.IsEnabled(), tt.wantEnabled)
			}
		})
	}

	serve(s, http.MethodPut, "/api/enabled", `{"enabled": false}`)
	v, err := st.Settings().Get(store.SettingEnabled)
	if err != nil {
		t.Fatalf("Settings().Get() error = %v", err)
	}
	if v != "false" {
		t.Errorf("persisted enabled = %q, want false", v)
	}
}

func TestServer_Readings(t *testing.T) {
	st := newTestStore(t)
	sess, err := st.Sessions().Start(0)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	base := time.Now().UTC().Add(-time.Minute)
	for i, count := range []int{1, 3, 3, 5} {
		rd := &store.Reading{
			SessionID: sess.ID,
			Fingers:   "00000",
			Count:     count,
			Level:     float64(count) / 10 * 2,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := st.Readings().Create(rd); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	s := New(Config{Store: st, SessionID: sess.ID, Logger: discard})

	t.Run("recent with limit", func(t *testing.T) {
		rec := serve(s, http.MethodGet, "/api/readings?limit=2", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		var got struct {
			Readings []store.Reading `json:"readings"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(got.Readings) != 2 {
			t.Fatalf("expected 2 readings, got %d", len(got.Readings))
		}
		if got.Readings[0].Count != 5 {
			t.Errorf("newest reading count = %d, want 5", got.Readings[0].Count)
		}
	})

	t.Run("invalid limit", func(t *testing.T) {
		for _, q := range []string{"0", "-1", "abc"} {
			if rec := serve(s, http.MethodGet, "/api/readings?limit="+q, ""); rec.Code != http.StatusBadRequest {
				t.Errorf("limit=%s: expected 400, got %d", q, rec.Code)
			}
		}
	})

	t.Run("histogram of current session", func(t *testing.T) {
		rec := serve(s, http.MethodGet, "/api/sessions/current/histogram", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		var got struct {
			SessionID string             `json:"session_id"`
			Buckets   []store.LevelCount `json:"buckets"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if got.SessionID != sess.ID {
			t.Errorf("session_id = %q, want %q", got.SessionID, sess.ID)
		}
		total := 0
		for _, b := range got.Buckets {
			total += b.N
			if b.Count == 3 && b.N != 2 {
				t.Errorf("count 3 bucket = %d, want 2", b.N)
			}
		}
		if total != 4 {
			t.Errorf("histogram total = %d, want 4", total)
		}
	})

	t.Run("histogram of unknown session", func(t *testing.T) {
		if rec := serve(s, http.MethodGet, "/api/sessions/nope/histogram", ""); rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestServer_Metrics(t *testing.T) {
	m := observe.NewMetrics()
	s := New(Config{Metrics: m, Logger: discard})

	serve(s, http.MethodGet, "/api/health", "")
	serve(s, http.MethodGet, "/api/nonexistent", "")

	rec := serve(s, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "fingervol_http_requests_total 2") {
		t.Errorf("expected 2 counted requests in:\n%s", body)
	}
	if !strings.Contains(body, "fingervol_http_errors_total 1") {
		t.Errorf("expected 1 counted error in:\n%s", body)
	}
}

func TestServer_StaticFiles(t *testing.T) {
	tmpDir := t.TempDir()

	// Create a test HTML file
	testContent := "<html><body>Hello, World!</body></html>"
	if err := os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte(testContent), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	cssContent := "body { color: red; }"
	if err := os.WriteFile(filepath.Join(tmpDir, "style.css"), []byte(cssContent), 0644); err != nil {
		t.Fatalf("failed to create test CSS file: %v", err)
	}

	s := New(Config{StaticDir: tmpDir, Logger: discard})

	t.Run("serves index.html at root path", func(t *testing.T) {
		rec := serve(s, http.MethodGet, "/", "")

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if rec.Body.String() != testContent {
			t.Errorf("expected body %q, got %q", testContent, rec.Body.String())
		}
	})

	t.Run("serves static files from configured directory", func(t *testing.T) {
		rec := serve(s, http.MethodGet, "/style.css", "")

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if rec.Body.String() != cssContent {
			t.Errorf("expected body %q, got %q", cssContent, rec.Body.String())
		}
	})

	t.Run("returns 404 for non-existent static files", func(t *testing.T) {
		if rec := serve(s, http.MethodGet, "/nonexistent.html", ""); rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})

	t.Run("api routes take precedence", func(t *testing.T) {
		if rec := serve(s, http.MethodGet, "/api/health", ""); rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rec.Code)
		}
	})
}

func TestServer_NoStaticDir(t *testing.T) {
	s := New(Config{Logger: discard})

	if rec := serve(s, http.MethodGet, "/", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestNew(t *testing.T) {
	t.Run("creates server with config", func(t *testing.T) {
		cfg := Config{StaticDir: "/some/path"}
		s := New(cfg)

		if s == nil {
			t.Fatal("expected non-nil server")
		}
		if s.config.StaticDir != cfg.StaticDir {
			t.Errorf("expected StaticDir %s, got %s", cfg.StaticDir, s.config.StaticDir)
		}
		if s.log == nil {
			t.Error("expected default logger")
		}
	})

	t.Run("server implements http.Handler", func(t *testing.T) {
		s := New(Config{})
		var _ http.Handler = s
	})
}

func TestServer_ServeStopsWithConnectedViewers(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	frames := NewFrameHub()
	live := NewLiveHub(discard)
	s := New(Config{Frames: frames, Live: live, Logger: discard})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	base := "http://" + ln.Addr().String()
	resp, err := http.Get(base + "/api/stream")
	if err != nil {
		t.Fatalf("GET /api/stream error = %v", err)
	}
	defer resp.Body.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/api/live", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	waitFor(t, func() bool { return frames.Clients() == 1 && live.Clients() == 1 })

	start := time.Now()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve() error = %v, want nil", err)
		}
	case <-time.After(4 * time.Second):
		t.Fatal("Serve() did not return while a viewer was connected")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("shutdown took %v", elapsed)
	}

	waitFor(t, func() bool { return frames.Clients() == 0 })
}

func TestServer_RunListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer ln.Close()

	s := New(Config{Logger: discard})
	if err := s.Run(context.Background(), ln.Addr().String()); err == nil {
		t.Error("expected error for an address already in use")
	}
}
