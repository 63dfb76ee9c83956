package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/fingervol/internal/config"
)

const sampleYAML = `
log:
  level: debug
  format: json

camera:
  device: 1
  width: 1280
  height: 720

detector:
  max_hands: 1
  model_complexity: 0
  min_detection_confidence: 0.7

volume:
  endpoint: plugin
  plugin_dir: /opt/fingervol/plugins
  plugin_timeout: 2s

display:
  window: false
  box_color: "#112233"

server:
  addr: 127.0.0.1:8090

history:
  path: /tmp/fingervol.db
`

// ── YAML loading ──────────────────────────────────────────────────────────────

func TestDefault_IsValid(t *testing.T) {
	cfg := config.Default()
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}

	if cfg.Camera.Device != 0 || cfg.Camera.Width != 640 || cfg.Camera.Height != 480 {
		t.Errorf("camera defaults: got %+v", cfg.Camera)
	}
	if cfg.Detector.HandIndex != 0 {
		t.Errorf("detector.hand_index: got %d, want 0", cfg.Detector.HandIndex)
	}
	if cfg.Volume.Endpoint != config.EndpointNative {
		t.Errorf("volume.endpoint: got %q, want native", cfg.Volume.Endpoint)
	}
	if !cfg.Display.Window || cfg.Display.Title != "frame" || !cfg.Display.Landmarks {
		t.Errorf("display defaults: got %+v", cfg.Display)
	}
	if cfg.Server.Addr != "" || cfg.History.Path != "" || cfg.Tray.Enabled {
		t.Error("server, history and tray must be off by default")
	}
}

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Log.Level != config.LogDebug || cfg.Log.Format != "json" {
		t.Errorf("log: got %+v", cfg.Log)
	}
	if cfg.Camera.Device != 1 || cfg.Camera.Width != 1280 {
		t.Errorf("camera: got %+v", cfg.Camera)
	}
	if cfg.Detector.MaxHands != 1 || cfg.Detector.MinDetectionConfidence != 0.7 {
		t.Errorf("detector: got %+v", cfg.Detector)
	}
	// Unset keys keep their defaults.
	if cfg.Detector.MinTrackingConfidence != 0.5 {
		t.Errorf("detector.min_tracking_confidence: got %v, want default 0.5", cfg.Detector.MinTrackingConfidence)
	}
	if cfg.Volume.Endpoint != config.EndpointPlugin || cfg.Volume.PluginTimeout != 2*time.Second {
		t.Errorf("volume: got %+v", cfg.Volume)
	}
	if cfg.Display.Window || cfg.Display.BoxColor != "#112233" || cfg.Display.TextColor != "#0000ff" {
		t.Errorf("display: got %+v", cfg.Display)
	}
	if cfg.Server.Addr != "127.0.0.1:8090" || cfg.History.Path != "/tmp/fingervol.db" {
		t.Errorf("server/history: got %q %q", cfg.Server.Addr, cfg.History.Path)
	}

	ds := cfg.DetectorSettings()
	if ds.MaxHands != 1 || ds.ModelComplexity != 0 || ds.MinConfidence != 0.7 {
		t.Errorf("DetectorSettings(): got %+v", ds)
	}
	if ro := cfg.RenderOptions(); ro.BoxColor != "#112233" || !ro.Landmarks {
		t.Errorf("RenderOptions(): got %+v", ro)
	}
}

func TestLoadFromReader_EmptyIsValid(t *testing.T) {
	for _, in := range []string{"", "{}"} {
		if _, err := config.LoadFromReader(strings.NewReader(in)); err != nil {
			t.Fatalf("unexpected error for %q: %v", in, err)
		}
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("camera:\n  fps: 30\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

// ── Validation ────────────────────────────────────────────────────────────────

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{name: "log level", yaml: "log:\n  level: verbose\n", want: "log.level"},
		{name: "log format", yaml: "log:\n  format: xml\n", want: "log.format"},
		{name: "negative device", yaml: "camera:\n  device: -1\n", want: "camera.device"},
		{name: "zero width", yaml: "camera:\n  width: 0\n", want: "camera size"},
		{name: "max hands", yaml: "detector:\n  max_hands: 0\n", want: "detector.max_hands"},
		{name: "model complexity", yaml: "detector:\n  model_complexity: 2\n", want: "detector.model_complexity"},
		{name: "confidence", yaml: "detector:\n  min_detection_confidence: 1.5\n", want: "min_detection_confidence"},
		{name: "hand index beyond max hands", yaml: "detector:\n  hand_index: 2\n", want: "detector.hand_index"},
		{name: "endpoint", yaml: "volume:\n  endpoint: pycaw\n", want: "volume.endpoint"},
		{name: "colour", yaml: "display:\n  text_color: blue\n", want: "display.text_color"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidate_JoinsErrors(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "loud"
	cfg.Volume.Endpoint = "pycaw"

	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "log.level") || !strings.Contains(err.Error(), "volume.endpoint") {
		t.Errorf("expected both failures reported, got %v", err)
	}
}

// ── Files and environment ─────────────────────────────────────────────────────

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("camera:\n  device: 3\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path, false)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Camera.Device != 3 {
		t.Errorf("camera.device: got %d, want 3", cfg.Camera.Device)
	}

	missing := filepath.Join(dir, "missing.yaml")
	if _, err := config.Load(missing, false); err == nil {
		t.Error("expected error for missing required file")
	}
	if cfg, err := config.Load(missing, true); err != nil || cfg.Camera.Device != 0 {
		t.Errorf("optional missing file: got %+v, %v", cfg, err)
	}
	if cfg, err := config.Load("", false); err != nil || cfg.Camera.Device != 0 {
		t.Errorf("empty path: got %+v, %v", cfg, err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(config.EnvLogLevel, "WARN")
	t.Setenv(config.EnvLogFormat, "json")
	t.Setenv(config.EnvCameraDevice, "2")
	t.Setenv(config.EnvHTTPAddr, ":9000")

	cfg := config.Default()
	if err := config.ApplyEnv(cfg); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}

	if cfg.Log.Level != config.LogWarn || cfg.Log.Format != "json" {
		t.Errorf("log: got %+v", cfg.Log)
	}
	if cfg.Camera.Device != 2 {
		t.Errorf("camera.device: got %d, want 2", cfg.Camera.Device)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("server.addr: got %q, want :9000", cfg.Server.Addr)
	}
}

func TestApplyEnv_InvalidDevice(t *testing.T) {
	t.Setenv(config.EnvCameraDevice, "front")

	if err := config.ApplyEnv(config.Default()); err == nil {
		t.Error("expected error for non-integer device")
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("FINGERVOL_TEST_ENV_FILE=from-file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FINGERVOL_TEST_ENV_FILE", "")
	os.Unsetenv("FINGERVOL_TEST_ENV_FILE")

	if err := config.LoadEnvFile(path, filepath.Join(dir, "absent.env")); err != nil {
		t.Fatalf("LoadEnvFile() error = %v", err)
	}
	if got := config.GetEnv("FINGERVOL_TEST_ENV_FILE", "fallback"); got != "from-file" {
		t.Errorf("GetEnv() = %q, want from-file", got)
	}

	if err := config.LoadEnvFile(filepath.Join(dir, "absent.env")); err != nil {
		t.Errorf("missing .env should be ignored, got %v", err)
	}
}

func TestGetEnv_Fallback(t *testing.T) {
	t.Setenv("FINGERVOL_TEST_UNSET", "")
	if got := config.GetEnv("FINGERVOL_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("GetEnv() = %q, want fallback", got)
	}
}
