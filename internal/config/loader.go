package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvLogLevel     = "FINGERVOL_LOG_LEVEL"
	EnvLogFormat    = "FINGERVOL_LOG_FORMAT"
	EnvCameraDevice = "FINGERVOL_CAMERA_DEVICE"
	EnvHTTPAddr     = "FINGERVOL_HTTP_ADDR"
)

// DefaultPath returns ~/.fingervol/config.yaml, or "" if the home directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".fingervol", "config.yaml")
}

// Load reads the YAML configuration file at path on top of Default and
// validates the result. When optional is true a missing file yields the
// defaults instead of an error.
func Load(path string, optional bool) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over the defaults and validates
// the result. Unknown keys are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs from the given .env files into the process
// environment. Missing files are ignored; existing variables win.
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var present []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			present = append(present, p)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return godotenv.Load(present...)
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// ApplyEnv overrides cfg with the FINGERVOL_* environment variables and
// validates the result.
func ApplyEnv(cfg *Config) error {
	cfg.Log.Level = LogLevel(strings.ToLower(GetEnv(EnvLogLevel, string(cfg.Log.Level))))
	cfg.Log.Format = strings.ToLower(GetEnv(EnvLogFormat, cfg.Log.Format))
	cfg.Server.Addr = GetEnv(EnvHTTPAddr, cfg.Server.Addr)

	if s := os.Getenv(EnvCameraDevice); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("config: %s=%q is not an integer", EnvCameraDevice, s)
		}
		cfg.Camera.Device = n
	}

	return Validate(cfg)
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Log.Level.IsValid() {
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: debug, info, warn, error", cfg.Log.Level))
	}
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format %q is invalid; valid values: text, json", cfg.Log.Format))
	}

	if cfg.Camera.Device < 0 {
		errs = append(errs, fmt.Errorf("camera.device %d must not be negative", cfg.Camera.Device))
	}
	if cfg.Camera.Width <= 0 || cfg.Camera.Height <= 0 {
		errs = append(errs, fmt.Errorf("camera size %dx%d must be positive", cfg.Camera.Width, cfg.Camera.Height))
	}

	d := cfg.Detector
	if d.MaxHands < 1 {
		errs = append(errs, fmt.Errorf("detector.max_hands %d must be at least 1", d.MaxHands))
	}
	if d.ModelComplexity != 0 && d.ModelComplexity != 1 {
		errs = append(errs, fmt.Errorf("detector.model_complexity %d must be 0 or 1", d.ModelComplexity))
	}
	if d.MinDetectionConfidence < 0 || d.MinDetectionConfidence > 1 {
		errs = append(errs, fmt.Errorf("detector.min_detection_confidence %v outside [0,1]", d.MinDetectionConfidence))
	}
	if d.MinTrackingConfidence < 0 || d.MinTrackingConfidence > 1 {
		errs = append(errs, fmt.Errorf("detector.min_tracking_confidence %v outside [0,1]", d.MinTrackingConfidence))
	}
	if d.HandIndex < 0 || (d.MaxHands >= 1 && d.HandIndex >= d.MaxHands) {
		errs = append(errs, fmt.Errorf("detector.hand_index %d must be in [0,%d)", d.HandIndex, d.MaxHands))
	}

	if !cfg.Volume.Endpoint.IsValid() {
		errs = append(errs, fmt.Errorf("volume.endpoint %q is invalid; valid values: native, plugin", cfg.Volume.Endpoint))
	}
	if cfg.Volume.PluginTimeout < 0 {
		errs = append(errs, fmt.Errorf("volume.plugin_timeout %s must not be negative", cfg.Volume.PluginTimeout))
	}

	for name, hex := range map[string]string{
		"display.box_color":        cfg.Display.BoxColor,
		"display.text_color":       cfg.Display.TextColor,
		"display.landmark_color":   cfg.Display.LandmarkColor,
		"display.connection_color": cfg.Display.ConnectionColor,
	} {
		if _, err := colorful.Hex(hex); err != nil {
			errs = append(errs, fmt.Errorf("%s %q is not a hex colour", name, hex))
		}
	}

	return errors.Join(errs...)
}
