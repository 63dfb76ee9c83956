// Package config provides the configuration schema and loader for fingervol.
package config

import (
	"time"

	"github.com/ayusman/fingervol/internal/capture"
	"github.com/ayusman/fingervol/internal/detector"
	"github.com/ayusman/fingervol/internal/plugin"
	"github.com/ayusman/fingervol/internal/render"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// EndpointKind selects how volume levels reach the host.
type EndpointKind string

const (
	// EndpointNative runs the host's volume command directly.
	EndpointNative EndpointKind = "native"
	// EndpointPlugin goes through the system-control plugin.
	EndpointPlugin EndpointKind = "plugin"
)

// IsValid reports whether k is a recognised endpoint kind.
func (k EndpointKind) IsValid() bool {
	return k == EndpointNative || k == EndpointPlugin
}

// Config is the root configuration structure.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Camera   CameraConfig   `yaml:"camera"`
	Detector DetectorConfig `yaml:"detector"`
	Volume   VolumeConfig   `yaml:"volume"`
	Display  DisplayConfig  `yaml:"display"`
	Server   ServerConfig   `yaml:"server"`
	History  HistoryConfig  `yaml:"history"`
	Tray     TrayConfig     `yaml:"tray"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  LogLevel `yaml:"level"`
	Format string   `yaml:"format"`
}

// CameraConfig selects the capture device and requested resolution.
type CameraConfig struct {
	Device int `yaml:"device"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// DetectorConfig configures the MediaPipe sidecar and hand selection.
type DetectorConfig struct {
	Script                 string  `yaml:"script"`
	Python                 string  `yaml:"python"`
	MaxHands               int     `yaml:"max_hands"`
	ModelComplexity        int     `yaml:"model_complexity"`
	MinDetectionConfidence float64 `yaml:"min_detection_confidence"`
	MinTrackingConfidence  float64 `yaml:"min_tracking_confidence"`
	StaticImageMode        bool    `yaml:"static_image_mode"`
	// HandIndex selects which detected hand drives the volume.
	HandIndex int `yaml:"hand_index"`
}

// VolumeConfig selects the audio endpoint.
type VolumeConfig struct {
	Endpoint      EndpointKind  `yaml:"endpoint"`
	PluginDir     string        `yaml:"plugin_dir"`
	PluginTimeout time.Duration `yaml:"plugin_timeout"`
}

// DisplayConfig configures the preview window and overlay.
type DisplayConfig struct {
	Window          bool   `yaml:"window"`
	Title           string `yaml:"title"`
	Landmarks       bool   `yaml:"landmarks"`
	BoxColor        string `yaml:"box_color"`
	TextColor       string `yaml:"text_color"`
	LandmarkColor   string `yaml:"landmark_color"`
	ConnectionColor string `yaml:"connection_color"`
}

// ServerConfig configures the optional status server. An empty Addr disables it.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// HistoryConfig configures the optional reading history. An empty Path disables it.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// TrayConfig toggles the system tray menu.
type TrayConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when no file is given: camera 0 at
// 640x480, the first hand, the host's own volume command and a "frame" window
// with the landmark overlay. Server, history and tray are off.
func Default() *Config {
	dc := detector.DefaultConfig()
	ro := render.DefaultOptions()
	return &Config{
		Log: LogConfig{Level: LogInfo, Format: "text"},
		Camera: CameraConfig{
			Device: capture.DefaultDevice,
			Width:  capture.DefaultWidth,
			Height: capture.DefaultHeight,
		},
		Detector: DetectorConfig{
			MaxHands:               dc.MaxHands,
			ModelComplexity:        dc.ModelComplexity,
			MinDetectionConfidence: dc.MinConfidence,
			MinTrackingConfidence:  dc.MinTrackingConf,
			StaticImageMode:        dc.StaticImageMode,
		},
		Volume: VolumeConfig{
			Endpoint:      EndpointNative,
			PluginTimeout: plugin.DefaultTimeout,
		},
		Display: DisplayConfig{
			Window:          true,
			Title:           render.DefaultWindowTitle,
			Landmarks:       ro.Landmarks,
			BoxColor:        ro.BoxColor,
			TextColor:       ro.TextColor,
			LandmarkColor:   ro.LandmarkColor,
			ConnectionColor: ro.ConnectionColor,
		},
	}
}

// DetectorSettings converts the detector section for detector.NewMediaPipeDetector.
func (c *Config) DetectorSettings() detector.Config {
	return detector.Config{
		MaxHands:        c.Detector.MaxHands,
		ModelComplexity: c.Detector.ModelComplexity,
		StaticImageMode: c.Detector.StaticImageMode,
		MinConfidence:   c.Detector.MinDetectionConfidence,
		MinTrackingConf: c.Detector.MinTrackingConfidence,
		ScriptPath:      c.Detector.Script,
		PythonPath:      c.Detector.Python,
	}
}

// RenderOptions converts the display section for render.NewRenderer.
func (c *Config) RenderOptions() render.Options {
	return render.Options{
		Landmarks:       c.Display.Landmarks,
		BoxColor:        c.Display.BoxColor,
		TextColor:       c.Display.TextColor,
		LandmarkColor:   c.Display.LandmarkColor,
		ConnectionColor: c.Display.ConnectionColor,
	}
}
