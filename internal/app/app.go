// Package app runs the frame loop that turns a camera feed into volume changes.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ayusman/fingervol/internal/capture"
	"github.com/ayusman/fingervol/internal/detector"
	"github.com/ayusman/fingervol/internal/gesture"
	"github.com/ayusman/fingervol/internal/observe"
	"github.com/ayusman/fingervol/internal/render"
	"github.com/ayusman/fingervol/internal/volume"
	"gocv.io/x/gocv"
)

// Reading is the outcome of one frame in which a hand was selected.
type Reading struct {
	Fingers   gesture.FingerState     `json:"fingers"`
	Count     int                     `json:"count"`
	Level     float64                 `json:"level"`
	Positions []gesture.PixelPosition `json:"positions"`
	// Applied is false when volume control was paused or the endpoint failed.
	Applied   bool      `json:"applied"`
	Timestamp time.Time `json:"timestamp"`
}

// Observer receives every displayed frame. The frame is only valid for the
// duration of the call; reading is nil when no hand was selected.
type Observer interface {
	ObserveFrame(frame *gocv.Mat, reading *Reading)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(frame *gocv.Mat, reading *Reading)

func (f ObserverFunc) ObserveFrame(frame *gocv.Mat, reading *Reading) {
	f(frame, reading)
}

// Config holds the collaborators and options of the frame loop.
type Config struct {
	Camera   capture.Camera
	Detector detector.Detector
	Endpoint volume.Endpoint
	Renderer *render.Renderer
	Display  render.Display
	// HandIndex selects which detected hand drives the volume.
	HandIndex int
	Logger    *slog.Logger
	Metrics   *observe.Metrics
}

// App is the frame loop. Step is not safe for concurrent use; the remaining
// methods may be called from any goroutine.
type App struct {
	camera    capture.Camera
	detector  detector.Detector
	endpoint  volume.Endpoint
	renderer  *render.Renderer
	display   render.Display
	handIndex int
	logger    *slog.Logger
	metrics   *observe.Metrics

	mu        sync.RWMutex
	enabled   bool
	last      *Reading
	observers []Observer
}

// New creates an App. Camera, Detector and Endpoint are required; a missing
// Display selects render.NopDisplay and a missing Renderer the default overlay.
func New(config Config) (*App, error) {
	var errs []error
	if config.Camera == nil {
		errs = append(errs, errors.New("camera is required"))
	}
	if config.Detector == nil {
		errs = append(errs, errors.New("detector is required"))
	}
	if config.Endpoint == nil {
		errs = append(errs, errors.New("endpoint is required"))
	}
	if config.HandIndex < 0 {
		errs = append(errs, fmt.Errorf("hand index %d must not be negative", config.HandIndex))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	if config.Renderer == nil {
		r, err := render.NewRenderer(render.DefaultOptions())
		if err != nil {
			return nil, err
		}
		config.Renderer = r
	}
	if config.Display == nil {
		config.Display = render.NopDisplay{}
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &App{
		camera:    config.Camera,
		detector:  config.Detector,
		endpoint:  config.Endpoint,
		renderer:  config.Renderer,
		display:   config.Display,
		handIndex: config.HandIndex,
		logger:    config.Logger,
		metrics:   config.Metrics,
		enabled:   true,
	}, nil
}

// AddObserver registers an observer for every subsequent frame.
func (a *App) AddObserver(o Observer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, o)
}

// SetEnabled pauses or resumes volume control. Frames are still rendered.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
	a.logger.Info("volume control toggled", "enabled", enabled)
}

// IsEnabled returns whether volume control is active.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// LastReading returns the most recent reading, or nil if the last frame had no hand.
func (a *App) LastReading() *Reading {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.last == nil {
		return nil
	}
	r := *a.last
	return &r
}

// Run opens the camera and processes frames until ctx is cancelled or the
// display window is closed. Both are clean exits and return nil.
func (a *App) Run(ctx context.Context) error {
	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	defer a.camera.Close()

	a.logger.Info("frame loop started", "hand_index", a.handIndex)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("frame loop stopped")
			return nil
		default:
		}

		if err := a.Step(ctx); err != nil {
			if errors.Is(err, render.ErrWindowClosed) {
				a.logger.Info("window closed, stopping")
				return nil
			}
			return err
		}
	}
}

// Close releases the detector, endpoint and display.
func (a *App) Close() error {
	return errors.Join(
		a.detector.Close(),
		a.endpoint.Close(),
		a.display.Close(),
	)
}
