package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ayusman/fingervol/internal/gesture"
	"github.com/ayusman/fingervol/internal/render"
	"github.com/ayusman/fingervol/internal/volume"
)

// Step processes exactly one frame:
//
//  1. Read a frame from the camera
//  2. Detect hand landmarks
//  3. Select the configured hand and scale it to pixels
//  4. Classify the fingers and map the count to a level
//  5. Apply the level, unless paused
//  6. Draw the overlay, display the frame and notify observers
//
// A frame without a hand skips 4 and 5 and is displayed without the level box.
// Camera failures and classifier contract violations are returned; detector
// and endpoint failures are logged and the loop carries on.
func (a *App) Step(ctx context.Context) error {
	start := time.Now()

	frame, err := a.camera.ReadFrame()
	if err != nil {
		return fmt.Errorf("read frame: %w", err)
	}
	defer frame.Close()

	width, height := frame.Cols(), frame.Rows()

	hands, err := a.detector.Detect(frame)
	if err != nil {
		a.logger.Warn("hand detection failed", "error", err)
		if a.metrics != nil {
			a.metrics.IncDetectErrors()
		}
		hands = nil
	}

	annotation := render.Annotation{}
	for i := range hands {
		annotation.Hands = append(annotation.Hands, gesture.Positions(&hands[i], width, height))
	}

	var reading *Reading
	if positions := gesture.SelectHand(hands, a.handIndex, width, height); len(positions) > 0 {
		reading, err = a.apply(ctx, positions)
		if err != nil {
			return err
		}
		annotation.HasLevel = true
		annotation.Level = reading.Level
	}

	a.renderer.Draw(frame, annotation)

	a.mu.Lock()
	a.last = reading
	observers := a.observers
	a.mu.Unlock()

	if err := a.display.Show(frame); err != nil {
		return err
	}

	for _, o := range observers {
		o.ObserveFrame(frame, reading)
	}

	if a.metrics != nil {
		a.metrics.ObserveFrame(time.Since(start))
	}
	return nil
}

// apply classifies one hand and sends its level to the endpoint.
func (a *App) apply(ctx context.Context, positions []gesture.PixelPosition) (*Reading, error) {
	state, err := gesture.Classify(positions)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	count := state.Count()
	reading := &Reading{
		Fingers:   state,
		Count:     count,
		Level:     volume.Level(count),
		Positions: positions,
		Timestamp: time.Now(),
	}
	if a.metrics != nil {
		a.metrics.IncHandsDetected(count)
	}

	if !a.IsEnabled() {
		return reading, nil
	}

	err = a.endpoint.SetLevel(ctx, reading.Level)
	if a.metrics != nil {
		a.metrics.ObserveVolumeSet(reading.Level, err)
	}
	if err != nil {
		a.logger.Warn("set volume failed", "level", reading.Level, "error", err)
		return reading, nil
	}

	reading.Applied = true
	a.logger.Debug("volume set", "fingers", state.String(), "count", count, "level", reading.Level)
	return reading, nil
}
