// Package render draws the volume overlay onto camera frames and shows them.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strconv"

	"github.com/ayusman/fingervol/internal/detector"
	"github.com/ayusman/fingervol/internal/gesture"
	"github.com/lucasb-eyer/go-colorful"
	"gocv.io/x/gocv"
)

// Fixed overlay geometry in frame pixels.
var (
	LevelBox     = image.Rect(20, 225, 170, 425)
	LevelOrigin  = image.Pt(45, 375)
	CaptionText  = "volume level"
	CaptionPoint = image.Pt(34, 275)
)

const (
	levelScale       = 4.0
	levelThickness   = 8
	captionScale     = 1.3
	captionThickness = 2
	landmarkRadius   = 4
	connectionWidth  = 2
)

// Options configures the overlay colours as hex strings such as "#00ff00".
type Options struct {
	Landmarks       bool
	BoxColor        string
	TextColor       string
	LandmarkColor   string
	ConnectionColor string
}

// DefaultOptions returns a green box with blue text and a red landmark skeleton.
func DefaultOptions() Options {
	return Options{
		Landmarks:       true,
		BoxColor:        "#00ff00",
		TextColor:       "#0000ff",
		LandmarkColor:   "#ff0000",
		ConnectionColor: "#e0e0e0",
	}
}

// Annotation is what gets drawn on one frame.
type Annotation struct {
	// Hands holds the pixel positions of every detected hand.
	Hands [][]gesture.PixelPosition
	// HasLevel is false when no hand was selected; the level box is then skipped.
	HasLevel bool
	Level    float64
}

// Renderer draws annotations in place.
type Renderer struct {
	landmarks  bool
	box        color.RGBA
	text       color.RGBA
	landmark   color.RGBA
	connection color.RGBA
}

// NewRenderer parses the colours in opts.
func NewRenderer(opts Options) (*Renderer, error) {
	r := &Renderer{landmarks: opts.Landmarks}

	var errs []error
	for _, c := range []struct {
		name string
		hex  string
		dst  *color.RGBA
	}{
		{"box", opts.BoxColor, &r.box},
		{"text", opts.TextColor, &r.text},
		{"landmark", opts.LandmarkColor, &r.landmark},
		{"connection", opts.ConnectionColor, &r.connection},
	} {
		rgba, err := ParseColor(c.hex)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s colour: %w", c.name, err))
			continue
		}
		*c.dst = rgba
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

// ParseColor parses a hex colour into an opaque RGBA value.
func ParseColor(hex string) (color.RGBA, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{}, err
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

// FormatLevel renders a level with one decimal place, e.g. "0.6".
func FormatLevel(level float64) string {
	return strconv.FormatFloat(level, 'f', 1, 64)
}

// Draw paints the landmark skeleton of every hand and, when a level is
// present, the filled level box with its value and caption.
func (r *Renderer) Draw(frame *gocv.Mat, a Annotation) {
	if frame == nil || frame.Empty() {
		return
	}

	if r.landmarks {
		for _, hand := range a.Hands {
			r.drawHand(frame, hand)
		}
	}

	if !a.HasLevel {
		return
	}

	gocv.Rectangle(frame, LevelBox, r.box, -1)
	gocv.PutText(frame, FormatLevel(a.Level), LevelOrigin, gocv.FontHersheyPlain, levelScale, r.text, levelThickness)
	gocv.PutText(frame, CaptionText, CaptionPoint, gocv.FontHersheyPlain, captionScale, r.text, captionThickness)
}

func (r *Renderer) drawHand(frame *gocv.Mat, hand []gesture.PixelPosition) {
	if len(hand) != detector.NumLandmarks {
		return
	}
	for _, c := range detector.Connections {
		a, b := hand[c[0]], hand[c[1]]
		gocv.Line(frame, image.Pt(a.X, a.Y), image.Pt(b.X, b.Y), r.connection, connectionWidth)
	}
	for _, p := range hand {
		gocv.Circle(frame, image.Pt(p.X, p.Y), landmarkRadius, r.landmark, -1)
	}
}
