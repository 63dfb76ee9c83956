// Package gesture turns detected hand landmarks into finger states.
package gesture

import (
	"math"

	"github.com/ayusman/fingervol/internal/detector"
)

// PixelPosition is a landmark scaled into the pixel space of one frame.
type PixelPosition struct {
	ID int `json:"id"`
	X  int `json:"x"`
	Y  int `json:"y"`
}

// Positions scales a hand's normalized landmarks to pixel coordinates for a
// frame of the given size. The result is ordered by landmark id. A nil hand or
// a non-positive frame size yields an empty slice.
func Positions(hand *detector.HandLandmarks, width, height int) []PixelPosition {
	if hand == nil || width <= 0 || height <= 0 {
		return []PixelPosition{}
	}

	positions := make([]PixelPosition, detector.NumLandmarks)
	for id, p := range hand.Points {
		positions[id] = PixelPosition{
			ID: id,
			X:  int(math.Round(p.X * float64(width))),
			Y:  int(math.Round(p.Y * float64(height))),
		}
	}
	return positions
}

// SelectHand returns the pixel positions of hands[index]. When no hand exists
// at that index the result is empty, which callers treat as "no hand in view".
func SelectHand(hands []detector.HandLandmarks, index, width, height int) []PixelPosition {
	if index < 0 || index >= len(hands) {
		return []PixelPosition{}
	}
	return Positions(&hands[index], width, height)
}
