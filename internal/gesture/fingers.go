package gesture

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ayusman/fingervol/internal/detector"
)

// ErrMalformedPositions is returned by Classify when the input is not the
// 21 ordered positions produced by Positions.
var ErrMalformedPositions = errors.New("malformed landmark positions")

// Finger identifies one digit. The order is the evaluation order.
type Finger int

const (
	Thumb Finger = iota
	Index
	Middle
	Ring
	Pinky
	NumFingers
)

var fingerNames = [NumFingers]string{"thumb", "index", "middle", "ring", "pinky"}

func (f Finger) String() string {
	if f < 0 || f >= NumFingers {
		return fmt.Sprintf("finger(%d)", int(f))
	}
	return fingerNames[f]
}

// Axis is the pixel coordinate a rule compares.
type Axis int

const (
	AxisX Axis = iota
	AxisY
)

// Direction is the strict comparison a rule applies to tip versus reference.
type Direction int

const (
	// Greater means extended when tip > reference.
	Greater Direction = iota
	// Less means extended when tip < reference.
	Less
)

// Rule is one row of the extension table.
type Rule struct {
	Finger    Finger
	Tip       int
	Reference int
	Axis      Axis
	Direction Direction
}

// Rules is the fixed extension heuristic, evaluated in order.
//
// The non-thumb rules only check that the tip is above the PIP joint on screen
// (image y grows downward), so a rotated or sideways hand is misread. The thumb
// rule assumes a right hand facing the camera unmirrored; a left or mirrored
// hand reads inverted. Both behaviours are kept as-is.
var Rules = [NumFingers]Rule{
	{Finger: Thumb, Tip: detector.ThumbTip, Reference: detector.ThumbTip - 1, Axis: AxisX, Direction: Greater},
	{Finger: Index, Tip: detector.IndexTip, Reference: detector.IndexTip - 2, Axis: AxisY, Direction: Less},
	{Finger: Middle, Tip: detector.MiddleTip, Reference: detector.MiddleTip - 2, Axis: AxisY, Direction: Less},
	{Finger: Ring, Tip: detector.RingTip, Reference: detector.RingTip - 2, Axis: AxisY, Direction: Less},
	{Finger: Pinky, Tip: detector.PinkyTip, Reference: detector.PinkyTip - 2, Axis: AxisY, Direction: Less},
}

// Extended applies the rule to a tip and reference position.
func (r Rule) Extended(tip, ref PixelPosition) bool {
	a, b := tip.X, ref.X
	if r.Axis == AxisY {
		a, b = tip.Y, ref.Y
	}
	if r.Direction == Greater {
		return a > b
	}
	return a < b
}

// FingerState holds one extended flag per finger, thumb first.
type FingerState [NumFingers]bool

// Count returns the number of extended fingers.
func (s FingerState) Count() int {
	n := 0
	for _, up := range s {
		if up {
			n++
		}
	}
	return n
}

// String renders the state as five 0/1 digits, thumb first.
func (s FingerState) String() string {
	var b strings.Builder
	for _, up := range s {
		if up {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// Classify decides which fingers are extended from the 21 pixel positions of
// one hand. It has no state; the same input always yields the same output.
func Classify(positions []PixelPosition) (FingerState, error) {
	var state FingerState

	if len(positions) != detector.NumLandmarks {
		return state, fmt.Errorf("got %d positions, want %d: %w", len(positions), detector.NumLandmarks, ErrMalformedPositions)
	}
	for i, p := range positions {
		if p.ID != i {
			return state, fmt.Errorf("position %d has id %d: %w", i, p.ID, ErrMalformedPositions)
		}
	}

	for _, rule := range Rules {
		state[rule.Finger] = rule.Extended(positions[rule.Tip], positions[rule.Reference])
	}
	return state, nil
}

// MarshalText encodes the state as its digit string.
func (s FingerState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a digit string produced by MarshalText.
func (s *FingerState) UnmarshalText(text []byte) error {
	if len(text) != int(NumFingers) {
		return fmt.Errorf("finger state %q: want %d digits", text, NumFingers)
	}
	var out FingerState
	for i, c := range text {
		switch c {
		case '0':
		case '1':
			out[i] = true
		default:
			return fmt.Errorf("finger state %q: invalid digit %q", text, c)
		}
	}
	*s = out
	return nil
}
