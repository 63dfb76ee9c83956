// Package volume maps finger counts to audio levels and applies them to the
// host's output device.
package volume

// Divisor and Multiplier define the count to level mapping. Five fingers map
// to full volume.
const (
	Divisor    = 10.0
	Multiplier = 2.0
)

// MaxCount is the largest finger count a hand can show.
const MaxCount = 5

// Level maps a finger count to a volume level in [0,1]. Counts outside
// [0, MaxCount] are clamped.
func Level(count int) float64 {
	if count < 0 {
		count = 0
	}
	if count > MaxCount {
		count = MaxCount
	}
	return float64(count) / Divisor * Multiplier
}
