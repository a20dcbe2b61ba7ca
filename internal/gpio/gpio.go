// Package gpio provides relay and indicator outputs with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "github.com/sweeney/amperage-follower/internal/logic"

// Writer drives the relay and indicator outputs.
type Writer interface {
	// Write sets all four outputs. true = active (high).
	Write(out logic.Outputs) error

	// Close drives all outputs inactive and releases GPIO resources.
	Close() error
}

// Pins holds the BCM line offsets of the four outputs.
type Pins struct {
	FollowerRelay int
	FollowerLED   int
	EventRelay    int
	EventLED      int
}

// Default pin assignments (BCM numbering)
const (
	DefaultPinFollowerRelay = 17
	DefaultPinFollowerLED   = 27
	DefaultPinEventRelay    = 22
	DefaultPinEventLED      = 23
)

// DefaultPins returns the default wiring.
func DefaultPins() Pins {
	return Pins{
		FollowerRelay: DefaultPinFollowerRelay,
		FollowerLED:   DefaultPinFollowerLED,
		EventRelay:    DefaultPinEventRelay,
		EventLED:      DefaultPinEventLED,
	}
}

// Offsets returns the pins in the order used by Levels.
func (p Pins) Offsets() []int {
	return []int{p.FollowerRelay, p.FollowerLED, p.EventRelay, p.EventLED}
}

// Levels converts outputs to raw line values in Offsets order.
func Levels(out logic.Outputs) []int {
	return []int{level(out.FollowerRelay), level(out.FollowerLED), level(out.EventRelay), level(out.EventLED)}
}

func level(active bool) int {
	if active {
		return 1
	}
	return 0
}
