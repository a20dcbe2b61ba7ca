// Package clock provides the millisecond tick source used by the control loop.
// The real implementation wraps the host monotonic clock.
// The fake implementation allows deterministic tests.
package clock

import (
	"time"

	"github.com/sweeney/amperage-follower/internal/logic"
)

// Clock returns a monotonically increasing millisecond counter that wraps at 32 bits.
type Clock interface {
	Now() logic.Timestamp
}

// Monotonic counts milliseconds since it was created, like a microcontroller's
// millis() counter. It wraps after ~49.7 days.
type Monotonic struct {
	start time.Time
}

// NewMonotonic creates a clock starting at 0.
func NewMonotonic() *Monotonic {
	return &Monotonic{start: time.Now()}
}

// Now returns the elapsed milliseconds, truncated to 32 bits.
func (m *Monotonic) Now() logic.Timestamp {
	return logic.Timestamp(uint32(time.Since(m.start).Milliseconds()))
}

// Wall converts a tick back to wall-clock time, assuming it belongs to the
// current wrap period.
func (m *Monotonic) Wall(ts logic.Timestamp) time.Time {
	now := m.Now()
	back := time.Duration(now.Sub(ts)) * time.Millisecond
	return time.Now().Add(-back)
}
