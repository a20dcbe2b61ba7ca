package clock

import "github.com/sweeney/amperage-follower/internal/logic"

// Fake is a test double that returns scripted ticks.
// Each call to Now() returns the current tick and then advances it by Step.
type Fake struct {
	// Current is the tick returned by the next call to Now().
	Current logic.Timestamp

	// Step is added to Current after every call.
	Step uint32

	// Calls counts calls to Now().
	Calls int
}

// NewFake creates a Fake starting at start that advances step ms per call.
func NewFake(start logic.Timestamp, step uint32) *Fake {
	return &Fake{Current: start, Step: step}
}

// Now returns the current tick and advances the clock.
func (f *Fake) Now() logic.Timestamp {
	t := f.Current
	f.Current += logic.Timestamp(f.Step)
	f.Calls++
	return t
}

// Set moves the clock to ts.
func (f *Fake) Set(ts logic.Timestamp) {
	f.Current = ts
}
