package gpio

import "github.com/sweeney/amperage-follower/internal/logic"

// FakeWriter is a test double that records output writes.
type FakeWriter struct {
	// Writes contains every output set passed to Write, in order.
	Writes []logic.Outputs

	// Closed tracks if Close was called
	Closed bool

	// WriteError, if set, will be returned by Write()
	WriteError error
}

// NewFakeWriter creates a FakeWriter.
func NewFakeWriter() *FakeWriter {
	return &FakeWriter{}
}

// Write records the outputs.
func (f *FakeWriter) Write(out logic.Outputs) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Writes = append(f.Writes, out)
	return nil
}

// Last returns the most recently written outputs, or all-inactive if none.
func (f *FakeWriter) Last() logic.Outputs {
	if len(f.Writes) == 0 {
		return logic.Outputs{}
	}
	return f.Writes[len(f.Writes)-1]
}

// Close drives all outputs inactive and marks the writer as closed.
func (f *FakeWriter) Close() error {
	f.Writes = append(f.Writes, logic.Outputs{})
	f.Closed = true
	return nil
}

// Reset clears recorded writes.
func (f *FakeWriter) Reset() {
	f.Writes = nil
	f.Closed = false
	f.WriteError = nil
}
