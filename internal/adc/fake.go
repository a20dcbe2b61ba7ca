package adc

import "errors"

// FakeReader is a test double that returns scripted ADC samples.
type FakeReader struct {
	// Samples contains scripted raw values to return.
	// Each call to Read() consumes the next sample.
	Samples []uint16

	// index tracks current position in Samples
	index int

	// Reads counts successful calls to Read.
	Reads int

	// Flushes counts calls to Flush.
	Flushes int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples ...uint16) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample, cycling through Samples.
func (f *FakeReader) Read() (uint16, error) {
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if len(f.Samples) == 0 {
		return 0, errors.New("no samples configured")
	}

	v := f.Samples[f.index]
	f.index = (f.index + 1) % len(f.Samples)
	f.Reads++
	return v, nil
}

// Flush records the call.
func (f *FakeReader) Flush() error {
	f.Flushes++
	return nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds to the first sample and replaces the script if samples are given.
func (f *FakeReader) Reset(samples ...uint16) {
	if len(samples) > 0 {
		f.Samples = samples
	}
	f.index = 0
	f.Reads = 0
	f.Closed = false
}
