// Package current estimates load current from an analog current transducer.
// Sampling is time-bounded: the estimator reads as many samples as the ADC
// delivers within the window and converts the peak-to-peak spread to mA RMS.
package current

import (
	"time"

	"github.com/chewxy/math32"

	"github.com/sweeney/amperage-follower/internal/clock"
)

// PeakToPeakToRMS converts a sinusoid's peak-to-peak amplitude to RMS (~1/(2*sqrt(2))).
const PeakToPeakToRMS = 0.3536

// Sampler reads one raw ADC sample in [0, FullScaleCounts].
type Sampler interface {
	Read() (uint16, error)
}

// Flusher is implemented by samplers that buffer stale samples between windows.
type Flusher interface {
	Flush() error
}

// Config describes the transducer and sampling window.
type Config struct {
	SampleDuration    time.Duration
	FullScaleCounts   uint16
	MaxRatedMilliamps uint32
	PeakToPeakToRMS   float32
}

// DefaultConfig returns the settings for a 10-bit ADC and a 20 A transducer.
func DefaultConfig() Config {
	return Config{
		SampleDuration:    100 * time.Millisecond,
		FullScaleCounts:   1023,
		MaxRatedMilliamps: 20000,
		PeakToPeakToRMS:   PeakToPeakToRMS,
	}
}

// Measurement is the result of one sampling window.
type Measurement struct {
	Milliamps uint32
	Min       uint16 // meaningless when Samples == 0
	Max       uint16
	Spread    uint16
	Samples   int
	Errors    int
}

// Estimator samples a transducer over a fixed window.
type Estimator struct {
	cfg     Config
	sampler Sampler
	clock   clock.Clock
}

// NewEstimator creates an estimator reading from sampler, timed by clk.
func NewEstimator(cfg Config, sampler Sampler, clk clock.Clock) *Estimator {
	return &Estimator{cfg: cfg, sampler: sampler, clock: clk}
}

// Measure samples for the configured window and returns the milliamp estimate.
// A window with no samples yields 0 mA. Sampler errors skip the sample.
func (e *Estimator) Measure() Measurement {
	window := uint32(e.cfg.SampleDuration.Milliseconds())
	full := e.cfg.FullScaleCounts

	// Sentinels: the first sample always updates both.
	var hi uint16
	lo := uint32(full) + 1

	var m Measurement
	if f, ok := e.sampler.(Flusher); ok {
		if err := f.Flush(); err != nil {
			m.Errors++
		}
	}

	start := e.clock.Now()
	for e.clock.Now().Sub(start) < window {
		v, err := e.sampler.Read()
		if err != nil {
			m.Errors++
			continue
		}
		if v > full {
			v = full
		}
		if v > hi {
			hi = v
		}
		if uint32(v) < lo {
			lo = uint32(v)
		}
		m.Samples++
	}

	if m.Samples > 0 {
		m.Min = uint16(lo)
		m.Max = hi
		m.Spread = hi - uint16(lo)
	}
	m.Milliamps = e.cfg.ToMilliamps(m.Spread)
	return m
}

// ToMilliamps converts a peak-to-peak spread in ADC counts to milliamps RMS,
// truncated. Arithmetic is float32 to match the microcontroller build.
func (c Config) ToMilliamps(spread uint16) uint32 {
	if c.FullScaleCounts == 0 || spread == 0 {
		return 0
	}
	if spread > c.FullScaleCounts {
		spread = c.FullScaleCounts
	}
	ma := float32(spread) / float32(c.FullScaleCounts) * float32(c.MaxRatedMilliamps) * c.PeakToPeakToRMS
	if ma <= 0 {
		return 0
	}
	return uint32(math32.Floor(ma))
}
