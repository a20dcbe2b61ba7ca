//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/amperage-follower/internal/logic"
)

// RealWriter drives outputs on actual hardware using Linux GPIO character device.
type RealWriter struct {
	chip  *gpiocdev.Chip
	lines *gpiocdev.Lines
}

// NewRealWriter requests the output lines on the named chip (e.g. "gpiochip0"),
// all initially inactive.
func NewRealWriter(chipName string, pins Pins) (*RealWriter, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer("amperage-follower"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	lines, err := chip.RequestLines(pins.Offsets(), gpiocdev.AsOutput(0, 0, 0, 0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request output pins %v: %w", pins.Offsets(), err)
	}

	return &RealWriter{
		chip:  chip,
		lines: lines,
	}, nil
}

// Write sets all four outputs in a single request.
func (r *RealWriter) Write(out logic.Outputs) error {
	if err := r.lines.SetValues(Levels(out)); err != nil {
		return fmt.Errorf("set output pins: %w", err)
	}
	return nil
}

// Close releases GPIO resources.
// Drives every output low and reconfigures the lines to input with pull-down
// (matching Pi boot defaults) so no relay is left energized after exit.
func (r *RealWriter) Close() error {
	var errs []error

	if r.lines != nil {
		if err := r.lines.SetValues(Levels(logic.Outputs{})); err != nil {
			errs = append(errs, fmt.Errorf("drive outputs low: %w", err))
		}
		if err := r.lines.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pins: %w", err))
		}
		if err := r.lines.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pins: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
