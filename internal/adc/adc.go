// Package adc provides analog current-transducer samples with hardware abstraction.
// The real implementation reads a sample stream from a microcontroller ADC
// bridge over a serial port.
// The fake implementation allows testing without hardware.
package adc

// Reader reads raw ADC samples.
type Reader interface {
	// Read returns one raw sample in [0, full scale].
	Read() (uint16, error)

	// Close releases the underlying device.
	Close() error
}
