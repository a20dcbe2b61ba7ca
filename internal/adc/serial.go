package adc

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate matches the ADC bridge firmware.
	DefaultBaudRate = 115200
	// DefaultReadTimeout is how long a single port read waits for data.
	DefaultReadTimeout = 50 * time.Millisecond

	// maxLineLen bounds a line without a terminator before it is discarded.
	maxLineLen = 32
)

// ErrNoData is returned when the bridge sent nothing within the read timeout.
var ErrNoData = errors.New("adc: no data")

// port is the part of serial.Port the reader uses.
type port interface {
	Read(p []byte) (int, error)
	ResetInputBuffer() error
	Close() error
}

// SerialReader reads newline-terminated decimal samples streamed by the
// ADC bridge firmware, one sample per line.
//
// The stream has no framing beyond the newline, so after opening, flushing
// or a read error the reader drops everything up to the next '\n' before
// parsing again.
type SerialReader struct {
	port    port
	pending []byte
	chunk   [64]byte
	resync  bool
}

// NewSerialReader opens the bridge on the given serial port.
func NewSerialReader(portName string, baudRate int) (*SerialReader, error) {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	p, err := serial.Open(portName, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portName, err)
	}
	if err := p.SetReadTimeout(DefaultReadTimeout); err != nil {
		p.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return newSerialReader(p), nil
}

func newSerialReader(p port) *SerialReader {
	return &SerialReader{port: p, resync: true}
}

// Ports lists the serial ports available on this host.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}

// Read returns the next sample from the stream. It waits for at most one
// port read timeout and returns ErrNoData if nothing arrived in that time.
func (s *SerialReader) Read() (uint16, error) {
	for {
		if i := bytes.IndexByte(s.pending, '\n'); i >= 0 {
			line := string(s.pending[:i+1])
			s.pending = append(s.pending[:0], s.pending[i+1:]...)
			if s.resync {
				s.resync = false
				continue
			}
			return ParseSample(line)
		}
		if len(s.pending) > maxLineLen {
			s.discard()
		}

		// go.bug.st/serial reports a timeout as a zero-length read.
		n, err := s.port.Read(s.chunk[:])
		s.pending = append(s.pending, s.chunk[:n]...)
		if err != nil {
			s.discard()
			return 0, fmt.Errorf("read sample: %w", err)
		}
		if n == 0 {
			return 0, ErrNoData
		}
	}
}

// Flush discards samples buffered since the last measurement window.
func (s *SerialReader) Flush() error {
	s.discard()
	if err := s.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("reset input buffer: %w", err)
	}
	return nil
}

// discard drops pending bytes; the next line is likely cut and is skipped.
func (s *SerialReader) discard() {
	s.pending = s.pending[:0]
	s.resync = true
}

// Close closes the serial port.
func (s *SerialReader) Close() error {
	return s.port.Close()
}

// ParseSample parses one bridge line.
func ParseSample(line string) (uint16, error) {
	line = strings.TrimSpace(line)
	v, err := strconv.ParseUint(line, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("parse sample %q: %w", line, err)
	}
	return uint16(v), nil
}
