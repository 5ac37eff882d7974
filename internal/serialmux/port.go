package serialmux

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"go.bug.st/serial"
)

// SerialPorter is the part of a serial port the mux needs.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

// PortOpener opens path with the given line settings.
type PortOpener func(path string, opts PortOptions) (SerialPorter, error)

const (
	// DefaultBaudRate is the pointer device's factory baud rate.
	DefaultBaudRate = 115200
	// DefaultFraming is eight data bits, no parity, one stop bit.
	DefaultFraming = "8N1"
)

var baudRates = []int{9600, 19200, 38400, 57600, 115200, 230400, 460800, 921600}

var parities = map[byte]serial.Parity{
	'N': serial.NoParity,
	'E': serial.EvenParity,
	'O': serial.OddParity,
	'M': serial.MarkParity,
	'S': serial.SpaceParity,
}

// PortOptions are the line settings for a pointer device. Framing uses the
// usual data-bits/parity/stop-bits shorthand, e.g. "8N1" or "7E2".
type PortOptions struct {
	BaudRate int    `json:"baud_rate"`
	Framing  string `json:"framing"`
}

// Mode validates o and converts it for serial.Open. Zero values take the
// defaults.
func (o PortOptions) Mode() (*serial.Mode, error) {
	baud := o.BaudRate
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	if !slices.Contains(baudRates, baud) {
		return nil, fmt.Errorf("unsupported baud rate %d", baud)
	}
	mode, err := ParseFraming(o.Framing)
	if err != nil {
		return nil, err
	}
	mode.BaudRate = baud
	return mode, nil
}

// ParseFraming parses a framing shorthand such as "8N1". An empty string
// yields DefaultFraming. BaudRate is left unset.
func ParseFraming(s string) (*serial.Mode, error) {
	f := strings.ToUpper(strings.TrimSpace(s))
	if f == "" {
		f = DefaultFraming
	}
	if len(f) != 3 {
		return nil, fmt.Errorf("invalid framing %q: want e.g. 8N1", s)
	}
	bits := int(f[0] - '0')
	if bits < 5 || bits > 8 {
		return nil, fmt.Errorf("invalid framing %q: data bits must be 5-8", s)
	}
	parity, ok := parities[f[1]]
	if !ok {
		return nil, fmt.Errorf("invalid framing %q: parity must be one of N, E, O, M, S", s)
	}
	mode := &serial.Mode{DataBits: bits, Parity: parity}
	switch f[2] {
	case '1':
		mode.StopBits = serial.OneStopBit
	case '2':
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("invalid framing %q: stop bits must be 1 or 2", s)
	}
	return mode, nil
}

func openSerial(path string, opts PortOptions) (SerialPorter, error) {
	mode, err := opts.Mode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return port, nil
}

// OpenPort opens the serial device at path and wraps it in a SerialMux.
func OpenPort(path string, opts PortOptions) (*SerialMux[SerialPorter], error) {
	return OpenPortWith(path, opts, openSerial)
}

// OpenPortWith is OpenPort with a caller-supplied opener. Options are
// validated before open is called.
func OpenPortWith(path string, opts PortOptions, open PortOpener) (*SerialMux[SerialPorter], error) {
	if _, err := opts.Mode(); err != nil {
		return nil, err
	}
	port, err := open(path, opts)
	if err != nil {
		return nil, err
	}
	return NewSerialMux(port), nil
}
