package modem

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.bug.st/serial"
)

// Transport represents an established, bidirectional byte stream to a GSM modem.
//
// A Transport is assumed to be already connected and ready for use. It provides
// the low-level I/O primitives required to send AT commands and receive responses.
// Typical implementations include serial ports, TCP connections to emulators,
// or in-memory fakes used for testing.
type Transport interface {
	io.ReadWriteCloser
}

// Dialer opens a Transport to a GSM modem.
//
// Dialer abstracts how the modem connection is created (for example, via a
// serial port, TCP-based emulator, or test double) and is intended to be used
// during modem construction only. Once a Transport is obtained, the Dialer is
// no longer needed.
type Dialer interface {
	// Dial is responsible for creating and returning a connected Transport. It may
	// perform blocking operations and should respect cancellation and deadlines
	// provided by the context. Dial returns an error if the transport cannot be
	// established.
	Dial(ctx context.Context) (Transport, error)
}

// DefaultMode is the line setting used when SerialDialer.Mode is nil: 115200
// baud, 8 data bits, no parity, one stop bit.
var DefaultMode = serial.Mode{
	BaudRate: 115200,
	DataBits: 8,
	Parity:   serial.NoParity,
	StopBits: serial.OneStopBit,
}

// SerialDialer opens a GSM modem over a serial port using go.bug.st/serial.
//
// Reads on the returned Transport block until data arrives, which is what the
// Loop scanner expects. Closing the Transport unblocks a pending read.
type SerialDialer struct {
	// PortName is the device path, e.g. "/dev/ttyS0" or "/dev/ttyUSB0".
	PortName string
	// Mode overrides DefaultMode when set.
	Mode *serial.Mode
}

// Dial opens the configured port.
func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if d.PortName == "" {
		return nil, errors.New("gsm: serial port name is required")
	}
	if ctx == nil {
		return nil, errors.New("gsm: context is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := DefaultMode
	if d.Mode != nil {
		mode = *d.Mode
	}

	port, err := serial.Open(d.PortName, &mode)
	if err != nil {
		return nil, fmt.Errorf("gsm: open serial port %s: %w", d.PortName, err)
	}

	// Dial may have been cancelled while the port was opening.
	if err := ctx.Err(); err != nil {
		_ = port.Close()
		return nil, err
	}

	return port, nil
}
