// Package serialport owns the scoreboard's serial connection: opening and
// replacing the device handle, bounded polling reads, and port listing.
package serialport

import (
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Known baud rates. Each scoreboard hardware revision runs at one of these;
// there is no auto-detection.
const (
	Baud115200 = 115200
	Baud9600   = 9600
)

var (
	ErrHandleClosed    = errors.New("serialport: handle closed")
	ErrUnsupportedBaud = errors.New("serialport: unsupported baud rate")
)

// ValidBaud reports whether baud is one of the known hardware profiles.
func ValidBaud(baud int) bool {
	return baud == Baud115200 || baud == Baud9600
}

// Port is the subset of a serial device the reader needs. A Read that times
// out with no data returns (0, nil).
type Port interface {
	io.Reader
	io.Closer
}

// Opener opens a device. Tests and the demo source substitute their own.
type Opener func(name string, baud int, readTimeout time.Duration) (Port, error)

// SerialOpener opens real hardware, 8N1 with no flow control.
func SerialOpener(name string, baud int, readTimeout time.Duration) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("reset input buffer: %w", err)
	}
	return port, nil
}

// ConnectionError reports an open or read failure on a named port. It is
// recoverable: the caller reports it and keeps running.
type ConnectionError struct {
	Op   string // "open" or "read"
	Port string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("serialport: %s %s: %v", e.Op, e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
