package sensorlink

import (
	"io"
	"time"
)

// Port defines the minimal interface needed for a sensor serial port.
// This abstraction enables unit testing without real serial hardware.
type Port interface {
	io.ReadWriter
	io.Closer
}

// TimeoutPort extends Port with a read timeout. When the timeout elapses
// without data, Read returns 0 bytes and a nil error.
type TimeoutPort interface {
	Port
	SetReadTimeout(timeout time.Duration) error
}

// Opener opens the port at path with the given options.
type Opener func(path string, opts PortOptions) (Port, error)
