// Package sensorlink owns the serial connection to the EMG sensor and frames
// the byte stream into fixed-size sample windows.
package sensorlink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/myolink/internal/timeutil"
)

var (
	// ErrReadTimeout is returned when a full window did not arrive within
	// the configured read timeout. The partial window is discarded.
	ErrReadTimeout = errors.New("sensor read timed out")

	// ErrClosed is returned when reading from a link that is not open.
	ErrClosed = errors.New("sensor link closed")
)

// Config describes the sensor connection.
type Config struct {
	Path        string
	Options     PortOptions
	WindowSize  int
	ReadTimeout time.Duration
}

// Link is a reopenable connection to the sensor. ReadWindow is meant to be
// called from a single goroutine; Close may be called from any goroutine to
// unblock a pending read.
type Link struct {
	cfg   Config
	open  Opener
	clock timeutil.Clock

	mu   sync.Mutex
	port Port
}

// New creates an unopened link. A nil clock uses the real clock.
func New(cfg Config, open Opener, clock timeutil.Clock) *Link {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Link{cfg: cfg, open: open, clock: clock}
}

// Path returns the configured port path.
func (l *Link) Path() string { return l.cfg.Path }

// Open connects to the sensor, closing any previous connection first.
func (l *Link) Open() error {
	if l.cfg.WindowSize <= 0 {
		return fmt.Errorf("invalid window size %d", l.cfg.WindowSize)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.port != nil {
		_ = l.port.Close()
		l.port = nil
	}

	port, err := l.open(l.cfg.Path, l.cfg.Options)
	if err != nil {
		return err
	}

	if l.cfg.ReadTimeout > 0 {
		if tp, ok := port.(TimeoutPort); ok {
			if err := tp.SetReadTimeout(l.cfg.ReadTimeout); err != nil {
				_ = port.Close()
				return fmt.Errorf("failed to set read timeout: %w", err)
			}
		}
	}

	l.port = port
	return nil
}

// ReadWindow blocks until exactly WindowSize bytes have been read and
// returns them in a newly allocated buffer.
//
// With a read timeout configured, the whole window must arrive within that
// timeout; otherwise ErrReadTimeout is returned. Any other error means the
// transport failed and the link should be reopened.
func (l *Link) ReadWindow(ctx context.Context) ([]byte, error) {
	l.mu.Lock()
	port := l.port
	l.mu.Unlock()
	if port == nil {
		return nil, ErrClosed
	}

	buf := make([]byte, l.cfg.WindowSize)
	start := l.clock.Now()
	filled := 0
	for filled < len(buf) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := port.Read(buf[filled:])
		filled += n
		if err != nil {
			return nil, fmt.Errorf("sensor read failed after %d of %d bytes: %w", filled, len(buf), err)
		}
		if filled == len(buf) {
			break
		}
		if n == 0 {
			return nil, ErrReadTimeout
		}
		if l.cfg.ReadTimeout > 0 && l.clock.Since(start) > l.cfg.ReadTimeout {
			return nil, ErrReadTimeout
		}
	}
	return buf, nil
}

// Close closes the underlying port. It is safe to call more than once.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.port == nil {
		return nil
	}
	err := l.port.Close()
	l.port = nil
	return err
}
