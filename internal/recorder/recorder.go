// Package recorder implements the append-only CSV sinks for per-cycle timing
// and for feature/label training rows.
package recorder

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/banshee-data/myolink/internal/classifier"
	"github.com/banshee-data/myolink/internal/features"
)

// Column headers of the two logs.
var (
	TimingHeader   = []string{"Time", "Prediction", "ProcessingTime(ms)"}
	TrainingHeader = []string{"MAV", "ZC", "SSC", "WL", "RMS", "Label"}
)

// TimingRecord is one row of the timing log.
type TimingRecord struct {
	Time           time.Time
	Prediction     classifier.Label
	ProcessingTime time.Duration
}

// Millis returns the processing time in fractional milliseconds.
func (r TimingRecord) Millis() float64 {
	return float64(r.ProcessingTime) / float64(time.Millisecond)
}

// TrainingRecord is one row of the training log.
type TrainingRecord struct {
	Features features.Vector
	Label    classifier.Label
}

// DefaultFlushEvery is the number of rows buffered before a flush.
const DefaultFlushEvery = 32

// csvLog is an append-only CSV file that writes its header only when the
// file is empty, so restarts accumulate history.
type csvLog struct {
	mu         sync.Mutex
	f          *os.File
	w          *csv.Writer
	flushEvery int
	pending    int
	rows       int
	closed     bool
}

func openCSVLog(path string, header []string, flushEvery int) (*csvLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat log %s: %w", path, err)
	}
	if flushEvery <= 0 {
		flushEvery = DefaultFlushEvery
	}

	l := &csvLog{f: f, w: csv.NewWriter(f), flushEvery: flushEvery}
	if info.Size() == 0 {
		if err := l.w.Write(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write header to %s: %w", path, err)
		}
		l.w.Flush()
		if err := l.w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write header to %s: %w", path, err)
		}
	}
	return l, nil
}

func (l *csvLog) append(row []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return os.ErrClosed
	}
	if err := l.w.Write(row); err != nil {
		return err
	}
	l.rows++
	l.pending++
	if l.pending >= l.flushEvery {
		l.pending = 0
		l.w.Flush()
		return l.w.Error()
	}
	return nil
}

func (l *csvLog) flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.pending = 0
	l.w.Flush()
	return l.w.Error()
}

func (l *csvLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rows
}

// close flushes and closes the file. It is safe to call more than once.
func (l *csvLog) close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	l.w.Flush()
	return errors.Join(l.w.Error(), l.f.Close())
}

// TimingLog records inference latency per cycle.
type TimingLog struct{ log *csvLog }

// OpenTimingLog opens or creates the timing log at path in append mode.
func OpenTimingLog(path string, flushEvery int) (*TimingLog, error) {
	l, err := openCSVLog(path, TimingHeader, flushEvery)
	if err != nil {
		return nil, err
	}
	return &TimingLog{log: l}, nil
}

// Append writes one row.
func (t *TimingLog) Append(r TimingRecord) error {
	return t.log.append([]string{
		r.Time.UTC().Format(time.RFC3339Nano),
		strconv.Itoa(int(r.Prediction)),
		strconv.FormatFloat(r.Millis(), 'f', 3, 64),
	})
}

// Rows returns the number of rows appended by this process.
func (t *TimingLog) Rows() int { return t.log.count() }

// Flush writes buffered rows to the file.
func (t *TimingLog) Flush() error { return t.log.flush() }

// Close flushes and closes the log.
func (t *TimingLog) Close() error { return t.log.close() }

// TrainingLog records feature vectors with their ground truth label.
type TrainingLog struct{ log *csvLog }

// OpenTrainingLog opens or creates the training log at path in append mode.
func OpenTrainingLog(path string, flushEvery int) (*TrainingLog, error) {
	l, err := openCSVLog(path, TrainingHeader, flushEvery)
	if err != nil {
		return nil, err
	}
	return &TrainingLog{log: l}, nil
}

// Append writes one row.
func (t *TrainingLog) Append(r TrainingRecord) error {
	v := r.Features
	return t.log.append([]string{
		strconv.FormatFloat(v.MAV(), 'g', -1, 64),
		strconv.Itoa(v.ZC()),
		strconv.Itoa(v.SSC()),
		strconv.FormatFloat(v.WL(), 'g', -1, 64),
		strconv.FormatFloat(v.RMS(), 'g', -1, 64),
		strconv.Itoa(int(r.Label)),
	})
}

// Rows returns the number of rows appended by this process.
func (t *TrainingLog) Rows() int { return t.log.count() }

// Flush writes buffered rows to the file.
func (t *TrainingLog) Flush() error { return t.log.flush() }

// Close flushes and closes the log.
func (t *TrainingLog) Close() error { return t.log.close() }
