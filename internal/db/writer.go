package db

import (
	"context"
	"sync"

	"github.com/banshee-data/myolink/internal/monitoring"
)

// DefaultQueueSize bounds the number of cycles waiting to be written.
const DefaultQueueSize = 256

// Writer mirrors cycles to the database on a background goroutine so the
// acquisition loop never waits on disk. When the queue is full new cycles are
// dropped and reported through OnDrop.
type Writer struct {
	DB     *DB
	OnDrop func()

	queue   chan Cycle
	done    chan struct{}
	started sync.Once
	closing sync.Once
	mu      sync.RWMutex
	closed  bool
	err     error
}

func NewWriter(db *DB, queueSize int, onDrop func()) *Writer {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Writer{
		DB:     db,
		OnDrop: onDrop,
		queue:  make(chan Cycle, queueSize),
		done:   make(chan struct{}),
	}
}

// Start runs the writer loop in a goroutine.
func (w *Writer) Start() {
	w.started.Do(w.start)
}

func (w *Writer) start() {
	go func() {
		defer close(w.done)
		batch := make([]Cycle, 0, cap(w.queue))
		for c := range w.queue {
			batch = append(batch[:0], c)
			// gather whatever else is already waiting
		drain:
			for len(batch) < cap(batch) {
				select {
				case next, ok := <-w.queue:
					if !ok {
						break drain
					}
					batch = append(batch, next)
				default:
					break drain
				}
			}
			if err := w.DB.RecordCycles(context.Background(), batch); err != nil {
				monitoring.Logf("cycle mirror write failed (%d rows): %v", len(batch), err)
				w.mu.Lock()
				if w.err == nil {
					w.err = err
				}
				w.mu.Unlock()
			}
		}
	}()
}

// Enqueue hands a cycle to the writer without blocking. It reports whether
// the cycle was accepted.
func (w *Writer) Enqueue(c Cycle) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false
	}
	select {
	case w.queue <- c:
		return true
	default:
		if w.OnDrop != nil {
			w.OnDrop()
		}
		return false
	}
}

// Close stops accepting cycles, waits for queued ones to be written and
// returns the first write error seen.
func (w *Writer) Close() error {
	w.closing.Do(func() {
		// a writer that never started still has to release Close
		w.started.Do(func() { close(w.done) })
		w.mu.Lock()
		w.closed = true
		close(w.queue)
		w.mu.Unlock()
	})
	<-w.done
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.err
}
