// Package acquisition runs the sense, classify, act cycle against the EMG
// sensor and records every cycle for latency analysis and retraining.
package acquisition

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/banshee-data/myolink/internal/actuator"
	"github.com/banshee-data/myolink/internal/classifier"
	"github.com/banshee-data/myolink/internal/db"
	"github.com/banshee-data/myolink/internal/features"
	"github.com/banshee-data/myolink/internal/monitoring"
	"github.com/banshee-data/myolink/internal/recorder"
	"github.com/banshee-data/myolink/internal/sensorlink"
	"github.com/banshee-data/myolink/internal/timeutil"
)

const (
	DefaultInitialBackoff = 250 * time.Millisecond
	DefaultMaxBackoff     = 5 * time.Second

	timeoutWarnEvery = 5 * time.Second
)

// SensorLink is the part of sensorlink.Link the loop drives.
type SensorLink interface {
	Path() string
	Open() error
	ReadWindow(ctx context.Context) ([]byte, error)
	Close() error
}

// Mirror receives a copy of every cycle without blocking the loop.
type Mirror interface {
	Enqueue(c db.Cycle) bool
	Close() error
}

// Deps are the handles owned by a Loop. The loop closes the logs, the mirror
// and the link when Run returns.
type Deps struct {
	Link        SensorLink
	Classifier  classifier.Classifier
	Dispatcher  *actuator.Dispatcher
	TimingLog   *recorder.TimingLog
	TrainingLog *recorder.TrainingLog

	// Optional.
	Decode  features.Decoder
	Labels  recorder.LabelSource
	Mirror  Mirror
	Clock   timeutil.Clock
	Logger  *zap.Logger
	Metrics *monitoring.Metrics
}

// Options tune fault handling.
type Options struct {
	// MaxAttempts is the number of reconnects tried after a transport
	// fault. Zero ends the run on the first fault.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// SessionID tags mirrored cycles.
	SessionID string
}

// Loop is a single-goroutine acquisition cycle.
type Loop struct {
	deps Deps
	opts Options

	state  atomic.Int32
	cycles atomic.Uint64

	timeoutWarn *rate.Limiter
	skipped     int
}

// New checks the required handles and fills in defaults for the optional ones.
func New(deps Deps, opts Options) (*Loop, error) {
	switch {
	case deps.Link == nil:
		return nil, errors.New("acquisition: sensor link is required")
	case deps.Classifier == nil:
		return nil, errors.New("acquisition: classifier is required")
	case deps.Dispatcher == nil:
		return nil, errors.New("acquisition: dispatcher is required")
	case deps.TimingLog == nil || deps.TrainingLog == nil:
		return nil, errors.New("acquisition: timing and training logs are required")
	}
	if deps.Decode == nil {
		deps.Decode = features.FromBytes
	}
	if deps.Labels == nil {
		deps.Labels = recorder.ConstantLabel(0)
	}
	if deps.Clock == nil {
		deps.Clock = timeutil.RealClock{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = monitoring.NewMetrics()
	}
	if opts.MaxAttempts < 0 {
		opts.MaxAttempts = 0
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = DefaultInitialBackoff
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		opts.MaxBackoff = max(DefaultMaxBackoff, opts.InitialBackoff)
	}

	return &Loop{
		deps:        deps,
		opts:        opts,
		timeoutWarn: rate.NewLimiter(rate.Every(timeoutWarnEvery), 1),
	}, nil
}

// State returns the current lifecycle state.
func (l *Loop) State() State { return State(l.state.Load()) }

// Cycles returns the number of completed cycles.
func (l *Loop) Cycles() uint64 { return l.cycles.Load() }

func (l *Loop) setState(s State) {
	prev := State(l.state.Swap(int32(s)))
	if prev != s {
		l.deps.Logger.Debug("acquisition state", zap.Stringer("from", prev), zap.Stringer("to", s))
	}
}

// Run connects to the sensor and cycles until ctx is cancelled or the
// sensor link fails for good. Cancellation is a clean stop and returns nil.
// Whatever the outcome, the logs, the mirror and the link are closed before
// Run returns.
func (l *Loop) Run(ctx context.Context) (err error) {
	log := l.deps.Logger

	// closing the link unblocks a read in progress
	stop := context.AfterFunc(ctx, func() { _ = l.deps.Link.Close() })
	defer stop()

	defer func() {
		err = errors.Join(err, l.drain())
	}()

	l.setState(Connecting)
	if err := l.deps.Link.Open(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to open sensor %s: %w", l.deps.Link.Path(), err)
	}
	log.Info("sensor connected", zap.String("port", l.deps.Link.Path()))

	l.setState(Running)
	for {
		err := l.cycle(ctx)
		switch {
		case err == nil:
			continue
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, sensorlink.ErrReadTimeout):
			l.readTimedOut()
			continue
		case errors.Is(err, errLog):
			return err
		}

		log.Warn("sensor transport fault", zap.Error(err))
		if l.opts.MaxAttempts == 0 {
			return fmt.Errorf("sensor %s: %w", l.deps.Link.Path(), err)
		}
		if rerr := l.reconnect(ctx); rerr != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("sensor %s: %w (reconnect: %w)", l.deps.Link.Path(), err, rerr)
		}
		l.setState(Running)
	}
}

var errLog = errors.New("log write failed")

// cycle runs one read, classify, record, act pass.
func (l *Loop) cycle(ctx context.Context) error {
	d := &l.deps

	start := d.Clock.Now()
	raw, err := d.Link.ReadWindow(ctx)
	if err != nil {
		return err
	}

	vec := features.Extract(d.Decode(raw))
	label := d.Classifier.Classify(vec)
	end := d.Clock.Now()
	elapsed := end.Sub(start)

	d.Metrics.CycleDuration.Observe(elapsed.Seconds())
	d.Metrics.ObservePrediction(int(label))

	if err := d.TimingLog.Append(recorder.TimingRecord{
		Time:           start,
		Prediction:     label,
		ProcessingTime: elapsed,
	}); err != nil {
		return fmt.Errorf("%w: timing: %w", errLog, err)
	}
	truth := d.Labels.GroundTruth(vec, label)
	if err := d.TrainingLog.Append(recorder.TrainingRecord{Features: vec, Label: truth}); err != nil {
		return fmt.Errorf("%w: training: %w", errLog, err)
	}

	seq := l.cycles.Load()
	action := d.Dispatcher.Dispatch(ctx, label)

	if d.Mirror != nil {
		d.Mirror.Enqueue(db.Cycle{
			Session:      l.opts.SessionID,
			Seq:          seq,
			StartedAt:    start,
			Prediction:   label,
			ProcessingMs: float64(elapsed) / float64(time.Millisecond),
			Features:     vec,
			GroundTruth:  truth,
			Action:       action.String(),
		})
	}

	l.cycles.Add(1)
	return nil
}

func (l *Loop) readTimedOut() {
	l.deps.Metrics.ReadTimeouts.Inc()
	l.skipped++
	if l.timeoutWarn.AllowN(l.deps.Clock.Now(), 1) {
		l.deps.Logger.Warn("sensor window timed out, skipping cycle",
			zap.Int("skipped", l.skipped))
		l.skipped = 0
	}
}

// reconnect reopens the link with exponential backoff. It returns the last
// open error once MaxAttempts is used up.
func (l *Loop) reconnect(ctx context.Context) error {
	l.setState(Reconnecting)

	backoff := l.opts.InitialBackoff
	var lastErr error
	for attempt := 1; attempt <= l.opts.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.deps.Clock.After(backoff):
		}

		lastErr = l.deps.Link.Open()
		if lastErr == nil {
			l.deps.Metrics.Reconnects.WithLabelValues("success").Inc()
			l.deps.Logger.Info("sensor reconnected", zap.Int("attempt", attempt))
			return nil
		}
		l.deps.Metrics.Reconnects.WithLabelValues("failure").Inc()
		l.deps.Logger.Warn("sensor reconnect failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", l.opts.MaxAttempts),
			zap.Duration("backoff", backoff),
			zap.Error(lastErr))

		backoff = min(backoff*2, l.opts.MaxBackoff)
	}
	return fmt.Errorf("gave up after %d attempts: %w", l.opts.MaxAttempts, lastErr)
}

// drain flushes and closes everything the loop owns.
func (l *Loop) drain() error {
	l.setState(Draining)
	d := &l.deps

	var errs []error
	if err := d.TimingLog.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close timing log: %w", err))
	}
	if err := d.TrainingLog.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close training log: %w", err))
	}
	if d.Mirror != nil {
		if err := d.Mirror.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close mirror: %w", err))
		}
	}
	if err := d.Link.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close sensor: %w", err))
	}

	d.Logger.Info("acquisition stopped",
		zap.Uint64("cycles", l.Cycles()),
		zap.Int("timing_rows", d.TimingLog.Rows()),
		zap.Int("training_rows", d.TrainingLog.Rows()))
	l.setState(Terminated)
	return errors.Join(errs...)
}
