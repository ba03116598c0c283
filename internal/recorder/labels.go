package recorder

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/banshee-data/myolink/internal/classifier"
	"github.com/banshee-data/myolink/internal/features"
)

// LabelSource supplies the ground truth label written next to each feature
// vector in the training log.
type LabelSource interface {
	GroundTruth(v features.Vector, predicted classifier.Label) classifier.Label
}

// ConstantLabel labels every row with the same value. A constant of 0 is a
// placeholder: rows recorded with it need annotating before retraining.
type ConstantLabel classifier.Label

// GroundTruth implements LabelSource.
func (c ConstantLabel) GroundTruth(features.Vector, classifier.Label) classifier.Label {
	return classifier.Label(c)
}

// OperatorLabels holds the movement an operator says is being performed.
// The current label applies to every cycle until the operator changes it.
type OperatorLabels struct {
	current atomic.Int64
	logger  *zap.Logger
}

// NewOperatorLabels starts with initial as the current label.
func NewOperatorLabels(initial classifier.Label, logger *zap.Logger) *OperatorLabels {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &OperatorLabels{logger: logger}
	o.current.Store(int64(initial))
	return o
}

// GroundTruth implements LabelSource.
func (o *OperatorLabels) GroundTruth(features.Vector, classifier.Label) classifier.Label {
	return classifier.Label(o.current.Load())
}

// Set changes the current label.
func (o *OperatorLabels) Set(l classifier.Label) {
	o.current.Store(int64(l))
}

// Run reads one label per line from r until EOF or ctx is done. Lines that
// are blank or not a known label are ignored.
func (o *OperatorLabels) Run(ctx context.Context, r io.Reader) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		scan := bufio.NewScanner(r)
		for scan.Scan() {
			select {
			case lines <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scan.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errc:
					return err
				default:
					return nil
				}
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			n, err := strconv.Atoi(line)
			if err != nil || !classifier.Label(n).Known() {
				o.logger.Warn("ignoring operator label", zap.String("input", line))
				continue
			}
			o.Set(classifier.Label(n))
			o.logger.Info("operator label set", zap.Int("label", n))
		}
	}
}
