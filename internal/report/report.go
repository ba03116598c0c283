// Package report summarises a timing log: latency distribution, prediction
// counts and, given the true movement sequence, accuracy over time.
package report

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/myolink/internal/actuator"
	"github.com/banshee-data/myolink/internal/classifier"
	"github.com/banshee-data/myolink/internal/recorder"
)

// Latency holds processing time statistics in milliseconds.
type Latency struct {
	Mean float64
	P50  float64
	P95  float64
	P99  float64
	Max  float64
}

type Report struct {
	Cycles      int
	Latency     Latency
	Predictions map[classifier.Label]int

	// Set only when ground truth was supplied.
	HasTruth   bool
	Accuracy   float64
	Cumulative []float64

	millis []float64
}

// Build computes the report for records. truth, when non-empty, is the
// sequence of performed movements; it repeats over the records in order.
func Build(records []recorder.TimingRecord, truth []classifier.Label) (*Report, error) {
	if len(records) == 0 {
		return nil, errors.New("timing log has no records")
	}

	r := &Report{
		Cycles:      len(records),
		Predictions: make(map[classifier.Label]int),
		millis:      make([]float64, len(records)),
	}
	for i, rec := range records {
		r.millis[i] = rec.Millis()
		r.Predictions[rec.Prediction]++
	}

	sorted := append([]float64(nil), r.millis...)
	sort.Float64s(sorted)
	r.Latency = Latency{
		Mean: stat.Mean(sorted, nil),
		P50:  stat.Quantile(0.50, stat.Empirical, sorted, nil),
		P95:  stat.Quantile(0.95, stat.Empirical, sorted, nil),
		P99:  stat.Quantile(0.99, stat.Empirical, sorted, nil),
		Max:  floats.Max(sorted),
	}

	if len(truth) > 0 {
		r.HasTruth = true
		r.Cumulative = make([]float64, len(records))
		correct := 0
		for i, rec := range records {
			if rec.Prediction == truth[i%len(truth)] {
				correct++
			}
			r.Cumulative[i] = float64(correct) / float64(i+1)
		}
		r.Accuracy = r.Cumulative[len(r.Cumulative)-1]
	}
	return r, nil
}

// ParseLabels reads a ground truth sequence: integer labels separated by
// newlines, commas or spaces. Lines starting with # are ignored.
func ParseLabels(rd io.Reader) ([]classifier.Label, error) {
	var out []classifier.Label
	scan := bufio.NewScanner(rd)
	line := 0
	for scan.Scan() {
		line++
		text := strings.TrimSpace(scan.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		for _, field := range strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' }) {
			n, err := strconv.Atoi(field)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid label %q: %w", line, field, err)
			}
			if !classifier.Label(n).Known() {
				return nil, fmt.Errorf("line %d: label %d out of range", line, n)
			}
			out = append(out, classifier.Label(n))
		}
	}
	if err := scan.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// WriteText prints the report as aligned plain text.
func (r *Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "cycles\t%d\n", r.Cycles)
	fmt.Fprintf(tw, "latency mean\t%.3f ms\n", r.Latency.Mean)
	fmt.Fprintf(tw, "latency p50\t%.3f ms\n", r.Latency.P50)
	fmt.Fprintf(tw, "latency p95\t%.3f ms\n", r.Latency.P95)
	fmt.Fprintf(tw, "latency p99\t%.3f ms\n", r.Latency.P99)
	fmt.Fprintf(tw, "latency max\t%.3f ms\n", r.Latency.Max)
	fmt.Fprintln(tw)

	labels := make([]int, 0, len(r.Predictions))
	for l := range r.Predictions {
		labels = append(labels, int(l))
	}
	sort.Ints(labels)
	fmt.Fprintln(tw, "label\taction\tcount\tshare")
	for _, l := range labels {
		n := r.Predictions[classifier.Label(l)]
		fmt.Fprintf(tw, "%d\t%s\t%d\t%.1f%%\n",
			l, actuator.ActionFor(classifier.Label(l)), n, 100*float64(n)/float64(r.Cycles))
	}

	if r.HasTruth {
		fmt.Fprintln(tw)
		fmt.Fprintf(tw, "accuracy\t%.2f%%\n", 100*r.Accuracy)
	}
	return tw.Flush()
}
