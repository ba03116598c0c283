package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/myolink/internal/classifier"
	"github.com/banshee-data/myolink/internal/recorder"
)

func records(preds ...classifier.Label) []recorder.TimingRecord {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	out := make([]recorder.TimingRecord, len(preds))
	for i, p := range preds {
		out[i] = recorder.TimingRecord{
			Time:           base.Add(time.Duration(i) * 10 * time.Millisecond),
			Prediction:     p,
			ProcessingTime: time.Duration(i+1) * time.Millisecond,
		}
	}
	return out
}

func TestBuild_Latency(t *testing.T) {
	preds := make([]classifier.Label, 100)
	r, err := Build(records(preds...), nil)
	require.NoError(t, err)

	assert.Equal(t, 100, r.Cycles)
	assert.InDelta(t, 50.5, r.Latency.Mean, 1e-9)
	assert.InDelta(t, 50, r.Latency.P50, 1e-9)
	assert.InDelta(t, 95, r.Latency.P95, 1e-9)
	assert.InDelta(t, 99, r.Latency.P99, 1e-9)
	assert.InDelta(t, 100, r.Latency.Max, 1e-9)
	assert.Equal(t, map[classifier.Label]int{0: 100}, r.Predictions)
	assert.False(t, r.HasTruth)
}

func TestBuild_Empty(t *testing.T) {
	_, err := Build(nil, nil)
	assert.Error(t, err)
}

func TestBuild_CyclesGroundTruth(t *testing.T) {
	// truth 0,1,2 repeats: 0,1,2,0,1,2
	r, err := Build(records(0, 1, 5, 0, 3, 2), []classifier.Label{0, 1, 2})
	require.NoError(t, err)

	require.True(t, r.HasTruth)
	assert.InDelta(t, 4.0/6.0, r.Accuracy, 1e-12)
	want := []float64{1, 1, 2.0 / 3.0, 3.0 / 4.0, 3.0 / 5.0, 4.0 / 6.0}
	require.Len(t, r.Cumulative, len(want))
	for i := range want {
		assert.InDelta(t, want[i], r.Cumulative[i], 1e-12, "cycle %d", i)
	}
	assert.Equal(t, map[classifier.Label]int{0: 2, 1: 1, 2: 1, 3: 1, 5: 1}, r.Predictions)
}

func TestParseLabels(t *testing.T) {
	labels, err := ParseLabels(strings.NewReader("# session 4\n0,1,2\n3 4\n\n5\n"))
	require.NoError(t, err)
	assert.Equal(t, []classifier.Label{0, 1, 2, 3, 4, 5}, labels)

	_, err = ParseLabels(strings.NewReader("0\nfist\n"))
	assert.Error(t, err)

	_, err = ParseLabels(strings.NewReader("7\n"))
	assert.Error(t, err)
}

func TestWriteText(t *testing.T) {
	r, err := Build(records(2, 2, 6, 0), []classifier.Label{2})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.WriteText(&buf))
	out := buf.String()

	assert.Contains(t, out, "cycles")
	assert.Contains(t, out, "latency p95")
	assert.Contains(t, out, "Lift Arm")
	assert.Contains(t, out, "Unknown Action")
	assert.Contains(t, out, "50.0%")
	assert.Contains(t, out, "accuracy  50.00%")
}

func TestSavePlots(t *testing.T) {
	dir := t.TempDir()
	r, err := Build(records(0, 1, 2, 3, 4, 5, 0, 0), []classifier.Label{0, 1, 2, 3, 4, 5})
	require.NoError(t, err)

	latency := filepath.Join(dir, "latency.png")
	accuracy := filepath.Join(dir, "accuracy.png")
	require.NoError(t, r.SaveLatencyPlot(latency))
	require.NoError(t, r.SaveAccuracyPlot(accuracy))

	for _, path := range []string{latency, accuracy} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}

	noTruth, err := Build(records(0), nil)
	require.NoError(t, err)
	assert.Error(t, noTruth.SaveAccuracyPlot(filepath.Join(dir, "none.png")))
}
