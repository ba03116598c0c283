package recorder

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/myolink/internal/features"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestTimingLog_HeaderOnceAcrossRestarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "performance_log.csv")
	ts := time.Date(2026, 2, 3, 4, 5, 6, 7000000, time.UTC)

	for i := 0; i < 2; i++ {
		l, err := OpenTimingLog(path, 0)
		require.NoError(t, err)
		require.NoError(t, l.Append(TimingRecord{Time: ts, Prediction: 3, ProcessingTime: 1500 * time.Microsecond}))
		assert.Equal(t, 1, l.Rows())
		require.NoError(t, l.Close())
	}

	want := "Time,Prediction,ProcessingTime(ms)\n" +
		"2026-02-03T04:05:06.007Z,3,1.500\n" +
		"2026-02-03T04:05:06.007Z,3,1.500\n"
	assert.Equal(t, want, readFile(t, path))
}

func TestTrainingLog_Rows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "training_data.csv")
	l, err := OpenTrainingLog(path, 1)
	require.NoError(t, err)

	v := features.Extract(features.Window{-5, 3, -2, 7, 7, -1})
	require.NoError(t, l.Append(TrainingRecord{Features: v, Label: 0}))
	require.NoError(t, l.Close())

	lines := strings.Split(strings.TrimSpace(readFile(t, path)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "MAV,ZC,SSC,WL,RMS,Label", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "4.166666666666667,4,2,30,"), lines[1])
	assert.True(t, strings.HasSuffix(lines[1], ",0"), lines[1])
}

func TestCSVLog_FlushEvery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "performance_log.csv")
	l, err := OpenTimingLog(path, 2)
	require.NoError(t, err)
	defer l.Close()

	rec := TimingRecord{Time: time.Unix(0, 0), Prediction: 1, ProcessingTime: time.Millisecond}
	require.NoError(t, l.Append(rec))
	assert.Equal(t, 1, strings.Count(readFile(t, path), "\n"), "row still buffered")

	require.NoError(t, l.Append(rec))
	assert.Equal(t, 3, strings.Count(readFile(t, path), "\n"), "flushed after two rows")

	require.NoError(t, l.Append(rec))
	require.NoError(t, l.Flush())
	assert.Equal(t, 4, strings.Count(readFile(t, path), "\n"))
}

func TestCSVLog_CloseIsIdempotent(t *testing.T) {
	l, err := OpenTrainingLog(filepath.Join(t.TempDir(), "t.csv"), 0)
	require.NoError(t, err)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	assert.Error(t, l.Append(TrainingRecord{}))
}

func TestOpenLog_BadPath(t *testing.T) {
	_, err := OpenTimingLog(filepath.Join(t.TempDir(), "missing", "dir", "log.csv"), 0)
	assert.Error(t, err)
}

func TestReadLogs_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	timingPath := filepath.Join(dir, "timing.csv")
	trainingPath := filepath.Join(dir, "training.csv")

	tl, err := OpenTimingLog(timingPath, 0)
	require.NoError(t, err)
	trl, err := OpenTrainingLog(trainingPath, 0)
	require.NoError(t, err)

	timings := []TimingRecord{
		{Time: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Prediction: 0, ProcessingTime: 2 * time.Millisecond},
		{Time: time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC), Prediction: 5, ProcessingTime: 250 * time.Microsecond},
	}
	for _, r := range timings {
		require.NoError(t, tl.Append(r))
	}
	training := TrainingRecord{Features: features.Vector{1.5, 3, 2, 40.25, 9}, Label: 4}
	require.NoError(t, trl.Append(training))
	require.NoError(t, tl.Close())
	require.NoError(t, trl.Close())

	f, err := os.Open(timingPath)
	require.NoError(t, err)
	defer f.Close()
	gotTimings, err := ReadTimingLog(f)
	require.NoError(t, err)
	if diff := cmp.Diff(timings, gotTimings); diff != "" {
		t.Errorf("timing mismatch (-want +got):\n%s", diff)
	}

	g, err := os.Open(trainingPath)
	require.NoError(t, err)
	defer g.Close()
	gotTraining, err := ReadTrainingLog(g)
	require.NoError(t, err)
	if diff := cmp.Diff([]TrainingRecord{training}, gotTraining); diff != "" {
		t.Errorf("training mismatch (-want +got):\n%s", diff)
	}
}

func TestReadTimingLog_RepeatedHeadersAndErrors(t *testing.T) {
	in := "Time,Prediction,ProcessingTime(ms)\n" +
		"2026-01-01T00:00:00Z,1,1.000\n" +
		"Time,Prediction,ProcessingTime(ms)\n" +
		"2026-01-01T00:00:01Z,2,3.000\n"
	recs, err := ReadTimingLog(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 3*time.Millisecond, recs[1].ProcessingTime)

	_, err = ReadTimingLog(strings.NewReader("yesterday,1,1.0\n"))
	assert.Error(t, err)
	_, err = ReadTimingLog(strings.NewReader("2026-01-01T00:00:00Z,x,1.0\n"))
	assert.Error(t, err)
	_, err = ReadTimingLog(strings.NewReader("2026-01-01T00:00:00Z,1\n"))
	assert.Error(t, err)
}
