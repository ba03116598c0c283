package db

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/myolink/internal/classifier"
	"github.com/banshee-data/myolink/internal/features"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "cycles.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testCycle(seq uint64, prediction classifier.Label) Cycle {
	return Cycle{
		Session:      "s1",
		Seq:          seq,
		StartedAt:    time.Date(2026, 3, 1, 12, 0, int(seq), 0, time.UTC),
		Prediction:   prediction,
		ProcessingMs: 1.25,
		Features:     features.Vector{4.5, 4, 2, 30, 3.75},
		GroundTruth:  0,
		Action:       "Relax",
	}
}

func TestPragmasApplied(t *testing.T) {
	db := newTestDB(t)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout, synchronous, tempStore int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	require.NoError(t, db.QueryRow("PRAGMA synchronous").Scan(&synchronous))
	require.NoError(t, db.QueryRow("PRAGMA temp_store").Scan(&tempStore))
	assert.Equal(t, 5000, busyTimeout)
	assert.Equal(t, 1, synchronous) // NORMAL
	assert.Equal(t, 2, tempStore)   // MEMORY
}

func TestMigrateVersion(t *testing.T) {
	db := newTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(2), version)

	// running again is a no-op
	require.NoError(t, db.MigrateUp())
}

func TestRecordAndReadCycles(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.RecordSession(ctx, Session{
		ID:         "s1",
		StartedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		SensorPort: "/dev/ttyUSB0",
		ModelPath:  "model.json",
		Version:    "dev",
	}))

	want := []Cycle{testCycle(0, 2), testCycle(1, 2), testCycle(2, 5)}
	require.NoError(t, db.RecordCycles(ctx, want))

	got, err := db.Cycles(ctx, "s1")
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Cycles mismatch (-want +got):\n%s", diff)
	}

	counts, err := db.PredictionCounts(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, map[classifier.Label]int{2: 2, 5: 1}, counts)

	other, err := db.Cycles(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestRecordCyclesRejectsDuplicateSeq(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.RecordCycles(ctx, []Cycle{testCycle(0, 1)}))
	err := db.RecordCycles(ctx, []Cycle{testCycle(1, 1), testCycle(0, 1)})
	require.Error(t, err)

	// the failed batch is rolled back as a whole
	got, err := db.Cycles(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestWriterDrainsOnClose(t *testing.T) {
	db := newTestDB(t)
	w := NewWriter(db, 64, nil)
	w.Start()

	for i := uint64(0); i < 50; i++ {
		require.True(t, w.Enqueue(testCycle(i, classifier.Label(i%6))))
	}
	require.NoError(t, w.Close())

	got, err := db.Cycles(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, got, 50)
	for i, c := range got {
		assert.Equal(t, uint64(i), c.Seq)
	}

	assert.False(t, w.Enqueue(testCycle(99, 0)), "closed writer accepts nothing")
	require.NoError(t, w.Close(), "Close is idempotent")
}

func TestWriterDropsWhenFull(t *testing.T) {
	db := newTestDB(t)
	var drops atomic.Int64
	// not started, so nothing leaves the queue
	w := NewWriter(db, 2, func() { drops.Add(1) })

	assert.True(t, w.Enqueue(testCycle(0, 0)))
	assert.True(t, w.Enqueue(testCycle(1, 0)))
	assert.False(t, w.Enqueue(testCycle(2, 0)))
	assert.False(t, w.Enqueue(testCycle(3, 0)))
	assert.Equal(t, int64(2), drops.Load())

	require.NoError(t, w.Close())
}

func TestWriterReportsWriteError(t *testing.T) {
	db := newTestDB(t)
	w := NewWriter(db, 8, nil)
	w.Start()

	require.True(t, w.Enqueue(testCycle(0, 0)))
	require.NoError(t, w.Close())

	w2 := NewWriter(db, 8, nil)
	w2.Start()
	require.True(t, w2.Enqueue(testCycle(0, 0)))
	assert.Error(t, w2.Close())
}
