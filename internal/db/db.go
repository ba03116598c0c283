// Package db mirrors every acquisition cycle into a SQLite database so runs
// can be queried and joined with annotations after the fact.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/myolink/internal/classifier"
	"github.com/banshee-data/myolink/internal/features"
)

type DB struct {
	*sql.DB
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
}

// NewDB opens (or creates) the database at path and migrates it to the
// latest schema.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single connection keeps the per-connection pragmas in force
	sqlDB.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	db := &DB{sqlDB}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Session describes one run of the acquisition process.
type Session struct {
	ID         string
	StartedAt  time.Time
	SensorPort string
	ModelPath  string
	Version    string
}

// Cycle is the mirrored form of one acquisition cycle.
type Cycle struct {
	Session      string
	Seq          uint64
	StartedAt    time.Time
	Prediction   classifier.Label
	ProcessingMs float64
	Features     features.Vector
	GroundTruth  classifier.Label
	Action       string
}

// RecordSession stores the session row.
func (db *DB) RecordSession(ctx context.Context, s Session) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO sessions (session, started_at, sensor_port, model_path, version) VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.StartedAt.UTC().Format(time.RFC3339Nano), s.SensorPort, s.ModelPath, s.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}
	return nil
}

// RecordCycles inserts a batch of cycles in one transaction.
func (db *DB) RecordCycles(ctx context.Context, cycles []Cycle) error {
	if len(cycles) == 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO cycles (
		session, seq, started_at, prediction, processing_ms,
		mav, zc, ssc, wl, rms, ground_truth, action
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range cycles {
		v := c.Features
		if _, err := stmt.ExecContext(ctx,
			c.Session, int64(c.Seq), c.StartedAt.UTC().Format(time.RFC3339Nano),
			int(c.Prediction), c.ProcessingMs,
			v.MAV(), v.ZC(), v.SSC(), v.WL(), v.RMS(),
			int(c.GroundTruth), c.Action,
		); err != nil {
			return fmt.Errorf("failed to insert cycle %d: %w", c.Seq, err)
		}
	}
	return tx.Commit()
}

// Cycles returns the cycles of a session in sequence order.
func (db *DB) Cycles(ctx context.Context, session string) ([]Cycle, error) {
	rows, err := db.QueryContext(ctx, `SELECT session, seq, started_at, prediction, processing_ms,
		mav, zc, ssc, wl, rms, ground_truth, action
		FROM cycles WHERE session = ? ORDER BY seq`, session)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Cycle
	for rows.Next() {
		var (
			c                 Cycle
			seq               int64
			startedAt         string
			prediction, truth int
			zc, ssc           int
		)
		if err := rows.Scan(&c.Session, &seq, &startedAt, &prediction, &c.ProcessingMs,
			&c.Features[features.MAV], &zc, &ssc, &c.Features[features.WL], &c.Features[features.RMS],
			&truth, &c.Action); err != nil {
			return nil, err
		}
		ts, err := time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, fmt.Errorf("invalid started_at %q: %w", startedAt, err)
		}
		c.Seq = uint64(seq)
		c.StartedAt = ts
		c.Prediction = classifier.Label(prediction)
		c.GroundTruth = classifier.Label(truth)
		c.Features[features.ZC] = float64(zc)
		c.Features[features.SSC] = float64(ssc)
		out = append(out, c)
	}
	return out, rows.Err()
}

// PredictionCounts returns how often each label was predicted in a session.
func (db *DB) PredictionCounts(ctx context.Context, session string) (map[classifier.Label]int, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT prediction, COUNT(*) FROM cycles WHERE session = ? GROUP BY prediction`, session)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[classifier.Label]int)
	for rows.Next() {
		var label, n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, err
		}
		counts[classifier.Label(label)] = n
	}
	return counts, rows.Err()
}
