// Package results records detection runs in a SQLite database and answers
// per-sensor summary queries over them.
package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	bgio "github.com/hed1ad/bridgeguard/pkg/io"
	"github.com/hed1ad/bridgeguard/pkg/sensor"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNoRuns is returned when the database holds no detection run.
var ErrNoRuns = errors.New("no detection runs recorded")

// Run describes one detection run.
type Run struct {
	ID         string
	ModelRunID string
	Source     string
	CreatedAt  time.Time
	Rows       int
	Outliers   int
}

// SensorSummary aggregates one sensor's results within a run.
type SensorSummary struct {
	SensorID  int
	PositionX float64
	Rows      int
	Outliers  int
	MaxScore  float64
}

// Store is a SQLite-backed results database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores the run and its results in one transaction. Empty ID and
// CreatedAt are filled in; row and outlier counts are derived from results.
func (s *Store) SaveRun(ctx context.Context, run Run, results []sensor.ScoredReading) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	run.Rows = len(results)
	run.Outliers = 0
	for _, r := range results {
		if r.Anomaly == sensor.Outlier {
			run.Outliers++
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, model_run_id, source, created_at, row_count, outliers) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.ModelRunID, run.Source, run.CreatedAt.UTC().Format(timeLayout), run.Rows, run.Outliers)
	if err != nil {
		return Run{}, fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO results
		(run_id, row_index, sensor_id, position_x, position_y, vibration, stress, temperature, score, anomaly)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return Run{}, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range results {
		_, err := stmt.ExecContext(ctx, run.ID, i, r.SensorID, r.PositionX, r.PositionY,
			r.Vibration, r.Stress, r.Temperature, r.Score, int(r.Anomaly))
		if err != nil {
			return Run{}, fmt.Errorf("failed to insert result %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("failed to commit run: %w", err)
	}
	return run, nil
}

// LatestRun returns the most recently created run.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, model_run_id, source, created_at, row_count, outliers FROM runs ORDER BY created_at DESC LIMIT 1`)
	return scanRun(row)
}

// GetRun returns the run with the given id.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, model_run_id, source, created_at, row_count, outliers FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

func scanRun(row *sql.Row) (Run, error) {
	var run Run
	var created string
	err := row.Scan(&run.ID, &run.ModelRunID, &run.Source, &created, &run.Rows, &run.Outliers)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNoRuns
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to read run: %w", err)
	}
	run.CreatedAt, err = time.Parse(timeLayout, created)
	if err != nil {
		return Run{}, fmt.Errorf("invalid run timestamp %q: %w", created, err)
	}
	return run, nil
}

// Summary aggregates a run's results per sensor, ordered by sensor id.
func (s *Store) Summary(ctx context.Context, runID string) ([]SensorSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sensor_id, MIN(position_x), COUNT(*), SUM(CASE WHEN anomaly < 0 THEN 1 ELSE 0 END), MAX(score)
		FROM results
		WHERE run_id = ?
		GROUP BY sensor_id
		ORDER BY sensor_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query summary: %w", err)
	}
	defer rows.Close()

	var summaries []SensorSummary
	for rows.Next() {
		var ss SensorSummary
		if err := rows.Scan(&ss.SensorID, &ss.PositionX, &ss.Rows, &ss.Outliers, &ss.MaxScore); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		summaries = append(summaries, ss)
	}
	return summaries, rows.Err()
}

// Writer adapts the store to bgio.ResultWriter for one run. The stored run
// is available from Run after WriteResults.
func (s *Store) Writer(ctx context.Context, run Run) *RunWriter {
	return &RunWriter{ctx: ctx, store: s, run: run}
}

// RunWriter writes one run's results.
type RunWriter struct {
	ctx   context.Context
	store *Store
	run   Run
}

var _ bgio.ResultWriter = (*RunWriter)(nil)

// WriteResults stores the run.
func (w *RunWriter) WriteResults(results []sensor.ScoredReading) error {
	run, err := w.store.SaveRun(w.ctx, w.run, results)
	if err != nil {
		return err
	}
	w.run = run
	return nil
}

// Run returns the run as stored.
func (w *RunWriter) Run() Run {
	return w.run
}

// Close is a no-op; the store stays open.
func (w *RunWriter) Close() error {
	return nil
}
