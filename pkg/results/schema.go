package results

import (
	"context"
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	model_run_id TEXT NOT NULL,
	source       TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	row_count    INTEGER NOT NULL,
	outliers     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS results (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	row_index   INTEGER NOT NULL,
	sensor_id   INTEGER NOT NULL,
	position_x  REAL NOT NULL,
	position_y  REAL NOT NULL,
	vibration   REAL NOT NULL,
	stress      REAL NOT NULL,
	temperature REAL NOT NULL,
	score       REAL NOT NULL,
	anomaly     INTEGER NOT NULL,
	PRIMARY KEY (run_id, row_index)
);

CREATE INDEX IF NOT EXISTS idx_results_sensor ON results(run_id, sensor_id);
`

// InitSchema creates the tables if they do not exist.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
