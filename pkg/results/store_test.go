package results

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/bridgeguard/pkg/sensor"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "db", "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func scored(sensorID int, x, score float64, label sensor.Label) sensor.ScoredReading {
	return sensor.ScoredReading{
		Reading: sensor.Reading{SensorID: sensorID, PositionX: x, PositionY: 5, Stress: score},
		Score:   score,
		Anomaly: label,
	}
}

func TestSaveRunAndSummary(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	results := []sensor.ScoredReading{
		scored(1, 0, 0.40, sensor.Inlier),
		scored(1, 0, 0.75, sensor.Outlier),
		scored(2, 100, 0.45, sensor.Inlier),
		scored(2, 100, 0.50, sensor.Inlier),
		scored(2, 100, 0.80, sensor.Outlier),
	}

	run, err := s.SaveRun(ctx, Run{ModelRunID: "model-1", Source: "data.csv"}, results)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, 5, run.Rows)
	assert.Equal(t, 2, run.Outliers)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ModelRunID, got.ModelRunID)
	assert.True(t, run.CreatedAt.Equal(got.CreatedAt))

	summary, err := s.Summary(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, []SensorSummary{
		{SensorID: 1, PositionX: 0, Rows: 2, Outliers: 1, MaxScore: 0.75},
		{SensorID: 2, PositionX: 100, Rows: 3, Outliers: 1, MaxScore: 0.80},
	}, summary)
}

func TestLatestRun(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	_, err := s.LatestRun(ctx)
	assert.ErrorIs(t, err, ErrNoRuns)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = s.SaveRun(ctx, Run{ID: "old", CreatedAt: base}, nil)
	require.NoError(t, err)
	_, err = s.SaveRun(ctx, Run{ID: "new", CreatedAt: base.Add(time.Hour)}, nil)
	require.NoError(t, err)

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", latest.ID)

	_, err = s.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrNoRuns)
}

func TestDuplicateRunRollsBack(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	_, err := s.SaveRun(ctx, Run{ID: "dup"}, []sensor.ScoredReading{scored(1, 0, 0.5, sensor.Inlier)})
	require.NoError(t, err)
	_, err = s.SaveRun(ctx, Run{ID: "dup"}, []sensor.ScoredReading{scored(9, 0, 0.5, sensor.Inlier)})
	assert.Error(t, err)

	summary, err := s.Summary(ctx, "dup")
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, 1, summary[0].SensorID)
}

func TestRunWriter(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	w := s.Writer(ctx, Run{ModelRunID: "m", Source: "in.csv"})
	require.NoError(t, w.WriteResults([]sensor.ScoredReading{scored(3, 50, 0.9, sensor.Outlier)}))
	require.NoError(t, w.Close())

	run := w.Run()
	assert.Equal(t, 1, run.Outliers)

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, run.ID, latest.ID)
}
