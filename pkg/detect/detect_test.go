package detect

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/bridgeguard/pkg/detectors"
	"github.com/hed1ad/bridgeguard/pkg/detectors/iforest"
	"github.com/hed1ad/bridgeguard/pkg/model"
	"github.com/hed1ad/bridgeguard/pkg/preprocess"
	"github.com/hed1ad/bridgeguard/pkg/sensor"
	"github.com/hed1ad/bridgeguard/pkg/simulate"
	"github.com/hed1ad/bridgeguard/pkg/storage"
	"github.com/hed1ad/bridgeguard/pkg/train"
)

func TestDetectConstantData(t *testing.T) {
	readings := make([]sensor.Reading, 500)
	for i := range readings {
		readings[i] = sensor.Reading{SensorID: i%10 + 1, PositionY: 5, Vibration: 0.01, Stress: -0.02, Temperature: 0.03}
	}

	cfg := train.DefaultConfig()
	cfg.Detector.Trees = 20
	artifact, _, err := train.Train(readings, cfg)
	require.NoError(t, err)

	results, err := Detect(readings, artifact)
	require.NoError(t, err)
	require.Len(t, results, len(readings))

	inlierRate := 1 - float64(Outliers(results))/float64(len(results))
	assert.GreaterOrEqual(t, inlierRate, 1-cfg.Detector.Contamination)
}

func TestDetectIsolatedReading(t *testing.T) {
	readings := []sensor.Reading{
		{SensorID: 1, PositionX: 0, PositionY: 5, Vibration: 0.1, Stress: -0.2, Temperature: 0.05},
		{SensorID: 2, PositionX: 50, PositionY: 5, Vibration: -0.1, Stress: 0.2, Temperature: -0.05},
		{SensorID: 3, PositionX: 100, PositionY: 5, Vibration: 1000, Stress: 1000, Temperature: 1000},
	}

	cfg := detectors.DefaultConfig()
	cfg.Contamination = 1.0 / 3
	forest := iforest.New(iforest.FromConfig(cfg)...)
	require.NoError(t, forest.Fit(sensor.Matrix(readings)))
	artifact := model.New(forest, nil, cfg, len(readings), 0)

	results, err := Detect(readings, artifact)
	require.NoError(t, err)

	assert.Equal(t, sensor.Inlier, results[0].Anomaly)
	assert.Equal(t, sensor.Inlier, results[1].Anomaly)
	assert.Equal(t, sensor.Outlier, results[2].Anomaly)
	assert.Greater(t, results[2].Score, results[0].Score)

	// Identifying columns and measurements pass through.
	for i := range readings {
		assert.Equal(t, readings[i], results[i].Reading)
	}
}

func TestDetectRejectsMissingValues(t *testing.T) {
	artifact := trainedArtifact(t)
	_, err := Detect([]sensor.Reading{{SensorID: 1, Vibration: math.NaN()}}, artifact)
	assert.Error(t, err)
}

func TestDetectNoModel(t *testing.T) {
	_, err := Detect([]sensor.Reading{{SensorID: 1}}, nil)
	assert.Error(t, err)
}

func TestDetectRaw(t *testing.T) {
	raw, err := simulate.Generate(5, 100, simulate.WithSeed(11))
	require.NoError(t, err)
	standardized, scaler, err := preprocess.Preprocess(raw)
	require.NoError(t, err)

	cfg := train.DefaultConfig()
	cfg.Detector.Trees = 20
	cfg.Scaler = &scaler
	artifact, _, err := train.Train(standardized, cfg)
	require.NoError(t, err)

	fromRaw, err := DetectRaw(raw, artifact)
	require.NoError(t, err)
	fromStandardized, err := Detect(standardized, artifact)
	require.NoError(t, err)

	require.Len(t, fromRaw, len(fromStandardized))
	for i := range fromRaw {
		assert.Equal(t, fromStandardized[i].Anomaly, fromRaw[i].Anomaly)
		assert.InDelta(t, fromStandardized[i].Score, fromRaw[i].Score, 1e-12)
	}

	artifact.Scaler = nil
	_, err = DetectRaw(raw, artifact)
	assert.ErrorIs(t, err, ErrNoScaler)
}

func TestMalformedModelPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.bin"), []byte("{not a model}"), 0644))
	store := storage.NewFileStore(dir)

	for _, key := range []string{"broken.bin", "missing.bin", "nested/missing.bin"} {
		_, err := LoadModel(context.Background(), store, key)
		var loadErr *model.ModelLoadError
		assert.True(t, errors.As(err, &loadErr), "%s: got %v", key, err)
	}
}

func trainedArtifact(t *testing.T) *model.Artifact {
	t.Helper()
	raw, err := simulate.Generate(3, 30, simulate.WithSeed(5))
	require.NoError(t, err)
	cfg := train.DefaultConfig()
	cfg.Detector.Trees = 5
	artifact, _, err := train.Train(raw, cfg)
	require.NoError(t, err)
	return artifact
}
