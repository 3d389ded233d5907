// Package detect labels sensor readings with a fitted anomaly model.
package detect

import (
	"context"
	"errors"
	"fmt"

	"github.com/hed1ad/bridgeguard/pkg/model"
	"github.com/hed1ad/bridgeguard/pkg/sensor"
	"github.com/hed1ad/bridgeguard/pkg/storage"
)

// ErrNoScaler is returned by DetectRaw for artifacts trained without
// recorded standardization parameters.
var ErrNoScaler = errors.New("model carries no scaler parameters; standardize the input first")

// LoadModel reads the artifact stored under key. Missing, corrupt and
// incompatible artifacts are reported as *model.ModelLoadError.
func LoadModel(ctx context.Context, store storage.Store, key string) (*model.Artifact, error) {
	return model.Load(ctx, store, key)
}

// Detect scores standardized readings and attaches the learned label. The
// artifact's threshold is applied as is.
func Detect(readings []sensor.Reading, artifact *model.Artifact) ([]sensor.ScoredReading, error) {
	if artifact == nil || artifact.Forest == nil {
		return nil, errors.New("no model")
	}

	for i, r := range readings {
		if r.HasMissing() {
			return nil, fmt.Errorf("row %d has missing measurements", i)
		}
	}

	scores, err := artifact.Forest.Classify(sensor.Matrix(readings))
	if err != nil {
		return nil, fmt.Errorf("scoring readings: %w", err)
	}

	results := make([]sensor.ScoredReading, len(readings))
	for i, r := range readings {
		label := sensor.Inlier
		if scores[i].IsAnomaly {
			label = sensor.Outlier
		}
		results[i] = sensor.ScoredReading{Reading: r, Score: scores[i].Value, Anomaly: label}
	}
	return results, nil
}

// DetectRaw standardizes raw readings with the parameters recorded at
// training time, then scores them. Results carry the standardized values.
func DetectRaw(readings []sensor.Reading, artifact *model.Artifact) ([]sensor.ScoredReading, error) {
	if artifact == nil || artifact.Scaler == nil {
		return nil, ErrNoScaler
	}
	return Detect(artifact.Scaler.Transform(readings), artifact)
}

// Outliers counts the readings labelled outlier.
func Outliers(results []sensor.ScoredReading) int {
	var n int
	for _, r := range results {
		if r.Anomaly == sensor.Outlier {
			n++
		}
	}
	return n
}
