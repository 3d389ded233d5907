// Package detectors provides unsupervised anomaly detection algorithms.
package detectors

import "fmt"

// Detector is the common interface for all anomaly detection algorithms.
type Detector interface {
	// Fit trains the detector on historical data.
	// data is a 2D slice where each row is a sample and each column is a feature.
	Fit(data [][]float64) error

	// Predict returns anomaly scores for the given samples.
	// Scores are normalized to [0, 1] where higher values indicate anomalies.
	Predict(data [][]float64) ([]float64, error)

	// PredictOne returns the anomaly score for a single sample.
	PredictOne(sample []float64) (float64, error)

	// Classify scores the samples and applies the threshold learned by Fit.
	Classify(data [][]float64) ([]Score, error)

	// Save serializes the trained model to bytes.
	Save() ([]byte, error)

	// Load deserializes a trained model from bytes.
	Load(data []byte) error
}

// Score represents an anomaly detection result.
type Score struct {
	// Value is the anomaly score in [0, 1].
	Value float64
	// IsAnomaly indicates if the score exceeds the threshold.
	IsAnomaly bool
}

// Config holds common configuration for detectors.
type Config struct {
	// Contamination is the expected proportion of anomalies in training data.
	Contamination float64 `json:"contamination" yaml:"contamination"`
	// RandomSeed for reproducibility.
	RandomSeed int64 `json:"seed" yaml:"seed"`
	// Trees is the ensemble size.
	Trees int `json:"trees" yaml:"trees"`
	// SampleSize is the per-tree subsample size.
	SampleSize int `json:"sample_size" yaml:"sample_size"`
}

// DefaultConfig returns sensible defaults for detector configuration.
func DefaultConfig() Config {
	return Config{
		Contamination: 0.05,
		RandomSeed:    42,
		Trees:         100,
		SampleSize:    256,
	}
}

// Validate checks the configuration ranges.
func (c Config) Validate() error {
	if !(c.Contamination > 0 && c.Contamination <= 0.5) {
		return fmt.Errorf("contamination must be in (0, 0.5], got %g", c.Contamination)
	}
	if c.Trees < 1 {
		return fmt.Errorf("trees must be positive, got %d", c.Trees)
	}
	if c.SampleSize < 2 {
		return fmt.Errorf("sample_size must be at least 2, got %d", c.SampleSize)
	}
	return nil
}
