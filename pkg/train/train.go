// Package train fits the anomaly model on standardized sensor readings.
package train

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/hed1ad/bridgeguard/pkg/detectors"
	"github.com/hed1ad/bridgeguard/pkg/detectors/iforest"
	"github.com/hed1ad/bridgeguard/pkg/model"
	"github.com/hed1ad/bridgeguard/pkg/preprocess"
	"github.com/hed1ad/bridgeguard/pkg/sensor"
)

// MinTrainRows is the smallest training subset a forest can be fitted on.
const MinTrainRows = 2

// InsufficientDataError reports a training subset too small to fit on.
type InsufficientDataError struct {
	Rows     int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("training subset has %d rows, need at least %d", e.Rows, e.Required)
}

// Config controls the split and the forest.
type Config struct {
	// TestFraction is the share of rows held out from fitting, in (0, 1).
	TestFraction float64
	// Detector configures the isolation forest; its seed also drives the split.
	Detector detectors.Config
	// Scaler is embedded into the artifact when set.
	Scaler *preprocess.Scaler
}

// DefaultConfig returns the standard training setup.
func DefaultConfig() Config {
	return Config{
		TestFraction: 0.2,
		Detector:     detectors.DefaultConfig(),
	}
}

// Validate checks the configuration ranges.
func (c Config) Validate() error {
	if !(c.TestFraction > 0 && c.TestFraction < 1) {
		return fmt.Errorf("test fraction must be in (0, 1), got %g", c.TestFraction)
	}
	return c.Detector.Validate()
}

// Report summarizes a training run. The held-out subset is only measured,
// never used to tune the model.
type Report struct {
	TrainRows int
	TestRows  int
	// TestOutlierRate is the fraction of held-out rows labelled outlier.
	TestOutlierRate float64
	Threshold       float64
}

// Split shuffles row indices with seed and returns the first nTrain as the
// training subset, where nTest = ceil(frac * n).
func Split(n int, frac float64, seed int64) (trainIdx, testIdx []int) {
	nTest := int(math.Ceil(frac * float64(n)))
	nTest = min(nTest, n)
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return perm[:n-nTest], perm[n-nTest:]
}

// Train splits readings, fits a forest on the training subset and wraps it
// into an artifact.
func Train(readings []sensor.Reading, cfg Config) (*model.Artifact, Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, Report{}, err
	}

	trainIdx, testIdx := Split(len(readings), cfg.TestFraction, cfg.Detector.RandomSeed)
	if len(trainIdx) < MinTrainRows {
		return nil, Report{}, &InsufficientDataError{Rows: len(trainIdx), Required: MinTrainRows}
	}

	trainData := rows(readings, trainIdx)
	testData := rows(readings, testIdx)

	forest := iforest.New(iforest.FromConfig(cfg.Detector)...)
	if err := forest.Fit(trainData); err != nil {
		return nil, Report{}, fmt.Errorf("fitting forest: %w", err)
	}

	report := Report{
		TrainRows: len(trainData),
		TestRows:  len(testData),
		Threshold: forest.Threshold(),
	}

	if len(testData) > 0 {
		scores, err := forest.Classify(testData)
		if err != nil {
			return nil, Report{}, fmt.Errorf("scoring held-out rows: %w", err)
		}
		var outliers int
		for _, s := range scores {
			if s.IsAnomaly {
				outliers++
			}
		}
		report.TestOutlierRate = float64(outliers) / float64(len(scores))
	}

	artifact := model.New(forest, cfg.Scaler, cfg.Detector, report.TrainRows, report.TestRows)
	return artifact, report, nil
}

func rows(readings []sensor.Reading, idx []int) [][]float64 {
	data := make([][]float64, len(idx))
	for i, j := range idx {
		data[i] = readings[j].Features()
	}
	return data
}
