// Package sensor defines the bridge sensor data model shared by every
// pipeline stage.
package sensor

import (
	"fmt"
	"math"
)

// Column names of the tabular files, in canonical output order.
const (
	ColSensorID    = "sensor_id"
	ColPositionX   = "position_x"
	ColPositionY   = "position_y"
	ColVibration   = "vibration"
	ColStress      = "stress"
	ColTemperature = "temperature"
	ColAnomaly     = "anomaly"
)

// Columns is the column layout of raw and standardized reading files.
var Columns = []string{
	ColSensorID,
	ColPositionX,
	ColPositionY,
	ColVibration,
	ColStress,
	ColTemperature,
}

// ScoredColumns is the column layout of detector output files.
var ScoredColumns = append(append([]string(nil), Columns...), ColAnomaly)

// Channels are the numeric measurement columns fed to the model, in feature order.
var Channels = []string{ColVibration, ColStress, ColTemperature}

// NumChannels is the model's feature count.
const NumChannels = 3

// Reading is one sample of one sensor. A missing measurement is NaN.
type Reading struct {
	SensorID    int
	PositionX   float64
	PositionY   float64
	Vibration   float64
	Stress      float64
	Temperature float64
}

// Features returns the measurement channels in model feature order.
func (r Reading) Features() []float64 {
	return []float64{r.Vibration, r.Stress, r.Temperature}
}

// Channel returns the i-th measurement channel.
func (r Reading) Channel(i int) float64 {
	switch i {
	case 0:
		return r.Vibration
	case 1:
		return r.Stress
	case 2:
		return r.Temperature
	}
	panic(fmt.Sprintf("sensor: channel index %d out of range", i))
}

// SetChannel sets the i-th measurement channel.
func (r *Reading) SetChannel(i int, v float64) {
	switch i {
	case 0:
		r.Vibration = v
	case 1:
		r.Stress = v
	case 2:
		r.Temperature = v
	default:
		panic(fmt.Sprintf("sensor: channel index %d out of range", i))
	}
}

// HasMissing reports whether any measurement channel is NaN.
func (r Reading) HasMissing() bool {
	return math.IsNaN(r.Vibration) || math.IsNaN(r.Stress) || math.IsNaN(r.Temperature)
}

// Label is the detector's verdict for a reading.
type Label int

const (
	// Inlier marks a reading consistent with the training data.
	Inlier Label = 1
	// Outlier marks an anomalous reading.
	Outlier Label = -1
)

func (l Label) String() string {
	switch l {
	case Inlier:
		return "inlier"
	case Outlier:
		return "outlier"
	}
	return "unknown"
}

// ScoredReading is a reading with the detector's result attached.
type ScoredReading struct {
	Reading
	// Score is the isolation score in [0, 1]; higher is more anomalous.
	Score   float64
	Anomaly Label
}

// Matrix extracts the feature matrix of the readings.
func Matrix(readings []Reading) [][]float64 {
	data := make([][]float64, len(readings))
	for i, r := range readings {
		data[i] = r.Features()
	}
	return data
}

// SensorCount returns the number of distinct sensor ids.
func SensorCount(readings []Reading) int {
	seen := make(map[int]struct{})
	for _, r := range readings {
		seen[r.SensorID] = struct{}{}
	}
	return len(seen)
}
