// Package preprocess imputes missing measurements and standardizes the
// measurement channels of sensor readings.
package preprocess

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/hed1ad/bridgeguard/pkg/sensor"
)

// EmptyColumnError reports a channel with no observed values, whose mean
// and therefore imputation value is undefined.
type EmptyColumnError struct {
	Column string
}

func (e *EmptyColumnError) Error() string {
	return fmt.Sprintf("column %q has no values to compute a mean from", e.Column)
}

// Scaler holds per-channel standardization parameters, indexed in
// sensor.Channels order.
type Scaler struct {
	Mean  [sensor.NumChannels]float64 `json:"mean"`
	Scale [sensor.NumChannels]float64 `json:"scale"`
	// Impute holds the pre-standardization means used to fill missing cells.
	Impute [sensor.NumChannels]float64 `json:"impute"`
}

// Fit computes imputation means and population mean/stddev of every channel.
// A channel with zero variance gets scale 1. NaN marks a missing cell; an
// infinite value is an error.
func Fit(readings []sensor.Reading) (Scaler, error) {
	var s Scaler

	for i, col := range sensor.Channels {
		observed := make([]float64, 0, len(readings))
		for j, r := range readings {
			v := r.Channel(i)
			if math.IsNaN(v) {
				continue
			}
			if math.IsInf(v, 0) {
				return Scaler{}, fmt.Errorf("column %q has non-finite value at row %d", col, j)
			}
			observed = append(observed, v)
		}
		if len(observed) == 0 {
			return Scaler{}, &EmptyColumnError{Column: col}
		}

		impute := stat.Mean(observed, nil)

		// Imputed cells equal the mean: they leave the mean unchanged and
		// only add zero deviations, so the filled column's stats follow
		// from the observed values and the full row count.
		_, std := stat.PopMeanStdDev(observed, nil)
		std *= math.Sqrt(float64(len(observed)) / float64(len(readings)))

		s.Impute[i] = impute
		s.Mean[i] = impute
		s.Scale[i] = std
		if std == 0 {
			s.Scale[i] = 1
		}
	}

	// Finite inputs can still overflow the moments.
	if err := s.Validate(); err != nil {
		return Scaler{}, err
	}
	return s, nil
}

// Transform returns standardized copies of readings. Missing cells are
// filled with the fitted imputation mean first. Identifying columns pass
// through unchanged and the input is not modified.
func (s Scaler) Transform(readings []sensor.Reading) []sensor.Reading {
	out := make([]sensor.Reading, len(readings))
	for j, r := range readings {
		for i := range sensor.NumChannels {
			v := r.Channel(i)
			if math.IsNaN(v) {
				v = s.Impute[i]
			}
			r.SetChannel(i, (v-s.Mean[i])/s.Scale[i])
		}
		out[j] = r
	}
	return out
}

// Validate reports parameters that cannot standardize data.
func (s Scaler) Validate() error {
	for i, col := range sensor.Channels {
		for _, v := range []float64{s.Mean[i], s.Scale[i], s.Impute[i]} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("scaler: non-finite parameter for %s", col)
			}
		}
		if s.Scale[i] <= 0 {
			return fmt.Errorf("scaler: non-positive scale for %s", col)
		}
	}
	return nil
}

// Preprocess fits a scaler on readings and applies it.
func Preprocess(readings []sensor.Reading) ([]sensor.Reading, Scaler, error) {
	s, err := Fit(readings)
	if err != nil {
		return nil, Scaler{}, err
	}
	return s.Transform(readings), s, nil
}
