// Package simulate generates synthetic bridge sensor readings.
package simulate

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/hed1ad/bridgeguard/pkg/sensor"
)

// Bridge geometry and channel distributions of the simulated deck.
const (
	DeckLength = 100.0
	DeckOffset = 5.0

	VibrationMean   = 0.0
	VibrationStd    = 0.5
	StressMean      = 0.0
	StressStd       = 1.0
	TemperatureMean = 25.0
	TemperatureStd  = 5.0
)

// Simulator draws readings for sensors placed evenly along the deck.
type Simulator struct {
	src rand.Source
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithSeed makes the draws reproducible.
func WithSeed(seed uint64) Option {
	return func(s *Simulator) {
		s.src = rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	}
}

// New creates a Simulator. Without a seed every run differs.
func New(opts ...Option) *Simulator {
	s := &Simulator{}
	for _, opt := range opts {
		opt(s)
	}
	if s.src == nil {
		s.src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return s
}

// Generate returns numSensors*numSamples readings grouped by sensor, with
// samples in draw order within each sensor.
func (s *Simulator) Generate(numSensors, numSamples int) ([]sensor.Reading, error) {
	if numSensors < 1 {
		return nil, fmt.Errorf("number of sensors must be positive, got %d", numSensors)
	}
	if numSamples < 1 {
		return nil, fmt.Errorf("number of samples must be positive, got %d", numSamples)
	}

	vibration := distuv.Normal{Mu: VibrationMean, Sigma: VibrationStd, Src: s.src}
	stress := distuv.Normal{Mu: StressMean, Sigma: StressStd, Src: s.src}
	temperature := distuv.Normal{Mu: TemperatureMean, Sigma: TemperatureStd, Src: s.src}

	positions := Positions(numSensors)
	readings := make([]sensor.Reading, 0, numSensors*numSamples)

	for i, x := range positions {
		for range numSamples {
			readings = append(readings, sensor.Reading{
				SensorID:    i + 1,
				PositionX:   x,
				PositionY:   DeckOffset,
				Vibration:   vibration.Rand(),
				Stress:      stress.Rand(),
				Temperature: temperature.Rand(),
			})
		}
	}

	return readings, nil
}

// Generate is a convenience wrapper around New(opts...).Generate.
func Generate(numSensors, numSamples int, opts ...Option) ([]sensor.Reading, error) {
	return New(opts...).Generate(numSensors, numSamples)
}

// Positions returns n points evenly spaced over [0, DeckLength], endpoints
// included. A single sensor sits at 0.
func Positions(n int) []float64 {
	if n <= 0 {
		return nil
	}
	positions := make([]float64, n)
	if n == 1 {
		return positions
	}
	step := DeckLength / float64(n-1)
	for i := range positions {
		positions[i] = float64(i) * step
	}
	positions[n-1] = DeckLength
	return positions
}
