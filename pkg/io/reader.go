// Package io provides input/output interfaces for pipeline data files.
package io

import "github.com/hed1ad/bridgeguard/pkg/sensor"

// Reader is the interface for reading sensor readings from a tabular source.
type Reader interface {
	// Read returns the complete dataset.
	Read() ([]sensor.Reading, error)

	// Close releases resources.
	Close() error
}

// Writer is the interface for writing raw or standardized readings.
type Writer interface {
	// WriteAll outputs every reading.
	WriteAll(readings []sensor.Reading) error

	// Close flushes and releases resources.
	Close() error
}

// ResultWriter is the interface for writing detection results.
type ResultWriter interface {
	// WriteResults outputs scored readings.
	WriteResults(results []sensor.ScoredReading) error

	// Close flushes and releases resources.
	Close() error
}
