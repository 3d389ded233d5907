package csv

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hed1ad/bridgeguard/pkg/sensor"
)

// Writer writes readings and detection results as CSV with a header row.
type Writer struct {
	file   *os.File
	writer *csv.Writer
}

// NewWriter creates filename, including missing parent directories.
func NewWriter(filename string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return nil, err
	}

	file, err := os.Create(filename)
	if err != nil {
		return nil, err
	}

	return &Writer{file: file, writer: csv.NewWriter(file)}, nil
}

// NewWriterTo writes CSV data to dst. Close does not close dst.
func NewWriterTo(dst io.Writer) *Writer {
	return &Writer{writer: csv.NewWriter(dst)}
}

// WriteAll writes the header and every reading.
func (w *Writer) WriteAll(readings []sensor.Reading) error {
	if err := w.writer.Write(sensor.Columns); err != nil {
		return err
	}
	for _, r := range readings {
		if err := w.writer.Write(formatReading(r)); err != nil {
			return err
		}
	}
	w.writer.Flush()
	return w.writer.Error()
}

// WriteResults writes the header and every scored reading with its anomaly label.
func (w *Writer) WriteResults(results []sensor.ScoredReading) error {
	if err := w.writer.Write(sensor.ScoredColumns); err != nil {
		return err
	}
	for _, r := range results {
		record := append(formatReading(r.Reading), strconv.Itoa(int(r.Anomaly)))
		if err := w.writer.Write(record); err != nil {
			return err
		}
	}
	w.writer.Flush()
	return w.writer.Error()
}

// Close flushes buffered rows and closes the file.
func (w *Writer) Close() error {
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		if w.file != nil {
			w.file.Close()
		}
		return err
	}
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}

func formatReading(r sensor.Reading) []string {
	return []string{
		strconv.Itoa(r.SensorID),
		formatFloat(r.PositionX),
		formatFloat(r.PositionY),
		formatFloat(r.Vibration),
		formatFloat(r.Stress),
		formatFloat(r.Temperature),
	}
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
