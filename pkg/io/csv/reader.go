// Package csv provides CSV reading and writing of sensor readings.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/hed1ad/bridgeguard/pkg/sensor"
)

// SchemaError reports required columns absent from the input header.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("csv: missing required columns: %s", strings.Join(e.Missing, ", "))
}

// Reader reads sensor readings from CSV data with a header row.
type Reader struct {
	file    *os.File
	reader  *csv.Reader
	headers []string
	index   map[string]int
}

// NewReader opens filename for reading.
func NewReader(filename string) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	r, err := newReader(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	r.file = file

	return r, nil
}

// NewReaderFrom reads CSV data from src. Close does not close src.
func NewReaderFrom(src io.Reader) (*Reader, error) {
	return newReader(src)
}

func newReader(src io.Reader) (*Reader, error) {
	r := &Reader{
		reader: csv.NewReader(src),
	}

	headers, err := r.reader.Read()
	if err == io.EOF {
		return nil, &SchemaError{Missing: sensor.Columns}
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	r.headers = headers

	r.index = make(map[string]int, len(headers))
	for i, h := range headers {
		r.index[strings.TrimSpace(h)] = i
	}

	var missing []string
	for _, col := range sensor.Columns {
		if _, ok := r.index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}

	return r, nil
}

// Headers returns the column headers.
func (r *Reader) Headers() []string {
	return r.headers
}

// Read returns every row as a reading. Empty measurement cells become NaN.
// Extra columns are ignored.
func (r *Reader) Read() ([]sensor.Reading, error) {
	var readings []sensor.Reading

	for {
		record, err := r.reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		line, _ := r.reader.FieldPos(0)
		reading, err := r.parseRow(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		readings = append(readings, reading)
	}

	return readings, nil
}

// Close releases resources.
func (r *Reader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

func (r *Reader) parseRow(record []string) (sensor.Reading, error) {
	var reading sensor.Reading
	var err error

	if reading.SensorID, err = parseID(r.field(record, sensor.ColSensorID)); err != nil {
		return reading, err
	}
	if reading.PositionX, err = parseFloat(r.field(record, sensor.ColPositionX), false); err != nil {
		return reading, fmt.Errorf("%s: %w", sensor.ColPositionX, err)
	}
	if reading.PositionY, err = parseFloat(r.field(record, sensor.ColPositionY), false); err != nil {
		return reading, fmt.Errorf("%s: %w", sensor.ColPositionY, err)
	}
	for i, col := range sensor.Channels {
		v, err := parseFloat(r.field(record, col), true)
		if err != nil {
			return reading, fmt.Errorf("%s: %w", col, err)
		}
		reading.SetChannel(i, v)
	}

	return reading, nil
}

func (r *Reader) field(record []string, col string) string {
	return strings.TrimSpace(record[r.index[col]])
}

// parseID accepts integral floats ("3.0") as written by some tools.
// Sensor ids start at 1.
func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
			return 0, fmt.Errorf("%s: invalid value %q", sensor.ColSensorID, s)
		}
		id = int(f)
	}
	if id < 1 {
		return 0, fmt.Errorf("%s: must be at least 1, got %d", sensor.ColSensorID, id)
	}
	return id, nil
}

// parseFloat reads a finite number. Only an empty cell marks a missing
// value; "NaN" and "Inf" text is rejected.
func parseFloat(s string, allowMissing bool) (float64, error) {
	if s == "" {
		if allowMissing {
			return math.NaN(), nil
		}
		return 0, errors.New("empty value")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}
