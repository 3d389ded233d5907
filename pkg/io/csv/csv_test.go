package csv

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bgio "github.com/hed1ad/bridgeguard/pkg/io"
	"github.com/hed1ad/bridgeguard/pkg/sensor"
)

var (
	_ bgio.Reader       = (*Reader)(nil)
	_ bgio.Writer       = (*Writer)(nil)
	_ bgio.ResultWriter = (*Writer)(nil)
)

func TestRead(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		want       []sensor.Reading
		wantSchema []string
		wantErr    bool
	}{
		{
			name: "canonical order",
			input: "sensor_id,position_x,position_y,vibration,stress,temperature\n" +
				"1,0,5,0.1,-0.2,24.5\n" +
				"2,100,5,0.3,0.4,26\n",
			want: []sensor.Reading{
				{SensorID: 1, PositionX: 0, PositionY: 5, Vibration: 0.1, Stress: -0.2, Temperature: 24.5},
				{SensorID: 2, PositionX: 100, PositionY: 5, Vibration: 0.3, Stress: 0.4, Temperature: 26},
			},
		},
		{
			name: "shuffled columns with extras",
			input: "vibration,stress,temperature,sensor_id,position_x,position_y,anomaly\n" +
				"0.1,0.2,0.3,3.0,11.1,5,-1\n",
			want: []sensor.Reading{
				{SensorID: 3, PositionX: 11.1, PositionY: 5, Vibration: 0.1, Stress: 0.2, Temperature: 0.3},
			},
		},
		{
			name:       "missing columns",
			input:      "sensor_id,position_x,vibration\n1,0,0.1\n",
			wantSchema: []string{sensor.ColPositionY, sensor.ColStress, sensor.ColTemperature},
		},
		{
			name:       "empty input",
			input:      "",
			wantSchema: sensor.Columns,
		},
		{
			name: "bad number",
			input: "sensor_id,position_x,position_y,vibration,stress,temperature\n" +
				"1,0,5,abc,0,0\n",
			wantErr: true,
		},
		{
			name: "fractional sensor id",
			input: "sensor_id,position_x,position_y,vibration,stress,temperature\n" +
				"1.5,0,5,0,0,0\n",
			wantErr: true,
		},
		{
			name: "zero sensor id",
			input: "sensor_id,position_x,position_y,vibration,stress,temperature\n" +
				"0,0,5,0,0,0\n",
			wantErr: true,
		},
		{
			name: "negative sensor id",
			input: "sensor_id,position_x,position_y,vibration,stress,temperature\n" +
				"-4,0,5,0,0,0\n",
			wantErr: true,
		},
		{
			name: "infinite reading",
			input: "sensor_id,position_x,position_y,vibration,stress,temperature\n" +
				"1,0,5,inf,0,0\n",
			wantErr: true,
		},
		{
			name: "NaN text reading",
			input: "sensor_id,position_x,position_y,vibration,stress,temperature\n" +
				"1,0,5,0,NaN,0\n",
			wantErr: true,
		},
		{
			name: "infinite position",
			input: "sensor_id,position_x,position_y,vibration,stress,temperature\n" +
				"1,-Inf,5,0,0,0\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewReaderFrom(strings.NewReader(tt.input))
			if tt.wantSchema != nil {
				var schemaErr *SchemaError
				require.True(t, errors.As(err, &schemaErr), "got %v", err)
				assert.Equal(t, tt.wantSchema, schemaErr.Missing)
				return
			}
			require.NoError(t, err)
			defer r.Close()

			got, err := r.Read()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr string
	}{
		{in: "1", want: 1},
		{in: "12.0", want: 12},
		{in: "0", wantErr: "sensor_id: must be at least 1, got 0"},
		{in: "-4", wantErr: "sensor_id: must be at least 1, got -4"},
		{in: "-4.0", wantErr: "sensor_id: must be at least 1, got -4"},
		{in: "1e300", wantErr: "sensor_id: invalid value"},
		{in: "x", wantErr: "sensor_id: invalid value"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseID(tt.in)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFloatRejectsNonFinite(t *testing.T) {
	for _, in := range []string{"inf", "+Inf", "-infinity", "NaN", "nan"} {
		_, err := parseFloat(in, true)
		assert.Error(t, err, in)
	}

	v, err := parseFloat("", true)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(v))

	_, err = parseFloat("", false)
	assert.Error(t, err)
}

func TestReadMissingCells(t *testing.T) {
	input := "sensor_id,position_x,position_y,vibration,stress,temperature\n" +
		"1,0,5,,0.5, \n"

	r, err := NewReaderFrom(strings.NewReader(input))
	require.NoError(t, err)

	got, err := r.Read()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, math.IsNaN(got[0].Vibration))
	assert.Equal(t, 0.5, got[0].Stress)
	assert.True(t, math.IsNaN(got[0].Temperature))
}

func TestWriteRoundTrip(t *testing.T) {
	readings := []sensor.Reading{
		{SensorID: 1, PositionX: 0, PositionY: 5, Vibration: 0.25, Stress: -1.5, Temperature: 30.125},
		{SensorID: 2, PositionX: 50, PositionY: 5, Vibration: math.NaN(), Stress: 1, Temperature: 20},
	}

	path := filepath.Join(t.TempDir(), "nested", "readings.csv")
	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteAll(readings))
	require.NoError(t, w.Close())

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, sensor.Columns, r.Headers())

	got, err := r.Read()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, readings[0], got[0])
	assert.True(t, math.IsNaN(got[1].Vibration))
	assert.Equal(t, 50.0, got[1].PositionX)
}

func TestWriteResults(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriterTo(&buf)

	err := w.WriteResults([]sensor.ScoredReading{
		{Reading: sensor.Reading{SensorID: 1, PositionY: 5}, Anomaly: sensor.Inlier},
		{Reading: sensor.Reading{SensorID: 2, PositionX: 100, PositionY: 5, Stress: 9}, Anomaly: sensor.Outlier},
	})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	want := "sensor_id,position_x,position_y,vibration,stress,temperature,anomaly\n" +
		"1,0,5,0,0,0,1\n" +
		"2,100,5,0,9,0,-1\n"
	assert.Equal(t, want, buf.String())
}

func TestNewReaderMissingFile(t *testing.T) {
	_, err := NewReader(filepath.Join(t.TempDir(), "absent.csv"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
