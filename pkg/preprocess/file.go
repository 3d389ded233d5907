package preprocess

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/hed1ad/bridgeguard/pkg/sensor"
)

// ScalerPath returns the sidecar path holding the scaler that produced the
// standardized file at dataPath.
func ScalerPath(dataPath string) string {
	return dataPath + ".scaler.yaml"
}

type channelParams struct {
	Mean   float64 `yaml:"mean"`
	Scale  float64 `yaml:"scale"`
	Impute float64 `yaml:"impute"`
}

type scalerFile struct {
	Columns map[string]channelParams `yaml:"columns"`
}

// MarshalYAML encodes the scaler keyed by column name.
func (s Scaler) MarshalYAML() (any, error) {
	f := scalerFile{Columns: make(map[string]channelParams, sensor.NumChannels)}
	for i, col := range sensor.Channels {
		f.Columns[col] = channelParams{Mean: s.Mean[i], Scale: s.Scale[i], Impute: s.Impute[i]}
	}
	return f, nil
}

// UnmarshalYAML decodes a scaler written by MarshalYAML and validates it.
func (s *Scaler) UnmarshalYAML(value *yaml.Node) error {
	var f scalerFile
	if err := value.Decode(&f); err != nil {
		return err
	}

	var decoded Scaler
	for i, col := range sensor.Channels {
		p, ok := f.Columns[col]
		if !ok {
			return fmt.Errorf("scaler has no parameters for %s", col)
		}
		decoded.Mean[i], decoded.Scale[i], decoded.Impute[i] = p.Mean, p.Scale, p.Impute
	}
	if err := decoded.Validate(); err != nil {
		return err
	}

	*s = decoded
	return nil
}
