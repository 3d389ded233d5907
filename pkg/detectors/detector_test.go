package detectors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "zero contamination", mutate: func(c *Config) { c.Contamination = 0 }, wantErr: true},
		{name: "half contamination", mutate: func(c *Config) { c.Contamination = 0.5 }},
		{name: "too much contamination", mutate: func(c *Config) { c.Contamination = 0.6 }, wantErr: true},
		{name: "no trees", mutate: func(c *Config) { c.Trees = 0 }, wantErr: true},
		{name: "tiny sample", mutate: func(c *Config) { c.SampleSize = 1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}
