// Package config provides configuration loading for bridgeguard.
// Values come from defaults, an optional YAML file, a .env file and
// BRIDGEGUARD_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hed1ad/bridgeguard/pkg/detectors"
	"github.com/hed1ad/bridgeguard/pkg/logging"
	"github.com/hed1ad/bridgeguard/pkg/storage"
)

// DefaultFile is looked up in the working directory when no file is given.
const DefaultFile = "bridgeguard.yaml"

// Storage backends.
const (
	BackendFile = "file"
	BackendS3   = "s3"
)

// Config contains all bridgeguard settings.
type Config struct {
	Paths      PathsConfig      `json:"paths" yaml:"paths"`
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`
	Training   TrainingConfig   `json:"training" yaml:"training"`
	Storage    StorageConfig    `json:"storage" yaml:"storage"`
	Results    ResultsConfig    `json:"results" yaml:"results"`
	Animation  AnimationConfig  `json:"animation" yaml:"animation"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
}

// PathsConfig holds the file locations of every stage.
type PathsConfig struct {
	// Raw is the simulator output.
	Raw string `json:"raw" yaml:"raw"`
	// Processed is the standardized preprocessor output.
	Processed string `json:"processed" yaml:"processed"`
	// Model is the artifact key in the configured storage backend.
	Model string `json:"model" yaml:"model"`
	// Results is the detector output.
	Results string `json:"results" yaml:"results"`
	// Animation is the rendered GIF.
	Animation string `json:"animation" yaml:"animation"`
}

// SimulationConfig sizes the synthetic dataset.
type SimulationConfig struct {
	Sensors int `json:"sensors" yaml:"sensors"`
	Samples int `json:"samples" yaml:"samples"`
	// Seed makes runs reproducible; unset means a fresh random stream.
	Seed *uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// TrainingConfig configures the split and the forest.
type TrainingConfig struct {
	// TestFraction is the share of rows held out from fitting.
	TestFraction float64 `json:"test_fraction" yaml:"test_fraction"`

	// Forest settings: contamination, seed, trees, sample_size.
	detectors.Config `yaml:",inline"`
}

// StorageConfig selects where model artifacts live.
type StorageConfig struct {
	// Backend is "file" (default) or "s3".
	Backend string `json:"backend" yaml:"backend"`

	// Root resolves relative keys for the file backend.
	Root string `json:"root,omitempty" yaml:"root,omitempty"`

	S3 storage.S3Config `json:"s3" yaml:"s3"`
}

// ResultsConfig configures the optional results database.
type ResultsConfig struct {
	// DBPath enables the SQLite results store when non-empty.
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// AnimationConfig configures the rendered GIF.
type AnimationConfig struct {
	Frames int     `json:"frames" yaml:"frames"`
	Width  int     `json:"width" yaml:"width"`
	Height int     `json:"height" yaml:"height"`
	ZLimit float64 `json:"z_limit" yaml:"z_limit"`
}

// LoggingConfig configures operational logging.
type LoggingConfig struct {
	// Level sets the log verbosity: "debug", "info" (default), "warn" or "error".
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with the standard file layout.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Raw:       "data/raw/simulated_sensor_data.csv",
			Processed: "data/processed/preprocessed_sensor_data.csv",
			Model:     "models/anomaly_detection_model.bin",
			Results:   "outputs/reports/anomaly_detection_results.csv",
			Animation: "outputs/figures/bridge_bending_animation.gif",
		},
		Simulation: SimulationConfig{
			Sensors: 10,
			Samples: 100,
		},
		Training: TrainingConfig{
			TestFraction: 0.2,
			Config:       detectors.DefaultConfig(),
		},
		Storage: StorageConfig{
			Backend: BackendFile,
		},
		Animation: AnimationConfig{
			Frames: 360,
			Width:  480,
			Height: 240,
			ZLimit: 10,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration. An explicit path must exist; otherwise
// DefaultFile is used when present. A .env file in the working directory is
// loaded into the environment if it exists.
func Load(path string) (*Config, error) {
	config := Default()

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Storage.S3.AccessKey = expandEnvVars(config.Storage.S3.AccessKey)
	config.Storage.S3.SecretKey = expandEnvVars(config.Storage.S3.SecretKey)

	return config, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Simulation.Sensors < 1 || c.Simulation.Samples < 1 {
		return fmt.Errorf("simulation sensors and samples must be positive, got %d and %d",
			c.Simulation.Sensors, c.Simulation.Samples)
	}

	if !(c.Training.TestFraction > 0 && c.Training.TestFraction < 1) {
		return fmt.Errorf("test_fraction must be between 0 and 1 exclusive, got %g", c.Training.TestFraction)
	}
	if err := c.Training.Config.Validate(); err != nil {
		return fmt.Errorf("training: %w", err)
	}

	switch c.Storage.Backend {
	case "", BackendFile:
	case BackendS3:
		if c.Storage.S3.Endpoint == "" || c.Storage.S3.Bucket == "" {
			return errors.New("storage backend s3 requires s3.endpoint and s3.bucket")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (valid: file, s3)", c.Storage.Backend)
	}

	if c.Animation.Frames < 1 || c.Animation.ZLimit <= 0 {
		return fmt.Errorf("animation frames and z_limit must be positive")
	}

	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}

// Store opens the configured model storage backend.
func (c *Config) Store() (storage.Store, error) {
	if c.Storage.Backend == BackendS3 {
		return storage.NewS3Store(c.Storage.S3)
	}
	return storage.NewFileStore(c.Storage.Root), nil
}

// applyEnvOverrides applies BRIDGEGUARD_* environment variables.
func applyEnvOverrides(config *Config) error {
	strs := map[string]*string{
		"BRIDGEGUARD_RAW_PATH":        &config.Paths.Raw,
		"BRIDGEGUARD_PROCESSED_PATH":  &config.Paths.Processed,
		"BRIDGEGUARD_MODEL_PATH":      &config.Paths.Model,
		"BRIDGEGUARD_RESULTS_PATH":    &config.Paths.Results,
		"BRIDGEGUARD_ANIMATION_PATH":  &config.Paths.Animation,
		"BRIDGEGUARD_STORAGE_BACKEND": &config.Storage.Backend,
		"BRIDGEGUARD_STORAGE_ROOT":    &config.Storage.Root,
		"BRIDGEGUARD_S3_ENDPOINT":     &config.Storage.S3.Endpoint,
		"BRIDGEGUARD_S3_BUCKET":       &config.Storage.S3.Bucket,
		"BRIDGEGUARD_S3_ACCESS_KEY":   &config.Storage.S3.AccessKey,
		"BRIDGEGUARD_S3_SECRET_KEY":   &config.Storage.S3.SecretKey,
		"BRIDGEGUARD_RESULTS_DB":      &config.Results.DBPath,
		"BRIDGEGUARD_LOG_LEVEL":       &config.Logging.Level,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("BRIDGEGUARD_S3_SECURE"); v != "" {
		config.Storage.S3.Secure = v == "true" || v == "1"
	}

	if v := os.Getenv("BRIDGEGUARD_CONTAMINATION"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid BRIDGEGUARD_CONTAMINATION: %w", err)
		}
		config.Training.Contamination = f
	}

	if v := os.Getenv("BRIDGEGUARD_TRAIN_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid BRIDGEGUARD_TRAIN_SEED: %w", err)
		}
		config.Training.RandomSeed = n
	}

	if v := os.Getenv("BRIDGEGUARD_SIMULATION_SEED"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid BRIDGEGUARD_SIMULATION_SEED: %w", err)
		}
		config.Simulation.Seed = &n
	}

	return nil
}

// expandEnvVars expands ${VAR} patterns with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
