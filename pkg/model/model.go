// Package model defines the persisted anomaly model artifact: a fitted
// isolation forest bundled with the standardization parameters of the data
// it was trained on.
package model

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/hed1ad/bridgeguard/pkg/detectors"
	"github.com/hed1ad/bridgeguard/pkg/detectors/iforest"
	"github.com/hed1ad/bridgeguard/pkg/preprocess"
	"github.com/hed1ad/bridgeguard/pkg/sensor"
	"github.com/hed1ad/bridgeguard/pkg/storage"
)

const (
	magic = "bridgeguard/model"

	// FormatVersion is the artifact layout version written by Encode.
	FormatVersion = 1
)

// ModelLoadError reports an artifact that is missing, unreadable,
// corrupt or incompatible with this build.
type ModelLoadError struct {
	Key string
	Err error
}

func (e *ModelLoadError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("model: load: %v", e.Err)
	}
	return fmt.Sprintf("model: load %s: %v", e.Key, e.Err)
}

func (e *ModelLoadError) Unwrap() error {
	return e.Err
}

// Metadata describes how an artifact was produced.
type Metadata struct {
	Version   int
	RunID     string
	CreatedAt time.Time
	Features  []string
	Detector  detectors.Config
	TrainRows int
	TestRows  int
}

// Artifact is an immutable fitted model. It is safe for concurrent use.
type Artifact struct {
	Meta Metadata
	// Scaler holds the training data's standardization parameters; nil
	// when the training input was standardized elsewhere.
	Scaler *preprocess.Scaler
	Forest *iforest.IsolationForest
}

// New wraps a fitted forest into an artifact with a fresh run id.
func New(forest *iforest.IsolationForest, scaler *preprocess.Scaler, cfg detectors.Config, trainRows, testRows int) *Artifact {
	return &Artifact{
		Meta: Metadata{
			Version:   FormatVersion,
			RunID:     uuid.NewString(),
			CreatedAt: time.Now().UTC(),
			Features:  slices.Clone(sensor.Channels),
			Detector:  cfg,
			TrainRows: trainRows,
			TestRows:  testRows,
		},
		Scaler: scaler,
		Forest: forest,
	}
}

type envelope struct {
	Magic  string
	Meta   Metadata
	Scaler *preprocess.Scaler
	Forest []byte
}

// Encode serializes the artifact.
func Encode(a *Artifact) ([]byte, error) {
	forest, err := a.Forest.Save()
	if err != nil {
		return nil, fmt.Errorf("model: encode forest: %w", err)
	}

	var buf bytes.Buffer
	env := envelope{Magic: magic, Meta: a.Meta, Scaler: a.Scaler, Forest: forest}
	if err := gob.NewEncoder(&buf).Encode(env); err != nil {
		return nil, fmt.Errorf("model: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses an artifact produced by Encode. Every failure is a *ModelLoadError.
func Decode(data []byte) (*Artifact, error) {
	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return nil, &ModelLoadError{Err: fmt.Errorf("not a model artifact: %w", err)}
	}

	switch {
	case env.Magic != magic:
		return nil, &ModelLoadError{Err: errors.New("not a model artifact")}
	case env.Meta.Version != FormatVersion:
		return nil, &ModelLoadError{Err: fmt.Errorf("unsupported artifact version %d", env.Meta.Version)}
	case !slices.Equal(env.Meta.Features, sensor.Channels):
		return nil, &ModelLoadError{Err: fmt.Errorf("model features %v, want %v", env.Meta.Features, sensor.Channels)}
	}

	if env.Scaler != nil {
		if err := env.Scaler.Validate(); err != nil {
			return nil, &ModelLoadError{Err: err}
		}
	}

	forest := iforest.New()
	if err := forest.Load(env.Forest); err != nil {
		return nil, &ModelLoadError{Err: err}
	}

	return &Artifact{Meta: env.Meta, Scaler: env.Scaler, Forest: forest}, nil
}

// Save encodes the artifact and stores it under key. Store failures are
// returned as *storage.StorageError.
func Save(ctx context.Context, store storage.Store, key string, a *Artifact) error {
	data, err := Encode(a)
	if err != nil {
		return err
	}
	return store.Put(ctx, key, data)
}

// Load reads and decodes the artifact stored under key.
func Load(ctx context.Context, store storage.Store, key string) (*Artifact, error) {
	data, err := store.Get(ctx, key)
	if err != nil {
		return nil, &ModelLoadError{Key: key, Err: err}
	}

	a, err := Decode(data)
	if err != nil {
		var loadErr *ModelLoadError
		if errors.As(err, &loadErr) {
			loadErr.Key = key
		}
		return nil, err
	}
	return a, nil
}
