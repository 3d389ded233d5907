// Package pipeline runs the bridgeguard stages against files: simulate,
// preprocess, train, detect and visualize. Every stage reads its whole input,
// computes in memory and writes its output once; a failed stage leaves no
// partial output behind.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	bgio "github.com/hed1ad/bridgeguard/pkg/io"
	"github.com/hed1ad/bridgeguard/pkg/io/csv"
	"github.com/hed1ad/bridgeguard/pkg/logging"
	"github.com/hed1ad/bridgeguard/pkg/results"
	"github.com/hed1ad/bridgeguard/pkg/sensor"
	"github.com/hed1ad/bridgeguard/pkg/storage"
)

// Paths names the files a stage works on. Stages ignore fields they do not use.
type Paths struct {
	// Input is the tabular file the stage reads.
	Input string
	// Output is the file the stage writes.
	Output string
	// Model is the artifact key in the model store.
	Model string
}

// Runner executes stages. Data files live on the local filesystem; model
// artifacts go to the configured store.
type Runner struct {
	models  storage.Store
	files   *storage.FileStore
	results *results.Store
	logger  *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger for stage progress.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithResults records every detection run in the results database.
func WithResults(store *results.Store) Option {
	return func(r *Runner) {
		r.results = store
	}
}

// New creates a Runner that keeps models in models.
func New(models storage.Store, opts ...Option) *Runner {
	r := &Runner{
		models: models,
		files:  storage.NewFileStore(""),
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// readReadings loads a CSV data file.
func (r *Runner) readReadings(ctx context.Context, path string) ([]sensor.Reading, error) {
	data, err := r.files.Get(ctx, path)
	if err != nil {
		return nil, err
	}

	reader, err := csv.NewReaderFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return readAll(reader, path)
}

func readAll(reader bgio.Reader, path string) ([]sensor.Reading, error) {
	defer reader.Close()

	readings, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return readings, nil
}

// writeReadings stores readings as a CSV data file.
func (r *Runner) writeReadings(ctx context.Context, path string, readings []sensor.Reading) error {
	data, err := encodeReadings(path, readings)
	if err != nil {
		return err
	}
	return r.files.Put(ctx, path, data)
}

func encodeReadings(path string, readings []sensor.Reading) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeAll(csv.NewWriterTo(&buf), readings); err != nil {
		return nil, &storage.StorageError{Op: "encode", Key: path, Err: err}
	}
	return buf.Bytes(), nil
}

func writeAll(w bgio.Writer, readings []sensor.Reading) error {
	if err := w.WriteAll(readings); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func encodeResults(path string, scored []sensor.ScoredReading) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeScored(csv.NewWriterTo(&buf), scored); err != nil {
		return nil, &storage.StorageError{Op: "encode", Key: path, Err: err}
	}
	return buf.Bytes(), nil
}

// discard removes an output written earlier by a stage that then failed.
func (r *Runner) discard(ctx context.Context, path string) {
	if err := r.files.Delete(context.WithoutCancel(ctx), path); err != nil {
		r.logger.Warn("removing output of failed stage", "path", path, "error", err)
	}
}

func writeScored(w bgio.ResultWriter, scored []sensor.ScoredReading) error {
	if err := w.WriteResults(scored); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func since(start time.Time) slog.Attr {
	return slog.Duration("duration", time.Since(start).Round(time.Microsecond))
}
