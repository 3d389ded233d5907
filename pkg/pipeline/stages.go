package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hed1ad/bridgeguard/pkg/detect"
	"github.com/hed1ad/bridgeguard/pkg/model"
	"github.com/hed1ad/bridgeguard/pkg/preprocess"
	"github.com/hed1ad/bridgeguard/pkg/results"
	"github.com/hed1ad/bridgeguard/pkg/sensor"
	"github.com/hed1ad/bridgeguard/pkg/simulate"
	"github.com/hed1ad/bridgeguard/pkg/storage"
	"github.com/hed1ad/bridgeguard/pkg/train"
	"github.com/hed1ad/bridgeguard/pkg/visualize"
)

// Simulate generates readings for numSensors sensors and writes them to p.Output.
func (r *Runner) Simulate(ctx context.Context, p Paths, numSensors, numSamples int, opts ...simulate.Option) ([]sensor.Reading, error) {
	start := time.Now()

	readings, err := simulate.Generate(numSensors, numSamples, opts...)
	if err != nil {
		return nil, err
	}
	if err := r.writeReadings(ctx, p.Output, readings); err != nil {
		return nil, err
	}

	r.logger.Info("simulated sensor data",
		"sensors", numSensors,
		"rows", len(readings),
		"output", p.Output,
		since(start))
	return readings, nil
}

// Preprocess imputes and standardizes p.Input into p.Output. The fitted
// scaler is written next to the output, see preprocess.ScalerPath. If the
// scaler cannot be written the output is removed again.
func (r *Runner) Preprocess(ctx context.Context, p Paths) (preprocess.Scaler, error) {
	start := time.Now()

	readings, err := r.readReadings(ctx, p.Input)
	if err != nil {
		return preprocess.Scaler{}, err
	}

	var missing int
	for _, reading := range readings {
		if reading.HasMissing() {
			missing++
		}
	}

	standardized, scaler, err := preprocess.Preprocess(readings)
	if err != nil {
		return preprocess.Scaler{}, err
	}

	// Encode both outputs before writing either.
	data, err := encodeReadings(p.Output, standardized)
	if err != nil {
		return preprocess.Scaler{}, err
	}
	sidecar := preprocess.ScalerPath(p.Output)
	params, err := yaml.Marshal(scaler)
	if err != nil {
		return preprocess.Scaler{}, &storage.StorageError{Op: "encode", Key: sidecar, Err: err}
	}

	if err := r.files.Put(ctx, p.Output, data); err != nil {
		return preprocess.Scaler{}, err
	}
	if err := r.files.Put(ctx, sidecar, params); err != nil {
		r.discard(ctx, p.Output)
		return preprocess.Scaler{}, err
	}

	r.logger.Info("preprocessed sensor data",
		"rows", len(standardized),
		"rows_imputed", missing,
		"input", p.Input,
		"output", p.Output,
		since(start))
	return scaler, nil
}

// Train fits a model on p.Input and stores it under p.Model. When cfg has no
// scaler, the one written by Preprocess next to p.Input is embedded if present.
func (r *Runner) Train(ctx context.Context, p Paths, cfg train.Config) (*model.Artifact, train.Report, error) {
	start := time.Now()

	readings, err := r.readReadings(ctx, p.Input)
	if err != nil {
		return nil, train.Report{}, err
	}

	if cfg.Scaler == nil {
		scaler, err := r.readScaler(ctx, preprocess.ScalerPath(p.Input))
		if err != nil {
			return nil, train.Report{}, err
		}
		cfg.Scaler = scaler
	}

	artifact, report, err := train.Train(readings, cfg)
	if err != nil {
		return nil, train.Report{}, err
	}

	if err := model.Save(ctx, r.models, p.Model, artifact); err != nil {
		return nil, train.Report{}, err
	}

	r.logger.Info("trained model",
		"run_id", artifact.Meta.RunID,
		"train_rows", report.TrainRows,
		"test_rows", report.TestRows,
		"test_outlier_rate", report.TestOutlierRate,
		"threshold", report.Threshold,
		"scaler", artifact.Scaler != nil,
		"model", p.Model,
		since(start))
	return artifact, report, nil
}

// readScaler returns nil when no sidecar exists.
func (r *Runner) readScaler(ctx context.Context, path string) (*preprocess.Scaler, error) {
	data, err := r.files.Get(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		r.logger.Debug("no scaler parameters found", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var scaler preprocess.Scaler
	if err := yaml.Unmarshal(data, &scaler); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &scaler, nil
}

// DetectOptions controls the detect stage.
type DetectOptions struct {
	// Raw marks p.Input as unstandardized; the model's scaler is applied first.
	Raw bool
}

// Detect labels the readings in p.Input with the model stored under p.Model
// and writes them to p.Output. With a results database configured the run is
// recorded there after the file is written; a failed recording removes the file.
func (r *Runner) Detect(ctx context.Context, p Paths, opts DetectOptions) ([]sensor.ScoredReading, error) {
	start := time.Now()

	artifact, err := detect.LoadModel(ctx, r.models, p.Model)
	if err != nil {
		return nil, err
	}

	readings, err := r.readReadings(ctx, p.Input)
	if err != nil {
		return nil, err
	}

	var scored []sensor.ScoredReading
	if opts.Raw {
		scored, err = detect.DetectRaw(readings, artifact)
	} else {
		scored, err = detect.Detect(readings, artifact)
	}
	if err != nil {
		return nil, err
	}

	data, err := encodeResults(p.Output, scored)
	if err != nil {
		return nil, err
	}
	if err := r.files.Put(ctx, p.Output, data); err != nil {
		return nil, err
	}

	// The database only records runs whose result file exists.
	if r.results != nil {
		w := r.results.Writer(ctx, results.Run{
			ModelRunID: artifact.Meta.RunID,
			Source:     p.Input,
		})
		if err := writeScored(w, scored); err != nil {
			r.discard(ctx, p.Output)
			return nil, fmt.Errorf("recording results: %w", err)
		}
		r.logger.Debug("recorded detection run", "run_id", w.Run().ID)
	}

	r.logger.Info("detected anomalies",
		"rows", len(scored),
		"outliers", detect.Outliers(scored),
		"model_run_id", artifact.Meta.RunID,
		"input", p.Input,
		"output", p.Output,
		since(start))
	return scored, nil
}

// Visualize renders the bending animation for the readings in p.Input into p.Output.
func (r *Runner) Visualize(ctx context.Context, p Paths, opts ...visualize.Option) error {
	start := time.Now()

	readings, err := r.readReadings(ctx, p.Input)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := visualize.RenderGIF(&buf, readings, opts...); err != nil {
		return err
	}
	if err := r.files.Put(ctx, p.Output, buf.Bytes()); err != nil {
		return err
	}

	r.logger.Info("rendered animation",
		"sensors", sensor.SensorCount(readings),
		"bytes", buf.Len(),
		"output", p.Output,
		since(start))
	return nil
}
