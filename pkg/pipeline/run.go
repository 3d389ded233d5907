package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/hed1ad/bridgeguard/pkg/config"
	"github.com/hed1ad/bridgeguard/pkg/simulate"
	"github.com/hed1ad/bridgeguard/pkg/train"
	"github.com/hed1ad/bridgeguard/pkg/visualize"
)

// SimulateOptions returns the simulator options described by cfg.
func SimulateOptions(cfg config.SimulationConfig) []simulate.Option {
	if cfg.Seed == nil {
		return nil
	}
	return []simulate.Option{simulate.WithSeed(*cfg.Seed)}
}

// TrainConfig returns the trainer settings described by cfg.
func TrainConfig(cfg config.TrainingConfig) train.Config {
	return train.Config{
		TestFraction: cfg.TestFraction,
		Detector:     cfg.Config,
	}
}

// VisualizeOptions returns the renderer options described by cfg.
func VisualizeOptions(cfg config.AnimationConfig) []visualize.Option {
	return []visualize.Option{
		visualize.WithFrames(cfg.Frames),
		visualize.WithSize(cfg.Width, cfg.Height),
		visualize.WithZLimit(cfg.ZLimit),
	}
}

// Run executes every stage in order with the paths of cfg. The detector
// scores the preprocessed file.
func (r *Runner) Run(ctx context.Context, cfg *config.Config) error {
	start := time.Now()
	paths := cfg.Paths

	if _, err := r.Simulate(ctx, Paths{Output: paths.Raw},
		cfg.Simulation.Sensors, cfg.Simulation.Samples, SimulateOptions(cfg.Simulation)...); err != nil {
		return fmt.Errorf("simulate: %w", err)
	}

	if _, err := r.Preprocess(ctx, Paths{Input: paths.Raw, Output: paths.Processed}); err != nil {
		return fmt.Errorf("preprocess: %w", err)
	}

	if _, _, err := r.Train(ctx, Paths{Input: paths.Processed, Model: paths.Model}, TrainConfig(cfg.Training)); err != nil {
		return fmt.Errorf("train: %w", err)
	}

	if _, err := r.Detect(ctx, Paths{Input: paths.Processed, Output: paths.Results, Model: paths.Model}, DetectOptions{}); err != nil {
		return fmt.Errorf("detect: %w", err)
	}

	if err := r.Visualize(ctx, Paths{Input: paths.Results, Output: paths.Animation}, VisualizeOptions(cfg.Animation)...); err != nil {
		return fmt.Errorf("visualize: %w", err)
	}

	r.logger.Info("pipeline complete", since(start))
	return nil
}
