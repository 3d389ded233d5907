package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hed1ad/bridgeguard/pkg/config"
	"github.com/hed1ad/bridgeguard/pkg/pipeline"
)

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit the anomaly model on standardized readings",
		Long: `Hold out a share of the standardized readings, fit an isolation forest on
the rest and store the model.

The held-out outlier rate is reported for information only.

Examples:
  bridgeguard train
  bridgeguard train --contamination 0.02 --trees 200 --model models/forest.bin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, func(cfg *config.Config) error {
				stringFlag(cmd, "input", &cfg.Paths.Processed)
				stringFlag(cmd, "model", &cfg.Paths.Model)
				if cmd.Flags().Changed("test-fraction") {
					cfg.Training.TestFraction, _ = cmd.Flags().GetFloat64("test-fraction")
				}
				if cmd.Flags().Changed("contamination") {
					cfg.Training.Contamination, _ = cmd.Flags().GetFloat64("contamination")
				}
				if cmd.Flags().Changed("seed") {
					cfg.Training.RandomSeed, _ = cmd.Flags().GetInt64("seed")
				}
				if cmd.Flags().Changed("trees") {
					cfg.Training.Trees, _ = cmd.Flags().GetInt("trees")
				}
				return nil
			})
			if err != nil {
				return err
			}

			runner, closeFn, err := newRunner(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer closeFn()

			paths := pipeline.Paths{Input: cfg.Paths.Processed, Model: cfg.Paths.Model}
			artifact, report, err := runner.Train(cmd.Context(), paths, pipeline.TrainConfig(cfg.Training))
			if err != nil {
				return fmt.Errorf("train: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Model %s saved to %s\n", artifact.Meta.RunID, paths.Model)
			fmt.Fprintf(out, "  training rows:     %d\n", report.TrainRows)
			fmt.Fprintf(out, "  held-out rows:     %d\n", report.TestRows)
			fmt.Fprintf(out, "  held-out outliers: %.2f%%\n", 100*report.TestOutlierRate)
			fmt.Fprintf(out, "  score threshold:   %.4f\n", report.Threshold)
			return nil
		},
	}

	cmd.Flags().StringP("input", "i", "", "Standardized readings CSV file")
	cmd.Flags().StringP("model", "m", "", "Model key in the configured storage")
	cmd.Flags().Float64("test-fraction", 0, "Share of rows held out from fitting")
	cmd.Flags().Float64("contamination", 0, "Expected share of anomalous readings")
	cmd.Flags().Int64("seed", 0, "Random seed for the split and the forest")
	cmd.Flags().Int("trees", 0, "Number of isolation trees")

	return cmd
}
