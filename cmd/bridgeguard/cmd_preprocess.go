package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hed1ad/bridgeguard/pkg/config"
	"github.com/hed1ad/bridgeguard/pkg/pipeline"
	"github.com/hed1ad/bridgeguard/pkg/preprocess"
)

func newPreprocessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preprocess",
		Short: "Impute missing values and standardize readings",
		Long: `Fill missing vibration, stress and temperature cells with the column mean,
then standardize each of those columns to zero mean and unit variance.

The fitted parameters are written next to the output file so that training
can embed them in the model.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, func(cfg *config.Config) error {
				stringFlag(cmd, "input", &cfg.Paths.Raw)
				stringFlag(cmd, "output", &cfg.Paths.Processed)
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

			paths := pipeline.Paths{Input: cfg.Paths.Raw, Output: cfg.Paths.Processed}
			if _, err := runner.Preprocess(cmd.Context(), paths); err != nil {
				return fmt.Errorf("preprocess: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (scaler: %s)\n", paths.Output, preprocess.ScalerPath(paths.Output))
			return nil
		},
	}

	cmd.Flags().StringP("input", "i", "", "Raw readings CSV file")
	cmd.Flags().StringP("output", "o", "", "Standardized output CSV file")

	return cmd
}
