package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hed1ad/bridgeguard/pkg/config"
	"github.com/hed1ad/bridgeguard/pkg/detect"
	"github.com/hed1ad/bridgeguard/pkg/pipeline"
)

func newDetectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Label readings as inlier or outlier",
		Long: `Score each reading's vibration, stress and temperature with the stored model
and write the readings with an anomaly column (1 inlier, -1 outlier).

With --raw the input is standardized with the parameters stored in the model
first. With a results database configured the run is recorded there too.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetBool("raw")

			cfg, logger, err := loadConfig(cmd, func(cfg *config.Config) error {
				if raw {
					cfg.Paths.Processed = cfg.Paths.Raw
				}
				stringFlag(cmd, "input", &cfg.Paths.Processed)
				stringFlag(cmd, "output", &cfg.Paths.Results)
				stringFlag(cmd, "model", &cfg.Paths.Model)
				stringFlag(cmd, "db", &cfg.Results.DBPath)
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

			paths := pipeline.Paths{Input: cfg.Paths.Processed, Output: cfg.Paths.Results, Model: cfg.Paths.Model}
			scored, err := runner.Detect(cmd.Context(), paths, pipeline.DetectOptions{Raw: raw})
			if err != nil {
				return fmt.Errorf("detect: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d readings flagged as outliers, results in %s\n",
				detect.Outliers(scored), len(scored), paths.Output)
			return nil
		},
	}

	cmd.Flags().StringP("input", "i", "", "Readings CSV file")
	cmd.Flags().StringP("output", "o", "", "Results CSV file")
	cmd.Flags().StringP("model", "m", "", "Model key in the configured storage")
	cmd.Flags().Bool("raw", false, "Input is unstandardized; defaults the input to the raw data path")
	cmd.Flags().String("db", "", "SQLite results database")

	return cmd
}
