package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hed1ad/bridgeguard/pkg/config"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every stage in order",
		Long: `Run simulate, preprocess, train, detect and visualize with the configured
paths. The detector scores the standardized readings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, func(cfg *config.Config) error {
				stringFlag(cmd, "db", &cfg.Results.DBPath)
				if cmd.Flags().Changed("seed") {
					seed, _ := cmd.Flags().GetUint64("seed")
					cfg.Simulation.Seed = &seed
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

			if err := runner.Run(cmd.Context(), cfg); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Results in %s, animation in %s\n", cfg.Paths.Results, cfg.Paths.Animation)
			return nil
		},
	}

	cmd.Flags().String("db", "", "SQLite results database")
	cmd.Flags().Uint64("seed", 0, "Simulation seed (unseeded when not set)")

	return cmd
}
