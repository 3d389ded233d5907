package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hed1ad/bridgeguard/pkg/config"
	"github.com/hed1ad/bridgeguard/pkg/pipeline"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Generate synthetic bridge sensor readings",
		Long: `Generate vibration, stress and temperature readings for sensors spaced
evenly along a 100 m deck and write them as CSV.

Examples:
  bridgeguard simulate
  bridgeguard simulate --sensors 20 --samples 500 --seed 7 --output raw.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, func(cfg *config.Config) error {
				stringFlag(cmd, "output", &cfg.Paths.Raw)
				if cmd.Flags().Changed("sensors") {
					cfg.Simulation.Sensors, _ = cmd.Flags().GetInt("sensors")
				}
				if cmd.Flags().Changed("samples") {
					cfg.Simulation.Samples, _ = cmd.Flags().GetInt("samples")
				}
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

			readings, err := runner.Simulate(cmd.Context(), pipeline.Paths{Output: cfg.Paths.Raw},
				cfg.Simulation.Sensors, cfg.Simulation.Samples, pipeline.SimulateOptions(cfg.Simulation)...)
			if err != nil {
				return fmt.Errorf("simulate: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d readings to %s\n", len(readings), cfg.Paths.Raw)
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "Output CSV file")
	cmd.Flags().Int("sensors", 0, "Number of sensors")
	cmd.Flags().Int("samples", 0, "Readings per sensor")
	cmd.Flags().Uint64("seed", 0, "Random seed (unseeded when not set)")

	return cmd
}
