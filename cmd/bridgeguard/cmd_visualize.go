package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hed1ad/bridgeguard/pkg/config"
	"github.com/hed1ad/bridgeguard/pkg/pipeline"
)

func newVisualizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "visualize",
		Short: "Render the deck bending animation",
		Long: `Render an animated GIF of the deck bending under the measured stress.
Only position_x, position_y and stress are used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, func(cfg *config.Config) error {
				stringFlag(cmd, "input", &cfg.Paths.Results)
				stringFlag(cmd, "output", &cfg.Paths.Animation)
				if cmd.Flags().Changed("frames") {
					cfg.Animation.Frames, _ = cmd.Flags().GetInt("frames")
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

			paths := pipeline.Paths{Input: cfg.Paths.Results, Output: cfg.Paths.Animation}
			if err := runner.Visualize(cmd.Context(), paths, pipeline.VisualizeOptions(cfg.Animation)...); err != nil {
				return fmt.Errorf("visualize: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", paths.Output)
			return nil
		},
	}

	cmd.Flags().StringP("input", "i", "", "Readings or results CSV file")
	cmd.Flags().StringP("output", "o", "", "Output GIF file")
	cmd.Flags().Int("frames", 0, "Number of animation frames")

	return cmd
}
