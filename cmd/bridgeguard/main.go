package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hed1ad/bridgeguard/pkg/config"
	"github.com/hed1ad/bridgeguard/pkg/logging"
	"github.com/hed1ad/bridgeguard/pkg/pipeline"
	"github.com/hed1ad/bridgeguard/pkg/results"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bridgeguard",
		Short: "Bridge sensor anomaly detection pipeline",
		Long: `bridgeguard simulates bridge sensor readings, standardizes them, fits an
isolation forest, labels anomalous readings and renders a deck bending animation.

Each stage reads and writes files; paths default to the configuration
(bridgeguard.yaml in the working directory, if present) and can be
overridden per command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "Config file (default ./"+config.DefaultFile+" if present)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newVersionCmd(),
		newSimulateCmd(),
		newPreprocessCmd(),
		newTrainCmd(),
		newDetectCmd(),
		newVisualizeCmd(),
		newRunCmd(),
		newSummaryCmd(),
	)

	return rootCmd
}

// loadConfig loads the configuration, lets override apply command flags and
// validates the result.
func loadConfig(cmd *cobra.Command, override func(*config.Config) error) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if override != nil {
		if err := override(cfg); err != nil {
			return nil, nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr()), nil
}

// newRunner opens the model store and, when configured, the results database.
// The returned close function releases the database.
func newRunner(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline.Runner, func(), error) {
	store, err := cfg.Store()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open model storage: %w", err)
	}

	opts := []pipeline.Option{pipeline.WithLogger(logger)}
	closeFn := func() {}

	if cfg.Results.DBPath != "" {
		db, err := results.Open(ctx, cfg.Results.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open results database: %w", err)
		}
		opts = append(opts, pipeline.WithResults(db))
		closeFn = func() {
			if err := db.Close(); err != nil {
				logger.Warn("closing results database", "error", err)
			}
		}
	}

	return pipeline.New(store, opts...), closeFn, nil
}

// stringFlag copies a flag value into dst when the flag was set.
func stringFlag(cmd *cobra.Command, name string, dst *string) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetString(name)
	}
}
