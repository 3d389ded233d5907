package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hed1ad/bridgeguard/pkg/config"
	"github.com/hed1ad/bridgeguard/pkg/results"
)

func newSummaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show per-sensor anomaly counts of a detection run",
		Long: `Show how many readings of each sensor were flagged in a detection run
recorded in the results database. Defaults to the latest run.

Examples:
  bridgeguard summary --db outputs/results.db
  bridgeguard summary --db outputs/results.db --run 3f2a... --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd, func(cfg *config.Config) error {
				stringFlag(cmd, "db", &cfg.Results.DBPath)
				if cfg.Results.DBPath == "" {
					return errors.New("no results database: set results.db_path or pass --db")
				}
				return nil
			})
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			db, err := results.Open(ctx, cfg.Results.DBPath)
			if err != nil {
				return fmt.Errorf("failed to open results database: %w", err)
			}
			defer db.Close()

			runID, _ := cmd.Flags().GetString("run")
			var run results.Run
			if runID != "" {
				run, err = db.GetRun(ctx, runID)
			} else {
				run, err = db.LatestRun(ctx)
			}
			if err != nil {
				return err
			}

			sensors, err := db.Summary(ctx, run.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(out).Encode(summaryJSON(run, sensors))
			}

			fmt.Fprintf(out, "Run %s (%s)\n", run.ID, run.CreatedAt.Local().Format(time.DateTime))
			fmt.Fprintf(out, "  source: %s\n", run.Source)
			fmt.Fprintf(out, "  model:  %s\n", run.ModelRunID)
			fmt.Fprintf(out, "  %d of %d readings flagged\n\n", run.Outliers, run.Rows)
			fmt.Fprintf(out, "%-8s %10s %8s %8s %9s\n", "SENSOR", "POSITION", "ROWS", "FLAGGED", "MAXSCORE")
			for _, s := range sensors {
				fmt.Fprintf(out, "%-8d %10.2f %8d %8d %9.4f\n", s.SensorID, s.PositionX, s.Rows, s.Outliers, s.MaxScore)
			}
			return nil
		},
	}

	cmd.Flags().String("db", "", "SQLite results database")
	cmd.Flags().String("run", "", "Run id (default latest)")
	cmd.Flags().Bool("json", false, "Output as JSON")

	return cmd
}

type sensorJSON struct {
	SensorID  int     `json:"sensor_id"`
	PositionX float64 `json:"position_x"`
	Rows      int     `json:"rows"`
	Outliers  int     `json:"outliers"`
	MaxScore  float64 `json:"max_score"`
}

func summaryJSON(run results.Run, sensors []results.SensorSummary) map[string]any {
	out := make([]sensorJSON, len(sensors))
	for i, s := range sensors {
		out[i] = sensorJSON(s)
	}
	return map[string]any{
		"run_id":       run.ID,
		"model_run_id": run.ModelRunID,
		"source":       run.Source,
		"created_at":   run.CreatedAt,
		"rows":         run.Rows,
		"outliers":     run.Outliers,
		"sensors":      out,
	}
}
