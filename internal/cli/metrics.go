package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	apperrors "github.com/armmoon4/bitsoftrade/internal/errors"
	"github.com/armmoon4/bitsoftrade/internal/models"
)

// addMetricsCommands adds behavioral metrics commands.
func addMetricsCommands(rootCmd *cobra.Command, app *App) {
	metricsCmd := &cobra.Command{
		Use:   "metrics",
		Short: "Compute and view behavioral metrics",
		Long: `Twelve behavioral indicators derived from your trade and session
history, cached as one snapshot per day. Recomputing a day overwrites
its snapshot.`,
	}

	metricsCmd.AddCommand(newMetricsComputeCmd(app))
	metricsCmd.AddCommand(newMetricsRecomputeCmd(app))
	metricsCmd.AddCommand(newMetricsShowCmd(app))

	rootCmd.AddCommand(metricsCmd)
}

func newMetricsComputeCmd(app *App) *cobra.Command {
	var dateStr string

	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Recompute the metrics snapshot for a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireStore(); err != nil {
				return err
			}
			output := NewOutput(cmd)
			ctx := context.Background()

			day, err := parseDay(dateStr)
			if err != nil {
				return err
			}

			snapshot, err := app.Insights.Compute(ctx, userFlag(cmd), day)
			if err != nil {
				return fmt.Errorf("computing metrics: %w", err)
			}

			if output.IsJSON() {
				return output.JSON(snapshot)
			}
			output.Success("✓ Metrics computed for %s", models.DateKey(day))
			printSnapshot(output, snapshot)
			return nil
		},
	}

	cmd.Flags().StringVar(&dateStr, "date", "", "snapshot date YYYY-MM-DD (default today)")
	return cmd
}

func newMetricsRecomputeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "recompute",
		Short: "Refresh today's snapshot for every user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireStore(); err != nil {
				return err
			}
			output := NewOutput(cmd)
			ctx := context.Background()

			userIDs, err := app.Store.ListUserIDs(ctx)
			if err != nil {
				return fmt.Errorf("listing users: %w", err)
			}
			if len(userIDs) == 0 {
				output.Dim("No users found")
				return nil
			}

			if err := app.Insights.RecomputeAll(ctx, userIDs); err != nil {
				return fmt.Errorf("recomputing metrics: %w", err)
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"users": len(userIDs)})
			}
			output.Success("✓ Metrics recomputed for %d user(s)", len(userIDs))
			return nil
		},
	}
}

func newMetricsShowCmd(app *App) *cobra.Command {
	var dateStr string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a cached metrics snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireStore(); err != nil {
				return err
			}
			output := NewOutput(cmd)
			ctx := context.Background()

			day, err := parseDay(dateStr)
			if err != nil {
				return err
			}

			snapshot, err := app.Store.GetSnapshot(ctx, userFlag(cmd), day)
			if err != nil {
				if errors.Is(err, apperrors.ErrDataNotFound) {
					output.Dim("No snapshot for %s, run 'bitsoftrade metrics compute'", models.DateKey(day))
					return nil
				}
				return fmt.Errorf("loading snapshot: %w", err)
			}

			if output.IsJSON() {
				return output.JSON(snapshot)
			}
			output.Bold("Metrics %s", models.DateKey(snapshot.SnapshotDate))
			printSnapshot(output, snapshot)
			return nil
		},
	}

	cmd.Flags().StringVar(&dateStr, "date", "", "snapshot date YYYY-MM-DD (default today)")
	return cmd
}

func printSnapshot(output *Output, s *models.MetricSnapshot) {
	table := NewTable(output, "METRIC", "VALUE")
	table.AddRow("Discipline Integrity", fmt.Sprintf("%.2f%%", s.DIScore))
	table.AddRow("Violation Momentum", momentumText(output, s.VMILevel))
	table.AddRow("Recovery Time", fmt.Sprintf("%.2f days", s.DRTDays))
	table.AddRow("Trade Permission Ratio", fmt.Sprintf("%.2f%%", s.TPRScore))
	table.AddRow("Emotional Losses", output.FormatPnL(s.FIEAmount))
	table.AddRow("Obstinacy vs Resilience", fmt.Sprintf("%.2f / 10", s.OVRScore))
	table.AddRow("Emotion Cost Index", output.FormatPnL(s.ECIAmount))
	table.AddRow("Confidence Accuracy", fmt.Sprintf("%.2f%%", s.CASScore))
	table.AddRow("Disciplined Expectancy", output.FormatPnL(s.DAEAvg))
	table.AddRow("Strategy Maturity", s.SMIStatus)
	table.AddRow("Discipline Dependency", dependencyText(output, s.DDRLevel))
	if s.CPIScore != nil {
		table.AddRow("Capital Protection", fmt.Sprintf("%.2f%%", *s.CPIScore))
	} else {
		table.AddRow("Capital Protection", output.DimText("n/a (no capital set)"))
	}
	table.Render()
}

func momentumText(output *Output, level models.MomentumLevel) string {
	switch level {
	case models.MomentumHigh:
		return output.Red(string(level))
	case models.MomentumLow:
		return output.Green(string(level))
	default:
		return output.Yellow(string(level))
	}
}

func dependencyText(output *Output, level models.DependencyLevel) string {
	switch level {
	case models.DependencyHigh:
		return output.Red(string(level))
	case models.DependencyLow:
		return output.Green(string(level))
	default:
		return output.Yellow(string(level))
	}
}
