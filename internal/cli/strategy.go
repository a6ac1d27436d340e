package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/armmoon4/bitsoftrade/internal/models"
)

// addStrategyCommands adds strategy management commands.
func addStrategyCommands(rootCmd *cobra.Command, app *App) {
	strategyCmd := &cobra.Command{
		Use:   "strategy",
		Short: "Manage trading strategies",
		Long: `A strategy groups trades and matures as its sample grows: testing
under 50% of the sample threshold, developing under 90%, mature beyond.`,
	}

	strategyCmd.AddCommand(newStrategyAddCmd(app))
	strategyCmd.AddCommand(newStrategyShowCmd(app))

	rootCmd.AddCommand(strategyCmd)
}

func newStrategyAddCmd(app *App) *cobra.Command {
	var (
		name        string
		description string
		threshold   int
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a strategy",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireStore(); err != nil {
				return err
			}
			output := NewOutput(cmd)
			ctx := context.Background()

			strategy := &models.Strategy{
				ID:                  uuid.NewString(),
				UserID:              userFlag(cmd),
				Name:                name,
				Description:         description,
				MaturityStatus:      models.MaturityTesting,
				SampleSizeThreshold: threshold,
			}

			if err := app.Store.SaveStrategy(ctx, strategy); err != nil {
				return fmt.Errorf("saving strategy: %w", err)
			}

			if output.IsJSON() {
				return output.JSON(strategy)
			}
			output.Success("✓ Strategy added: %s (%s)", strategy.Name, strategy.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "strategy name (required)")
	cmd.Flags().StringVar(&description, "description", "", "strategy description")
	cmd.Flags().IntVar(&threshold, "sample-size", 30, "trades needed for a mature sample")
	cmd.MarkFlagRequired("name")

	return cmd
}

func newStrategyShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <strategy-id>",
		Short: "Show a strategy and its maturity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireStore(); err != nil {
				return err
			}
			output := NewOutput(cmd)
			ctx := context.Background()

			strategy, err := app.Store.GetStrategy(ctx, args[0])
			if err != nil {
				return fmt.Errorf("loading strategy: %w", err)
			}
			count, err := app.Store.CountTradesByStrategy(ctx, strategy.ID)
			if err != nil {
				return fmt.Errorf("counting trades: %w", err)
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"strategy": strategy,
					"trades":   count,
				})
			}
			output.Bold("Strategy %s", strategy.Name)
			output.Printf("  Maturity:  %s\n", string(strategy.MaturityStatus))
			output.Printf("  Trades:    %d / %d\n", count, strategy.SampleSizeThreshold)
			if strategy.Description != "" {
				output.Printf("  About:     %s\n", strategy.Description)
			}
			return nil
		},
	}
}
