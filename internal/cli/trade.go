package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/armmoon4/bitsoftrade/internal/models"
	"github.com/armmoon4/bitsoftrade/internal/store"
)

// addTradeCommands adds trade logging and listing commands.
func addTradeCommands(rootCmd *cobra.Command, app *App) {
	tradeCmd := &cobra.Command{
		Use:   "trade",
		Short: "Log and inspect trades",
		Long:  "Log trades against your discipline rules and browse trade history.",
	}

	tradeCmd.AddCommand(newTradeLogCmd(app))
	tradeCmd.AddCommand(newTradeListCmd(app))
	tradeCmd.AddCommand(newTradeCloseCmd(app))
	tradeCmd.AddCommand(newTradeDeleteCmd(app))

	rootCmd.AddCommand(tradeCmd)
}

func newTradeLogCmd(app *App) *cobra.Command {
	var (
		symbol     string
		direction  string
		quantity   float64
		entryPrice float64
		exitPrice  float64
		fees       float64
		leverage   float64
		dateStr    string
		timeStr    string
		emotion    string
		confidence int
		strategyID string
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Log a trade and run the rule evaluation pass",
		Long: `Log a trade. The trade is saved first, then every active rule is
evaluated against it; hard violations turn the day's session red, soft
violations turn a green session yellow.`,
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
			dir := models.TradeDirection(strings.ToLower(direction))
			if dir != models.DirectionLong && dir != models.DirectionShort {
				return fmt.Errorf("invalid direction %q, expected long or short", direction)
			}
			if confidence < 1 || confidence > 10 {
				return fmt.Errorf("confidence must be between 1 and 10, got %d", confidence)
			}

			trade := &models.Trade{
				ID:              uuid.NewString(),
				UserID:          userFlag(cmd),
				StrategyID:      strategyID,
				Symbol:          strings.ToUpper(symbol),
				Direction:       dir,
				Quantity:        quantity,
				EntryPrice:      entryPrice,
				Fees:            fees,
				Leverage:        leverage,
				TradeDate:       day,
				TradeTime:       timeStr,
				EmotionalState:  models.EmotionalState(strings.ToLower(emotion)),
				EntryConfidence: confidence,
			}
			if cmd.Flags().Changed("exit") {
				trade.ExitPrice = &exitPrice
			}
			trade.CalculatePnL()

			if err := app.Store.SaveTrade(ctx, trade); err != nil {
				return fmt.Errorf("saving trade: %w", err)
			}

			result, err := app.Discipline.RecordTrade(ctx, trade)
			if err != nil {
				return fmt.Errorf("evaluating trade: %w", err)
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"trade_id":       trade.ID,
					"total_pnl":      trade.TotalPnL,
					"is_disciplined": trade.IsDisciplined,
					"session_state":  result.Session.State,
					"new_violations": len(result.NewViolations),
				})
			}

			output.Success("✓ Trade logged: %s %s x%.0f @ %.2f", trade.Symbol, dir, quantity, entryPrice)
			if trade.TotalPnL != nil {
				output.Printf("  P&L: %s\n", output.FormatPnL(*trade.TotalPnL))
			}
			output.Printf("  Session: %s\n", output.SessionState(result.Session.State))

			for _, v := range result.HardViolated {
				output.Error("  ✗ Hard rule violated: %s", v.Name)
			}
			for _, v := range result.SoftViolated {
				output.Warning("  ⚠ Soft rule violated: %s", v.Name)
			}
			if result.Escalated {
				output.Warning("  Session escalated to %s, cooldown until %s",
					strings.ToUpper(string(result.Session.State)),
					FormatDateTime(*result.Session.CooldownEndsAt))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "instrument symbol (required)")
	cmd.Flags().StringVar(&direction, "direction", "long", "trade direction: long or short")
	cmd.Flags().Float64Var(&quantity, "qty", 0, "quantity (required)")
	cmd.Flags().Float64Var(&entryPrice, "entry", 0, "entry price (required)")
	cmd.Flags().Float64Var(&exitPrice, "exit", 0, "exit price (omit for open positions)")
	cmd.Flags().Float64Var(&fees, "fees", 0, "total fees")
	cmd.Flags().Float64Var(&leverage, "leverage", 1, "leverage multiplier")
	cmd.Flags().StringVar(&dateStr, "date", "", "trade date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&timeStr, "time", "", "trade time HH:MM:SS")
	cmd.Flags().StringVar(&emotion, "emotion", "calm", "emotional state: calm, confident, anxious, fearful, angry, fomo")
	cmd.Flags().IntVar(&confidence, "confidence", 5, "entry confidence 1-10")
	cmd.Flags().StringVar(&strategyID, "strategy", "", "strategy ID")
	cmd.MarkFlagRequired("symbol")
	cmd.MarkFlagRequired("qty")
	cmd.MarkFlagRequired("entry")

	return cmd
}

func newTradeListCmd(app *App) *cobra.Command {
	var (
		fromStr    string
		toStr      string
		strategyID string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireStore(); err != nil {
				return err
			}
			output := NewOutput(cmd)
			ctx := context.Background()

			filter := store.TradeFilter{
				UserID:     userFlag(cmd),
				StrategyID: strategyID,
				Limit:      limit,
			}
			if fromStr != "" {
				from, err := parseDay(fromStr)
				if err != nil {
					return err
				}
				filter.StartDate = from
			}
			if toStr != "" {
				to, err := parseDay(toStr)
				if err != nil {
					return err
				}
				filter.EndDate = to
			}

			trades, err := app.Store.GetTrades(ctx, filter)
			if err != nil {
				return fmt.Errorf("listing trades: %w", err)
			}

			if output.IsJSON() {
				return output.JSON(trades)
			}
			if len(trades) == 0 {
				output.Dim("No trades found")
				return nil
			}

			table := NewTable(output, "DATE", "SYMBOL", "DIR", "QTY", "ENTRY", "P&L", "EMOTION", "DISC")
			for _, t := range trades {
				pnl := output.DimText("open")
				if t.TotalPnL != nil {
					pnl = output.FormatPnL(*t.TotalPnL)
				}
				disc := output.Green("✓")
				if !t.IsDisciplined {
					disc = output.Red("✗")
				}
				table.AddRow(
					models.DateKey(t.TradeDate),
					t.Symbol,
					string(t.Direction),
					fmt.Sprintf("%.0f", t.Quantity),
					fmt.Sprintf("%.2f", t.EntryPrice),
					pnl,
					string(t.EmotionalState),
					disc,
				)
			}
			table.Render()
			output.Dim("%d trade(s)", len(trades))
			return nil
		},
	}

	cmd.Flags().StringVar(&fromStr, "from", "", "start date YYYY-MM-DD")
	cmd.Flags().StringVar(&toStr, "to", "", "end date YYYY-MM-DD")
	cmd.Flags().StringVar(&strategyID, "strategy", "", "filter by strategy ID")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")

	return cmd
}

func newTradeCloseCmd(app *App) *cobra.Command {
	var exitPrice float64

	cmd := &cobra.Command{
		Use:   "close <trade-id>",
		Short: "Close an open trade and re-run the rule evaluation pass",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireStore(); err != nil {
				return err
			}
			output := NewOutput(cmd)
			ctx := context.Background()

			trade, err := app.Store.GetTrade(ctx, args[0])
			if err != nil {
				return fmt.Errorf("loading trade: %w", err)
			}
			if trade.IsClosed() {
				return fmt.Errorf("trade %s is already closed", trade.ID)
			}

			trade.ExitPrice = &exitPrice
			trade.CalculatePnL()
			if err := app.Store.SaveTrade(ctx, trade); err != nil {
				return fmt.Errorf("saving trade: %w", err)
			}

			result, err := app.Discipline.RecordTrade(ctx, trade)
			if err != nil {
				return fmt.Errorf("evaluating trade: %w", err)
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"trade_id":      trade.ID,
					"total_pnl":     trade.TotalPnL,
					"session_state": result.Session.State,
				})
			}
			output.Success("✓ Trade closed: %s", trade.Symbol)
			output.Printf("  P&L: %s\n", output.FormatPnL(*trade.TotalPnL))
			output.Printf("  Session: %s\n", output.SessionState(result.Session.State))
			return nil
		},
	}

	cmd.Flags().Float64Var(&exitPrice, "exit", 0, "exit price (required)")
	cmd.MarkFlagRequired("exit")

	return cmd
}

func newTradeDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <trade-id>",
		Short: "Soft-delete a trade",
		Long: `Soft-delete a trade. The row is kept but excluded from listings and
metrics. Violations already recorded for it remain on the session.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireStore(); err != nil {
				return err
			}
			output := NewOutput(cmd)
			ctx := context.Background()

			trade, err := app.Store.GetTrade(ctx, args[0])
			if err != nil {
				return fmt.Errorf("loading trade: %w", err)
			}
			if trade.IsDeleted() {
				return fmt.Errorf("trade %s is already deleted", trade.ID)
			}

			now := time.Now()
			trade.DeletedAt = &now
			if err := app.Store.SaveTrade(ctx, trade); err != nil {
				return fmt.Errorf("saving trade: %w", err)
			}

			if output.IsJSON() {
				return output.JSON(map[string]string{"deleted": trade.ID})
			}
			output.Success("✓ Trade %s deleted", trade.ID)
			return nil
		},
	}
}
