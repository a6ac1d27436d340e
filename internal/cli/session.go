package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/armmoon4/bitsoftrade/internal/discipline"
	apperrors "github.com/armmoon4/bitsoftrade/internal/errors"
	"github.com/armmoon4/bitsoftrade/internal/models"
	"github.com/armmoon4/bitsoftrade/internal/store"
)

// addSessionCommands adds discipline session commands.
func addSessionCommands(rootCmd *cobra.Command, app *App) {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and unlock discipline sessions",
		Long: `A discipline session tracks one trading day. It starts green and
escalates to yellow or red when rules are broken; an escalated session is
only returned to green by completing the required recovery actions after
the cooldown expires.`,
	}

	sessionCmd.AddCommand(newSessionShowCmd(app))
	sessionCmd.AddCommand(newSessionTimelineCmd(app))
	sessionCmd.AddCommand(newSessionUnlockCmd(app))
	sessionCmd.AddCommand(newSessionViolationsCmd(app))

	rootCmd.AddCommand(sessionCmd)
}

func newSessionShowCmd(app *App) *cobra.Command {
	var dateStr string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the session for a day",
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

			// Today's session materializes on first look; past dates are
			// read-only so an empty day stays empty.
			var session *models.DisciplineSession
			if dateStr == "" {
				session, err = app.Store.GetOrCreateSession(ctx, userFlag(cmd), day)
				if err != nil {
					return fmt.Errorf("loading session: %w", err)
				}
			} else {
				session, err = app.Store.GetSession(ctx, userFlag(cmd), day)
				if err != nil {
					if errors.Is(err, apperrors.ErrSessionNotFound) {
						output.Dim("No session for %s (no trades logged yet)", models.DateKey(day))
						return nil
					}
					return fmt.Errorf("loading session: %w", err)
				}
			}

			if output.IsJSON() {
				return output.JSON(session)
			}
			printSession(output, session)
			return nil
		},
	}

	cmd.Flags().StringVar(&dateStr, "date", "", "session date YYYY-MM-DD (default today)")
	return cmd
}

func printSession(output *Output, s *models.DisciplineSession) {
	output.Bold("Session %s", models.DateKey(s.SessionDate))
	output.Printf("  State:           %s\n", output.SessionState(s.State))
	output.Printf("  Violations:      %d (%d hard, %d soft)\n",
		s.ViolationsCount, s.HardViolations, s.SoftViolations)
	if s.CooldownEndsAt != nil {
		output.Printf("  Cooldown ends:   %s\n", FormatDateTime(*s.CooldownEndsAt))
	}
	output.Printf("  Journal:         %s\n", checkMark(output, s.JournalCompleted))
	output.Printf("  Trade review:    %s\n", checkMark(output, s.TradeReviewCompleted))
	if s.UnlockedAt != nil {
		output.Printf("  Unlocked at:     %s\n", FormatDateTime(*s.UnlockedAt))
	}
}

func checkMark(output *Output, done bool) string {
	if done {
		return output.Green("done")
	}
	return output.DimText("pending")
}

func newSessionTimelineCmd(app *App) *cobra.Command {
	var (
		fromStr string
		toStr   string
	)

	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Show the session state history over a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireStore(); err != nil {
				return err
			}
			output := NewOutput(cmd)
			ctx := context.Background()

			from, err := parseDay(fromStr)
			if err != nil {
				return err
			}
			if fromStr == "" {
				from = from.AddDate(0, 0, -30)
			}
			to, err := parseDay(toStr)
			if err != nil {
				return err
			}

			points, err := app.Store.SessionTimeline(ctx, userFlag(cmd), from, to)
			if err != nil {
				return fmt.Errorf("loading timeline: %w", err)
			}

			if output.IsJSON() {
				return output.JSON(points)
			}
			if len(points) == 0 {
				output.Dim("No sessions between %s and %s", models.DateKey(from), models.DateKey(to))
				return nil
			}

			table := NewTable(output, "DATE", "STATE", "VIOLATIONS", "HARD", "SOFT")
			for _, p := range points {
				table.AddRow(
					models.DateKey(p.SessionDate),
					output.SessionState(p.State),
					fmt.Sprintf("%d", p.ViolationsCount),
					fmt.Sprintf("%d", p.HardViolations),
					fmt.Sprintf("%d", p.SoftViolations),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&fromStr, "from", "", "start date YYYY-MM-DD (default 30 days ago)")
	cmd.Flags().StringVar(&toStr, "to", "", "end date YYYY-MM-DD (default today)")
	return cmd
}

func newSessionUnlockCmd(app *App) *cobra.Command {
	var (
		dateStr string
		action  string
	)

	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Record a recovery action and unlock the session if eligible",
		Long: `Record a completed recovery action. A yellow session needs a journal
entry; a red session needs both a journal entry and a trade review. The
session returns to green once all required actions are done and the
cooldown has expired.`,
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
			if !discipline.ValidUnlockAction(action) {
				return fmt.Errorf("invalid action %q, expected complete_journal, complete_trade_review or complete_all", action)
			}

			result, err := app.Discipline.Unlock(ctx, userFlag(cmd), day, discipline.UnlockAction(action))
			if err != nil {
				return fmt.Errorf("unlocking session: %w", err)
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"unlocked":          result.Unlocked,
					"state":             result.Session.State,
					"remaining_minutes": result.RemainingMinutes,
					"message":           result.Message,
				})
			}
			if result.Unlocked {
				output.Success("✓ %s", result.Message)
			} else {
				output.Warning("⚠ %s", result.Message)
			}
			output.Printf("  Session: %s\n", output.SessionState(result.Session.State))
			return nil
		},
	}

	cmd.Flags().StringVar(&dateStr, "date", "", "session date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&action, "action", "", "recovery action: complete_journal, complete_trade_review, complete_all")
	cmd.MarkFlagRequired("action")
	return cmd
}

func newSessionViolationsCmd(app *App) *cobra.Command {
	var (
		fromStr string
		toStr   string
		ruleID  string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "violations",
		Short: "List recorded rule violations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireStore(); err != nil {
				return err
			}
			output := NewOutput(cmd)
			ctx := context.Background()

			filter := store.ViolationFilter{
				UserID: userFlag(cmd),
				RuleID: ruleID,
				Limit:  limit,
			}
			if fromStr != "" {
				from, err := parseDay(fromStr)
				if err != nil {
					return err
				}
				filter.From = from
			}
			if toStr != "" {
				to, err := parseDay(toStr)
				if err != nil {
					return err
				}
				filter.To = to
			}

			violations, err := app.Store.GetViolations(ctx, filter)
			if err != nil {
				return fmt.Errorf("listing violations: %w", err)
			}

			if output.IsJSON() {
				return output.JSON(violations)
			}
			if len(violations) == 0 {
				output.Dim("No violations recorded")
				return nil
			}

			table := NewTable(output, "WHEN", "RULE", "TYPE", "STATE AFTER")
			for _, v := range violations {
				vtype := output.Yellow(string(v.ViolationType))
				if v.ViolationType == models.ViolationHard {
					vtype = output.Red(string(v.ViolationType))
				}
				table.AddRow(
					FormatDateTime(v.ViolatedAt),
					TruncateString(v.RuleID, 12),
					vtype,
					strings.ToUpper(string(v.SessionStateAfter)),
				)
			}
			table.Render()
			output.Dim("%d violation(s)", len(violations))
			return nil
		},
	}

	cmd.Flags().StringVar(&fromStr, "from", "", "start date YYYY-MM-DD")
	cmd.Flags().StringVar(&toStr, "to", "", "end date YYYY-MM-DD")
	cmd.Flags().StringVar(&ruleID, "rule", "", "filter by rule ID")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	return cmd
}
