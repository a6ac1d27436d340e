package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/armmoon4/bitsoftrade/internal/models"
)

// addRuleCommands adds discipline rule management commands.
func addRuleCommands(rootCmd *cobra.Command, app *App) {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage discipline rules",
		Long: `Discipline rules are evaluated against every saved trade. Hard rules
escalate the session to red, soft rules to yellow. The condition payload
depends on the category, for example:

  risk       {"maxLoss": 2000} or {"maxDailyPercent": 3} or {"maxPositionPercent": 10}
  process    {"maxTrades": 5}
  psychology {"consecutiveLosses": 3}`,
	}

	rulesCmd.AddCommand(newRuleAddCmd(app))
	rulesCmd.AddCommand(newRuleListCmd(app))
	rulesCmd.AddCommand(newRuleDisableCmd(app))

	rootCmd.AddCommand(rulesCmd)
}

func newRuleAddCmd(app *App) *cobra.Command {
	var (
		name         string
		description  string
		category     string
		ruleType     string
		scope        string
		action       string
		conditionStr string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a discipline rule",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireStore(); err != nil {
				return err
			}
			output := NewOutput(cmd)
			ctx := context.Background()

			var condition map[string]interface{}
			if err := json.Unmarshal([]byte(conditionStr), &condition); err != nil {
				return fmt.Errorf("invalid condition JSON: %w", err)
			}

			rt := models.RuleType(ruleType)
			if rt != models.RuleHard && rt != models.RuleSoft {
				return fmt.Errorf("invalid type %q, expected hard or soft", ruleType)
			}

			rule := &models.Rule{
				ID:           uuid.NewString(),
				UserID:       userFlag(cmd),
				Name:         name,
				Description:  description,
				Category:     models.RuleCategory(category),
				Type:         rt,
				TriggerScope: models.TriggerScope(scope),
				Condition:    condition,
				Action:       models.RuleAction(action),
				IsActive:     true,
			}

			if err := app.Store.SaveRule(ctx, rule); err != nil {
				return fmt.Errorf("saving rule: %w", err)
			}

			if output.IsJSON() {
				return output.JSON(rule)
			}
			output.Success("✓ Rule added: %s (%s)", rule.Name, rule.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "rule name (required)")
	cmd.Flags().StringVar(&description, "description", "", "rule description")
	cmd.Flags().StringVar(&category, "category", "risk", "category: risk, process, psychology, time, other")
	cmd.Flags().StringVar(&ruleType, "type", "soft", "type: hard or soft")
	cmd.Flags().StringVar(&scope, "scope", "per_day", "trigger scope: per_day, per_trade, post_trigger")
	cmd.Flags().StringVar(&action, "action", "warn", "action: lock, warn, require_journal, restrict_import")
	cmd.Flags().StringVar(&conditionStr, "condition", "", `condition JSON, e.g. '{"maxTrades": 5}' (required)`)
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("condition")

	return cmd
}

func newRuleListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireStore(); err != nil {
				return err
			}
			output := NewOutput(cmd)
			ctx := context.Background()

			rules, err := app.Store.ActiveRules(ctx, userFlag(cmd))
			if err != nil {
				return fmt.Errorf("listing rules: %w", err)
			}

			if output.IsJSON() {
				return output.JSON(rules)
			}
			if len(rules) == 0 {
				output.Dim("No active rules")
				return nil
			}

			table := NewTable(output, "ID", "NAME", "CATEGORY", "TYPE", "CONDITION", "OWNER")
			for _, r := range rules {
				condition, _ := json.Marshal(r.Condition)
				ruleType := output.Yellow(string(r.Type))
				if r.Type == models.RuleHard {
					ruleType = output.Red(string(r.Type))
				}
				owner := "user"
				if r.IsAdminDefined {
					owner = "admin"
				}
				table.AddRow(
					TruncateString(r.ID, 12),
					TruncateString(r.Name, 28),
					string(r.Category),
					ruleType,
					TruncateString(string(condition), 32),
					owner,
				)
			}
			table.Render()
			output.Dim("%d rule(s)", len(rules))
			return nil
		},
	}
}

func newRuleDisableCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "disable <rule-id>",
		Short: "Disable a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireStore(); err != nil {
				return err
			}
			output := NewOutput(cmd)
			ctx := context.Background()

			rule, err := app.Store.GetRule(ctx, args[0])
			if err != nil {
				return fmt.Errorf("loading rule: %w", err)
			}
			if rule.IsAdminDefined {
				return fmt.Errorf("rule %s is admin-defined and cannot be disabled", rule.ID)
			}

			rule.IsActive = false
			rule.UpdatedAt = time.Now()
			if err := app.Store.SaveRule(ctx, rule); err != nil {
				return fmt.Errorf("saving rule: %w", err)
			}

			if output.IsJSON() {
				return output.JSON(map[string]string{"disabled": rule.ID})
			}
			output.Success("✓ Rule disabled: %s", rule.Name)
			return nil
		},
	}
}
