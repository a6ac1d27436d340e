// Package cli provides the command-line interface for the discipline platform.
package cli

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/armmoon4/bitsoftrade/internal/config"
	"github.com/armmoon4/bitsoftrade/internal/discipline"
	"github.com/armmoon4/bitsoftrade/internal/insights"
	"github.com/armmoon4/bitsoftrade/internal/logging"
	"github.com/armmoon4/bitsoftrade/internal/notify"
	"github.com/armmoon4/bitsoftrade/internal/rules"
	"github.com/armmoon4/bitsoftrade/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2025-06-01"
)

// App holds the application dependencies.
type App struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Store      store.DataStore
	Discipline *discipline.Engine
	Insights   *insights.Engine
	Notifier   notify.Notifier
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	dataStore, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize store, most commands will be unavailable")
	} else {
		app.Store = dataStore
		logger.Debug().Str("path", cfg.Database.Path).Msg("SQLite store initialized")
	}

	if cfg.Notifications.Enabled {
		app.Notifier = notify.NewMultiNotifier(&cfg.Notifications)
		logger.Debug().Msg("Notifications initialized")
	}

	if app.Store != nil {
		app.Discipline = discipline.NewEngine(
			dataStore,
			rules.NewEvaluator(dataStore, logger),
			app.Notifier,
			discipline.Config{
				YellowCooldown: time.Duration(cfg.Discipline.YellowCooldownMinutes) * time.Minute,
				RedCooldown:    time.Duration(cfg.Discipline.RedCooldownMinutes) * time.Minute,
			},
			logger,
		)
		app.Insights = insights.NewEngine(
			dataStore,
			insights.Config{
				HighConfidenceMin:  cfg.Insights.HighConfidenceMin,
				LowConfidenceMax:   cfg.Insights.LowConfidenceMax,
				MomentumWindowDays: cfg.Insights.MomentumWindowDays,
				RecomputeWorkers:   cfg.Insights.RecomputeWorkers,
			},
			logger,
		)
	}

	rootCmd := &cobra.Command{
		Use:   "bitsoftrade",
		Short: "BitsOfTrade - personal trading discipline tracker",
		Long: `BitsOfTrade is a personal trading discipline platform.

It logs trades, evaluates them against your discipline rules, escalates a
per-day session state when rules are broken, and derives behavioral metrics
from your history.

Use 'bitsoftrade help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/bitsoftrade)")
	rootCmd.PersistentFlags().String("user", "default", "user the command acts for")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	addUserCommands(rootCmd, app)
	addTradeCommands(rootCmd, app)
	addSessionCommands(rootCmd, app)
	addRuleCommands(rootCmd, app)
	addStrategyCommands(rootCmd, app)
	addMetricsCommands(rootCmd, app)

	return rootCmd
}

// requireStore guards commands that cannot run without persistence.
func (app *App) requireStore() error {
	if app.Store == nil {
		return fmt.Errorf("data store is not available, check database path %q", app.Config.Database.Path)
	}
	return nil
}

// userFlag returns the acting user ID from the persistent flag.
func userFlag(cmd *cobra.Command) string {
	user, _ := cmd.Flags().GetString("user")
	return user
}

// parseDay parses a --date flag value, defaulting to today.
func parseDay(value string) (time.Time, error) {
	if value == "" {
		now := time.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	day, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return day, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("BitsOfTrade v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				redacted := *app.Config
				redacted.Notifications.Telegram.BotToken = logging.MaskSecret(redacted.Notifications.Telegram.BotToken)
				return output.JSON(redacted)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Database")
	output.Printf("  Path:            %s\n", cfg.Database.Path)
	output.Println()

	output.Bold("Discipline")
	output.Printf("  Yellow Cooldown: %d min\n", cfg.Discipline.YellowCooldownMinutes)
	output.Printf("  Red Cooldown:    %d min\n", cfg.Discipline.RedCooldownMinutes)
	output.Println()

	output.Bold("Insights")
	output.Printf("  High Confidence: >= %d\n", cfg.Insights.HighConfidenceMin)
	output.Printf("  Low Confidence:  <= %d\n", cfg.Insights.LowConfidenceMax)
	output.Printf("  Momentum Window: %d days\n", cfg.Insights.MomentumWindowDays)
	output.Printf("  Workers:         %d\n", cfg.Insights.RecomputeWorkers)
	output.Println()

	output.Bold("Notifications")
	output.Printf("  Enabled:         %v\n", cfg.Notifications.Enabled)
	output.Printf("  Level:           %s\n", cfg.Notifications.Level)
	output.Printf("  Webhook:         %v\n", cfg.Notifications.Webhook.Enabled)
	output.Printf("  Telegram:        %v\n", cfg.Notifications.Telegram.Enabled)
}
