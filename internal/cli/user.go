package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/armmoon4/bitsoftrade/internal/models"
)

// addUserCommands adds user profile commands.
func addUserCommands(rootCmd *cobra.Command, app *App) {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage the user profile",
	}

	userCmd.AddCommand(newUserInitCmd(app))
	userCmd.AddCommand(newUserShowCmd(app))

	rootCmd.AddCommand(userCmd)
}

func newUserInitCmd(app *App) *cobra.Command {
	var (
		username string
		capital  float64
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create or update the user profile",
		Long: `Create or update the user profile. Trading capital is optional but
percent-based rules and the capital protection metric need it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireStore(); err != nil {
				return err
			}
			output := NewOutput(cmd)
			ctx := context.Background()

			user := &models.User{
				ID:       userFlag(cmd),
				Username: username,
			}
			if user.Username == "" {
				user.Username = user.ID
			}
			if cmd.Flags().Changed("capital") {
				if capital <= 0 {
					return fmt.Errorf("capital must be positive, got %.2f", capital)
				}
				user.TradingCapital = &capital
			}

			if err := app.Store.SaveUser(ctx, user); err != nil {
				return fmt.Errorf("saving user: %w", err)
			}

			if output.IsJSON() {
				return output.JSON(user)
			}
			output.Success("✓ User profile saved: %s", user.ID)
			if user.HasCapital() {
				output.Printf("  Trading capital: %s\n", FormatCurrency(*user.TradingCapital))
			} else {
				output.Dim("  No trading capital set, percent-based rules are inert")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "display name (default: user ID)")
	cmd.Flags().Float64Var(&capital, "capital", 0, "trading capital")

	return cmd
}

func newUserShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the user profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireStore(); err != nil {
				return err
			}
			output := NewOutput(cmd)
			ctx := context.Background()

			user, err := app.Store.GetUser(ctx, userFlag(cmd))
			if err != nil {
				return fmt.Errorf("loading user: %w", err)
			}

			if output.IsJSON() {
				return output.JSON(user)
			}
			output.Bold("User %s", user.ID)
			output.Printf("  Username: %s\n", user.Username)
			if user.HasCapital() {
				output.Printf("  Capital:  %s\n", FormatCurrency(*user.TradingCapital))
			} else {
				output.Printf("  Capital:  %s\n", output.DimText("not set"))
			}
			return nil
		},
	}
}
