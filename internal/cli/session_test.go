package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armmoon4/bitsoftrade/internal/store"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	dataStore, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dataStore.Close() })
	return &App{Store: dataStore}
}

func runCommand(t *testing.T, app *App, build func(*App) *cobra.Command, args ...string) string {
	t.Helper()
	cmd := build(app)
	cmd.Flags().String("user", "default", "")
	cmd.Flags().Bool("json", false, "")
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return buf.String()
}

func TestSessionShowCreatesTodaySession(t *testing.T) {
	app := newTestApp(t)

	runCommand(t, app, newSessionShowCmd)

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	session, err := app.Store.GetSession(context.Background(), "default", today)
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
}

func TestSessionShowPastDateStaysEmpty(t *testing.T) {
	app := newTestApp(t)

	out := runCommand(t, app, newSessionShowCmd, "--date", "2025-01-02")
	assert.Contains(t, out, "No session for 2025-01-02")

	past := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	_, err := app.Store.GetSession(context.Background(), "default", past)
	assert.Error(t, err)
}
