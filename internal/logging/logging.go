// Package logging provides structured logging functionality.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "bitsoftrade", "logs", "bitsoftrade.log"),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// NewLogger creates a new logger with default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	// Console writer
	if cfg.Console {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
			FormatLevel: func(i interface{}) string {
				if ll, ok := i.(string); ok {
					switch ll {
					case "debug":
						return "\033[36mDBG\033[0m"
					case "info":
						return "\033[32mINF\033[0m"
					case "warn":
						return "\033[33mWRN\033[0m"
					case "error":
						return "\033[31mERR\033[0m"
					default:
						return ll
					}
				}
				return "???"
			},
		}
		writers = append(writers, consoleWriter)
	}

	// File writer with rotation
	if cfg.File {
		// Ensure log directory exists
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err == nil {
			fileWriter := &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			}
			writers = append(writers, fileWriter)
		}
	}

	// Create multi-writer
	var writer io.Writer
	if len(writers) == 0 {
		writer = os.Stdout
	} else if len(writers) == 1 {
		writer = writers[0]
	} else {
		writer = zerolog.MultiLevelWriter(writers...)
	}

	// Set log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	// Create logger
	logger := zerolog.New(writer).
		With().
		Timestamp().
		Caller().
		Logger()

	return logger
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetDebugLevel sets the global log level to debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// SetInfoLevel sets the global log level to info.
func SetInfoLevel() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// ContextKey is the type for context keys.
type ContextKey string

const (
	// LoggerKey is the context key for the logger.
	LoggerKey ContextKey = "logger"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// WithUser adds a user ID to the logger context.
func WithUser(logger zerolog.Logger, userID string) zerolog.Logger {
	return logger.With().Str("user_id", userID).Logger()
}

// WithSession adds a session ID to the logger context.
func WithSession(logger zerolog.Logger, sessionID string) zerolog.Logger {
	return logger.With().Str("session_id", sessionID).Logger()
}

// WithOperation adds an operation name to the logger context.
func WithOperation(logger zerolog.Logger, operation string) zerolog.Logger {
	return logger.With().Str("operation", operation).Logger()
}

// LogTrade logs a trade save event.
func LogTrade(logger zerolog.Logger, tradeID, symbol, direction string, quantity float64) {
	logger.Info().
		Str("event", "trade").
		Str("trade_id", tradeID).
		Str("symbol", symbol).
		Str("direction", direction).
		Float64("quantity", quantity).
		Msg("Trade logged")
}

// LogViolation logs a rule violation.
func LogViolation(logger zerolog.Logger, ruleID, ruleName, violationType, stateAfter string) {
	logger.Warn().
		Str("event", "violation").
		Str("rule_id", ruleID).
		Str("rule_name", ruleName).
		Str("type", violationType).
		Str("state_after", stateAfter).
		Msg("Rule violated")
}

// LogEscalation logs a session state escalation.
func LogEscalation(logger zerolog.Logger, sessionID, from, to string, cooldownEnds time.Time) {
	logger.Warn().
		Str("event", "escalation").
		Str("session_id", sessionID).
		Str("from", from).
		Str("to", to).
		Time("cooldown_ends", cooldownEnds).
		Msg("Session escalated")
}

// LogUnlock logs a session unlock attempt.
func LogUnlock(logger zerolog.Logger, sessionID string, unlocked bool, remainingMinutes int) {
	event := logger.Info().
		Str("event", "unlock").
		Str("session_id", sessionID).
		Bool("unlocked", unlocked)

	if unlocked {
		event.Msg("Session unlocked")
	} else {
		event.Int("cooldown_minutes_left", remainingMinutes).Msg("Unlock blocked")
	}
}

// LogSnapshot logs a metrics snapshot computation.
func LogSnapshot(logger zerolog.Logger, userID string, snapshotDate time.Time, duration time.Duration) {
	logger.Debug().
		Str("event", "snapshot").
		Str("user_id", userID).
		Time("snapshot_date", snapshotDate).
		Dur("duration", duration).
		Msg("Metrics snapshot computed")
}

// MaskSecret masks a credential for display or logging, keeping just
// enough of the value to identify which credential it was.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}
