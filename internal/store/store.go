// Package store provides data persistence implementations.
package store

import (
	"context"
	"time"

	"github.com/armmoon4/bitsoftrade/internal/models"
)

// DataStore defines the persistence boundary for the discipline engine.
type DataStore interface {
	// Users
	SaveUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUserIDs(ctx context.Context) ([]string, error)

	// Trades
	SaveTrade(ctx context.Context, trade *models.Trade) error
	GetTrade(ctx context.Context, id string) (*models.Trade, error)
	GetTrades(ctx context.Context, filter TradeFilter) ([]models.Trade, error)
	AttachTradeSession(ctx context.Context, tradeID, sessionID string) error
	DailyPnL(ctx context.Context, userID string, day time.Time) (float64, error)
	CountTradesOn(ctx context.Context, userID string, day time.Time) (int, error)
	RecentTrades(ctx context.Context, userID string, limit int) ([]models.Trade, error)
	CountTradesByStrategy(ctx context.Context, strategyID string) (int, error)
	TopStrategyID(ctx context.Context, userID string) (string, error)

	// Rules
	SaveRule(ctx context.Context, rule *models.Rule) error
	GetRule(ctx context.Context, id string) (*models.Rule, error)
	ActiveRules(ctx context.Context, userID string) ([]models.Rule, error)

	// Discipline sessions
	GetOrCreateSession(ctx context.Context, userID string, day time.Time) (*models.DisciplineSession, error)
	GetSession(ctx context.Context, userID string, day time.Time) (*models.DisciplineSession, error)
	GetSessions(ctx context.Context, userID string) ([]models.DisciplineSession, error)
	UpdateSession(ctx context.Context, session *models.DisciplineSession) error
	SaveEvaluationOutcome(ctx context.Context, outcome *EvaluationOutcome) error
	SessionTimeline(ctx context.Context, userID string, from, to time.Time) ([]TimelinePoint, error)

	// Violations log
	GetViolations(ctx context.Context, filter ViolationFilter) ([]models.ViolationsLogEntry, error)

	// Strategies
	SaveStrategy(ctx context.Context, strategy *models.Strategy) error
	GetStrategy(ctx context.Context, id string) (*models.Strategy, error)
	UpdateStrategyMaturity(ctx context.Context, id string, status models.MaturityStatus) error

	// Metric snapshots
	SaveSnapshot(ctx context.Context, snapshot *models.MetricSnapshot) error
	GetSnapshot(ctx context.Context, userID string, day time.Time) (*models.MetricSnapshot, error)

	// Lifecycle
	Close() error
}

// TradeFilter represents filters for querying trades.
type TradeFilter struct {
	UserID         string
	StartDate      time.Time
	EndDate        time.Time
	StrategyID     string
	IncludeDeleted bool
	Limit          int
}

// ViolationFilter represents filters for querying the violations log.
type ViolationFilter struct {
	UserID    string
	SessionID string
	RuleID    string
	From      time.Time
	To        time.Time
	Limit     int
}

// EvaluationOutcome is the result of one rule-evaluation pass, applied to
// storage as a single transaction so an escalation is never half-written.
type EvaluationOutcome struct {
	Session       *models.DisciplineSession
	NewViolations []models.ViolationsLogEntry
	TradeID       string
	IsDisciplined bool
}

// TimelinePoint is one day of session history for the violations timeline.
type TimelinePoint struct {
	SessionDate     time.Time
	State           models.SessionState
	ViolationsCount int
	HardViolations  int
	SoftViolations  int
}
