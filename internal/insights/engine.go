// Package insights derives the twelve behavioral indicators from a user's
// trade and session history and caches them as daily snapshots.
package insights

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/armmoon4/bitsoftrade/internal/logging"
	"github.com/armmoon4/bitsoftrade/internal/models"
	"github.com/armmoon4/bitsoftrade/internal/store"
)

// Store is the read/write surface the metrics engine needs.
type Store interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetSessions(ctx context.Context, userID string) ([]models.DisciplineSession, error)
	GetTrades(ctx context.Context, filter store.TradeFilter) ([]models.Trade, error)
	ActiveRules(ctx context.Context, userID string) ([]models.Rule, error)
	TopStrategyID(ctx context.Context, userID string) (string, error)
	GetStrategy(ctx context.Context, id string) (*models.Strategy, error)
	SaveSnapshot(ctx context.Context, snapshot *models.MetricSnapshot) error
}

// Config holds the metric thresholds and batch settings.
type Config struct {
	HighConfidenceMin  int
	LowConfidenceMax   int
	MomentumWindowDays int
	RecomputeWorkers   int
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		HighConfidenceMin:  7,
		LowConfidenceMax:   3,
		MomentumWindowDays: 7,
		RecomputeWorkers:   4,
	}
}

// Engine computes metric snapshots. Computation is a pure fold over the
// user's full history, so recomputing a date always overwrites the prior
// snapshot with the same values the same history would produce.
type Engine struct {
	store  Store
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time
}

// NewEngine creates a metrics engine.
func NewEngine(st Store, cfg Config, logger zerolog.Logger) *Engine {
	if cfg.HighConfidenceMin <= 0 {
		cfg.HighConfidenceMin = DefaultConfig().HighConfidenceMin
	}
	if cfg.LowConfidenceMax <= 0 {
		cfg.LowConfidenceMax = DefaultConfig().LowConfidenceMax
	}
	if cfg.MomentumWindowDays <= 0 {
		cfg.MomentumWindowDays = DefaultConfig().MomentumWindowDays
	}
	if cfg.RecomputeWorkers <= 0 {
		cfg.RecomputeWorkers = DefaultConfig().RecomputeWorkers
	}
	return &Engine{store: st, cfg: cfg, logger: logger, now: time.Now}
}

// Compute calculates all twelve indicators for the user as of asOf and
// persists the snapshot, overwriting any existing one for that date.
func (e *Engine) Compute(ctx context.Context, userID string, asOf time.Time) (*models.MetricSnapshot, error) {
	started := e.now()

	user, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}

	sessions, err := e.store.GetSessions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading sessions: %w", err)
	}
	trades, err := e.store.GetTrades(ctx, store.TradeFilter{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("loading trades: %w", err)
	}
	rules, err := e.store.ActiveRules(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}

	greenSessionIDs := make(map[string]bool)
	for _, s := range sessions {
		if s.State == models.StateGreen {
			greenSessionIDs[s.ID] = true
		}
	}

	snapshot := &models.MetricSnapshot{
		ID:           uuid.NewString(),
		UserID:       userID,
		SnapshotDate: asOf,

		DIScore:   disciplineIntegrity(sessions),
		VMILevel:  violationMomentum(sessions, asOf, e.cfg.MomentumWindowDays),
		DRTDays:   recoveryTime(sessions),
		TPRScore:  tradePermissionRatio(trades, greenSessionIDs),
		FIEAmount: foregoneImpactOfEmotions(trades),
		OVRScore:  obstinacyVsResilience(sessions),
		ECIAmount: emotionCostIndex(trades),
		CASScore:  confidenceAccuracy(trades, e.cfg.HighConfidenceMin, e.cfg.LowConfidenceMax),
		DAEAvg:    disciplinedExpectancy(trades, greenSessionIDs),
		SMIStatus: e.strategyMaturity(ctx, userID),
		DDRLevel:  disciplineDependency(trades, greenSessionIDs),
		CPIScore:  capitalProtection(user, trades, rules),

		CalculatedAt: e.now(),
	}

	if err := e.store.SaveSnapshot(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("saving snapshot: %w", err)
	}

	logging.LogSnapshot(e.logger, userID, asOf, e.now().Sub(started))
	return snapshot, nil
}

// strategyMaturity resolves the maturity of the user's most-traded
// strategy, defaulting to testing when there is none.
func (e *Engine) strategyMaturity(ctx context.Context, userID string) string {
	id, err := e.store.TopStrategyID(ctx, userID)
	if err != nil || id == "" {
		return string(models.MaturityTesting)
	}
	strategy, err := e.store.GetStrategy(ctx, id)
	if err != nil {
		e.logger.Debug().Err(err).Str("strategy_id", id).Msg("Top strategy lookup failed")
		return string(models.MaturityTesting)
	}
	return string(strategy.MaturityStatus)
}

// RecomputeAll refreshes today's snapshot for a set of users with bounded
// concurrency. Each user's failure is independent; the first error is
// returned after the group drains.
func (e *Engine) RecomputeAll(ctx context.Context, userIDs []string) error {
	asOf := e.now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.RecomputeWorkers)
	for _, id := range userIDs {
		id := id
		g.Go(func() error {
			if _, err := e.Compute(ctx, id, asOf); err != nil {
				return fmt.Errorf("recomputing metrics for user %s: %w", id, err)
			}
			return nil
		})
	}
	return g.Wait()
}
