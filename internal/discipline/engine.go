// Package discipline owns the per-day session state machine: evaluating
// every active rule after a trade save, escalating the session state, and
// handling the unlock flow.
package discipline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/armmoon4/bitsoftrade/internal/logging"
	"github.com/armmoon4/bitsoftrade/internal/models"
	"github.com/armmoon4/bitsoftrade/internal/notify"
	"github.com/armmoon4/bitsoftrade/internal/store"
)

// Store is the persistence surface the state machine needs.
// Implemented by store.SQLiteStore; tests supply a fake.
type Store interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetOrCreateSession(ctx context.Context, userID string, day time.Time) (*models.DisciplineSession, error)
	AttachTradeSession(ctx context.Context, tradeID, sessionID string) error
	ActiveRules(ctx context.Context, userID string) ([]models.Rule, error)
	SaveEvaluationOutcome(ctx context.Context, outcome *store.EvaluationOutcome) error
	UpdateSession(ctx context.Context, session *models.DisciplineSession) error
	GetStrategy(ctx context.Context, id string) (*models.Strategy, error)
	CountTradesByStrategy(ctx context.Context, strategyID string) (int, error)
	UpdateStrategyMaturity(ctx context.Context, id string, status models.MaturityStatus) error
}

// Evaluator decides whether a single rule is violated.
type Evaluator interface {
	Evaluate(ctx context.Context, rule *models.Rule, user *models.User, trade *models.Trade, session *models.DisciplineSession) bool
}

// Config holds the state machine's tunable timings.
type Config struct {
	YellowCooldown time.Duration
	RedCooldown    time.Duration
}

// DefaultConfig returns the production cooldowns: 45 minutes for yellow,
// 2 hours for red.
func DefaultConfig() Config {
	return Config{
		YellowCooldown: 45 * time.Minute,
		RedCooldown:    2 * time.Hour,
	}
}

// Engine runs the rule-evaluation pass after every trade save and owns
// all DisciplineSession mutations.
type Engine struct {
	store     Store
	evaluator Evaluator
	notifier  notify.Notifier
	cfg       Config
	logger    zerolog.Logger
	locks     *sessionLocks
	now       func() time.Time
}

// NewEngine creates a discipline engine. The notifier may be nil.
func NewEngine(st Store, evaluator Evaluator, notifier notify.Notifier, cfg Config, logger zerolog.Logger) *Engine {
	if cfg.YellowCooldown <= 0 {
		cfg.YellowCooldown = DefaultConfig().YellowCooldown
	}
	if cfg.RedCooldown <= 0 {
		cfg.RedCooldown = DefaultConfig().RedCooldown
	}
	return &Engine{
		store:     st,
		evaluator: evaluator,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger,
		locks:     newSessionLocks(),
		now:       time.Now,
	}
}

// EvaluationResult summarizes one rule-evaluation pass.
type EvaluationResult struct {
	Session       *models.DisciplineSession
	HardViolated  []models.Rule
	SoftViolated  []models.Rule
	NewViolations []models.ViolationsLogEntry
	Escalated     bool
	StateBefore   models.SessionState
}

// RecordTrade runs the full evaluation pass for an already-persisted
// trade: get-or-create the day's session, attach the trade, evaluate all
// active rules, escalate, count distinct violations, and persist the
// outcome atomically. All of it runs under an exclusive per-(user, day)
// scope so concurrent saves for the same day cannot race.
func (e *Engine) RecordTrade(ctx context.Context, trade *models.Trade) (*EvaluationResult, error) {
	user, err := e.store.GetUser(ctx, trade.UserID)
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}

	unlock := e.locks.acquire(trade.UserID + "/" + models.DateKey(trade.TradeDate))
	defer unlock()

	session, err := e.store.GetOrCreateSession(ctx, trade.UserID, trade.TradeDate)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	// First attach only; a trade keeps its original session even if its
	// date is later edited.
	if trade.SessionID == "" {
		if err := e.store.AttachTradeSession(ctx, trade.ID, session.ID); err != nil {
			return nil, fmt.Errorf("attaching trade to session: %w", err)
		}
		trade.SessionID = session.ID
	}

	activeRules, err := e.store.ActiveRules(ctx, trade.UserID)
	if err != nil {
		return nil, fmt.Errorf("loading active rules: %w", err)
	}

	result := &EvaluationResult{
		Session:     session,
		StateBefore: session.State,
	}

	for i := range activeRules {
		rule := &activeRules[i]
		if !e.evaluator.Evaluate(ctx, rule, user, trade, session) {
			continue
		}
		if rule.Type == models.RuleHard {
			result.HardViolated = append(result.HardViolated, *rule)
		} else {
			result.SoftViolated = append(result.SoftViolated, *rule)
		}
	}

	now := e.now()

	// Candidate state: any hard violation means red; a soft violation
	// lifts a green session to yellow but never pushes yellow further.
	candidate := session.State
	if len(result.HardViolated) > 0 {
		candidate = models.StateRed
	} else if len(result.SoftViolated) > 0 && session.State == models.StateGreen {
		candidate = models.StateYellow
	}

	merged := models.MergeState(session.State, candidate)
	if merged != session.State {
		session.State = merged
		result.Escalated = true

		var cooldownEnds time.Time
		switch merged {
		case models.StateYellow:
			cooldownEnds = now.Add(e.cfg.YellowCooldown)
		case models.StateRed:
			cooldownEnds = now.Add(e.cfg.RedCooldown)
		}
		session.CooldownEndsAt = &cooldownEnds

		logging.LogEscalation(e.logger, session.ID, string(result.StateBefore), string(merged), cooldownEnds)
	}

	// Count each rule at most once per session day.
	for _, violated := range [][]models.Rule{result.HardViolated, result.SoftViolated} {
		for _, rule := range violated {
			if session.HasViolated(rule.ID) {
				continue
			}
			session.RulesViolated = append(session.RulesViolated, rule.ID)
			session.ViolationsCount++

			vtype := models.ViolationSoft
			if rule.Type == models.RuleHard {
				vtype = models.ViolationHard
				session.HardViolations++
			} else {
				session.SoftViolations++
			}

			entry := models.ViolationsLogEntry{
				ID:                uuid.NewString(),
				UserID:            trade.UserID,
				SessionID:         session.ID,
				TradeID:           trade.ID,
				RuleID:            rule.ID,
				ViolationType:     vtype,
				SessionStateAfter: session.State,
				ViolatedAt:        now,
			}
			result.NewViolations = append(result.NewViolations, entry)

			logging.LogViolation(e.logger, rule.ID, rule.Name, string(vtype), string(session.State))
		}
	}

	disciplined := len(result.HardViolated) == 0
	outcome := &store.EvaluationOutcome{
		Session:       session,
		NewViolations: result.NewViolations,
		TradeID:       trade.ID,
		IsDisciplined: disciplined,
	}
	if err := e.store.SaveEvaluationOutcome(ctx, outcome); err != nil {
		return nil, fmt.Errorf("persisting evaluation outcome: %w", err)
	}
	trade.IsDisciplined = disciplined

	if result.Escalated && e.notifier != nil {
		if err := e.notifier.SendEscalation(ctx, session, result.StateBefore); err != nil {
			e.logger.Warn().Err(err).Msg("Failed to send escalation notification")
		}
	}

	e.advanceStrategyMaturity(ctx, trade)

	return result, nil
}

// advanceStrategyMaturity recalculates the maturity of the trade's
// strategy from its grown sample size. Failures are logged, never fatal:
// maturity is bookkeeping, not part of the evaluation pass.
func (e *Engine) advanceStrategyMaturity(ctx context.Context, trade *models.Trade) {
	if trade.StrategyID == "" {
		return
	}

	strategy, err := e.store.GetStrategy(ctx, trade.StrategyID)
	if err != nil {
		e.logger.Debug().Err(err).Str("strategy_id", trade.StrategyID).Msg("Strategy lookup failed")
		return
	}
	count, err := e.store.CountTradesByStrategy(ctx, trade.StrategyID)
	if err != nil {
		e.logger.Debug().Err(err).Str("strategy_id", trade.StrategyID).Msg("Strategy trade count failed")
		return
	}

	before := strategy.MaturityStatus
	strategy.UpdateMaturity(count)
	if strategy.MaturityStatus == before {
		return
	}
	if err := e.store.UpdateStrategyMaturity(ctx, strategy.ID, strategy.MaturityStatus); err != nil {
		e.logger.Warn().Err(err).Str("strategy_id", strategy.ID).Msg("Failed to persist strategy maturity")
		return
	}
	e.logger.Info().
		Str("strategy_id", strategy.ID).
		Str("from", string(before)).
		Str("to", string(strategy.MaturityStatus)).
		Msg("Strategy maturity advanced")
}
