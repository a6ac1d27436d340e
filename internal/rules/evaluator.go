// Package rules implements the rule-evaluation engine: five built-in
// predicate families dispatched by rule category and condition-key
// presence. Evaluation is total and fail-open: a malformed condition or
// a ledger read failure means "not violated", never an error, so one bad
// rule cannot block evaluation of the rest.
package rules

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/armmoon4/bitsoftrade/internal/models"
)

// Ledger is the read-only view over a user's trade history the evaluator
// needs. Implemented by store.SQLiteStore; tests supply a fake.
type Ledger interface {
	DailyPnL(ctx context.Context, userID string, day time.Time) (float64, error)
	CountTradesOn(ctx context.Context, userID string, day time.Time) (int, error)
	RecentTrades(ctx context.Context, userID string, limit int) ([]models.Trade, error)
}

// Evaluator decides whether a rule is violated by a trade in the context
// of the current discipline session.
type Evaluator struct {
	ledger Ledger
	logger zerolog.Logger
}

// NewEvaluator creates an evaluator over the given trade ledger.
func NewEvaluator(ledger Ledger, logger zerolog.Logger) *Evaluator {
	return &Evaluator{ledger: ledger, logger: logger}
}

// Evaluate reports whether the rule is violated. It is side-effect-free.
// Rules whose category/condition combination matches no built-in family
// are inert and always pass; that is deliberate slack for future rule
// kinds, not an error.
func (e *Evaluator) Evaluate(ctx context.Context, rule *models.Rule, user *models.User, trade *models.Trade, session *models.DisciplineSession) bool {
	_ = session // reserved for post_trigger scoped families

	switch {
	case rule.Category == models.CategoryRisk &&
		(hasKey(rule.Condition, "maxLoss") || hasKey(rule.Condition, "maxDailyPercent")):
		return e.maxDailyLossViolated(ctx, rule, user, trade)

	case rule.Category == models.CategoryRisk && hasKey(rule.Condition, "maxPositionPercent"):
		return e.positionSizeViolated(rule, user, trade)

	case rule.Category == models.CategoryProcess && hasKey(rule.Condition, "maxTrades"):
		return e.maxTradesViolated(ctx, rule, user, trade)

	case rule.Category == models.CategoryPsychology && hasKey(rule.Condition, "consecutiveLosses"):
		return e.consecutiveLossesViolated(ctx, rule, user)

	default:
		return false
	}
}

// maxDailyLossViolated checks the day's realized P&L against an absolute
// loss cap and/or a percent-of-capital cap.
func (e *Evaluator) maxDailyLossViolated(ctx context.Context, rule *models.Rule, user *models.User, trade *models.Trade) bool {
	var params MaxDailyLossParams
	if err := decodeCondition(rule.Condition, &params); err != nil {
		e.logger.Debug().Err(err).Str("rule_id", rule.ID).Msg("Unreadable max-daily-loss condition, skipping")
		return false
	}

	dailyPnL, err := e.ledger.DailyPnL(ctx, user.ID, trade.TradeDate)
	if err != nil {
		e.logger.Debug().Err(err).Str("rule_id", rule.ID).Msg("Daily P&L unavailable, skipping")
		return false
	}

	if params.MaxLoss != nil && dailyPnL < -math.Abs(*params.MaxLoss) {
		return true
	}

	if params.MaxDailyPercent != nil && *params.MaxDailyPercent != 0 && user.HasCapital() && dailyPnL < 0 {
		lossPct := math.Abs(dailyPnL) / *user.TradingCapital * 100
		if lossPct > *params.MaxDailyPercent {
			return true
		}
	}

	return false
}

// positionSizeViolated checks entry notional against a percent-of-capital
// cap. Entry price, quantity, and capital must all be present and
// non-zero, otherwise the rule is not evaluated.
func (e *Evaluator) positionSizeViolated(rule *models.Rule, user *models.User, trade *models.Trade) bool {
	var params PositionSizeParams
	if err := decodeCondition(rule.Condition, &params); err != nil {
		e.logger.Debug().Err(err).Str("rule_id", rule.ID).Msg("Unreadable position-size condition, skipping")
		return false
	}

	if trade.EntryPrice == 0 || trade.Quantity == 0 || !user.HasCapital() {
		return false
	}

	positionPct := trade.EntryPrice * trade.Quantity / *user.TradingCapital * 100
	return positionPct > params.MaxPositionPercent
}

// maxTradesViolated counts today's trades, current trade included.
// Comparison is strictly greater-than: the limit itself is permitted.
func (e *Evaluator) maxTradesViolated(ctx context.Context, rule *models.Rule, user *models.User, trade *models.Trade) bool {
	var params MaxTradesParams
	if err := decodeCondition(rule.Condition, &params); err != nil {
		e.logger.Debug().Err(err).Str("rule_id", rule.ID).Msg("Unreadable max-trades condition, skipping")
		return false
	}

	count, err := e.ledger.CountTradesOn(ctx, user.ID, trade.TradeDate)
	if err != nil {
		e.logger.Debug().Err(err).Str("rule_id", rule.ID).Msg("Trade count unavailable, skipping")
		return false
	}

	return count > params.MaxTrades
}

// consecutiveLossesViolated walks the user's most recent trades, counting
// the contiguous prefix of losers. The streak breaks at the first
// non-loss or still-open trade.
func (e *Evaluator) consecutiveLossesViolated(ctx context.Context, rule *models.Rule, user *models.User) bool {
	var params ConsecutiveLossParams
	if err := decodeCondition(rule.Condition, &params); err != nil {
		e.logger.Debug().Err(err).Str("rule_id", rule.ID).Msg("Unreadable consecutive-loss condition, skipping")
		return false
	}
	if params.ConsecutiveLosses <= 0 {
		return false
	}

	recent, err := e.ledger.RecentTrades(ctx, user.ID, params.ConsecutiveLosses+1)
	if err != nil {
		e.logger.Debug().Err(err).Str("rule_id", rule.ID).Msg("Recent trades unavailable, skipping")
		return false
	}

	streak := 0
	for _, t := range recent {
		if t.TotalPnL != nil && *t.TotalPnL < 0 {
			streak++
		} else {
			break
		}
	}

	return streak >= params.ConsecutiveLosses
}
