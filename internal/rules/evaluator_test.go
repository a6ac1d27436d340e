package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/armmoon4/bitsoftrade/internal/models"
)

// fakeLedger returns canned history for the evaluator.
type fakeLedger struct {
	dailyPnL   float64
	tradeCount int
	recent     []models.Trade
	err        error
}

func (f *fakeLedger) DailyPnL(ctx context.Context, userID string, day time.Time) (float64, error) {
	return f.dailyPnL, f.err
}

func (f *fakeLedger) CountTradesOn(ctx context.Context, userID string, day time.Time) (int, error) {
	return f.tradeCount, f.err
}

func (f *fakeLedger) RecentTrades(ctx context.Context, userID string, limit int) ([]models.Trade, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.recent) {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

func testUser(capital float64) *models.User {
	u := &models.User{ID: "u1", Username: "u1"}
	if capital > 0 {
		u.TradingCapital = &capital
	}
	return u
}

func testTrade() *models.Trade {
	return &models.Trade{
		ID:        "t1",
		UserID:    "u1",
		TradeDate: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
	}
}

func closedTrades(pnls ...float64) []models.Trade {
	trades := make([]models.Trade, len(pnls))
	for i := range pnls {
		pnl := pnls[i]
		trades[i] = models.Trade{TotalPnL: &pnl}
	}
	return trades
}

func newTestEvaluator(ledger Ledger) *Evaluator {
	return NewEvaluator(ledger, zerolog.Nop())
}

func TestMaxDailyLoss_AbsoluteCap(t *testing.T) {
	rule := &models.Rule{
		ID:        "r1",
		Category:  models.CategoryRisk,
		Type:      models.RuleHard,
		Condition: map[string]interface{}{"maxLoss": 2000.0},
	}

	tests := []struct {
		name     string
		dailyPnL float64
		violated bool
	}{
		{"loss beyond cap", -2500, true},
		{"loss exactly at cap", -2000, false},
		{"loss within cap", -1500, false},
		{"profitable day", 500, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval := newTestEvaluator(&fakeLedger{dailyPnL: tt.dailyPnL})
			got := eval.Evaluate(context.Background(), rule, testUser(0), testTrade(), nil)
			assert.Equal(t, tt.violated, got)
		})
	}
}

func TestMaxDailyLoss_PercentCap(t *testing.T) {
	rule := &models.Rule{
		ID:        "r1",
		Category:  models.CategoryRisk,
		Type:      models.RuleHard,
		Condition: map[string]interface{}{"maxDailyPercent": 3.0},
	}

	// 3% of 100000 is 3000
	t.Run("loss beyond percent cap", func(t *testing.T) {
		eval := newTestEvaluator(&fakeLedger{dailyPnL: -3500})
		assert.True(t, eval.Evaluate(context.Background(), rule, testUser(100000), testTrade(), nil))
	})
	t.Run("loss within percent cap", func(t *testing.T) {
		eval := newTestEvaluator(&fakeLedger{dailyPnL: -2500})
		assert.False(t, eval.Evaluate(context.Background(), rule, testUser(100000), testTrade(), nil))
	})
	t.Run("no capital means percent leg is inert", func(t *testing.T) {
		eval := newTestEvaluator(&fakeLedger{dailyPnL: -3500})
		assert.False(t, eval.Evaluate(context.Background(), rule, testUser(0), testTrade(), nil))
	})
}

func TestMaxDailyLoss_BothCaps(t *testing.T) {
	// Either cap alone is enough to violate.
	rule := &models.Rule{
		ID:       "r1",
		Category: models.CategoryRisk,
		Condition: map[string]interface{}{
			"maxLoss":         5000.0,
			"maxDailyPercent": 3.0,
		},
	}
	eval := newTestEvaluator(&fakeLedger{dailyPnL: -3500})
	assert.True(t, eval.Evaluate(context.Background(), rule, testUser(100000), testTrade(), nil))
}

func TestPositionSize(t *testing.T) {
	rule := &models.Rule{
		ID:        "r2",
		Category:  models.CategoryRisk,
		Condition: map[string]interface{}{"maxPositionPercent": 10.0},
	}

	trade := testTrade()
	trade.EntryPrice = 500
	trade.Quantity = 30 // notional 15000, 15% of 100000

	t.Run("oversized position", func(t *testing.T) {
		eval := newTestEvaluator(&fakeLedger{})
		assert.True(t, eval.Evaluate(context.Background(), rule, testUser(100000), trade, nil))
	})
	t.Run("within limit", func(t *testing.T) {
		small := testTrade()
		small.EntryPrice = 500
		small.Quantity = 10 // 5%
		eval := newTestEvaluator(&fakeLedger{})
		assert.False(t, eval.Evaluate(context.Background(), rule, testUser(100000), small, nil))
	})
	t.Run("no capital means rule is inert", func(t *testing.T) {
		eval := newTestEvaluator(&fakeLedger{})
		assert.False(t, eval.Evaluate(context.Background(), rule, testUser(0), trade, nil))
	})
	t.Run("zero quantity is not evaluated", func(t *testing.T) {
		zero := testTrade()
		zero.EntryPrice = 500
		eval := newTestEvaluator(&fakeLedger{})
		assert.False(t, eval.Evaluate(context.Background(), rule, testUser(100000), zero, nil))
	})
}

func TestMaxTrades_StrictlyGreater(t *testing.T) {
	rule := &models.Rule{
		ID:        "r3",
		Category:  models.CategoryProcess,
		Condition: map[string]interface{}{"maxTrades": 5},
	}

	tests := []struct {
		count    int
		violated bool
	}{
		{4, false},
		{5, false}, // the limit itself is permitted
		{6, true},
	}
	for _, tt := range tests {
		eval := newTestEvaluator(&fakeLedger{tradeCount: tt.count})
		got := eval.Evaluate(context.Background(), rule, testUser(0), testTrade(), nil)
		assert.Equal(t, tt.violated, got, "count=%d", tt.count)
	}
}

func TestConsecutiveLosses(t *testing.T) {
	rule := &models.Rule{
		ID:        "r4",
		Category:  models.CategoryPsychology,
		Condition: map[string]interface{}{"consecutiveLosses": 3},
	}

	t.Run("streak of three most recent losses", func(t *testing.T) {
		eval := newTestEvaluator(&fakeLedger{recent: closedTrades(-10, -5, -20, 50)})
		assert.True(t, eval.Evaluate(context.Background(), rule, testUser(0), testTrade(), nil))
	})
	t.Run("streak broken by a winner", func(t *testing.T) {
		eval := newTestEvaluator(&fakeLedger{recent: closedTrades(-10, 5, -20, -50)})
		assert.False(t, eval.Evaluate(context.Background(), rule, testUser(0), testTrade(), nil))
	})
	t.Run("open trade breaks the streak", func(t *testing.T) {
		open := models.Trade{} // nil TotalPnL
		loss := -10.0
		recent := []models.Trade{{TotalPnL: &loss}, open, {TotalPnL: &loss}, {TotalPnL: &loss}}
		eval := newTestEvaluator(&fakeLedger{recent: recent})
		assert.False(t, eval.Evaluate(context.Background(), rule, testUser(0), testTrade(), nil))
	})
	t.Run("streak longer than threshold", func(t *testing.T) {
		eval := newTestEvaluator(&fakeLedger{recent: closedTrades(-1, -2, -3, -4)})
		assert.True(t, eval.Evaluate(context.Background(), rule, testUser(0), testTrade(), nil))
	})
}

func TestEvaluate_FailOpen(t *testing.T) {
	ledgerErr := errors.New("db locked")

	rules := []*models.Rule{
		{ID: "a", Category: models.CategoryRisk, Condition: map[string]interface{}{"maxLoss": 100.0}},
		{ID: "b", Category: models.CategoryProcess, Condition: map[string]interface{}{"maxTrades": 1}},
		{ID: "c", Category: models.CategoryPsychology, Condition: map[string]interface{}{"consecutiveLosses": 1}},
	}
	for _, rule := range rules {
		eval := newTestEvaluator(&fakeLedger{err: ledgerErr, dailyPnL: -99999, tradeCount: 99})
		got := eval.Evaluate(context.Background(), rule, testUser(100000), testTrade(), nil)
		assert.False(t, got, "rule %s must fail open on ledger error", rule.ID)
	}
}

func TestEvaluate_UnknownCombinationsAreInert(t *testing.T) {
	eval := newTestEvaluator(&fakeLedger{dailyPnL: -99999, tradeCount: 99})

	inert := []*models.Rule{
		{ID: "x", Category: models.CategoryRisk, Condition: map[string]interface{}{"somethingElse": 1}},
		{ID: "y", Category: models.CategoryProcess, Condition: map[string]interface{}{"maxLoss": 100.0}},
		{ID: "z", Category: models.CategoryTime, Condition: map[string]interface{}{"maxTrades": 1}},
		{ID: "w", Category: models.CategoryOther, Condition: nil},
	}
	for _, rule := range inert {
		got := eval.Evaluate(context.Background(), rule, testUser(100000), testTrade(), nil)
		assert.False(t, got, "rule %s should be inert", rule.ID)
	}
}

func TestDecodeCondition_WeakTyping(t *testing.T) {
	// Numbers arrive as JSON floats or strings depending on the writer.
	var params MaxTradesParams
	err := decodeCondition(map[string]interface{}{"maxTrades": "5"}, &params)
	assert.NoError(t, err)
	assert.Equal(t, 5, params.MaxTrades)

	var loss MaxDailyLossParams
	err = decodeCondition(map[string]interface{}{"maxLoss": 2000}, &loss)
	assert.NoError(t, err)
	if assert.NotNil(t, loss.MaxLoss) {
		assert.Equal(t, 2000.0, *loss.MaxLoss)
	}
	assert.Nil(t, loss.MaxDailyPercent)
}
