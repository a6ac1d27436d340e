package insights

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armmoon4/bitsoftrade/internal/models"
)

func fptr(f float64) *float64 { return &f }

func day(d int) time.Time {
	return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
}

func greenSet(ids ...string) map[string]bool {
	set := make(map[string]bool)
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func TestDisciplineIntegrity(t *testing.T) {
	assert.Equal(t, 0.0, disciplineIntegrity(nil), "no sessions yet scores zero")

	sessions := []models.DisciplineSession{
		{State: models.StateGreen},
		{State: models.StateGreen},
		{State: models.StateRed},
	}
	assert.Equal(t, 66.67, disciplineIntegrity(sessions))

	allGreen := []models.DisciplineSession{{State: models.StateGreen}}
	assert.Equal(t, 100.0, disciplineIntegrity(allGreen))
}

func TestViolationMomentum(t *testing.T) {
	asOf := day(20)

	t.Run("no history is medium", func(t *testing.T) {
		assert.Equal(t, models.MomentumMedium, violationMomentum(nil, asOf, 7))
	})

	t.Run("rising violations are high", func(t *testing.T) {
		sessions := []models.DisciplineSession{
			{SessionDate: day(19), ViolationsCount: 3}, // trailing window
			{SessionDate: day(10), ViolationsCount: 1}, // prior window
		}
		assert.Equal(t, models.MomentumHigh, violationMomentum(sessions, asOf, 7))
	})

	t.Run("falling violations are low", func(t *testing.T) {
		sessions := []models.DisciplineSession{
			{SessionDate: day(19), ViolationsCount: 1},
			{SessionDate: day(10), ViolationsCount: 4},
		}
		assert.Equal(t, models.MomentumLow, violationMomentum(sessions, asOf, 7))
	})

	t.Run("sessions older than both windows are ignored", func(t *testing.T) {
		sessions := []models.DisciplineSession{
			{SessionDate: day(1), ViolationsCount: 50},
		}
		assert.Equal(t, models.MomentumMedium, violationMomentum(sessions, asOf, 7))
	})
}

func TestRecoveryTime(t *testing.T) {
	assert.Equal(t, 0.0, recoveryTime(nil))

	created := day(10)
	unlockedSame := created.Add(3 * time.Hour)
	unlockedLater := created.Add(49 * time.Hour) // 2 whole days

	sessions := []models.DisciplineSession{
		{State: models.StateRed, CreatedAt: created, UnlockedAt: &unlockedSame},
		{State: models.StateYellow, CreatedAt: created, UnlockedAt: &unlockedLater},
		{State: models.StateRed, CreatedAt: created}, // never unlocked, ignored
		{State: models.StateGreen, CreatedAt: created, UnlockedAt: &unlockedLater},
	}
	// (0 + 2) / 2
	assert.Equal(t, 1.0, recoveryTime(sessions))
}

func TestTradePermissionRatio(t *testing.T) {
	assert.Equal(t, 0.0, tradePermissionRatio(nil, nil))

	trades := []models.Trade{
		{SessionID: "g1"},
		{SessionID: "g1"},
		{SessionID: "r1"},
		{SessionID: "r2"},
	}
	assert.Equal(t, 50.0, tradePermissionRatio(trades, greenSet("g1")))
}

func TestForegoneImpactOfEmotions(t *testing.T) {
	trades := []models.Trade{
		{EmotionalState: models.EmotionFOMO, TotalPnL: fptr(-300)},
		{EmotionalState: models.EmotionAngry, TotalPnL: fptr(-200)},
		{EmotionalState: models.EmotionFOMO, TotalPnL: fptr(500)},  // winner, excluded
		{EmotionalState: models.EmotionCalm, TotalPnL: fptr(-400)}, // composed, excluded
		{EmotionalState: models.EmotionFearful},                    // open, excluded
	}
	assert.Equal(t, -500.0, foregoneImpactOfEmotions(trades))
}

func TestObstinacyVsResilience(t *testing.T) {
	assert.Equal(t, 5.0, obstinacyVsResilience(nil), "no red sessions is neutral")

	unlocked := day(10)
	sessions := []models.DisciplineSession{
		{State: models.StateRed, UnlockedAt: &unlocked},
		{State: models.StateRed},
		{State: models.StateRed},
		{State: models.StateRed, UnlockedAt: &unlocked},
		{State: models.StateYellow}, // not red, ignored
	}
	assert.Equal(t, 5.0, obstinacyVsResilience(sessions))

	allRecovered := []models.DisciplineSession{
		{State: models.StateRed, UnlockedAt: &unlocked},
	}
	assert.Equal(t, 10.0, obstinacyVsResilience(allRecovered))
}

func TestEmotionCostIndex(t *testing.T) {
	trades := []models.Trade{
		{EmotionalState: models.EmotionAnxious, TotalPnL: fptr(-500)},
		{EmotionalState: models.EmotionFOMO, TotalPnL: fptr(100)},
		{EmotionalState: models.EmotionCalm, TotalPnL: fptr(300)},
		{EmotionalState: models.EmotionConfident, TotalPnL: fptr(200)},
	}
	// bad (-400) minus good (500)
	assert.Equal(t, -900.0, emotionCostIndex(trades))
}

func TestConfidenceAccuracy(t *testing.T) {
	assert.Equal(t, 0.0, confidenceAccuracy(nil, 7, 3), "no extreme-confidence trades scores zero")

	trades := []models.Trade{
		{EntryConfidence: 8, TotalPnL: fptr(100)},  // confident win, hit
		{EntryConfidence: 9, TotalPnL: fptr(-50)},  // confident loss, miss
		{EntryConfidence: 2, TotalPnL: fptr(-100)}, // doubtful loss, hit
		{EntryConfidence: 5, TotalPnL: fptr(-999)}, // mid confidence, excluded
	}
	// 2 hits out of 3 extremes
	assert.Equal(t, 66.67, confidenceAccuracy(trades, 7, 3))
}

func TestDisciplinedExpectancy(t *testing.T) {
	assert.Equal(t, 0.0, disciplinedExpectancy(nil, nil))

	trades := []models.Trade{
		{SessionID: "g1", TotalPnL: fptr(100)},
		{SessionID: "g1", TotalPnL: fptr(-40)},
		{SessionID: "g1"},                      // open, excluded from the mean
		{SessionID: "r1", TotalPnL: fptr(999)}, // not green, excluded
	}
	assert.Equal(t, 30.0, disciplinedExpectancy(trades, greenSet("g1")))
}

func TestDisciplineDependency(t *testing.T) {
	t.Run("no trades is low", func(t *testing.T) {
		assert.Equal(t, models.DependencyLow, disciplineDependency(nil, nil))
	})

	t.Run("big win-rate gap is high", func(t *testing.T) {
		trades := []models.Trade{
			{SessionID: "g1", TotalPnL: fptr(100)},
			{SessionID: "g1", TotalPnL: fptr(100)}, // green 100% win rate
			{SessionID: "r1", TotalPnL: fptr(-10)},
			{SessionID: "r1", TotalPnL: fptr(-10)}, // escalated 0%
		}
		assert.Equal(t, models.DependencyHigh, disciplineDependency(trades, greenSet("g1")))
	})

	t.Run("similar win rates are low", func(t *testing.T) {
		trades := []models.Trade{
			{SessionID: "g1", TotalPnL: fptr(100)},
			{SessionID: "g1", TotalPnL: fptr(-10)},
			{SessionID: "r1", TotalPnL: fptr(100)},
			{SessionID: "r1", TotalPnL: fptr(-10)},
		}
		assert.Equal(t, models.DependencyLow, disciplineDependency(trades, greenSet("g1")))
	})
}

func TestCapitalProtection(t *testing.T) {
	capitalUser := &models.User{ID: "u1", TradingCapital: fptr(100000)}
	pctRule := models.Rule{
		ID:        "r1",
		Category:  models.CategoryRisk,
		Condition: map[string]interface{}{"maxDailyPercent": 3.0},
	}

	t.Run("nil without capital", func(t *testing.T) {
		noCapital := &models.User{ID: "u1"}
		assert.Nil(t, capitalProtection(noCapital, nil, []models.Rule{pctRule}))
	})

	t.Run("full score without a percent rule", func(t *testing.T) {
		score := capitalProtection(capitalUser, nil, nil)
		require.NotNil(t, score)
		assert.Equal(t, 100.0, *score)
	})

	t.Run("compliant and breaching days", func(t *testing.T) {
		// Allowance is 3% of 100000 = 3000 per day.
		trades := []models.Trade{
			{TradeDate: day(1), TotalPnL: fptr(-2000)}, // compliant
			{TradeDate: day(2), TotalPnL: fptr(-2500)},
			{TradeDate: day(2), TotalPnL: fptr(-1500)}, // day 2 totals -4000, breach
			{TradeDate: day(3), TotalPnL: fptr(500)},   // compliant
			{TradeDate: day(4)},                        // open trades count as a flat day
		}
		score := capitalProtection(capitalUser, trades, []models.Rule{pctRule})
		require.NotNil(t, score)
		assert.Equal(t, 75.0, *score)
	})

	t.Run("no trading days scores zero", func(t *testing.T) {
		score := capitalProtection(capitalUser, nil, []models.Rule{pctRule})
		require.NotNil(t, score)
		assert.Equal(t, 0.0, *score)
	})
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 66.67, round2(66.666666))
	assert.Equal(t, -0.5, round2(-0.499999999))
	assert.Equal(t, 0.0, round2(0))
}
