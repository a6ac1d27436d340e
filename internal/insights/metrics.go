package insights

import (
	"math"
	"time"

	"github.com/armmoon4/bitsoftrade/internal/models"
)

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func isBadEmotion(e models.EmotionalState) bool {
	for _, b := range models.BadEmotions {
		if e == b {
			return true
		}
	}
	return false
}

func isGoodEmotion(e models.EmotionalState) bool {
	for _, g := range models.GoodEmotions {
		if e == g {
			return true
		}
	}
	return false
}

// disciplineIntegrity is the percentage of sessions that stayed green.
// No sessions yet means 0, not 100: integrity has to be earned.
func disciplineIntegrity(sessions []models.DisciplineSession) float64 {
	if len(sessions) == 0 {
		return 0
	}
	green := 0
	for _, s := range sessions {
		if s.State == models.StateGreen {
			green++
		}
	}
	return round2(float64(green) / float64(len(sessions)) * 100)
}

// violationMomentum compares total violations in the trailing window
// ending at asOf against the window before it.
func violationMomentum(sessions []models.DisciplineSession, asOf time.Time, windowDays int) models.MomentumLevel {
	if windowDays <= 0 {
		windowDays = 7
	}
	windowStart := asOf.AddDate(0, 0, -windowDays)
	prevStart := asOf.AddDate(0, 0, -2*windowDays)

	var last, prev int
	for _, s := range sessions {
		switch {
		case !s.SessionDate.Before(windowStart):
			last += s.ViolationsCount
		case !s.SessionDate.Before(prevStart):
			prev += s.ViolationsCount
		}
	}
	switch {
	case last > prev:
		return models.MomentumHigh
	case last < prev:
		return models.MomentumLow
	default:
		return models.MomentumMedium
	}
}

// recoveryTime averages, in whole days, how long escalated sessions took
// from creation to unlock. Sessions never unlocked do not count.
func recoveryTime(sessions []models.DisciplineSession) float64 {
	var total, n int
	for _, s := range sessions {
		if s.State == models.StateGreen || s.UnlockedAt == nil {
			continue
		}
		total += int(s.UnlockedAt.Sub(s.CreatedAt).Hours() / 24)
		n++
	}
	if n == 0 {
		return 0
	}
	return round2(float64(total) / float64(n))
}

// tradePermissionRatio is the percentage of trades placed while the
// session was green.
func tradePermissionRatio(trades []models.Trade, greenSessionIDs map[string]bool) float64 {
	if len(trades) == 0 {
		return 0
	}
	green := 0
	for _, t := range trades {
		if greenSessionIDs[t.SessionID] {
			green++
		}
	}
	return round2(float64(green) / float64(len(trades)) * 100)
}

// foregoneImpactOfEmotions sums the losses taken while entering under a
// compromised emotional state. Always zero or negative.
func foregoneImpactOfEmotions(trades []models.Trade) float64 {
	var sum float64
	for _, t := range trades {
		if t.TotalPnL != nil && *t.TotalPnL < 0 && isBadEmotion(t.EmotionalState) {
			sum += *t.TotalPnL
		}
	}
	return round2(sum)
}

// obstinacyVsResilience scores recovery from red sessions on 0-10. With
// no red sessions on record the score is a neutral 5.
func obstinacyVsResilience(sessions []models.DisciplineSession) float64 {
	var red, recovered int
	for _, s := range sessions {
		if s.State != models.StateRed {
			continue
		}
		red++
		if s.UnlockedAt != nil {
			recovered++
		}
	}
	if red == 0 {
		return 5
	}
	return round2(float64(recovered) / float64(red) * 10)
}

// emotionCostIndex is total P&L under bad emotions minus total P&L under
// good ones. Negative means compromised entries are costing money.
func emotionCostIndex(trades []models.Trade) float64 {
	var bad, good float64
	for _, t := range trades {
		if t.TotalPnL == nil {
			continue
		}
		switch {
		case isBadEmotion(t.EmotionalState):
			bad += *t.TotalPnL
		case isGoodEmotion(t.EmotionalState):
			good += *t.TotalPnL
		}
	}
	return round2(bad - good)
}

// confidenceAccuracy measures calibration: high-confidence entries that
// won plus low-confidence entries that lost, as a percentage of all
// entries at either extreme.
func confidenceAccuracy(trades []models.Trade, highMin, lowMax int) float64 {
	var hits, total int
	for _, t := range trades {
		switch {
		case t.EntryConfidence >= highMin:
			total++
			if t.TotalPnL != nil && *t.TotalPnL > 0 {
				hits++
			}
		case t.EntryConfidence <= lowMax:
			total++
			if t.TotalPnL != nil && *t.TotalPnL < 0 {
				hits++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return round2(float64(hits) / float64(total) * 100)
}

// disciplinedExpectancy is the mean P&L of closed trades placed in green
// sessions.
func disciplinedExpectancy(trades []models.Trade, greenSessionIDs map[string]bool) float64 {
	var sum float64
	var n int
	for _, t := range trades {
		if t.TotalPnL == nil || !greenSessionIDs[t.SessionID] {
			continue
		}
		sum += *t.TotalPnL
		n++
	}
	if n == 0 {
		return 0
	}
	return round2(sum / float64(n))
}

// disciplineDependency buckets the gap between the green-session win rate
// and the escalated-session win rate. A large gap means the trader's edge
// depends on staying disciplined.
func disciplineDependency(trades []models.Trade, greenSessionIDs map[string]bool) models.DependencyLevel {
	var greenWins, greenTotal, otherWins, otherTotal int
	for _, t := range trades {
		won := t.TotalPnL != nil && *t.TotalPnL > 0
		if greenSessionIDs[t.SessionID] {
			greenTotal++
			if won {
				greenWins++
			}
		} else if t.SessionID != "" {
			otherTotal++
			if won {
				otherWins++
			}
		}
	}

	var greenRate, otherRate float64
	if greenTotal > 0 {
		greenRate = float64(greenWins) / float64(greenTotal) * 100
	}
	if otherTotal > 0 {
		otherRate = float64(otherWins) / float64(otherTotal) * 100
	}

	gap := math.Abs(greenRate - otherRate)
	switch {
	case gap < 10:
		return models.DependencyLow
	case gap < 25:
		return models.DependencyMedium
	default:
		return models.DependencyHigh
	}
}

// capitalProtection is the percentage of trading days that stayed within
// the daily-loss allowance derived from the user's capital and their
// percent-based daily-loss rule. Returns nil when the user has no capital
// figure, and a full 100 when no such rule is configured.
func capitalProtection(user *models.User, trades []models.Trade, rules []models.Rule) *float64 {
	if !user.HasCapital() {
		return nil
	}

	maxPct := 0.0
	found := false
	for _, r := range rules {
		if r.Category != models.CategoryRisk {
			continue
		}
		if v, ok := r.Condition["maxDailyPercent"]; ok {
			if pct, ok := toFloat(v); ok && pct > 0 {
				maxPct = pct
				found = true
			}
			break
		}
	}
	if !found {
		full := 100.0
		return &full
	}

	allowed := *user.TradingCapital * maxPct / 100

	daily := make(map[string]float64)
	for _, t := range trades {
		key := models.DateKey(t.TradeDate)
		if _, ok := daily[key]; !ok {
			daily[key] = 0
		}
		if t.TotalPnL != nil {
			daily[key] += *t.TotalPnL
		}
	}
	if len(daily) == 0 {
		zero := 0.0
		return &zero
	}

	compliant := 0
	for _, pnl := range daily {
		if pnl >= -allowed {
			compliant++
		}
	}
	score := round2(float64(compliant) / float64(len(daily)) * 100)
	return &score
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
