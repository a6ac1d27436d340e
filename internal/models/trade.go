package models

import "time"

// TradeDirection represents the direction of a trade.
type TradeDirection string

const (
	DirectionLong  TradeDirection = "long"
	DirectionShort TradeDirection = "short"
)

// EmotionalState represents the trader's self-reported state at entry.
type EmotionalState string

const (
	EmotionCalm      EmotionalState = "calm"
	EmotionConfident EmotionalState = "confident"
	EmotionAnxious   EmotionalState = "anxious"
	EmotionFearful   EmotionalState = "fearful"
	EmotionAngry     EmotionalState = "angry"
	EmotionFOMO      EmotionalState = "fomo"
)

// Trade represents a single logged trade. ExitPrice and TotalPnL are nil
// while the position is still open.
type Trade struct {
	ID         string
	UserID     string
	SessionID  string // set on first attach, immutable afterwards
	StrategyID string
	Symbol     string
	Direction  TradeDirection
	Quantity   float64
	EntryPrice float64
	ExitPrice  *float64
	Fees       float64
	Leverage   float64
	TotalPnL   *float64

	TradeDate time.Time // calendar day, normalized to midnight UTC
	TradeTime string    // HH:MM:SS

	EmotionalState     EmotionalState
	EntryConfidence    int // 1-10
	SatisfactionRating *int
	LessonsLearned     string
	IsDisciplined      bool

	DeletedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsClosed reports whether the trade has an exit price.
func (t *Trade) IsClosed() bool {
	return t.ExitPrice != nil
}

// IsDeleted reports whether the trade has been soft-deleted.
func (t *Trade) IsDeleted() bool {
	return t.DeletedAt != nil
}

// CalculatePnL derives TotalPnL from entry/exit prices. Open trades (no exit
// price) keep a nil P&L. Leverage of zero is treated as 1x.
func (t *Trade) CalculatePnL() {
	if t.ExitPrice == nil {
		t.TotalPnL = nil
		return
	}
	sign := 1.0
	if t.Direction == DirectionShort {
		sign = -1.0
	}
	leverage := t.Leverage
	if leverage == 0 {
		leverage = 1
	}
	pnl := sign*(*t.ExitPrice-t.EntryPrice)*t.Quantity*leverage - t.Fees
	t.TotalPnL = &pnl
}

// DateKey returns the canonical YYYY-MM-DD key for a calendar day.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// BadEmotions are the states counted as emotionally compromised entries.
var BadEmotions = []EmotionalState{EmotionFOMO, EmotionAnxious, EmotionFearful, EmotionAngry}

// GoodEmotions are the states counted as composed entries.
var GoodEmotions = []EmotionalState{EmotionCalm, EmotionConfident}
