package models

import "time"

// MomentumLevel buckets the violation momentum index.
type MomentumLevel string

const (
	MomentumLow    MomentumLevel = "Low"
	MomentumMedium MomentumLevel = "Medium"
	MomentumHigh   MomentumLevel = "High"
)

// DependencyLevel buckets the discipline dependency ratio.
type DependencyLevel string

const (
	DependencyLow    DependencyLevel = "Low"
	DependencyMedium DependencyLevel = "Medium"
	DependencyHigh   DependencyLevel = "High"
)

// MetricSnapshot holds the twelve derived discipline indicators for one
// user on one date. It is a pure derived artifact: recomputing overwrites
// any previous snapshot for the same (user, date).
type MetricSnapshot struct {
	ID           string
	UserID       string
	SnapshotDate time.Time

	// 1. Discipline Integrity: % of green sessions.
	DIScore float64
	// 2. Violation Momentum: trailing 7 days vs the 7 before.
	VMILevel MomentumLevel
	// 3. Recovery Time: avg days from session creation to unlock.
	DRTDays float64
	// 4. Trade Permission Ratio: % of trades made in green sessions.
	TPRScore float64
	// 5. Foregone Impact of Emotions: losses under bad emotions (negative).
	FIEAmount float64
	// 6. Obstinacy vs Resilience: recovered red sessions on a 0-10 scale.
	OVRScore float64
	// 7. Emotion Cost Index: P&L under bad emotions minus good emotions.
	ECIAmount float64
	// 8. Confidence Accuracy: calibration of entry confidence, percent.
	CASScore float64
	// 9. Disciplined Expectancy: mean P&L of green-session trades.
	DAEAvg float64
	// 10. Strategy Maturity: maturity of the most-used strategy.
	SMIStatus string
	// 11. Discipline Dependency: win-rate gap green vs non-green.
	DDRLevel DependencyLevel
	// 12. Capital Protection: % of days within the daily-loss allowance.
	// Nil when the user has no capital figure configured.
	CPIScore *float64

	CalculatedAt time.Time
}
