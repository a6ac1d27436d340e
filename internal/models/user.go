// Package models defines the core domain types for the discipline engine.
package models

// User is the minimal view of an account the engine needs: an identity and
// an optional trading-capital figure for percent-based rules and metrics.
type User struct {
	ID             string
	Username       string
	TradingCapital *float64
}

// HasCapital reports whether a usable capital figure is configured.
func (u *User) HasCapital() bool {
	return u.TradingCapital != nil && *u.TradingCapital > 0
}
