package models

import "time"

// SessionState is the discipline state of one trading day.
// States only escalate within a day; the only way back to green is an
// explicit unlock.
type SessionState string

const (
	StateGreen  SessionState = "green"
	StateYellow SessionState = "yellow"
	StateRed    SessionState = "red"
)

// Rank returns the total order green < yellow < red. Unknown states rank
// lowest so they can never displace a known state.
func (s SessionState) Rank() int {
	switch s {
	case StateYellow:
		return 1
	case StateRed:
		return 2
	default:
		return 0
	}
}

// MergeState resolves an escalation candidate against the current state:
// the higher-ranked state always wins, so a session can never regress
// through evaluation alone.
func MergeState(current, candidate SessionState) SessionState {
	if candidate.Rank() > current.Rank() {
		return candidate
	}
	return current
}

// DisciplineSession is the per-user-per-day discipline container.
type DisciplineSession struct {
	ID              string
	UserID          string
	SessionDate     time.Time // calendar day, normalized to midnight UTC
	State           SessionState
	RulesViolated   []string // rule IDs already counted today
	ViolationsCount int
	HardViolations  int
	SoftViolations  int

	RequiredActionsCompleted bool
	CooldownEndsAt           *time.Time
	JournalCompleted         bool
	TradeReviewCompleted     bool
	UnlockedAt               *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasViolated reports whether a rule has already been counted this session.
func (s *DisciplineSession) HasViolated(ruleID string) bool {
	for _, id := range s.RulesViolated {
		if id == ruleID {
			return true
		}
	}
	return false
}

// CooldownActive reports whether the session's cooldown is still running
// at the given instant.
func (s *DisciplineSession) CooldownActive(now time.Time) bool {
	return s.CooldownEndsAt != nil && now.Before(*s.CooldownEndsAt)
}

// ViolationType mirrors RuleType for the violations log.
type ViolationType string

const (
	ViolationHard ViolationType = "hard"
	ViolationSoft ViolationType = "soft"
)

// ViolationsLogEntry is an immutable record of a distinct rule violation.
// At most one entry exists per (session, rule).
type ViolationsLogEntry struct {
	ID                string
	UserID            string
	SessionID         string
	TradeID           string // empty when no trade is associated
	RuleID            string
	ViolationType     ViolationType
	SessionStateAfter SessionState
	ViolatedAt        time.Time
}
