package models

import "time"

// RuleCategory classifies what aspect of trading behavior a rule governs.
type RuleCategory string

const (
	CategoryRisk       RuleCategory = "risk"
	CategoryProcess    RuleCategory = "process"
	CategoryPsychology RuleCategory = "psychology"
	CategoryTime       RuleCategory = "time"
	CategoryOther      RuleCategory = "other"
)

// RuleType distinguishes hard rules (escalate to red) from soft rules
// (escalate to yellow at most).
type RuleType string

const (
	RuleHard RuleType = "hard"
	RuleSoft RuleType = "soft"
)

// TriggerScope describes when a rule is checked.
type TriggerScope string

const (
	ScopePerDay      TriggerScope = "per_day"
	ScopePerTrade    TriggerScope = "per_trade"
	ScopePostTrigger TriggerScope = "post_trigger"
)

// RuleAction is the platform response to a violation.
type RuleAction string

const (
	ActionLock           RuleAction = "lock"
	ActionWarn           RuleAction = "warn"
	ActionRequireJournal RuleAction = "require_journal"
	ActionRestrictImport RuleAction = "restrict_import"
)

// Rule is a behavioral/risk rule, either platform-wide (admin-defined) or
// owned by a single user. Condition is an opaque key/value payload whose
// schema depends on the category; combinations the evaluator does not
// recognize are inert.
type Rule struct {
	ID             string
	UserID         string // empty for admin-defined rules
	Name           string
	Description    string
	Category       RuleCategory
	Type           RuleType
	TriggerScope   TriggerScope
	Condition      map[string]interface{}
	Action         RuleAction
	IsActive       bool
	IsAdminDefined bool
	DeletedAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsDeleted reports whether the rule has been soft-deleted.
func (r *Rule) IsDeleted() bool {
	return r.DeletedAt != nil
}
