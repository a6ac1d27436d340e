package discipline

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/armmoon4/bitsoftrade/internal/logging"
	"github.com/armmoon4/bitsoftrade/internal/models"
)

// UnlockAction names a recovery step the trader can complete.
type UnlockAction string

const (
	ActionCompleteJournal     UnlockAction = "complete_journal"
	ActionCompleteTradeReview UnlockAction = "complete_trade_review"
	ActionCompleteAll         UnlockAction = "complete_all"
)

// ValidUnlockAction reports whether s names a known unlock action.
func ValidUnlockAction(s string) bool {
	switch UnlockAction(s) {
	case ActionCompleteJournal, ActionCompleteTradeReview, ActionCompleteAll:
		return true
	}
	return false
}

// UnlockResult reports the outcome of an unlock attempt.
type UnlockResult struct {
	Session          *models.DisciplineSession
	Unlocked         bool
	RemainingMinutes int
	Message          string
}

// Unlock records a completed recovery action on the day's session and
// returns the session to green when all requirements are met: the
// required actions for the current state plus an expired cooldown.
// Yellow requires a journal entry; red requires both the journal and a
// trade review. Calling unlock on a green session is a no-op.
func (e *Engine) Unlock(ctx context.Context, userID string, day time.Time, action UnlockAction) (*UnlockResult, error) {
	if !ValidUnlockAction(string(action)) {
		return nil, fmt.Errorf("unknown unlock action %q", action)
	}

	unlock := e.locks.acquire(userID + "/" + models.DateKey(day))
	defer unlock()

	session, err := e.store.GetOrCreateSession(ctx, userID, day)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	if session.State == models.StateGreen {
		return &UnlockResult{
			Session:  session,
			Unlocked: true,
			Message:  "Session is already green",
		}, nil
	}

	switch action {
	case ActionCompleteJournal:
		session.JournalCompleted = true
	case ActionCompleteTradeReview:
		session.TradeReviewCompleted = true
	case ActionCompleteAll:
		session.JournalCompleted = true
		session.TradeReviewCompleted = true
	}

	now := e.now()

	if !e.actionsSatisfied(session) {
		if err := e.store.UpdateSession(ctx, session); err != nil {
			return nil, fmt.Errorf("persisting session: %w", err)
		}
		logging.LogUnlock(e.logger, session.ID, false, 0)
		return &UnlockResult{
			Session: session,
			Message: missingActionsMessage(session),
		}, nil
	}

	if session.CooldownActive(now) {
		remaining := int(math.Ceil(session.CooldownEndsAt.Sub(now).Minutes()))
		if err := e.store.UpdateSession(ctx, session); err != nil {
			return nil, fmt.Errorf("persisting session: %w", err)
		}
		logging.LogUnlock(e.logger, session.ID, false, remaining)
		return &UnlockResult{
			Session:          session,
			RemainingMinutes: remaining,
			Message:          fmt.Sprintf("Actions recorded; cooldown ends in %d min", remaining),
		}, nil
	}

	session.State = models.StateGreen
	session.RequiredActionsCompleted = true
	session.UnlockedAt = &now
	if err := e.store.UpdateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("persisting session: %w", err)
	}

	logging.LogUnlock(e.logger, session.ID, true, 0)
	if e.notifier != nil {
		if err := e.notifier.SendUnlock(ctx, session); err != nil {
			e.logger.Warn().Err(err).Msg("Failed to send unlock notification")
		}
	}

	return &UnlockResult{
		Session:  session,
		Unlocked: true,
		Message:  "Session unlocked",
	}, nil
}

// actionsSatisfied reports whether the recovery actions required for the
// session's state are all complete.
func (e *Engine) actionsSatisfied(session *models.DisciplineSession) bool {
	switch session.State {
	case models.StateYellow:
		return session.JournalCompleted
	case models.StateRed:
		return session.JournalCompleted && session.TradeReviewCompleted
	}
	return true
}

func missingActionsMessage(session *models.DisciplineSession) string {
	if !session.JournalCompleted {
		if session.State == models.StateRed && !session.TradeReviewCompleted {
			return "Journal entry and trade review still required"
		}
		return "Journal entry still required"
	}
	return "Trade review still required"
}
