package discipline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armmoon4/bitsoftrade/internal/models"
)

func escalatedSession(st *memStore, state models.SessionState, cooldownEnds time.Time) *models.DisciplineSession {
	session, _ := st.GetOrCreateSession(context.Background(), "u1", testDay)
	session.State = state
	session.CooldownEndsAt = &cooldownEnds
	return session
}

func TestUnlock_GreenIsNoOp(t *testing.T) {
	st := newMemStore()
	engine := newTestEngine(st)

	result, err := engine.Unlock(context.Background(), "u1", testDay, ActionCompleteJournal)
	require.NoError(t, err)

	assert.True(t, result.Unlocked)
	assert.Equal(t, models.StateGreen, result.Session.State)
	assert.False(t, result.Session.JournalCompleted, "green unlock records nothing")
}

func TestUnlock_YellowNeedsJournal(t *testing.T) {
	st := newMemStore()
	engine := newTestEngine(st)
	expired := engine.now().Add(-time.Minute)
	escalatedSession(st, models.StateYellow, expired)

	// A trade review alone does not satisfy yellow.
	result, err := engine.Unlock(context.Background(), "u1", testDay, ActionCompleteTradeReview)
	require.NoError(t, err)
	assert.False(t, result.Unlocked)
	assert.Equal(t, models.StateYellow, result.Session.State)

	result, err = engine.Unlock(context.Background(), "u1", testDay, ActionCompleteJournal)
	require.NoError(t, err)
	assert.True(t, result.Unlocked)
	assert.Equal(t, models.StateGreen, result.Session.State)
	assert.NotNil(t, result.Session.UnlockedAt)
	assert.True(t, result.Session.RequiredActionsCompleted)
}

func TestUnlock_RedNeedsBothActions(t *testing.T) {
	st := newMemStore()
	engine := newTestEngine(st)
	expired := engine.now().Add(-time.Minute)
	escalatedSession(st, models.StateRed, expired)

	result, err := engine.Unlock(context.Background(), "u1", testDay, ActionCompleteJournal)
	require.NoError(t, err)
	assert.False(t, result.Unlocked)
	assert.Equal(t, models.StateRed, result.Session.State)
	assert.True(t, result.Session.JournalCompleted, "the action itself is still recorded")

	result, err = engine.Unlock(context.Background(), "u1", testDay, ActionCompleteTradeReview)
	require.NoError(t, err)
	assert.True(t, result.Unlocked)
	assert.Equal(t, models.StateGreen, result.Session.State)
}

func TestUnlock_CompleteAllOnRed(t *testing.T) {
	st := newMemStore()
	engine := newTestEngine(st)
	expired := engine.now().Add(-time.Minute)
	escalatedSession(st, models.StateRed, expired)

	result, err := engine.Unlock(context.Background(), "u1", testDay, ActionCompleteAll)
	require.NoError(t, err)
	assert.True(t, result.Unlocked)
	assert.Equal(t, models.StateGreen, result.Session.State)
}

func TestUnlock_CooldownBlocks(t *testing.T) {
	st := newMemStore()
	engine := newTestEngine(st)
	stillRunning := engine.now().Add(30 * time.Minute)
	escalatedSession(st, models.StateYellow, stillRunning)

	result, err := engine.Unlock(context.Background(), "u1", testDay, ActionCompleteJournal)
	require.NoError(t, err)

	assert.False(t, result.Unlocked)
	assert.Equal(t, models.StateYellow, result.Session.State)
	assert.Equal(t, 30, result.RemainingMinutes)
	assert.True(t, result.Session.JournalCompleted, "completed actions persist across the cooldown")
	assert.Nil(t, result.Session.UnlockedAt)

	// Once the cooldown has passed the persisted actions are enough.
	engine.now = func() time.Time { return stillRunning.Add(time.Second) }
	result, err = engine.Unlock(context.Background(), "u1", testDay, ActionCompleteJournal)
	require.NoError(t, err)
	assert.True(t, result.Unlocked)
	assert.Equal(t, models.StateGreen, result.Session.State)
}

func TestUnlock_UnknownAction(t *testing.T) {
	st := newMemStore()
	engine := newTestEngine(st)
	escalatedSession(st, models.StateYellow, engine.now().Add(-time.Minute))

	_, err := engine.Unlock(context.Background(), "u1", testDay, UnlockAction("meditate"))
	assert.Error(t, err)
}

func TestUnlock_UnknownActionOnGreen(t *testing.T) {
	st := newMemStore()
	engine := newTestEngine(st)

	// The green no-op must not swallow an invalid action.
	_, err := engine.Unlock(context.Background(), "u1", testDay, UnlockAction("meditate"))
	assert.Error(t, err)
}

func TestValidUnlockAction(t *testing.T) {
	assert.True(t, ValidUnlockAction("complete_journal"))
	assert.True(t, ValidUnlockAction("complete_trade_review"))
	assert.True(t, ValidUnlockAction("complete_all"))
	assert.False(t, ValidUnlockAction("meditate"))
	assert.False(t, ValidUnlockAction(""))
}
