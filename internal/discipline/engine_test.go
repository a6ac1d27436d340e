package discipline

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armmoon4/bitsoftrade/internal/models"
	"github.com/armmoon4/bitsoftrade/internal/store"
)

// memStore is an in-memory Store for engine tests.
type memStore struct {
	users      map[string]*models.User
	sessions   map[string]*models.DisciplineSession // keyed user/date
	rules      []models.Rule
	strategies map[string]*models.Strategy
	trades     map[string]*models.Trade
	violations []models.ViolationsLogEntry
	outcomes   int
}

func newMemStore() *memStore {
	return &memStore{
		users:      map[string]*models.User{"u1": {ID: "u1", Username: "u1"}},
		sessions:   make(map[string]*models.DisciplineSession),
		strategies: make(map[string]*models.Strategy),
		trades:     make(map[string]*models.Trade),
	}
}

func (m *memStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	return m.users[id], nil
}

func (m *memStore) GetOrCreateSession(ctx context.Context, userID string, day time.Time) (*models.DisciplineSession, error) {
	key := userID + "/" + models.DateKey(day)
	if s, ok := m.sessions[key]; ok {
		return s, nil
	}
	s := &models.DisciplineSession{
		ID:          uuid.NewString(),
		UserID:      userID,
		SessionDate: day,
		State:       models.StateGreen,
		CreatedAt:   time.Now(),
	}
	m.sessions[key] = s
	return s, nil
}

func (m *memStore) AttachTradeSession(ctx context.Context, tradeID, sessionID string) error {
	if t, ok := m.trades[tradeID]; ok && t.SessionID == "" {
		t.SessionID = sessionID
	}
	return nil
}

func (m *memStore) ActiveRules(ctx context.Context, userID string) ([]models.Rule, error) {
	return m.rules, nil
}

func (m *memStore) SaveEvaluationOutcome(ctx context.Context, outcome *store.EvaluationOutcome) error {
	m.outcomes++
	m.violations = append(m.violations, outcome.NewViolations...)
	if t, ok := m.trades[outcome.TradeID]; ok {
		t.IsDisciplined = outcome.IsDisciplined
	}
	return nil
}

func (m *memStore) UpdateSession(ctx context.Context, session *models.DisciplineSession) error {
	m.sessions[session.UserID+"/"+models.DateKey(session.SessionDate)] = session
	return nil
}

func (m *memStore) GetStrategy(ctx context.Context, id string) (*models.Strategy, error) {
	return m.strategies[id], nil
}

func (m *memStore) CountTradesByStrategy(ctx context.Context, strategyID string) (int, error) {
	count := 0
	for _, t := range m.trades {
		if t.StrategyID == strategyID {
			count++
		}
	}
	return count, nil
}

func (m *memStore) UpdateStrategyMaturity(ctx context.Context, id string, status models.MaturityStatus) error {
	if s, ok := m.strategies[id]; ok {
		s.MaturityStatus = status
	}
	return nil
}

// ruleSetEvaluator flags the rules whose IDs it was given.
type ruleSetEvaluator struct {
	violated map[string]bool
}

func (r *ruleSetEvaluator) Evaluate(ctx context.Context, rule *models.Rule, user *models.User, trade *models.Trade, session *models.DisciplineSession) bool {
	return r.violated[rule.ID]
}

var testDay = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func newTestEngine(st *memStore, violated ...string) *Engine {
	set := make(map[string]bool)
	for _, id := range violated {
		set[id] = true
	}
	e := NewEngine(st, &ruleSetEvaluator{violated: set}, nil, DefaultConfig(), zerolog.Nop())
	e.now = func() time.Time { return testDay.Add(10 * time.Hour) }
	return e
}

func addTrade(st *memStore, id string) *models.Trade {
	trade := &models.Trade{ID: id, UserID: "u1", TradeDate: testDay}
	st.trades[id] = trade
	return trade
}

func hardRule(id string) models.Rule {
	return models.Rule{ID: id, Name: id, Type: models.RuleHard, IsActive: true}
}

func softRule(id string) models.Rule {
	return models.Rule{ID: id, Name: id, Type: models.RuleSoft, IsActive: true}
}

func TestRecordTrade_CleanPass(t *testing.T) {
	st := newMemStore()
	st.rules = []models.Rule{hardRule("h1"), softRule("s1")}
	engine := newTestEngine(st)

	trade := addTrade(st, "t1")
	result, err := engine.RecordTrade(context.Background(), trade)
	require.NoError(t, err)

	assert.Equal(t, models.StateGreen, result.Session.State)
	assert.False(t, result.Escalated)
	assert.Empty(t, result.NewViolations)
	assert.True(t, trade.IsDisciplined)
	assert.Nil(t, result.Session.CooldownEndsAt)
	assert.Equal(t, result.Session.ID, trade.SessionID)
}

func TestRecordTrade_HardViolationGoesRed(t *testing.T) {
	st := newMemStore()
	st.rules = []models.Rule{hardRule("h1")}
	engine := newTestEngine(st, "h1")

	trade := addTrade(st, "t1")
	result, err := engine.RecordTrade(context.Background(), trade)
	require.NoError(t, err)

	assert.Equal(t, models.StateRed, result.Session.State)
	assert.True(t, result.Escalated)
	assert.False(t, trade.IsDisciplined)
	require.NotNil(t, result.Session.CooldownEndsAt)
	assert.Equal(t, engine.now().Add(2*time.Hour), *result.Session.CooldownEndsAt)

	require.Len(t, result.NewViolations, 1)
	assert.Equal(t, models.ViolationHard, result.NewViolations[0].ViolationType)
	assert.Equal(t, models.StateRed, result.NewViolations[0].SessionStateAfter)
	assert.Equal(t, "t1", result.NewViolations[0].TradeID)
}

func TestRecordTrade_SoftViolationCapsAtYellow(t *testing.T) {
	st := newMemStore()
	st.rules = []models.Rule{softRule("s1"), softRule("s2")}
	engine := newTestEngine(st, "s1", "s2")

	trade := addTrade(st, "t1")
	result, err := engine.RecordTrade(context.Background(), trade)
	require.NoError(t, err)

	// Two soft violations still only reach yellow.
	assert.Equal(t, models.StateYellow, result.Session.State)
	assert.True(t, trade.IsDisciplined, "soft violations do not mark the trade undisciplined")
	require.NotNil(t, result.Session.CooldownEndsAt)
	assert.Equal(t, engine.now().Add(45*time.Minute), *result.Session.CooldownEndsAt)
	assert.Len(t, result.NewViolations, 2)
	assert.Equal(t, 2, result.Session.SoftViolations)
}

func TestRecordTrade_SoftNeverEscalatesBeyondYellow(t *testing.T) {
	st := newMemStore()
	st.rules = []models.Rule{hardRule("h1"), softRule("s1")}

	// First trade breaks the hard rule.
	engine := newTestEngine(st, "h1")
	_, err := engine.RecordTrade(context.Background(), addTrade(st, "t1"))
	require.NoError(t, err)

	session := st.sessions["u1/"+models.DateKey(testDay)]
	require.Equal(t, models.StateRed, session.State)
	firstCooldown := *session.CooldownEndsAt

	// Second trade breaks only the soft rule; red must not change and the
	// cooldown must not be extended.
	engine = newTestEngine(st, "s1")
	result, err := engine.RecordTrade(context.Background(), addTrade(st, "t2"))
	require.NoError(t, err)

	assert.Equal(t, models.StateRed, result.Session.State)
	assert.False(t, result.Escalated)
	assert.Equal(t, firstCooldown, *result.Session.CooldownEndsAt)
	assert.Len(t, result.NewViolations, 1, "soft violation is still logged")
}

func TestRecordTrade_SameRuleCountedOncePerDay(t *testing.T) {
	st := newMemStore()
	st.rules = []models.Rule{hardRule("h1")}
	engine := newTestEngine(st, "h1")

	_, err := engine.RecordTrade(context.Background(), addTrade(st, "t1"))
	require.NoError(t, err)
	result, err := engine.RecordTrade(context.Background(), addTrade(st, "t2"))
	require.NoError(t, err)

	assert.Empty(t, result.NewViolations, "repeat violation of the same rule is not re-logged")
	assert.Equal(t, 1, result.Session.ViolationsCount)
	assert.Len(t, st.violations, 1)
	assert.False(t, st.trades["t2"].IsDisciplined, "the trade itself is still undisciplined")
}

func TestRecordTrade_DistinctRulesEachCount(t *testing.T) {
	st := newMemStore()
	st.rules = []models.Rule{hardRule("h1"), softRule("s1")}
	engine := newTestEngine(st, "h1")

	_, err := engine.RecordTrade(context.Background(), addTrade(st, "t1"))
	require.NoError(t, err)

	engine = newTestEngine(st, "h1", "s1")
	result, err := engine.RecordTrade(context.Background(), addTrade(st, "t2"))
	require.NoError(t, err)

	assert.Len(t, result.NewViolations, 1, "only the soft rule is new")
	assert.Equal(t, 2, result.Session.ViolationsCount)
	assert.Equal(t, 1, result.Session.HardViolations)
	assert.Equal(t, 1, result.Session.SoftViolations)
}

func TestRecordTrade_TradeKeepsFirstSession(t *testing.T) {
	st := newMemStore()
	engine := newTestEngine(st)

	trade := addTrade(st, "t1")
	result, err := engine.RecordTrade(context.Background(), trade)
	require.NoError(t, err)
	firstSession := result.Session.ID

	// Re-evaluating the same trade must not re-attach it.
	trade.SessionID = firstSession
	result, err = engine.RecordTrade(context.Background(), trade)
	require.NoError(t, err)
	assert.Equal(t, firstSession, trade.SessionID)
}

func TestRecordTrade_AdvancesStrategyMaturity(t *testing.T) {
	st := newMemStore()
	st.strategies["strat1"] = &models.Strategy{
		ID:                  "strat1",
		MaturityStatus:      models.MaturityTesting,
		SampleSizeThreshold: 2,
	}
	engine := newTestEngine(st)

	trade := addTrade(st, "t1")
	trade.StrategyID = "strat1"
	_, err := engine.RecordTrade(context.Background(), trade)
	require.NoError(t, err)

	// One trade against a threshold of 2 is 50%, developing.
	assert.Equal(t, models.MaturityDeveloping, st.strategies["strat1"].MaturityStatus)
}

// Property: whatever mix of hard and soft violations arrives, in whatever
// order, the session state only ever moves up the green-yellow-red ladder.
func TestProperty_SessionStateMonotonic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	// 0 = clean pass, 1 = soft violation, 2 = hard violation
	passGen := gen.SliceOfN(8, gen.IntRange(0, 2))

	properties.Property("state never regresses across evaluation passes", prop.ForAll(
		func(passes []int) bool {
			st := newMemStore()
			st.rules = []models.Rule{hardRule("h1"), softRule("s1")}

			lastRank := models.StateGreen.Rank()
			for i, kind := range passes {
				var violated []string
				switch kind {
				case 1:
					violated = []string{"s1"}
				case 2:
					violated = []string{"h1"}
				}
				engine := newTestEngine(st, violated...)
				trade := addTrade(st, uuid.NewString())
				result, err := engine.RecordTrade(context.Background(), trade)
				if err != nil {
					t.Logf("pass %d: %v", i, err)
					return false
				}
				if result.Session.State.Rank() < lastRank {
					t.Logf("pass %d: state regressed to %s", i, result.Session.State)
					return false
				}
				lastRank = result.Session.State.Rank()
			}
			return true
		},
		passGen,
	))

	properties.Property("violation count never exceeds distinct rule count", prop.ForAll(
		func(passes []int) bool {
			st := newMemStore()
			st.rules = []models.Rule{hardRule("h1"), softRule("s1")}

			for _, kind := range passes {
				var violated []string
				switch kind {
				case 1:
					violated = []string{"s1"}
				case 2:
					violated = []string{"h1"}
				}
				engine := newTestEngine(st, violated...)
				if _, err := engine.RecordTrade(context.Background(), addTrade(st, uuid.NewString())); err != nil {
					return false
				}
			}
			session := st.sessions["u1/"+models.DateKey(testDay)]
			return session.ViolationsCount <= len(st.rules) && len(st.violations) == session.ViolationsCount
		},
		passGen,
	))

	properties.TestingRun(t)
}
