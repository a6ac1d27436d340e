package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/armmoon4/bitsoftrade/internal/errors"
	"github.com/armmoon4/bitsoftrade/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Users table: identity + optional trading capital
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		trading_capital REAL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Trades table
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		session_id TEXT,
		strategy_id TEXT,
		symbol TEXT NOT NULL,
		direction TEXT NOT NULL,
		quantity REAL NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL,
		fees REAL NOT NULL DEFAULT 0,
		leverage REAL NOT NULL DEFAULT 1,
		total_pnl REAL,
		trade_date TEXT NOT NULL,
		trade_time TEXT NOT NULL,
		emotional_state TEXT,
		entry_confidence INTEGER NOT NULL DEFAULT 5,
		satisfaction_rating INTEGER,
		lessons_learned TEXT,
		is_disciplined INTEGER NOT NULL DEFAULT 1,
		deleted_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_trades_user_date ON trades(user_id, trade_date);
	CREATE INDEX IF NOT EXISTS idx_trades_session ON trades(session_id);

	-- Rules table: admin-global plus user-custom behavioral rules
	CREATE TABLE IF NOT EXISTS rules (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		name TEXT NOT NULL,
		description TEXT,
		category TEXT NOT NULL,
		rule_type TEXT NOT NULL,
		trigger_scope TEXT NOT NULL,
		condition TEXT NOT NULL DEFAULT '{}',
		action TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		is_admin_defined INTEGER NOT NULL DEFAULT 0,
		deleted_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_rules_user ON rules(user_id);

	-- Discipline sessions: one per user per trading day
	CREATE TABLE IF NOT EXISTS discipline_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		session_date TEXT NOT NULL,
		state TEXT NOT NULL DEFAULT 'green',
		rules_violated TEXT NOT NULL DEFAULT '[]',
		violations_count INTEGER NOT NULL DEFAULT 0,
		hard_violations INTEGER NOT NULL DEFAULT 0,
		soft_violations INTEGER NOT NULL DEFAULT 0,
		required_actions_completed INTEGER NOT NULL DEFAULT 0,
		cooldown_ends_at DATETIME,
		journal_completed INTEGER NOT NULL DEFAULT 0,
		trade_review_completed INTEGER NOT NULL DEFAULT 0,
		unlocked_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user_id, session_date)
	);

	-- Violations log: append-only, at most one row per (session, rule)
	CREATE TABLE IF NOT EXISTS violations_log (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		trade_id TEXT,
		rule_id TEXT NOT NULL,
		violation_type TEXT NOT NULL,
		session_state_after TEXT NOT NULL,
		violated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(session_id, rule_id)
	);
	CREATE INDEX IF NOT EXISTS idx_violations_user ON violations_log(user_id, violated_at);

	-- Strategies table
	CREATE TABLE IF NOT EXISTS strategies (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		maturity_status TEXT NOT NULL DEFAULT 'testing',
		sample_size_threshold INTEGER NOT NULL DEFAULT 30,
		deleted_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Metric snapshots: one row per user per date, overwritten on recompute
	CREATE TABLE IF NOT EXISTS metric_snapshots (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		snapshot_date TEXT NOT NULL,
		di_score REAL NOT NULL DEFAULT 0,
		vmi_level TEXT NOT NULL DEFAULT 'Medium',
		drt_days REAL NOT NULL DEFAULT 0,
		tpr_score REAL NOT NULL DEFAULT 0,
		fie_amount REAL NOT NULL DEFAULT 0,
		ovr_score REAL NOT NULL DEFAULT 5,
		eci_amount REAL NOT NULL DEFAULT 0,
		cas_score REAL NOT NULL DEFAULT 0,
		dae_avg REAL NOT NULL DEFAULT 0,
		smi_status TEXT NOT NULL DEFAULT 'testing',
		ddr_level TEXT NOT NULL DEFAULT 'Low',
		cpi_score REAL,
		calculated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user_id, snapshot_date)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Users Methods
// ============================================================================

// SaveUser inserts or updates a user.
func (s *SQLiteStore) SaveUser(ctx context.Context, user *models.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, trading_capital, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			trading_capital = excluded.trading_capital,
			updated_at = CURRENT_TIMESTAMP
	`, user.ID, user.Username, nullFloat(user.TradingCapital))
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	var capital sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, trading_capital FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.Username, &capital)
	if err == sql.ErrNoRows {
		return nil, errors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if capital.Valid {
		u.TradingCapital = &capital.Float64
	}
	return &u, nil
}

func (s *SQLiteStore) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ============================================================================
// Trades Methods
// ============================================================================

const tradeColumns = `id, user_id, session_id, strategy_id, symbol, direction, quantity,
	entry_price, exit_price, fees, leverage, total_pnl, trade_date, trade_time,
	emotional_state, entry_confidence, satisfaction_rating, lessons_learned,
	is_disciplined, deleted_at, created_at, updated_at`

// SaveTrade inserts or updates a trade.
func (s *SQLiteStore) SaveTrade(ctx context.Context, trade *models.Trade) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (id, user_id, session_id, strategy_id, symbol, direction, quantity,
			entry_price, exit_price, fees, leverage, total_pnl, trade_date, trade_time,
			emotional_state, entry_confidence, satisfaction_rating, lessons_learned,
			is_disciplined, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			strategy_id = excluded.strategy_id,
			symbol = excluded.symbol,
			direction = excluded.direction,
			quantity = excluded.quantity,
			entry_price = excluded.entry_price,
			exit_price = excluded.exit_price,
			fees = excluded.fees,
			leverage = excluded.leverage,
			total_pnl = excluded.total_pnl,
			emotional_state = excluded.emotional_state,
			entry_confidence = excluded.entry_confidence,
			satisfaction_rating = excluded.satisfaction_rating,
			lessons_learned = excluded.lessons_learned,
			is_disciplined = excluded.is_disciplined,
			deleted_at = excluded.deleted_at,
			updated_at = CURRENT_TIMESTAMP
	`, trade.ID, trade.UserID, trade.SessionID, trade.StrategyID, trade.Symbol, trade.Direction,
		trade.Quantity, trade.EntryPrice, nullFloat(trade.ExitPrice), trade.Fees, trade.Leverage,
		nullFloat(trade.TotalPnL), models.DateKey(trade.TradeDate), trade.TradeTime,
		trade.EmotionalState, trade.EntryConfidence, nullInt(trade.SatisfactionRating),
		trade.LessonsLearned, boolToInt(trade.IsDisciplined), nullTime(trade.DeletedAt))
	if err != nil {
		return fmt.Errorf("failed to save trade: %w", err)
	}
	return nil
}

// GetTrade retrieves a trade by ID.
func (s *SQLiteStore) GetTrade(ctx context.Context, id string) (*models.Trade, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+tradeColumns+` FROM trades WHERE id = ?`, id)
	trade, err := scanTrade(row)
	if err == sql.ErrNoRows {
		return nil, errors.ErrTradeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trade: %w", err)
	}
	return trade, nil
}

// GetTrades retrieves trades from the database.
func (s *SQLiteStore) GetTrades(ctx context.Context, filter TradeFilter) ([]models.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE 1=1`
	args := []interface{}{}

	if filter.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if !filter.StartDate.IsZero() {
		query += " AND trade_date >= ?"
		args = append(args, models.DateKey(filter.StartDate))
	}
	if !filter.EndDate.IsZero() {
		query += " AND trade_date <= ?"
		args = append(args, models.DateKey(filter.EndDate))
	}
	if filter.StrategyID != "" {
		query += " AND strategy_id = ?"
		args = append(args, filter.StrategyID)
	}
	if !filter.IncludeDeleted {
		query += " AND deleted_at IS NULL"
	}

	query += " ORDER BY trade_date DESC, trade_time DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, *trade)
	}

	return trades, rows.Err()
}

// AttachTradeSession links a trade to its discipline session. The link is
// written only once; a trade that already has a session keeps it.
func (s *SQLiteStore) AttachTradeSession(ctx context.Context, tradeID, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE trades SET session_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND (session_id IS NULL OR session_id = '')
	`, sessionID, tradeID)
	if err != nil {
		return fmt.Errorf("failed to attach trade session: %w", err)
	}
	return nil
}

// DailyPnL sums total_pnl of a user's non-deleted trades on one day.
func (s *SQLiteStore) DailyPnL(ctx context.Context, userID string, day time.Time) (float64, error) {
	var pnl sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT SUM(total_pnl) FROM trades
		WHERE user_id = ? AND trade_date = ? AND deleted_at IS NULL
	`, userID, models.DateKey(day)).Scan(&pnl)
	if err != nil {
		return 0, fmt.Errorf("failed to sum daily pnl: %w", err)
	}
	return pnl.Float64, nil
}

// CountTradesOn counts a user's non-deleted trades on one day.
func (s *SQLiteStore) CountTradesOn(ctx context.Context, userID string, day time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM trades
		WHERE user_id = ? AND trade_date = ? AND deleted_at IS NULL
	`, userID, models.DateKey(day)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count trades: %w", err)
	}
	return count, nil
}

// RecentTrades returns a user's latest trades ordered by date then time,
// most recent first.
func (s *SQLiteStore) RecentTrades(ctx context.Context, userID string, limit int) ([]models.Trade, error) {
	return s.GetTrades(ctx, TradeFilter{UserID: userID, Limit: limit})
}

// CountTradesByStrategy counts non-deleted trades using a strategy.
func (s *SQLiteStore) CountTradesByStrategy(ctx context.Context, strategyID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM trades WHERE strategy_id = ? AND deleted_at IS NULL
	`, strategyID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count strategy trades: %w", err)
	}
	return count, nil
}

// TopStrategyID returns the user's most-used strategy by trade count.
// Returns an empty string when no trade references a strategy.
func (s *SQLiteStore) TopStrategyID(ctx context.Context, userID string) (string, error) {
	var strategyID string
	err := s.db.QueryRowContext(ctx, `
		SELECT strategy_id FROM trades
		WHERE user_id = ? AND deleted_at IS NULL AND strategy_id IS NOT NULL AND strategy_id != ''
		GROUP BY strategy_id
		ORDER BY COUNT(*) DESC
		LIMIT 1
	`, userID).Scan(&strategyID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find top strategy: %w", err)
	}
	return strategyID, nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(row scanner) (*models.Trade, error) {
	var t models.Trade
	var sessionID, strategyID, emotionalState, lessons sql.NullString
	var exitPrice, totalPnL sql.NullFloat64
	var satisfaction sql.NullInt64
	var dateKey string
	var disciplined int
	var deletedAt sql.NullTime

	err := row.Scan(&t.ID, &t.UserID, &sessionID, &strategyID, &t.Symbol, &t.Direction,
		&t.Quantity, &t.EntryPrice, &exitPrice, &t.Fees, &t.Leverage, &totalPnL,
		&dateKey, &t.TradeTime, &emotionalState, &t.EntryConfidence, &satisfaction,
		&lessons, &disciplined, &deletedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	t.SessionID = sessionID.String
	t.StrategyID = strategyID.String
	t.EmotionalState = models.EmotionalState(emotionalState.String)
	t.LessonsLearned = lessons.String
	t.IsDisciplined = disciplined == 1
	if exitPrice.Valid {
		t.ExitPrice = &exitPrice.Float64
	}
	if totalPnL.Valid {
		t.TotalPnL = &totalPnL.Float64
	}
	if satisfaction.Valid {
		v := int(satisfaction.Int64)
		t.SatisfactionRating = &v
	}
	if deletedAt.Valid {
		t.DeletedAt = &deletedAt.Time
	}
	t.TradeDate, err = time.Parse("2006-01-02", dateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid trade_date %q: %w", dateKey, err)
	}
	return &t, nil
}

// ============================================================================
// Rules Methods
// ============================================================================

// SaveRule inserts or updates a rule.
func (s *SQLiteStore) SaveRule(ctx context.Context, rule *models.Rule) error {
	condition, err := json.Marshal(rule.Condition)
	if err != nil {
		return fmt.Errorf("failed to encode rule condition: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rules (id, user_id, name, description, category, rule_type, trigger_scope,
			condition, action, is_active, is_admin_defined, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			category = excluded.category,
			rule_type = excluded.rule_type,
			trigger_scope = excluded.trigger_scope,
			condition = excluded.condition,
			action = excluded.action,
			is_active = excluded.is_active,
			is_admin_defined = excluded.is_admin_defined,
			deleted_at = excluded.deleted_at,
			updated_at = CURRENT_TIMESTAMP
	`, rule.ID, rule.UserID, rule.Name, rule.Description, rule.Category, rule.Type,
		rule.TriggerScope, string(condition), rule.Action, boolToInt(rule.IsActive),
		boolToInt(rule.IsAdminDefined), nullTime(rule.DeletedAt))
	if err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}
	return nil
}

// GetRule retrieves a rule by ID.
func (s *SQLiteStore) GetRule(ctx context.Context, id string) (*models.Rule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, description, category, rule_type, trigger_scope,
			condition, action, is_active, is_admin_defined, deleted_at, created_at, updated_at
		FROM rules WHERE id = ?
	`, id)
	rule, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, errors.ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

// ActiveRules returns the rule set visible to a user: admin-defined global
// rules plus the user's own, active and not soft-deleted.
func (s *SQLiteStore) ActiveRules(ctx context.Context, userID string) ([]models.Rule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, description, category, rule_type, trigger_scope,
			condition, action, is_active, is_admin_defined, deleted_at, created_at, updated_at
		FROM rules
		WHERE is_active = 1 AND deleted_at IS NULL AND (is_admin_defined = 1 OR user_id = ?)
		ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active rules: %w", err)
	}
	defer rows.Close()

	var rules []models.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

func scanRule(row scanner) (*models.Rule, error) {
	var r models.Rule
	var userID, description sql.NullString
	var condition string
	var isActive, isAdmin int
	var deletedAt sql.NullTime

	err := row.Scan(&r.ID, &userID, &r.Name, &description, &r.Category, &r.Type,
		&r.TriggerScope, &condition, &r.Action, &isActive, &isAdmin, &deletedAt,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	r.UserID = userID.String
	r.Description = description.String
	r.IsActive = isActive == 1
	r.IsAdminDefined = isAdmin == 1
	if deletedAt.Valid {
		r.DeletedAt = &deletedAt.Time
	}
	if err := json.Unmarshal([]byte(condition), &r.Condition); err != nil {
		// A corrupt condition payload makes the rule inert, not the query fail.
		r.Condition = map[string]interface{}{}
	}
	return &r, nil
}

// ============================================================================
// Strategies Methods
// ============================================================================

// SaveStrategy inserts or updates a strategy.
func (s *SQLiteStore) SaveStrategy(ctx context.Context, strategy *models.Strategy) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO strategies (id, user_id, name, description, maturity_status, sample_size_threshold, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			maturity_status = excluded.maturity_status,
			sample_size_threshold = excluded.sample_size_threshold,
			deleted_at = excluded.deleted_at,
			updated_at = CURRENT_TIMESTAMP
	`, strategy.ID, strategy.UserID, strategy.Name, strategy.Description,
		strategy.MaturityStatus, strategy.SampleSizeThreshold, nullTime(strategy.DeletedAt))
	if err != nil {
		return fmt.Errorf("failed to save strategy: %w", err)
	}
	return nil
}

// GetStrategy retrieves a strategy by ID.
func (s *SQLiteStore) GetStrategy(ctx context.Context, id string) (*models.Strategy, error) {
	var st models.Strategy
	var description sql.NullString
	var deletedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, description, maturity_status, sample_size_threshold,
			deleted_at, created_at, updated_at
		FROM strategies WHERE id = ?
	`, id).Scan(&st.ID, &st.UserID, &st.Name, &description, &st.MaturityStatus,
		&st.SampleSizeThreshold, &deletedAt, &st.CreatedAt, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.ErrStrategyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get strategy: %w", err)
	}
	st.Description = description.String
	if deletedAt.Valid {
		st.DeletedAt = &deletedAt.Time
	}
	return &st, nil
}

// UpdateStrategyMaturity persists a recalculated maturity status.
func (s *SQLiteStore) UpdateStrategyMaturity(ctx context.Context, id string, status models.MaturityStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE strategies SET maturity_status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update strategy maturity: %w", err)
	}
	return nil
}

// ============================================================================
// Metric Snapshots Methods
// ============================================================================

// SaveSnapshot upserts the metric snapshot for (user, date). Recomputation
// overwrites the previous row rather than merging into it.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snapshot *models.MetricSnapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metric_snapshots (id, user_id, snapshot_date, di_score, vmi_level, drt_days,
			tpr_score, fie_amount, ovr_score, eci_amount, cas_score, dae_avg, smi_status,
			ddr_level, cpi_score, calculated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id, snapshot_date) DO UPDATE SET
			di_score = excluded.di_score,
			vmi_level = excluded.vmi_level,
			drt_days = excluded.drt_days,
			tpr_score = excluded.tpr_score,
			fie_amount = excluded.fie_amount,
			ovr_score = excluded.ovr_score,
			eci_amount = excluded.eci_amount,
			cas_score = excluded.cas_score,
			dae_avg = excluded.dae_avg,
			smi_status = excluded.smi_status,
			ddr_level = excluded.ddr_level,
			cpi_score = excluded.cpi_score,
			calculated_at = CURRENT_TIMESTAMP
	`, snapshot.ID, snapshot.UserID, models.DateKey(snapshot.SnapshotDate), snapshot.DIScore,
		snapshot.VMILevel, snapshot.DRTDays, snapshot.TPRScore, snapshot.FIEAmount,
		snapshot.OVRScore, snapshot.ECIAmount, snapshot.CASScore, snapshot.DAEAvg,
		snapshot.SMIStatus, snapshot.DDRLevel, nullFloat(snapshot.CPIScore))
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// GetSnapshot retrieves the metric snapshot for (user, date).
func (s *SQLiteStore) GetSnapshot(ctx context.Context, userID string, day time.Time) (*models.MetricSnapshot, error) {
	var snap models.MetricSnapshot
	var dateKey string
	var cpi sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, snapshot_date, di_score, vmi_level, drt_days, tpr_score,
			fie_amount, ovr_score, eci_amount, cas_score, dae_avg, smi_status, ddr_level,
			cpi_score, calculated_at
		FROM metric_snapshots WHERE user_id = ? AND snapshot_date = ?
	`, userID, models.DateKey(day)).Scan(&snap.ID, &snap.UserID, &dateKey, &snap.DIScore,
		&snap.VMILevel, &snap.DRTDays, &snap.TPRScore, &snap.FIEAmount, &snap.OVRScore,
		&snap.ECIAmount, &snap.CASScore, &snap.DAEAvg, &snap.SMIStatus, &snap.DDRLevel,
		&cpi, &snap.CalculatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.ErrDataNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	if cpi.Valid {
		snap.CPIScore = &cpi.Float64
	}
	snap.SnapshotDate, err = time.Parse("2006-01-02", dateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot_date %q: %w", dateKey, err)
	}
	return &snap, nil
}

// ============================================================================
// Scan helpers
// ============================================================================

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func nullInt(i *int) interface{} {
	if i == nil {
		return nil
	}
	return *i
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
