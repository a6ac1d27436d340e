package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/armmoon4/bitsoftrade/internal/errors"
	"github.com/armmoon4/bitsoftrade/internal/models"
)

// ============================================================================
// Discipline Sessions Methods
// ============================================================================

const sessionColumns = `id, user_id, session_date, state, rules_violated, violations_count,
	hard_violations, soft_violations, required_actions_completed, cooldown_ends_at,
	journal_completed, trade_review_completed, unlocked_at, created_at, updated_at`

// GetOrCreateSession returns the session for (user, day), creating a fresh
// green session when none exists. Creation is race-safe: the unique
// (user_id, session_date) constraint arbitrates concurrent first writers.
func (s *SQLiteStore) GetOrCreateSession(ctx context.Context, userID string, day time.Time) (*models.DisciplineSession, error) {
	session, err := s.GetSession(ctx, userID, day)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, errors.ErrSessionNotFound) {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO discipline_sessions (id, user_id, session_date, state)
		VALUES (?, ?, ?, 'green')
	`, uuid.NewString(), userID, models.DateKey(day))
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return s.GetSession(ctx, userID, day)
}

// GetSession retrieves the session for (user, day).
func (s *SQLiteStore) GetSession(ctx context.Context, userID string, day time.Time) (*models.DisciplineSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM discipline_sessions
		WHERE user_id = ? AND session_date = ?
	`, userID, models.DateKey(day))
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, errors.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// GetSessions returns a user's full session history, newest first.
func (s *SQLiteStore) GetSessions(ctx context.Context, userID string) ([]models.DisciplineSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM discipline_sessions
		WHERE user_id = ?
		ORDER BY session_date DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.DisciplineSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

// UpdateSession persists the mutable session fields in one statement so a
// concurrent reader never observes a partially-written row.
func (s *SQLiteStore) UpdateSession(ctx context.Context, session *models.DisciplineSession) error {
	return s.updateSession(ctx, s.db, session)
}

// execer abstracts *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (s *SQLiteStore) updateSession(ctx context.Context, db execer, session *models.DisciplineSession) error {
	rulesViolated, err := json.Marshal(session.RulesViolated)
	if err != nil {
		return fmt.Errorf("failed to encode violated rules: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		UPDATE discipline_sessions SET
			state = ?,
			rules_violated = ?,
			violations_count = ?,
			hard_violations = ?,
			soft_violations = ?,
			required_actions_completed = ?,
			cooldown_ends_at = ?,
			journal_completed = ?,
			trade_review_completed = ?,
			unlocked_at = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, session.State, string(rulesViolated), session.ViolationsCount, session.HardViolations,
		session.SoftViolations, boolToInt(session.RequiredActionsCompleted),
		nullTime(session.CooldownEndsAt), boolToInt(session.JournalCompleted),
		boolToInt(session.TradeReviewCompleted), nullTime(session.UnlockedAt), session.ID)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// SaveEvaluationOutcome applies one rule-evaluation pass atomically: the
// escalated session row, the new violations log entries, and the trade's
// discipline flag all commit together or not at all.
func (s *SQLiteStore) SaveEvaluationOutcome(ctx context.Context, outcome *EvaluationOutcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin evaluation tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.updateSession(ctx, tx, outcome.Session); err != nil {
		return err
	}

	for _, entry := range outcome.NewViolations {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO violations_log (id, user_id, session_id, trade_id, rule_id,
				violation_type, session_state_after, violated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, entry.ID, entry.UserID, entry.SessionID, nullString(entry.TradeID), entry.RuleID,
			entry.ViolationType, entry.SessionStateAfter, entry.ViolatedAt)
		if err != nil {
			return fmt.Errorf("failed to append violation: %w", err)
		}
	}

	if outcome.TradeID != "" {
		_, err := tx.ExecContext(ctx, `
			UPDATE trades SET is_disciplined = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
		`, boolToInt(outcome.IsDisciplined), outcome.TradeID)
		if err != nil {
			return fmt.Errorf("failed to flag trade: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit evaluation tx: %w", err)
	}
	return nil
}

// SessionTimeline returns per-day session states within a date range,
// oldest first.
func (s *SQLiteStore) SessionTimeline(ctx context.Context, userID string, from, to time.Time) ([]TimelinePoint, error) {
	query := `
		SELECT session_date, state, violations_count, hard_violations, soft_violations
		FROM discipline_sessions WHERE user_id = ?`
	args := []interface{}{userID}

	if !from.IsZero() {
		query += " AND session_date >= ?"
		args = append(args, models.DateKey(from))
	}
	if !to.IsZero() {
		query += " AND session_date <= ?"
		args = append(args, models.DateKey(to))
	}
	query += " ORDER BY session_date ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query timeline: %w", err)
	}
	defer rows.Close()

	var timeline []TimelinePoint
	for rows.Next() {
		var p TimelinePoint
		var dateKey string
		if err := rows.Scan(&dateKey, &p.State, &p.ViolationsCount, &p.HardViolations, &p.SoftViolations); err != nil {
			return nil, fmt.Errorf("failed to scan timeline point: %w", err)
		}
		p.SessionDate, err = time.Parse("2006-01-02", dateKey)
		if err != nil {
			return nil, fmt.Errorf("invalid session_date %q: %w", dateKey, err)
		}
		timeline = append(timeline, p)
	}
	return timeline, rows.Err()
}

func scanSession(row scanner) (*models.DisciplineSession, error) {
	var s models.DisciplineSession
	var dateKey, rulesViolated string
	var requiredDone, journalDone, reviewDone int
	var cooldownEndsAt, unlockedAt sql.NullTime

	err := row.Scan(&s.ID, &s.UserID, &dateKey, &s.State, &rulesViolated, &s.ViolationsCount,
		&s.HardViolations, &s.SoftViolations, &requiredDone, &cooldownEndsAt,
		&journalDone, &reviewDone, &unlockedAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}

	s.RequiredActionsCompleted = requiredDone == 1
	s.JournalCompleted = journalDone == 1
	s.TradeReviewCompleted = reviewDone == 1
	if cooldownEndsAt.Valid {
		s.CooldownEndsAt = &cooldownEndsAt.Time
	}
	if unlockedAt.Valid {
		s.UnlockedAt = &unlockedAt.Time
	}
	if err := json.Unmarshal([]byte(rulesViolated), &s.RulesViolated); err != nil {
		s.RulesViolated = nil
	}
	s.SessionDate, err = time.Parse("2006-01-02", dateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid session_date %q: %w", dateKey, err)
	}
	return &s, nil
}

// ============================================================================
// Violations Log Methods
// ============================================================================

// GetViolations retrieves violations log entries, newest first.
func (s *SQLiteStore) GetViolations(ctx context.Context, filter ViolationFilter) ([]models.ViolationsLogEntry, error) {
	query := `
		SELECT id, user_id, session_id, trade_id, rule_id, violation_type,
			session_state_after, violated_at
		FROM violations_log WHERE 1=1`
	args := []interface{}{}

	if filter.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.SessionID != "" {
		query += " AND session_id = ?"
		args = append(args, filter.SessionID)
	}
	if filter.RuleID != "" {
		query += " AND rule_id = ?"
		args = append(args, filter.RuleID)
	}
	if !filter.From.IsZero() {
		query += " AND violated_at >= ?"
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		query += " AND violated_at <= ?"
		args = append(args, filter.To)
	}

	query += " ORDER BY violated_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query violations: %w", err)
	}
	defer rows.Close()

	var entries []models.ViolationsLogEntry
	for rows.Next() {
		var e models.ViolationsLogEntry
		var tradeID sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &e.SessionID, &tradeID, &e.RuleID,
			&e.ViolationType, &e.SessionStateAfter, &e.ViolatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan violation: %w", err)
		}
		e.TradeID = tradeID.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
