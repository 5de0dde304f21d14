package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/theorybot/pkg/models"
)

// SessionRepository persists the question each user is working on
type SessionRepository struct {
	pool   *Pool
	window time.Duration
	limit  int
	now    func() time.Time
}

// NewSessionRepository creates a new repository instance
func NewSessionRepository(pool *Pool, window time.Duration, limit int, now func() time.Time) *SessionRepository {
	return &SessionRepository{pool: pool, window: window, limit: limit, now: now}
}

// SaveSession creates or replaces the session of session.UserID
func (r *SessionRepository) SaveSession(ctx context.Context, session models.UserSession) error {
	session.UpdatedAt = r.now().UTC()
	if session.QuestionStartTime.Valid {
		session.QuestionStartTime.Time = session.QuestionStartTime.Time.UTC()
	}

	err := r.pool.With(ctx, func(conn *sqlx.Conn) error {
		query := conn.Rebind(`
			INSERT INTO user_sessions (
				user_telegram_id, current_question_id, language,
				question_start_time, awaiting_answer, updated_at
			) VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (user_telegram_id) DO UPDATE SET
				current_question_id = excluded.current_question_id,
				language = excluded.language,
				question_start_time = excluded.question_start_time,
				awaiting_answer = excluded.awaiting_answer,
				updated_at = excluded.updated_at
		`)
		_, err := conn.ExecContext(ctx, query,
			session.UserID,
			session.CurrentQuestionID,
			session.Language,
			session.QuestionStartTime,
			session.AwaitingAnswer,
			session.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save session for user %d: %w", session.UserID, err)
	}
	return nil
}

// GetSession returns the stored session, or nil when the user has none
func (r *SessionRepository) GetSession(ctx context.Context, userID int64) (*models.UserSession, error) {
	var session models.UserSession
	err := r.pool.With(ctx, func(conn *sqlx.Conn) error {
		query := conn.Rebind(`
			SELECT user_telegram_id, current_question_id, language,
			       question_start_time, awaiting_answer, updated_at
			FROM user_sessions
			WHERE user_telegram_id = ?
		`)
		return conn.GetContext(ctx, &session, query, userID)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session for user %d: %w", userID, err)
	}
	return &session, nil
}

// ClearSession removes the stored session
func (r *SessionRepository) ClearSession(ctx context.Context, userID int64) error {
	err := r.pool.With(ctx, func(conn *sqlx.Conn) error {
		_, err := conn.ExecContext(ctx, conn.Rebind("DELETE FROM user_sessions WHERE user_telegram_id = ?"), userID)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to clear session for user %d: %w", userID, err)
	}
	return nil
}

// GetAllActiveSessions returns sessions still awaiting an answer that were
// updated inside the recovery window, newest first
func (r *SessionRepository) GetAllActiveSessions(ctx context.Context) ([]models.UserSession, error) {
	cutoff := r.now().UTC().Add(-r.window)

	var sessions []models.UserSession
	err := r.pool.With(ctx, func(conn *sqlx.Conn) error {
		query := conn.Rebind(`
			SELECT user_telegram_id, current_question_id, language,
			       question_start_time, awaiting_answer, updated_at
			FROM user_sessions
			WHERE awaiting_answer = ? AND updated_at > ?
			ORDER BY updated_at DESC
			LIMIT ?
		`)
		return conn.SelectContext(ctx, &sessions, query, true, cutoff, r.limit)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get active sessions: %w", err)
	}
	return sessions, nil
}
