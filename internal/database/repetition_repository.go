package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/theorybot/internal/spaced_repetition"
	"github.com/example/theorybot/pkg/models"
)

// RepetitionRepository handles database operations for review schedules
type RepetitionRepository struct {
	pool *Pool
	sm2  *spaced_repetition.SM2
	now  func() time.Time
}

// NewRepetitionRepository creates a new repository instance
func NewRepetitionRepository(pool *Pool, sm2 *spaced_repetition.SM2, now func() time.Time) *RepetitionRepository {
	return &RepetitionRepository{pool: pool, sm2: sm2, now: now}
}

// UpdateSpacedRepetition applies one answer outcome to the review schedule.
// The first attempt only creates the initial schedule, whatever its outcome.
func (r *RepetitionRepository) UpdateSpacedRepetition(ctx context.Context, userID int64, questionID, language string, correct bool) error {
	now := r.now().UTC()

	err := r.pool.With(ctx, func(conn *sqlx.Conn) error {
		tx, err := conn.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		var state models.SpacedRepetitionState
		err = tx.GetContext(ctx, &state, tx.Rebind(`
			SELECT user_telegram_id, question_id, language, repetition_count,
			       ease_factor, interval_days, next_review, last_reviewed
			FROM spaced_repetition
			WHERE user_telegram_id = ? AND question_id = ? AND language = ?
		`), userID, questionID, language)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			interval, ease, reps := r.sm2.Initial()
			_, err = tx.ExecContext(ctx, tx.Rebind(`
				INSERT INTO spaced_repetition (
					user_telegram_id, question_id, language, repetition_count,
					ease_factor, interval_days, next_review, last_reviewed
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`), userID, questionID, language, reps, ease, interval, r.sm2.NextReview(now, interval), now)
			if err != nil {
				return fmt.Errorf("failed to create review schedule: %w", err)
			}
		case err != nil:
			return fmt.Errorf("failed to read review schedule: %w", err)
		default:
			interval, ease, reps := r.sm2.ComputeNextInterval(state.IntervalDays, state.EaseFactor, correct, state.RepetitionCount)
			_, err = tx.ExecContext(ctx, tx.Rebind(`
				UPDATE spaced_repetition SET
					repetition_count = ?,
					ease_factor = ?,
					interval_days = ?,
					next_review = ?,
					last_reviewed = ?
				WHERE user_telegram_id = ? AND question_id = ? AND language = ?
			`), reps, ease, interval, r.sm2.NextReview(now, interval), now, userID, questionID, language)
			if err != nil {
				return fmt.Errorf("failed to update review schedule: %w", err)
			}
		}

		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("failed to update spaced repetition for user %d: %w", userID, err)
	}
	return nil
}

// GetNextReviewQuestion returns the id of the earliest due question, or "" when none is due
func (r *RepetitionRepository) GetNextReviewQuestion(ctx context.Context, userID int64, language string) (string, error) {
	var questionID string
	err := r.pool.With(ctx, func(conn *sqlx.Conn) error {
		query := conn.Rebind(`
			SELECT question_id
			FROM spaced_repetition
			WHERE user_telegram_id = ? AND language = ? AND next_review <= ?
			ORDER BY next_review ASC
			LIMIT 1
		`)
		return conn.GetContext(ctx, &questionID, query, userID, language, r.now().UTC())
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get next review question: %w", err)
	}
	return questionID, nil
}

// GetState returns the review schedule of one question, or nil when it was never attempted
func (r *RepetitionRepository) GetState(ctx context.Context, userID int64, questionID, language string) (*models.SpacedRepetitionState, error) {
	var state models.SpacedRepetitionState
	err := r.pool.With(ctx, func(conn *sqlx.Conn) error {
		query := conn.Rebind(`
			SELECT user_telegram_id, question_id, language, repetition_count,
			       ease_factor, interval_days, next_review, last_reviewed
			FROM spaced_repetition
			WHERE user_telegram_id = ? AND question_id = ? AND language = ?
		`)
		return conn.GetContext(ctx, &state, query, userID, questionID, language)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review schedule: %w", err)
	}
	return &state, nil
}
