package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/example/theorybot/pkg/models"
)

// After this many failed flushes in a row, attempts are written one by one
// and the rows the database rejects are dropped
const maxFlushFailures = 3

// AttemptRepository buffers question attempts in memory and writes them in batches
type AttemptRepository struct {
	pool      *Pool
	users     *UserRepository
	batchSize int
	limit     int
	now       func() time.Time
	log       *logrus.Entry

	mu    sync.Mutex
	queue []models.QuestionAttempt

	// Only one flush writes at a time
	flushMu  sync.Mutex
	failures int
}

// NewAttemptRepository creates a new repository instance
func NewAttemptRepository(pool *Pool, users *UserRepository, batchSize, attemptedLimit int, now func() time.Time, log *logrus.Entry) *AttemptRepository {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &AttemptRepository{
		pool:      pool,
		users:     users,
		batchSize: batchSize,
		limit:     attemptedLimit,
		now:       now,
		log:       log,
	}
}

// RecordAttempt queues an attempt for the next flush
func (r *AttemptRepository) RecordAttempt(attempt models.QuestionAttempt) {
	if attempt.AttemptedAt.IsZero() {
		attempt.AttemptedAt = r.now()
	}
	attempt.AttemptedAt = attempt.AttemptedAt.UTC()

	r.mu.Lock()
	r.queue = append(r.queue, attempt)
	r.mu.Unlock()
}

// Pending returns the number of queued attempts
func (r *AttemptRepository) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Flush writes every queued attempt in one transaction.
// On failure the batch goes back to the head of the queue. A batch that keeps
// failing is written row by row and the rejected rows are dropped; when no row
// can be written the batch stays queued.
func (r *AttemptRepository) Flush(ctx context.Context) error {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	r.mu.Lock()
	batch := r.queue
	r.queue = nil
	r.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	counts := lo.CountValuesBy(batch, func(a models.QuestionAttempt) int64 { return a.UserID })

	err := r.write(ctx, batch, counts)
	if err == nil {
		r.failures = 0
		r.users.bumpAnswered(counts)
		return nil
	}

	// A cancelled flush says nothing about the rows
	if ctx.Err() == nil {
		r.failures++
	}
	if r.failures >= maxFlushFailures {
		r.failures = 0
		if rejected := r.writeEach(ctx, batch); len(rejected) < len(batch) {
			if len(rejected) > 0 {
				r.log.WithField("dropped", len(rejected)).Error("Dropped attempts rejected by the database")
			}
			return nil
		}
	}

	r.mu.Lock()
	r.queue = append(batch, r.queue...)
	r.mu.Unlock()
	return fmt.Errorf("failed to flush %d attempts: %w", len(batch), err)
}

// write inserts batch and bumps the per-user counters in one transaction
func (r *AttemptRepository) write(ctx context.Context, batch []models.QuestionAttempt, counts map[int64]int) error {
	return r.pool.With(ctx, func(conn *sqlx.Conn) error {
		tx, err := conn.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		for _, chunk := range lo.Chunk(batch, r.batchSize) {
			query, args := insertAttemptsQuery(chunk)
			if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
				return fmt.Errorf("failed to insert attempts: %w", err)
			}
		}

		userIDs := lo.Keys(counts)
		sort.Slice(userIDs, func(i, j int) bool { return userIDs[i] < userIDs[j] })

		update := tx.Rebind("UPDATE users SET total_questions_answered = total_questions_answered + ? WHERE telegram_id = ?")
		for _, id := range userIDs {
			if _, err := tx.ExecContext(ctx, update, counts[id], id); err != nil {
				return fmt.Errorf("failed to update answered count: %w", err)
			}
		}

		return tx.Commit()
	})
}

// writeEach writes attempts one at a time and returns the ones that failed
func (r *AttemptRepository) writeEach(ctx context.Context, batch []models.QuestionAttempt) []models.QuestionAttempt {
	var rejected []models.QuestionAttempt
	for _, a := range batch {
		counts := map[int64]int{a.UserID: 1}
		if err := r.write(ctx, []models.QuestionAttempt{a}, counts); err != nil {
			r.log.WithError(err).WithFields(logrus.Fields{
				"user_id":     a.UserID,
				"question_id": a.QuestionID,
			}).Warn("Attempt rejected")
			rejected = append(rejected, a)
			continue
		}
		r.users.bumpAnswered(counts)
	}
	return rejected
}

// GetAttemptedQuestionIDs returns the most recently attempted distinct question ids
func (r *AttemptRepository) GetAttemptedQuestionIDs(ctx context.Context, userID int64, language string) (map[string]struct{}, error) {
	var ids []string
	err := r.pool.With(ctx, func(conn *sqlx.Conn) error {
		query := conn.Rebind(`
			SELECT question_id
			FROM question_attempts
			WHERE user_telegram_id = ? AND language = ?
			GROUP BY question_id
			ORDER BY MAX(attempted_at) DESC
			LIMIT ?
		`)
		return conn.SelectContext(ctx, &ids, query, userID, language, r.limit)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get attempted questions: %w", err)
	}

	return lo.SliceToMap(ids, func(id string) (string, struct{}) { return id, struct{}{} }), nil
}

func insertAttemptsQuery(chunk []models.QuestionAttempt) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO question_attempts
		(user_telegram_id, question_id, language, is_correct, attempted_at, time_taken_seconds) VALUES `)

	args := make([]interface{}, 0, len(chunk)*6)
	for i, a := range chunk {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?)")
		args = append(args, a.UserID, a.QuestionID, a.Language, a.IsCorrect, a.AttemptedAt, a.TimeTakenSeconds)
	}
	return sb.String(), args
}
