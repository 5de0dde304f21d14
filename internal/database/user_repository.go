package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jmoiron/sqlx"

	"github.com/example/theorybot/pkg/models"
)

// UserRepository handles database operations for users.
// Reads go through an LRU cache keyed by telegram id.
type UserRepository struct {
	pool  *Pool
	cache *lru.Cache[int64, models.User]
	now   func() time.Time

	// Serializes read-modify-write of cached entries
	mu sync.Mutex
}

// NewUserRepository creates a new repository instance
func NewUserRepository(pool *Pool, cacheSize int, now func() time.Time) (*UserRepository, error) {
	cache, err := lru.New[int64, models.User](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create user cache: %w", err)
	}
	return &UserRepository{pool: pool, cache: cache, now: now}, nil
}

// GetOrCreateUser returns the user, creating the row on first contact
func (r *UserRepository) GetOrCreateUser(ctx context.Context, id int64, username string) (*models.User, error) {
	if user, ok := r.cache.Get(id); ok {
		return &user, nil
	}

	var user models.User
	err := r.pool.With(ctx, func(conn *sqlx.Conn) error {
		err := getUser(ctx, conn, id, &user)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		query := conn.Rebind(`
			INSERT INTO users (telegram_id, username, preferred_language, created_at, total_questions_answered)
			VALUES (?, ?, ?, ?, 0)
			ON CONFLICT (telegram_id) DO NOTHING
		`)
		if _, err := conn.ExecContext(ctx, query, id, username, models.LanguageEnglish, r.now().UTC()); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		return getUser(ctx, conn, id, &user)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}

	r.cache.Add(id, user)
	return &user, nil
}

// UpdateUserLanguage stores the preferred language and refreshes the cache
func (r *UserRepository) UpdateUserLanguage(ctx context.Context, id int64, language string) error {
	err := r.pool.With(ctx, func(conn *sqlx.Conn) error {
		query := conn.Rebind("UPDATE users SET preferred_language = ? WHERE telegram_id = ?")
		_, err := conn.ExecContext(ctx, query, language, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to update language for user %d: %w", id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.cache.Peek(id); ok {
		user.PreferredLanguage = language
		r.cache.Add(id, user)
	}
	return nil
}

// bumpAnswered adds flushed attempt counts to cached users
func (r *UserRepository) bumpAnswered(counts map[int64]int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, n := range counts {
		if user, ok := r.cache.Peek(id); ok {
			user.TotalQuestionsAnswered += n
			r.cache.Add(id, user)
		}
	}
}

func getUser(ctx context.Context, conn *sqlx.Conn, id int64, user *models.User) error {
	query := conn.Rebind(`
		SELECT telegram_id, username, preferred_language, created_at, total_questions_answered
		FROM users
		WHERE telegram_id = ?
	`)
	return conn.GetContext(ctx, user, query, id)
}
