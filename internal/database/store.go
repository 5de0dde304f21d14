package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/example/theorybot/internal/spaced_repetition"
)

// Store bundles every repository over one pooled database
type Store struct {
	*UserRepository
	*AttemptRepository
	*StatisticsRepository
	*RepetitionRepository
	*SessionRepository

	db     *sqlx.DB
	pool   *Pool
	driver string
	log    *logrus.Entry
}

// Option customizes Open
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces the wall clock used for timestamps
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Open connects, migrates the schema and warms the connection pool
func Open(ctx context.Context, cfg Config, logger *logrus.Logger, opts ...Option) (*Store, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := Connect(cfg)
	if err != nil {
		return nil, err
	}

	if err := Migrate(ctx, db, cfg.Driver); err != nil {
		db.Close()
		return nil, err
	}

	pool, err := NewPool(db, PoolOptions{
		MinSize: cfg.PoolMin,
		MaxSize: cfg.PoolMax,
		Pragmas: pragmasFor(cfg.Driver),
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := pool.Init(ctx); err != nil {
		db.Close()
		return nil, err
	}

	users, err := NewUserRepository(pool, cfg.UserCacheSize, o.now)
	if err != nil {
		pool.Close()
		db.Close()
		return nil, err
	}

	log := logger.WithField("component", "database")

	s := &Store{
		UserRepository:       users,
		AttemptRepository:    NewAttemptRepository(pool, users, cfg.BatchSize, cfg.AttemptedLimit, o.now, log),
		StatisticsRepository: NewStatisticsRepository(pool),
		RepetitionRepository: NewRepetitionRepository(pool, spaced_repetition.NewSM2(), o.now),
		SessionRepository:    NewSessionRepository(pool, cfg.SessionWindow, cfg.SessionLimit, o.now),
		db:                   db,
		pool:                 pool,
		driver:               cfg.Driver,
		log:                  log,
	}

	s.log.WithFields(logrus.Fields{
		"driver":   cfg.Driver,
		"pool_min": cfg.PoolMin,
		"pool_max": cfg.PoolMax,
	}).Info("Database ready")

	return s, nil
}

// Pool exposes the connection pool
func (s *Store) Pool() *Pool {
	return s.pool
}

// Close flushes pending attempts and releases every connection
func (s *Store) Close(ctx context.Context) error {
	var errs []error

	if pending := s.Pending(); pending > 0 {
		s.log.WithField("pending", pending).Info("Flushing pending attempts before shutdown")
	}
	if err := s.Flush(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.pool.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}

	return errors.Join(errs...)
}
