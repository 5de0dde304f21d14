package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/theorybot/pkg/models"
)

// StatisticsRepository handles aggregate queries over recorded attempts
type StatisticsRepository struct {
	pool *Pool
}

// NewStatisticsRepository creates a new repository instance
func NewStatisticsRepository(pool *Pool) *StatisticsRepository {
	return &StatisticsRepository{pool: pool}
}

// GetUserStatistics returns totals over the user's flushed attempts
func (r *StatisticsRepository) GetUserStatistics(ctx context.Context, userID int64) (models.Statistics, error) {
	var stats models.Statistics
	err := r.pool.With(ctx, func(conn *sqlx.Conn) error {
		query := conn.Rebind(`
			SELECT
				COUNT(*) AS total_attempts,
				COALESCE(SUM(CASE WHEN is_correct THEN 1 ELSE 0 END), 0) AS correct_answers
			FROM question_attempts
			WHERE user_telegram_id = ?
		`)
		return conn.GetContext(ctx, &stats, query, userID)
	})
	if err != nil {
		return models.Statistics{}, fmt.Errorf("failed to get statistics: %w", err)
	}

	if stats.TotalAttempts > 0 {
		stats.AccuracyPercent = float64(stats.CorrectAnswers) / float64(stats.TotalAttempts) * 100
	}
	return stats, nil
}
