package models

import "time"

// SpacedRepetitionState is the review schedule of one question for one user and language
type SpacedRepetitionState struct {
	UserID          int64     `json:"user_id" db:"user_telegram_id"`
	QuestionID      string    `json:"question_id" db:"question_id"`
	Language        string    `json:"language" db:"language"`
	RepetitionCount int       `json:"repetition_count" db:"repetition_count"`
	EaseFactor      float64   `json:"ease_factor" db:"ease_factor"` // bounded to [1.3, 3.0]
	IntervalDays    int       `json:"interval_days" db:"interval_days"`
	NextReview      time.Time `json:"next_review" db:"next_review"`
	LastReviewed    time.Time `json:"last_reviewed" db:"last_reviewed"`
}
