package models

import "time"

// QuestionAttempt is an append-only record of one answered question
type QuestionAttempt struct {
	ID               int64     `json:"id" db:"id"`
	UserID           int64     `json:"user_id" db:"user_telegram_id"`
	QuestionID       string    `json:"question_id" db:"question_id"`
	Language         string    `json:"language" db:"language"`
	IsCorrect        bool      `json:"is_correct" db:"is_correct"`
	AttemptedAt      time.Time `json:"attempted_at" db:"attempted_at"`
	TimeTakenSeconds *int      `json:"time_taken_seconds,omitempty" db:"time_taken_seconds"`
}
