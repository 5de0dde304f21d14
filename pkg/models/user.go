package models

import "time"

// User represents a quiz participant identified by their Telegram ID
type User struct {
	ID                     int64     `json:"id" db:"telegram_id"` // Telegram User ID
	Username               string    `json:"username" db:"username"`
	PreferredLanguage      string    `json:"preferred_language" db:"preferred_language"`
	CreatedAt              time.Time `json:"created_at" db:"created_at"`
	TotalQuestionsAnswered int       `json:"total_questions_answered" db:"total_questions_answered"`
}
