package models

import (
	"database/sql"
	"time"
)

// UserSession is the durable record of the question a user is currently working on
type UserSession struct {
	UserID            int64        `json:"user_id" db:"user_telegram_id"`
	CurrentQuestionID string       `json:"current_question_id" db:"current_question_id"`
	Language          string       `json:"language" db:"language"`
	QuestionStartTime sql.NullTime `json:"question_start_time" db:"question_start_time"`
	AwaitingAnswer    bool         `json:"awaiting_answer" db:"awaiting_answer"`
	UpdatedAt         time.Time    `json:"updated_at" db:"updated_at"`
}
