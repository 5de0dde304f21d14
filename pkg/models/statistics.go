package models

// Statistics aggregates a user's recorded attempts
type Statistics struct {
	TotalAttempts   int     `json:"total_attempts" db:"total_attempts"`
	CorrectAnswers  int     `json:"correct_answers" db:"correct_answers"`
	AccuracyPercent float64 `json:"accuracy_percentage" db:"-"`
}
