package spaced_repetition

import (
	"math"
	"time"
)

// Defaults of the review schedule
const (
	DefaultEaseFactor = 2.5
	MinEaseFactor     = 1.3
	MaxEaseFactor     = 3.0
	InitialInterval   = 1
)

// SM2 implements a SuperMemo-2 variant driven by a binary correct/incorrect outcome
type SM2 struct {
	// Прибавка к фактору легкости за правильный ответ
	EaseBonus float64
	// Штраф фактора легкости за неправильный ответ
	EasePenalty float64
	// Границы фактора легкости
	MinEase float64
	MaxEase float64
	// Интервалы в днях для первого и второго правильного ответа подряд
	InitialIntervals []int
}

// NewSM2 создает новый экземпляр SM2 с настройками по умолчанию
func NewSM2() *SM2 {
	return &SM2{
		EaseBonus:        0.1,
		EasePenalty:      0.2,
		MinEase:          MinEaseFactor,
		MaxEase:          MaxEaseFactor,
		InitialIntervals: []int{1, 3},
	}
}

// Initial returns the schedule of a question seen for the first time.
// The outcome of the first encounter is not used: review scheduling starts
// with the second one.
func (sm *SM2) Initial() (interval int, ease float64, repetitions int) {
	return InitialInterval, DefaultEaseFactor, 0
}

// ComputeNextInterval вычисляет следующий интервал повторения на основе ответа
// currentInterval - текущий интервал в днях
// currentEF - текущий фактор легкости
// correct - был ли ответ правильным
// repetitions - текущее количество правильных ответов подряд
func (sm *SM2) ComputeNextInterval(currentInterval int, currentEF float64, correct bool, repetitions int) (int, float64, int) {
	if !correct {
		// Ответ был неправильным - сбрасываем прогресс
		return InitialInterval, math.Max(currentEF-sm.EasePenalty, sm.MinEase), 0
	}

	newEF := math.Min(currentEF+sm.EaseBonus, sm.MaxEase)

	var newInterval int
	if repetitions < len(sm.InitialIntervals) {
		// Используем предустановленные интервалы для начальных повторений
		newInterval = sm.InitialIntervals[repetitions]
	} else {
		newInterval = int(math.Floor(float64(currentInterval) * newEF))
		if newInterval < 1 {
			newInterval = 1
		}
	}

	return newInterval, newEF, repetitions + 1
}

// NextReview returns the moment a question scheduled with interval days becomes due
func (sm *SM2) NextReview(now time.Time, interval int) time.Time {
	return now.AddDate(0, 0, interval)
}

// IsDue reports whether a review scheduled at next is due at now.
// The boundary counts as due.
func IsDue(next, now time.Time) bool {
	return !now.Before(next)
}
