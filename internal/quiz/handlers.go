package quiz

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/theorybot/pkg/models"
)

func (e *Engine) handleStart(ctx context.Context, a Action) error {
	user, err := e.store.GetOrCreateUser(ctx, a.UserID, a.DisplayName)
	if err != nil {
		return err
	}

	e.setSession(a.UserID, session{
		state:    stateAwaitingLanguage,
		language: user.PreferredLanguage,
	})
	return e.sender.SendText(ctx, a.ChatID, msgWelcome)
}

func (e *Engine) handleText(ctx context.Context, a Action) error {
	s := e.session(a.UserID)

	switch s.state {
	case stateAwaitingLanguage:
		return e.handleLanguage(ctx, a)
	case stateAwaitingAnswer:
		return e.handleAnswer(ctx, a, s)
	case stateCooldown:
		return e.sender.SendText(ctx, a.ChatID, msgWaitForNext)
	}

	restored, ok, err := e.restoreFromStore(ctx, a.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return e.sender.SendText(ctx, a.ChatID, msgUsage)
	}

	e.setSession(a.UserID, restored)
	if err := e.sender.SendText(ctx, a.ChatID, msgResuming); err != nil {
		return err
	}
	return e.handleAnswer(ctx, a, restored)
}

func (e *Engine) handleLanguage(ctx context.Context, a Action) error {
	language, ok := parseLanguage(a.Text)
	if !ok {
		return e.sender.SendText(ctx, a.ChatID, msgLanguagePrompt)
	}

	if err := e.store.UpdateUserLanguage(ctx, a.UserID, language); err != nil {
		return err
	}
	e.setSession(a.UserID, session{state: stateIdle})

	if err := e.sender.SendText(ctx, a.ChatID, fmt.Sprintf(msgLanguageSet, models.LanguageTitle(language))); err != nil {
		return err
	}
	if err := e.sender.SendText(ctx, a.ChatID, msgHelp); err != nil {
		return err
	}
	return e.sendNextQuestion(ctx, a, language, "")
}

func (e *Engine) handleAnswer(ctx context.Context, a Action, s session) error {
	if isSkip(a.Text) {
		return e.skip(ctx, a, s)
	}

	q := s.question
	var (
		correct  bool
		given    string
		expected string
	)

	if q.IsMultipleChoice() {
		selected := make([]int, 0, len(q.Options))
		for _, i := range parseAnswerLetters(a.Text) {
			if i < len(q.Options) {
				selected = append(selected, i)
			}
		}
		if len(selected) == 0 {
			return e.sender.SendText(ctx, a.ChatID, msgInvalidAnswer)
		}
		correct = sameSet(selected, q.CorrectIndices)
		given = strings.Join(letters(selected), ", ")
		expected = strings.Join(letters(q.CorrectIndices), ", ")
	} else {
		correct, expected = matchFillIn(a.Text, q.CorrectAnswers)
		given = strings.TrimSpace(a.Text)
	}

	return e.recordAnswer(ctx, a, s, correct, given, expected)
}

// recordAnswer persists the outcome, replies with feedback and schedules the next question
func (e *Engine) recordAnswer(ctx context.Context, a Action, s session, correct bool, given, expected string) error {
	q := s.question

	// The question is left before any step that can fail, a retry must not grade it again
	if err := e.store.ClearSession(ctx, a.UserID); err != nil {
		return err
	}
	e.setSession(a.UserID, session{state: stateIdle})

	now := e.now()
	attempt := models.QuestionAttempt{
		UserID:      a.UserID,
		QuestionID:  q.ID,
		Language:    s.language,
		IsCorrect:   correct,
		AttemptedAt: now,
	}
	if !s.started.IsZero() {
		elapsed := int(now.Sub(s.started).Seconds())
		attempt.TimeTakenSeconds = &elapsed
	}
	e.store.RecordAttempt(attempt)

	if err := e.store.UpdateSpacedRepetition(ctx, a.UserID, q.ID, s.language, correct); err != nil {
		return err
	}

	// Statistics below must include this attempt
	if err := e.store.Flush(ctx); err != nil {
		e.log.WithError(err).WithField("user_id", a.UserID).Warn("Failed to flush attempts, statistics may lag")
	}

	stats, err := e.store.GetUserStatistics(ctx, a.UserID)
	if err != nil {
		return err
	}

	e.log.WithFields(logrus.Fields{
		"user_id":     a.UserID,
		"question_id": q.ID,
		"correct":     correct,
	}).Debug("Answer recorded")

	if err := e.sender.SendText(ctx, a.ChatID, feedback(q, correct, given, expected, stats)); err != nil {
		return err
	}

	if e.cfg.MilestoneEvery > 0 && stats.TotalAttempts > 0 && stats.TotalAttempts%e.cfg.MilestoneEvery == 0 {
		if err := e.sender.SendText(ctx, a.ChatID, fmt.Sprintf(msgMilestone, stats.TotalAttempts)); err != nil {
			return err
		}
	}

	next, review, err := e.nextQuestion(ctx, a.UserID, s.language, q.ID)
	if err != nil {
		return err
	}
	if next == nil {
		return e.sender.SendText(ctx, a.ChatID, msgNoMore)
	}

	if err := e.saveSession(ctx, a.UserID, s.language, next, e.now()); err != nil {
		return err
	}

	delivery := e.nextDelivery()
	e.setSession(a.UserID, session{
		state:    stateCooldown,
		language: s.language,
		question: next,
		review:   review,
		delivery: delivery,
	})

	if err := e.sender.SendText(ctx, a.ChatID, fmt.Sprintf(msgNextIn, int(e.cfg.QuestionDelay.Seconds()))); err != nil {
		return err
	}

	e.deliverLater(a.ChatID, a.UserID, delivery)
	return nil
}

// deliverLater shows the pending question once the cooldown ends.
// The wait happens without holding the user's lock.
func (e *Engine) deliverLater(chatID, userID int64, delivery uint64) {
	if e.ctx.Err() != nil {
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		timer := time.NewTimer(e.cfg.QuestionDelay)
		defer timer.Stop()

		select {
		case <-e.ctx.Done():
			return
		case <-timer.C:
		}

		unlock := e.locks.lock(userID)
		defer unlock()

		s := e.session(userID)
		if s.state != stateCooldown || s.delivery != delivery {
			return
		}

		s.state = stateAwaitingAnswer
		s.started = e.now()
		s.delivery = 0
		e.setSession(userID, s)

		log := e.log.WithFields(logrus.Fields{"user_id": userID, "question_id": s.question.ID})
		if err := e.saveSession(e.ctx, userID, s.language, s.question, s.started); err != nil {
			log.WithError(err).Warn("Failed to refresh session start time")
		}
		if err := e.display(e.ctx, chatID, s.question, s.review); err != nil {
			log.WithError(err).Error("Failed to deliver question")
		}
	}()
}

func (e *Engine) skip(ctx context.Context, a Action, s session) error {
	if err := e.sender.SendText(ctx, a.ChatID, msgSkipped); err != nil {
		return err
	}
	return e.sendNextQuestion(ctx, a, s.language, s.question.ID)
}

// sendNextQuestion picks a question and shows it right away
func (e *Engine) sendNextQuestion(ctx context.Context, a Action, language, avoid string) error {
	q, review, err := e.nextQuestion(ctx, a.UserID, language, avoid)
	if err != nil {
		return err
	}
	if q == nil {
		e.setSession(a.UserID, session{state: stateIdle})
		return e.sender.SendText(ctx, a.ChatID, msgNoQuestions)
	}

	started := e.now()
	if err := e.saveSession(ctx, a.UserID, language, q, started); err != nil {
		return err
	}
	e.setSession(a.UserID, session{
		state:    stateAwaitingAnswer,
		language: language,
		question: q,
		review:   review,
		started:  started,
	})

	if review {
		if err := e.sender.SendText(ctx, a.ChatID, msgReviewNotice); err != nil {
			return err
		}
	}
	return e.display(ctx, a.ChatID, q, review)
}

func (e *Engine) handleSkip(ctx context.Context, a Action) error {
	s := e.session(a.UserID)

	switch s.state {
	case stateAwaitingLanguage:
		return e.sender.SendText(ctx, a.ChatID, msgLanguagePrompt)
	case stateCooldown:
		return e.sender.SendText(ctx, a.ChatID, msgWaitForNext)
	case stateAwaitingAnswer:
		return e.skip(ctx, a, s)
	}

	restored, ok, err := e.restoreFromStore(ctx, a.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return e.sender.SendText(ctx, a.ChatID, msgNothingToSkip)
	}
	return e.skip(ctx, a, restored)
}

func (e *Engine) handleResend(ctx context.Context, a Action) error {
	s := e.session(a.UserID)

	switch s.state {
	case stateAwaitingLanguage:
		return e.sender.SendText(ctx, a.ChatID, msgLanguagePrompt)
	case stateCooldown:
		return e.sender.SendText(ctx, a.ChatID, msgWaitForNext)
	case stateAwaitingAnswer:
		return e.display(ctx, a.ChatID, s.question, s.review)
	}

	restored, ok, err := e.restoreFromStore(ctx, a.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return e.sender.SendText(ctx, a.ChatID, msgNothingResend)
	}
	e.setSession(a.UserID, restored)
	return e.display(ctx, a.ChatID, restored.question, false)
}

// handleStats runs without the user's lock and never changes state
func (e *Engine) handleStats(ctx context.Context, a Action) error {
	stats, err := e.store.GetUserStatistics(ctx, a.UserID)
	if err != nil {
		return err
	}

	text := fmt.Sprintf(msgStats, stats.TotalAttempts, stats.CorrectAnswers, stats.AccuracyPercent)

	s := e.session(a.UserID)
	if s.question != nil && (s.state == stateAwaitingAnswer || s.state == stateCooldown) {
		text += currentQuestionInfo(s.question, s.state == stateCooldown)
	} else {
		stored, err := e.store.GetSession(ctx, a.UserID)
		if err != nil {
			return err
		}
		if stored != nil && stored.CurrentQuestionID != "" {
			text += fmt.Sprintf(msgCurrentSession, stored.CurrentQuestionID, models.LanguageTitle(stored.Language))
		}
	}

	return e.sender.SendText(ctx, a.ChatID, text)
}

func (e *Engine) saveSession(ctx context.Context, userID int64, language string, q *models.Question, started time.Time) error {
	return e.store.SaveSession(ctx, models.UserSession{
		UserID:            userID,
		CurrentQuestionID: q.ID,
		Language:          language,
		QuestionStartTime: sql.NullTime{Time: started, Valid: true},
		AwaitingAnswer:    true,
	})
}

// display sends the question with its media and the answer prompt.
// A missing media file degrades to a text-only question.
func (e *Engine) display(ctx context.Context, chatID int64, q *models.Question, review bool) error {
	text := questionText(q, review)

	if err := e.sendWithMedia(ctx, chatID, q, text); err != nil {
		return err
	}
	return e.sender.SendText(ctx, chatID, answerPrompt(q))
}

func (e *Engine) sendWithMedia(ctx context.Context, chatID int64, q *models.Question, text string) error {
	log := e.log.WithField("question_id", q.ID)

	if q.Video != "" {
		if data, ok := e.loadMedia(log, q.Video); ok {
			err := e.sender.SendVideo(ctx, chatID, Media{Name: filepath.Base(q.Video), Data: data}, text)
			if err == nil {
				return nil
			}
			log.WithError(err).Error("Error sending video")
			return e.sender.SendText(ctx, chatID, text+fmt.Sprintf("\n\n[Video: %s]", q.Video))
		}
	}

	if q.Image != "" {
		if data, ok := e.loadMedia(log, q.Image); ok {
			err := e.sender.SendPhoto(ctx, chatID, Media{Name: filepath.Base(q.Image), Data: data}, text)
			if err == nil {
				return nil
			}
			log.WithError(err).Error("Error sending image")
			return e.sender.SendText(ctx, chatID, text+fmt.Sprintf("\n\n[Image: %s]", q.Image))
		}
	}

	return e.sender.SendText(ctx, chatID, text)
}

func (e *Engine) loadMedia(log *logrus.Entry, path string) ([]byte, bool) {
	full := filepath.Join(e.cfg.MediaRoot, path)
	data, err := e.readFile(full)
	if err != nil {
		log.WithError(err).WithField("path", full).Warn("Media file missing, sending text only")
		return nil, false
	}
	return data, true
}
