package quiz

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/theorybot/pkg/models"
)

// ActionKind is the type of an inbound user action
type ActionKind int

const (
	ActionStart ActionKind = iota
	ActionStats
	ActionResend
	ActionSkip
	ActionText
)

func (k ActionKind) String() string {
	switch k {
	case ActionStart:
		return "start"
	case ActionStats:
		return "stats"
	case ActionResend:
		return "resend"
	case ActionSkip:
		return "skip"
	case ActionText:
		return "text"
	default:
		return fmt.Sprintf("action(%d)", int(k))
	}
}

// Action is one user input delivered by the transport
type Action struct {
	Kind        ActionKind
	UserID      int64
	ChatID      int64
	DisplayName string
	Text        string
}

// Media is a file to be delivered with a caption
type Media struct {
	Name string
	Data []byte
}

// Sender delivers messages to a chat
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, photo Media, caption string) error
	SendVideo(ctx context.Context, chatID int64, video Media, caption string) error
}

// Store is the persistence the engine relies on
type Store interface {
	GetOrCreateUser(ctx context.Context, id int64, username string) (*models.User, error)
	UpdateUserLanguage(ctx context.Context, id int64, language string) error

	RecordAttempt(attempt models.QuestionAttempt)
	Flush(ctx context.Context) error
	GetAttemptedQuestionIDs(ctx context.Context, userID int64, language string) (map[string]struct{}, error)
	GetUserStatistics(ctx context.Context, userID int64) (models.Statistics, error)

	UpdateSpacedRepetition(ctx context.Context, userID int64, questionID, language string, correct bool) error
	GetNextReviewQuestion(ctx context.Context, userID int64, language string) (string, error)

	SaveSession(ctx context.Context, session models.UserSession) error
	GetSession(ctx context.Context, userID int64) (*models.UserSession, error)
	ClearSession(ctx context.Context, userID int64) error
	GetAllActiveSessions(ctx context.Context) ([]models.UserSession, error)
}

// Catalog resolves and draws questions
type Catalog interface {
	ByID(id, language string) (*models.Question, bool)
	Random(language string, exclude map[string]struct{}) (*models.Question, bool)
}

// Limiter admits user actions
type Limiter interface {
	Allow(userID int64) bool
	Remaining(userID int64) float64
}

// Config tunes the engine
type Config struct {
	// Pause between an answer and the next question
	QuestionDelay time.Duration
	// Directory media paths of questions are relative to
	MediaRoot string
	// Unused per-user locks are pruned above this table size
	LockThreshold int
	// Congratulate every N recorded attempts
	MilestoneEvery int
	// Sessions waiting for input longer than this are dropped from memory
	SessionIdle time.Duration
}

// DefaultConfig returns the engine settings used when nothing is configured
func DefaultConfig() Config {
	return Config{
		QuestionDelay:  3 * time.Second,
		MediaRoot:      ".",
		LockThreshold:  1000,
		MilestoneEvery: 100,
		SessionIdle:    30 * time.Minute,
	}
}

type state int

const (
	stateIdle state = iota
	stateAwaitingLanguage
	stateAwaitingAnswer
	stateCooldown
)

// session is the in-memory mirror of what a user is doing.
// Values are replaced as a whole, never mutated in place. Idle users have no
// entry, and an awaiting-answer entry can always be rebuilt from the durable
// session.
type session struct {
	state    state
	language string
	question *models.Question
	review   bool
	started  time.Time
	// Identifies the pending delivery while in cooldown
	delivery uint64
	// Last time the session was stored
	touched time.Time
}

// Engine runs the per-user quiz state machine.
// Actions of one user are serialized; different users proceed independently.
type Engine struct {
	store   Store
	catalog Catalog
	limiter Limiter
	sender  Sender
	cfg     Config
	log     *logrus.Entry

	now      func() time.Time
	readFile func(name string) ([]byte, error)

	locks *lockTable

	mu           sync.RWMutex
	sessions     map[int64]*session
	lastDelivery uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an engine
func New(store Store, catalog Catalog, limiter Limiter, sender Sender, cfg Config, logger *logrus.Logger) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:    store,
		catalog:  catalog,
		limiter:  limiter,
		sender:   sender,
		cfg:      cfg,
		log:      logger.WithField("component", "quiz"),
		now:      time.Now,
		readFile: os.ReadFile,
		locks:    newLockTable(cfg.LockThreshold),
		sessions: make(map[int64]*session),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Handle processes one user action
func (e *Engine) Handle(ctx context.Context, a Action) error {
	if !e.limiter.Allow(a.UserID) {
		e.log.WithField("user_id", a.UserID).Debug("Rate limit exceeded")
		return e.sender.SendText(ctx, a.ChatID, fmt.Sprintf(msgRateLimited, e.limiter.Remaining(a.UserID)))
	}

	// Stats only reads, it must answer during a cooldown too
	if a.Kind == ActionStats {
		return e.handleStats(ctx, a)
	}

	unlock := e.locks.lock(a.UserID)
	defer unlock()

	switch a.Kind {
	case ActionStart:
		return e.handleStart(ctx, a)
	case ActionResend:
		return e.handleResend(ctx, a)
	case ActionSkip:
		return e.handleSkip(ctx, a)
	case ActionText:
		return e.handleText(ctx, a)
	default:
		return fmt.Errorf("unknown action %s", a.Kind)
	}
}

// Restore rebuilds awaiting-answer state from durable sessions and returns
// how many users were restored
func (e *Engine) Restore(ctx context.Context) (int, error) {
	sessions, err := e.store.GetAllActiveSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to restore sessions: %w", err)
	}

	restored := 0
	for _, stored := range sessions {
		if e.restoreOne(stored) {
			restored++
		}
	}

	if len(sessions) > 0 {
		e.log.WithFields(logrus.Fields{
			"restored": restored,
			"found":    len(sessions),
		}).Info("Restored active sessions")
	}
	return restored, nil
}

func (e *Engine) restoreOne(stored models.UserSession) bool {
	unlock := e.locks.lock(stored.UserID)
	defer unlock()

	if e.session(stored.UserID).state != stateIdle {
		return false
	}

	s, ok := e.fromDurable(stored)
	if !ok {
		return false
	}
	e.setSession(stored.UserID, s)
	return true
}

// Close stops pending question deliveries and waits for them
func (e *Engine) Close() {
	e.cancel()
	e.wg.Wait()
}

func (e *Engine) session(userID int64) session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if s, ok := e.sessions[userID]; ok {
		return *s
	}
	return session{state: stateIdle}
}

func (e *Engine) setSession(userID int64, s session) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s.state == stateIdle {
		delete(e.sessions, userID)
		return
	}
	s.touched = e.now()
	e.sessions[userID] = &s
}

// SweepSessions drops sessions that have waited for input longer than
// SessionIdle and returns how many were removed. Sessions in cooldown are kept
// for their pending delivery.
func (e *Engine) SweepSessions() int {
	if e.cfg.SessionIdle <= 0 {
		return 0
	}
	cutoff := e.now().Add(-e.cfg.SessionIdle)

	e.mu.Lock()
	defer e.mu.Unlock()

	removed := 0
	for userID, s := range e.sessions {
		if s.state == stateCooldown || !s.touched.Before(cutoff) {
			continue
		}
		delete(e.sessions, userID)
		removed++
	}
	return removed
}

func (e *Engine) nextDelivery() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastDelivery++
	return e.lastDelivery
}

// fromDurable resolves a stored session into an awaiting-answer session
func (e *Engine) fromDurable(stored models.UserSession) (session, bool) {
	if stored.CurrentQuestionID == "" {
		return session{}, false
	}

	q, ok := e.catalog.ByID(stored.CurrentQuestionID, stored.Language)
	if !ok {
		e.log.WithFields(logrus.Fields{
			"user_id":     stored.UserID,
			"question_id": stored.CurrentQuestionID,
		}).Warn("Could not find question of stored session")
		return session{}, false
	}

	s := session{
		state:    stateAwaitingAnswer,
		language: stored.Language,
		question: q,
	}
	if stored.QuestionStartTime.Valid {
		s.started = stored.QuestionStartTime.Time
	}
	return s, true
}

// restoreFromStore loads the durable session of an idle user
func (e *Engine) restoreFromStore(ctx context.Context, userID int64) (session, bool, error) {
	stored, err := e.store.GetSession(ctx, userID)
	if err != nil {
		return session{}, false, err
	}
	if stored == nil || !stored.AwaitingAnswer {
		return session{}, false, nil
	}
	s, ok := e.fromDurable(*stored)
	return s, ok, nil
}

// nextQuestion prefers the earliest due review, then a random question the
// user has not attempted recently. avoid is never returned as a review.
func (e *Engine) nextQuestion(ctx context.Context, userID int64, language, avoid string) (*models.Question, bool, error) {
	dueID, err := e.store.GetNextReviewQuestion(ctx, userID, language)
	if err != nil {
		return nil, false, err
	}
	if dueID != "" && dueID != avoid {
		if q, ok := e.catalog.ByID(dueID, language); ok {
			return q, true, nil
		}
	}

	attempted, err := e.store.GetAttemptedQuestionIDs(ctx, userID, language)
	if err != nil {
		return nil, false, err
	}
	if avoid != "" {
		if attempted == nil {
			attempted = make(map[string]struct{})
		}
		attempted[avoid] = struct{}{}
	}

	q, ok := e.catalog.Random(language, attempted)
	if !ok {
		return nil, false, nil
	}
	return q, false, nil
}
