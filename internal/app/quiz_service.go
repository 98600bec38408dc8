package app

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"dailyquiz-service/internal/domain"
)

// QuizRepository loads quiz content by calendar date (from cache/backing store).
type QuizRepository interface {
	FindByDate(ctx context.Context, dateKey string) (domain.Quiz, error)
}

// ProgressStore persists the single in-flight session slot.
type ProgressStore interface {
	Load(ctx context.Context) (domain.SavedProgress, bool, error)
	Save(ctx context.Context, progress domain.SavedProgress) error
	Clear(ctx context.Context) error
}

// ResultStore holds the last finished result for the results view.
type ResultStore interface {
	SaveResult(ctx context.Context, result domain.Result) error
	LoadResult(ctx context.Context) (domain.Result, bool, error)
}

// HistoryStore records per-day attempt outcomes for streaks and weekly progress.
type HistoryStore interface {
	RecordAttempt(ctx context.Context, attempt domain.QuizAttempt) error
	History(ctx context.Context) ([]domain.QuizAttempt, error)
	WeeklyProgress(ctx context.Context, now time.Time) ([7]domain.Medal, error)
	Streak(ctx context.Context, now time.Time) (int, error)
}

// BadgeGenerator produces achievement badges for milestones. Best-effort:
// callers fall back to a fixed badge on any error.
type BadgeGenerator interface {
	Generate(ctx context.Context, milestone, username string) (domain.Badge, error)
}

const (
	dateKeyLayout = "2006-01-02"

	badgeTimeout = 10 * time.Second

	fallbackBadgeDescription = "Quiz champion! Another day, another challenge conquered."
	fallbackBadgeImage       = "/badges/default.svg"
)

// DateKey formats a local wall-clock time as the YYYY-MM-DD quiz lookup key.
func DateKey(t time.Time) string {
	return t.Format(dateKeyLayout)
}

// ResumeInfo summarizes a resumable saved session for the pre-start view.
type ResumeInfo struct {
	QuestionIndex  int `json:"questionIndex"`
	TotalQuestions int `json:"totalQuestions"`
	TimeLeft       int `json:"timeLeft"`
}

// Availability describes the not_started state: whether a quiz exists today
// and whether a saved session can be resumed.
type Availability struct {
	Date          string      `json:"date"`
	QuizAvailable bool        `json:"quizAvailable"`
	Topic         string      `json:"topic,omitempty"`
	QuestionCount int         `json:"questionCount,omitempty"`
	TimerMinutes  int         `json:"timerMinutes,omitempty"`
	MegaDay       bool        `json:"megaDay,omitempty"`
	Resumable     bool        `json:"resumable"`
	Resume        *ResumeInfo `json:"resume,omitempty"`
}

// QuizService owns the single active session per user context and wires it to
// the quiz repository, the progress/result slots, the history store and the
// badge generator.
type QuizService struct {
	quizzes  QuizRepository
	progress ProgressStore
	results  ResultStore
	history  HistoryStore
	badges   BadgeGenerator

	clock func() time.Time
	rnd   *rand.Rand

	mu      sync.Mutex
	current *Session
	timer   *Timer
}

// Option tweaks service construction; used by tests for determinism.
type Option func(*QuizService)

// WithClock replaces the wall clock.
func WithClock(clock func() time.Time) Option {
	return func(s *QuizService) { s.clock = clock }
}

// WithRand replaces the shuffle source, making question order reproducible.
func WithRand(rnd *rand.Rand) Option {
	return func(s *QuizService) { s.rnd = rnd }
}

func NewQuizService(quizzes QuizRepository, progress ProgressStore, results ResultStore, history HistoryStore, badges BadgeGenerator, opts ...Option) *QuizService {
	s := &QuizService{
		quizzes:  quizzes,
		progress: progress,
		results:  results,
		history:  history,
		badges:   badges,
		clock:    time.Now,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the current date key.
func (s *QuizService) Today() string {
	return DateKey(s.clock())
}

// Availability resolves the not_started view: today's quiz (if any) and the
// resumable slot. A saved session for a different quiz id is stale and is
// discarded here, silently.
func (s *QuizService) Availability(ctx context.Context) (Availability, error) {
	avail := Availability{Date: s.Today()}

	quiz, err := s.quizzes.FindByDate(ctx, avail.Date)
	if err != nil && !errors.Is(err, domain.ErrQuizNotFound) {
		return Availability{}, err
	}
	if err == nil {
		avail.QuizAvailable = true
		avail.Topic = quiz.Topic
		avail.QuestionCount = len(quiz.Questions)
		avail.TimerMinutes = quiz.TimerMinutes
		avail.MegaDay = quiz.HasMegaPool()
	}

	saved, ok, err := s.progress.Load(ctx)
	if err != nil {
		return Availability{}, err
	}
	if !ok {
		return avail, nil
	}
	// A slot from a previous day is stale even when today has no quiz at all.
	if !avail.QuizAvailable || saved.QuizID != quiz.ID {
		if err := s.progress.Clear(ctx); err != nil {
			log.Printf("clear stale progress: %v", err)
		}
		return avail, nil
	}
	avail.Resumable = true
	avail.Resume = &ResumeInfo{
		QuestionIndex:  saved.QuestionIndex,
		TotalQuestions: len(saved.Questions),
		TimeLeft:       saved.TimeLeft,
	}
	return avail, nil
}

// Start begins today's quiz. Fresh starts shuffle the pool and clear any
// prior saved slot; resume rehydrates the saved session verbatim. A saved
// session whose quiz id does not match today's quiz is discarded and resume
// fails with ErrNoSavedProgress.
func (s *QuizService) Start(ctx context.Context, resume bool) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	quiz, err := s.quizzes.FindByDate(ctx, s.Today())
	if err != nil {
		if errors.Is(err, domain.ErrQuizNotFound) {
			return nil, domain.ErrNoQuizToday
		}
		return nil, err
	}

	s.discardLocked()

	var session *Session
	if resume {
		saved, ok, err := s.progress.Load(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domain.ErrNoSavedProgress
		}
		if saved.QuizID != quiz.ID {
			if err := s.progress.Clear(ctx); err != nil {
				log.Printf("clear stale progress: %v", err)
			}
			return nil, domain.ErrNoSavedProgress
		}
		session = newSessionFromProgress(quiz, saved, s.rnd)
	} else {
		if err := s.progress.Clear(ctx); err != nil {
			return nil, err
		}
		session = newSession(quiz, s.rnd)
	}

	if err := s.progress.Save(ctx, session.Progress()); err != nil {
		return nil, err
	}

	s.current = session
	s.startTimerLocked(session)
	log.Printf("session %s started (quiz %s, resume=%v)", session.ID(), quiz.ID, resume)
	return session, nil
}

// SelectAnswer records an answer at the current cursor and persists the
// mutated state.
func (s *QuizService) SelectAnswer(ctx context.Context, option string) error {
	session, err := s.activeSession()
	if err != nil {
		return err
	}
	if err := session.SelectAnswer(option); err != nil {
		return err
	}
	return s.progress.Save(ctx, session.Progress())
}

// Advance moves to the next question; on the last question it finishes the
// session, stores the result and clears the progress slot.
func (s *QuizService) Advance(ctx context.Context) (domain.Result, bool, error) {
	session, err := s.activeSession()
	if err != nil {
		return domain.Result{}, false, err
	}
	result, finished, err := session.Advance()
	if err != nil {
		return domain.Result{}, false, err
	}
	if !finished {
		return domain.Result{}, false, s.progress.Save(ctx, session.Progress())
	}
	s.stopTimer()
	if err := s.finalize(ctx, session, result); err != nil {
		return domain.Result{}, false, err
	}
	session.PublishFinished()
	return result, true, nil
}

// UnlockMega extends the just-finished standard session with the mega pool
// and restarts the countdown driver.
func (s *QuizService) UnlockMega(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session := s.current
	if session == nil {
		return domain.ErrNoActiveSession
	}
	if err := session.UnlockMega(); err != nil {
		return err
	}
	if err := s.progress.Save(ctx, session.Progress()); err != nil {
		return err
	}
	s.startTimerLocked(session)
	log.Printf("session %s unlocked mega pool", session.ID())
	return nil
}

// Exit suspends the session, persisting it for a later resume. The timer is
// cancelled atomically with the session leaving in_progress.
func (s *QuizService) Exit(ctx context.Context) error {
	s.mu.Lock()
	session := s.current
	s.mu.Unlock()
	if session == nil {
		return domain.ErrNoActiveSession
	}
	saved, err := session.Exit()
	if err != nil {
		return err
	}
	s.stopTimer()
	log.Printf("session %s suspended at question %d", session.ID(), saved.QuestionIndex)
	return s.progress.Save(ctx, saved)
}

// Subscribe proxies to the active session's snapshot stream.
func (s *QuizService) Subscribe(_ context.Context) (<-chan Snapshot, func(), error) {
	s.mu.Lock()
	session := s.current
	s.mu.Unlock()
	if session == nil {
		return nil, nil, domain.ErrNoActiveSession
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// Results recomputes the presentation of the last stored result: medal,
// percentile against the quiz's historical sample, and the per-question
// review. A medal also records the day's attempt in the history store.
func (s *QuizService) Results(ctx context.Context) (domain.ResultView, error) {
	result, ok, err := s.results.LoadResult(ctx)
	if err != nil {
		return domain.ResultView{}, err
	}
	if !ok {
		return domain.ResultView{}, domain.ErrNoResult
	}

	view := domain.ResultView{
		QuizID:         result.QuizID,
		Score:          result.Score,
		TotalQuestions: result.TotalQuestions,
		Mega:           result.Mega,
		Medal:          ClassifyMedal(result.Score, result.TotalQuestions),
	}

	var sample []int
	date := result.Date
	if date == "" {
		date = s.Today()
	}
	quiz, err := s.quizzes.FindByDate(ctx, date)
	if err == nil && quiz.ID == result.QuizID {
		view.Topic = quiz.Topic
		sample = quiz.DailyScores
	} else if err != nil && !errors.Is(err, domain.ErrQuizNotFound) {
		return domain.ResultView{}, err
	}
	view.Percentile = Percentile(result.Score, sample)
	view.TopPercent = 100 - view.Percentile

	view.Review = make([]domain.AnswerReview, 0, len(result.Questions))
	for i, q := range result.Questions {
		answer := ""
		if i < len(result.Answers) {
			answer = result.Answers[i]
		}
		view.Review = append(view.Review, domain.AnswerReview{
			Question:    q.Prompt,
			UserAnswer:  answer,
			Correct:     answer == q.CorrectAnswer,
			Answer:      q.CorrectAnswer,
			Explanation: q.Explanation,
		})
	}

	if view.Medal != domain.MedalNone {
		attempt := domain.QuizAttempt{
			Date:  date,
			Medal: view.Medal,
			Score: result.Score,
			Total: result.TotalQuestions,
		}
		if err := s.history.RecordAttempt(ctx, attempt); err != nil {
			log.Printf("record attempt: %v", err)
		}
	}
	return view, nil
}

// Badge generates an achievement badge for the medal milestone, degrading to
// the fixed fallback on any failure. Never on the scoring path; callers
// invoke it after the result is persisted.
func (s *QuizService) Badge(ctx context.Context, medal domain.Medal, username string) domain.Badge {
	milestone := milestoneFor(medal)
	ctx, cancel := context.WithTimeout(ctx, badgeTimeout)
	defer cancel()
	badge, err := s.badges.Generate(ctx, milestone, username)
	if err != nil {
		log.Printf("badge generation failed, using fallback: %v", err)
		return domain.Badge{Description: fallbackBadgeDescription, ImageURL: fallbackBadgeImage}
	}
	return badge
}

// History returns the recorded attempts, weekly medal line and current streak.
func (s *QuizService) History(ctx context.Context) ([]domain.QuizAttempt, [7]domain.Medal, int, error) {
	attempts, err := s.history.History(ctx)
	if err != nil {
		return nil, [7]domain.Medal{}, 0, err
	}
	now := s.clock()
	week, err := s.history.WeeklyProgress(ctx, now)
	if err != nil {
		return nil, [7]domain.Medal{}, 0, err
	}
	streak, err := s.history.Streak(ctx, now)
	if err != nil {
		return nil, [7]domain.Medal{}, 0, err
	}
	return attempts, week, streak, nil
}

func (s *QuizService) activeSession() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || !s.current.InProgress() {
		return nil, domain.ErrNoActiveSession
	}
	return s.current, nil
}

// startTimerLocked launches the countdown driver for a session. The tick
// callback runs off the service mutex so Stop can be called safely from
// request goroutines.
func (s *QuizService) startTimerLocked(session *Session) {
	timer := NewTimer()
	s.timer = timer
	go timer.Run(func() bool { return s.tick(session) })
}

func (s *QuizService) tick(session *Session) bool {
	result, finished, alive := session.Tick()
	ctx := context.Background()
	if finished {
		if err := s.finalize(ctx, session, result); err != nil {
			log.Printf("finalize expired session %s: %v", session.ID(), err)
			return false
		}
		session.PublishFinished()
		return false
	}
	if !alive {
		return false
	}
	if err := s.progress.Save(ctx, session.Progress()); err != nil {
		log.Printf("persist tick: %v", err)
	}
	return true
}

func (s *QuizService) stopTimer() {
	s.mu.Lock()
	timer := s.timer
	s.timer = nil
	s.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
}

// discardLocked drops any existing session before a new start.
func (s *QuizService) discardLocked() {
	if s.current == nil {
		return
	}
	if s.current.InProgress() {
		if _, err := s.current.Exit(); err != nil {
			log.Printf("discard session %s: %v", s.current.ID(), err)
		}
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.current = nil
}

func (s *QuizService) finalize(ctx context.Context, session *Session, result domain.Result) error {
	if err := s.results.SaveResult(ctx, result); err != nil {
		return err
	}
	if err := s.progress.Clear(ctx); err != nil {
		return err
	}
	log.Printf("session %s finished: %d/%d", session.ID(), result.Score, result.TotalQuestions)
	return nil
}

func milestoneFor(medal domain.Medal) string {
	switch medal {
	case domain.MedalBronze:
		return "bronzeMedal"
	case domain.MedalSilver:
		return "silverMedal"
	case domain.MedalGold:
		return "goldMedal"
	case domain.MedalPlatinum:
		return "platinumMedal"
	case domain.MedalEmerald:
		return "emeraldMedal"
	}
	return "dailyCompletion"
}
