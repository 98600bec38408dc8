package app

import (
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"dailyquiz-service/internal/domain"
)

// State is the lifecycle phase of a quiz session.
type State string

const (
	StateNotStarted State = "not_started"
	StateInProgress State = "in_progress"
	StateFinished   State = "finished"
)

// QuestionView is the client-safe projection of the current question.
type QuestionView struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
	Hint    string   `json:"hint,omitempty"`
}

// Snapshot is a point-in-time view of a session, published to subscribers on
// every mutation and every timer tick.
type Snapshot struct {
	State          State         `json:"state"`
	QuizID         string        `json:"quizId"`
	Topic          string        `json:"topic"`
	QuestionIndex  int           `json:"questionIndex"`
	TotalQuestions int           `json:"totalQuestions"`
	TimeLeft       int           `json:"timeLeft"`
	TotalTime      int           `json:"totalTime"`
	Question       *QuestionView `json:"question,omitempty"`
	Selected       string        `json:"selected,omitempty"`
	MegaUnlocked   bool          `json:"megaUnlocked"`
	MegaAvailable  bool          `json:"megaAvailable"`
}

// Session is one attempt at a daily quiz: a shuffled question order, a
// parallel answer sequence, a cursor and a countdown. All mutation happens
// under the mutex; every mutation publishes a snapshot.
type Session struct {
	id   string
	quiz domain.Quiz

	mu           sync.Mutex
	state        State
	questions    []domain.Question
	answers      []string
	cursor       int
	timeLeft     int
	totalTime    int
	megaUnlocked bool
	rnd          *rand.Rand
	subscribers  map[chan Snapshot]struct{}
}

// newSession starts a fresh attempt: uniform shuffle of the standard pool,
// empty answer slots, full timer.
func newSession(quiz domain.Quiz, rnd *rand.Rand) *Session {
	questions := shuffled(rnd, quiz.Questions)
	total := quiz.TimerMinutes * 60
	return &Session{
		id:          uuid.NewString(),
		quiz:        quiz,
		state:       StateInProgress,
		questions:   questions,
		answers:     make([]string, len(questions)),
		timeLeft:    total,
		totalTime:   total,
		rnd:         rnd,
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

// newSessionFromProgress rehydrates a suspended attempt verbatim. The caller
// has already validated the saved quiz id against today's quiz.
func newSessionFromProgress(quiz domain.Quiz, saved domain.SavedProgress, rnd *rand.Rand) *Session {
	answers := make([]string, len(saved.Answers))
	copy(answers, saved.Answers)
	questions := make([]domain.Question, len(saved.Questions))
	copy(questions, saved.Questions)
	return &Session{
		id:           uuid.NewString(),
		quiz:         quiz,
		state:        StateInProgress,
		questions:    questions,
		answers:      answers,
		cursor:       saved.QuestionIndex,
		timeLeft:     saved.TimeLeft,
		totalTime:    quiz.TimerMinutes * 60,
		megaUnlocked: saved.MegaUnlocked,
		rnd:          rnd,
		subscribers:  make(map[chan Snapshot]struct{}),
	}
}

// ID is the attempt identifier, used in logs.
func (s *Session) ID() string { return s.id }

// Quiz returns the quiz this session is attempting.
func (s *Session) Quiz() domain.Quiz { return s.quiz }

// SelectAnswer overwrites the answer slot at the cursor. The option is
// accepted as-is; options are fixed choices at the transport edge.
func (s *Session) SelectAnswer(option string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return err
	}
	s.answers[s.cursor] = option
	s.broadcastLocked()
	return nil
}

// Advance moves the cursor to the next question, or finishes the session
// when the cursor is already on the last one. The returned result is only
// meaningful when finished is true.
func (s *Session) Advance() (result domain.Result, finished bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return domain.Result{}, false, err
	}
	if s.cursor < len(s.questions)-1 {
		s.cursor++
		s.broadcastLocked()
		return domain.Result{}, false, nil
	}
	result, err = s.finishLocked()
	return result, err == nil, err
}

// Tick consumes one elapsed second. At zero the session finishes regardless
// of cursor position; unanswered slots score as incorrect. Ticks delivered
// after the session left in_progress are ignored.
func (s *Session) Tick() (result domain.Result, finished bool, alive bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return domain.Result{}, false, false
	}
	if s.timeLeft > 0 {
		s.timeLeft--
	}
	if s.timeLeft > 0 {
		s.broadcastLocked()
		return domain.Result{}, false, true
	}
	result, err := s.finishLocked()
	if err != nil {
		// Unreachable while the answers slice is kept in lockstep with the
		// questions slice; surface a dead session rather than a zero score.
		return domain.Result{}, false, false
	}
	return result, true, false
}

// Finish terminates the session immediately and scores the full, possibly
// time-truncated answer sequence.
func (s *Session) Finish() (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return domain.Result{}, err
	}
	return s.finishLocked()
}

// mutableLocked rejects mutation outside in_progress, distinguishing the
// terminal finished state from a suspended or never-started one.
func (s *Session) mutableLocked() error {
	switch s.state {
	case StateInProgress:
		return nil
	case StateFinished:
		return domain.ErrSessionFinished
	}
	return domain.ErrNoActiveSession
}

// finishLocked transitions to finished without broadcasting. The owner
// persists the result first and then calls PublishFinished, so a subscriber
// reacting to the finished snapshot always finds the result loadable.
func (s *Session) finishLocked() (domain.Result, error) {
	score, err := Score(s.questions, s.answers)
	if err != nil {
		return domain.Result{}, err
	}
	s.state = StateFinished
	result := domain.Result{
		QuizID:         s.quiz.ID,
		Date:           s.quiz.Date,
		Score:          score,
		TotalQuestions: len(s.questions),
		Answers:        append([]string(nil), s.answers...),
		Questions:      append([]domain.Question(nil), s.questions...),
		Mega:           s.megaUnlocked,
	}
	return result, nil
}

// PublishFinished broadcasts the terminal snapshot to subscribers. Called
// after the result write lands.
func (s *Session) PublishFinished() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateFinished {
		s.broadcastLocked()
	}
}

// UnlockMega shuffles and appends the quiz's mega pool, extends the answer
// sequence with empty slots, repositions the cursor on the first appended
// question and returns the session to in_progress. Valid only right after
// the standard portion finished.
func (s *Session) UnlockMega() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateFinished || s.megaUnlocked || !s.quiz.HasMegaPool() {
		return domain.ErrMegaUnavailable
	}
	mega := shuffled(s.rnd, s.quiz.MegaQuestions)
	s.cursor = len(s.questions)
	s.questions = append(s.questions, mega...)
	s.answers = append(s.answers, make([]string, len(mega))...)
	s.megaUnlocked = true
	s.state = StateInProgress
	s.broadcastLocked()
	return nil
}

// Exit suspends the session without finishing and returns the progress to
// persist. The session is terminal afterwards; resuming builds a new one.
func (s *Session) Exit() (domain.SavedProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return domain.SavedProgress{}, err
	}
	saved := s.progressLocked()
	s.state = StateNotStarted
	s.broadcastLocked()
	return saved, nil
}

// Progress captures the serializable state for write-after-mutate persistence.
func (s *Session) Progress() domain.SavedProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressLocked()
}

func (s *Session) progressLocked() domain.SavedProgress {
	return domain.SavedProgress{
		QuizID:        s.quiz.ID,
		QuestionIndex: s.cursor,
		Answers:       append([]string(nil), s.answers...),
		TimeLeft:      s.timeLeft,
		Questions:     append([]domain.Question(nil), s.questions...),
		MegaUnlocked:  s.megaUnlocked,
	}
}

// InProgress reports whether the session is still accepting mutations.
func (s *Session) InProgress() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateInProgress
}

// Snapshot returns the current client-safe view.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel receiving snapshots for every mutation and
// tick. The caller must invoke cancel to avoid leaks.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.snapshotLocked()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() {
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the stale snapshot so a slow subscriber never blocks the
			// session; only the latest view matters.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:          s.state,
		QuizID:         s.quiz.ID,
		Topic:          s.quiz.Topic,
		QuestionIndex:  s.cursor,
		TotalQuestions: len(s.questions),
		TimeLeft:       s.timeLeft,
		TotalTime:      s.totalTime,
		MegaUnlocked:   s.megaUnlocked,
		MegaAvailable:  s.quiz.HasMegaPool() && !s.megaUnlocked,
	}
	if s.state == StateInProgress && s.cursor < len(s.questions) {
		q := s.questions[s.cursor]
		snap.Question = &QuestionView{
			ID:      q.ID,
			Prompt:  q.Prompt,
			Options: q.Options,
			Hint:    q.Hint,
		}
		snap.Selected = s.answers[s.cursor]
	}
	return snap
}
