package app_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"dailyquiz-service/internal/app"
	"dailyquiz-service/internal/domain"
	"dailyquiz-service/internal/infra/memory"
)

var testNow = time.Date(2025, 5, 12, 9, 0, 0, 0, time.Local) // a Monday

type fixedBadges struct{ fail bool }

func (b fixedBadges) Generate(context.Context, string, string) (domain.Badge, error) {
	if b.fail {
		return domain.Badge{}, errors.New("badge service down")
	}
	return domain.Badge{Description: "generated badge", ImageURL: "/badges/generated.svg"}, nil
}

type testEnv struct {
	service  *app.QuizService
	progress *memory.ProgressStore
	results  *memory.ResultStore
	history  *memory.HistoryStore
}

func newTestEnv(t *testing.T, quizzes []domain.Quiz, badges app.BadgeGenerator) testEnv {
	t.Helper()
	progress := memory.NewProgressStore()
	results := memory.NewResultStore()
	history := memory.NewHistoryStore()
	repo := memory.NewQuizRepository(memory.NewStaticQuizLoader(quizzes), 5*time.Minute)
	service := app.NewQuizService(repo, progress, results, history, badges,
		app.WithClock(func() time.Time { return testNow }),
		app.WithRand(rand.New(rand.NewSource(99))),
	)
	return testEnv{service: service, progress: progress, results: results, history: history}
}

func todayQuiz(questionCount, megaCount int) domain.Quiz {
	quiz := domain.Quiz{
		ID:           "quiz-2025-05-12",
		Date:         app.DateKey(testNow),
		Topic:        "Science & Nature",
		TimerMinutes: 5,
		DailyScores:  []int{1, 2, 3, 4, 5},
	}
	for i := 0; i < questionCount; i++ {
		quiz.Questions = append(quiz.Questions, domain.Question{
			ID:            fmt.Sprintf("q%d", i+1),
			Prompt:        fmt.Sprintf("Question %d", i+1),
			Options:       []string{"A", "B", "C", "Right"},
			CorrectAnswer: "Right",
			Explanation:   fmt.Sprintf("Because %d.", i+1),
		})
	}
	for i := 0; i < megaCount; i++ {
		quiz.MegaQuestions = append(quiz.MegaQuestions, domain.Question{
			ID:            fmt.Sprintf("m%d", i+1),
			Prompt:        fmt.Sprintf("Mega question %d", i+1),
			Options:       []string{"A", "B", "C", "Right"},
			CorrectAnswer: "Right",
		})
	}
	return quiz
}

func finishQuiz(t *testing.T, env testEnv, answer string, count int) domain.Result {
	t.Helper()
	ctx := context.Background()
	var result domain.Result
	for i := 0; i < count; i++ {
		if err := env.service.SelectAnswer(ctx, answer); err != nil {
			t.Fatalf("answer %d: %v", i, err)
		}
		res, finished, err := env.service.Advance(ctx)
		if err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
		if finished {
			result = res
		}
	}
	return result
}

func TestStartWithoutQuizToday(t *testing.T) {
	env := newTestEnv(t, nil, fixedBadges{})
	if _, err := env.service.Start(context.Background(), false); !errors.Is(err, domain.ErrNoQuizToday) {
		t.Fatalf("expected ErrNoQuizToday, got %v", err)
	}
}

func TestStartFreshPersistsInitialProgress(t *testing.T) {
	env := newTestEnv(t, []domain.Quiz{todayQuiz(10, 0)}, fixedBadges{})
	session, err := env.service.Start(context.Background(), false)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !session.InProgress() {
		t.Fatalf("expected in_progress session")
	}

	saved, ok, err := env.progress.Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected saved progress, ok=%v err=%v", ok, err)
	}
	if saved.QuizID != "quiz-2025-05-12" || saved.QuestionIndex != 0 || saved.TimeLeft != 300 {
		t.Fatalf("unexpected initial progress: %+v", saved)
	}
	if len(saved.Questions) != 10 || len(saved.Answers) != 10 {
		t.Fatalf("expected 10 questions/answers, got %d/%d", len(saved.Questions), len(saved.Answers))
	}
}

func TestResumeReproducesStoredState(t *testing.T) {
	quiz := todayQuiz(10, 0)
	env := newTestEnv(t, []domain.Quiz{quiz}, fixedBadges{})
	ctx := context.Background()

	answers := make([]string, 10)
	answers[0] = "Right"
	answers[1] = "B"
	saved := domain.SavedProgress{
		QuizID:        quiz.ID,
		QuestionIndex: 2,
		Answers:       answers,
		TimeLeft:      174,
		Questions:     quiz.Questions,
		MegaUnlocked:  false,
	}
	if err := env.progress.Save(ctx, saved); err != nil {
		t.Fatalf("seed progress: %v", err)
	}

	session, err := env.service.Start(ctx, true)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	snap := session.Snapshot()
	if snap.QuestionIndex != 2 || snap.TimeLeft != 174 {
		t.Fatalf("resume did not reproduce cursor/time: %+v", snap)
	}
	restored := session.Progress()
	if restored.Answers[0] != "Right" || restored.Answers[1] != "B" {
		t.Fatalf("resume did not reproduce answers: %v", restored.Answers)
	}
	if restored.Questions[0].ID != quiz.Questions[0].ID {
		t.Fatalf("resume did not reproduce question order")
	}
}

func TestResumeDiscardsStaleProgress(t *testing.T) {
	env := newTestEnv(t, []domain.Quiz{todayQuiz(10, 0)}, fixedBadges{})
	ctx := context.Background()

	stale := domain.SavedProgress{
		QuizID:        "quiz-2025-05-11",
		QuestionIndex: 4,
		Answers:       make([]string, 10),
		TimeLeft:      100,
	}
	if err := env.progress.Save(ctx, stale); err != nil {
		t.Fatalf("seed stale progress: %v", err)
	}

	if _, err := env.service.Start(ctx, true); !errors.Is(err, domain.ErrNoSavedProgress) {
		t.Fatalf("expected ErrNoSavedProgress, got %v", err)
	}
	if _, ok, _ := env.progress.Load(ctx); ok {
		t.Fatalf("stale progress not discarded")
	}
}

func TestAvailabilityStates(t *testing.T) {
	ctx := context.Background()

	empty := newTestEnv(t, nil, fixedBadges{})
	avail, err := empty.service.Availability(ctx)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if avail.QuizAvailable || avail.Resumable {
		t.Fatalf("expected empty availability, got %+v", avail)
	}

	quiz := todayQuiz(10, 5)
	env := newTestEnv(t, []domain.Quiz{quiz}, fixedBadges{})
	avail, err = env.service.Availability(ctx)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if !avail.QuizAvailable || avail.Resumable || !avail.MegaDay || avail.QuestionCount != 10 {
		t.Fatalf("unexpected fresh availability: %+v", avail)
	}

	_ = env.progress.Save(ctx, domain.SavedProgress{QuizID: quiz.ID, QuestionIndex: 3, TimeLeft: 60, Questions: quiz.Questions})
	avail, err = env.service.Availability(ctx)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if !avail.Resumable || avail.Resume == nil || avail.Resume.QuestionIndex != 3 {
		t.Fatalf("expected resumable availability: %+v", avail)
	}

	// A slot from another day is discarded silently.
	_ = env.progress.Save(ctx, domain.SavedProgress{QuizID: "quiz-2025-05-11"})
	avail, err = env.service.Availability(ctx)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if avail.Resumable {
		t.Fatalf("stale slot reported as resumable")
	}
	if _, ok, _ := env.progress.Load(ctx); ok {
		t.Fatalf("stale slot not cleared")
	}
}

func TestFinishStoresResultAndClearsProgress(t *testing.T) {
	env := newTestEnv(t, []domain.Quiz{todayQuiz(10, 0)}, fixedBadges{})
	ctx := context.Background()

	if _, err := env.service.Start(ctx, false); err != nil {
		t.Fatalf("start: %v", err)
	}
	result := finishQuiz(t, env, "Right", 10)
	if result.Score != 10 || result.TotalQuestions != 10 {
		t.Fatalf("expected 10/10, got %d/%d", result.Score, result.TotalQuestions)
	}

	stored, ok, err := env.results.LoadResult(ctx)
	if err != nil || !ok {
		t.Fatalf("result not stored: ok=%v err=%v", ok, err)
	}
	if stored.Score != 10 {
		t.Fatalf("stored result mismatch: %+v", stored)
	}
	if _, ok, _ := env.progress.Load(ctx); ok {
		t.Fatalf("progress not cleared on finish")
	}
}

func TestResultsComputesMedalPercentileAndHistory(t *testing.T) {
	env := newTestEnv(t, []domain.Quiz{todayQuiz(10, 0)}, fixedBadges{})
	ctx := context.Background()

	if _, err := env.service.Start(ctx, false); err != nil {
		t.Fatalf("start: %v", err)
	}
	finishQuiz(t, env, "Right", 10)

	view, err := env.service.Results(ctx)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if view.Medal != domain.MedalGold {
		t.Fatalf("expected gold, got %q", view.Medal)
	}
	// Every sampled score (1..5) is below 10.
	if view.Percentile != 100 || view.TopPercent != 0 {
		t.Fatalf("unexpected percentile: %d top %d", view.Percentile, view.TopPercent)
	}
	if view.Topic != "Science & Nature" {
		t.Fatalf("topic not resolved: %q", view.Topic)
	}
	if len(view.Review) != 10 || !view.Review[0].Correct {
		t.Fatalf("unexpected review: %+v", view.Review[:1])
	}

	attempts, err := env.history.History(ctx)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(attempts) != 1 || attempts[0].Medal != domain.MedalGold || attempts[0].Date != app.DateKey(testNow) {
		t.Fatalf("attempt not recorded: %+v", attempts)
	}
}

func TestResultsWithoutMedalSkipsHistory(t *testing.T) {
	env := newTestEnv(t, []domain.Quiz{todayQuiz(10, 0)}, fixedBadges{})
	ctx := context.Background()

	if _, err := env.service.Start(ctx, false); err != nil {
		t.Fatalf("start: %v", err)
	}
	finishQuiz(t, env, "A", 10) // all wrong

	view, err := env.service.Results(ctx)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if view.Medal != domain.MedalNone {
		t.Fatalf("expected no medal, got %q", view.Medal)
	}
	attempts, _ := env.history.History(ctx)
	if len(attempts) != 0 {
		t.Fatalf("history recorded without a medal: %+v", attempts)
	}
}

func TestResultsEmptySlot(t *testing.T) {
	env := newTestEnv(t, []domain.Quiz{todayQuiz(10, 0)}, fixedBadges{})
	if _, err := env.service.Results(context.Background()); !errors.Is(err, domain.ErrNoResult) {
		t.Fatalf("expected ErrNoResult, got %v", err)
	}
}

func TestUnlockMegaFlow(t *testing.T) {
	env := newTestEnv(t, []domain.Quiz{todayQuiz(10, 10)}, fixedBadges{})
	ctx := context.Background()

	if _, err := env.service.Start(ctx, false); err != nil {
		t.Fatalf("start: %v", err)
	}
	result := finishQuiz(t, env, "Right", 10)
	if result.Mega {
		t.Fatalf("standard result flagged as mega")
	}

	if err := env.service.UnlockMega(ctx); err != nil {
		t.Fatalf("unlock mega: %v", err)
	}
	saved, ok, _ := env.progress.Load(ctx)
	if !ok || len(saved.Questions) != 20 || saved.QuestionIndex != 10 || !saved.MegaUnlocked {
		t.Fatalf("mega progress not persisted: %+v", saved)
	}

	result = finishQuiz(t, env, "Right", 10)
	if result.Score != 20 || result.TotalQuestions != 20 || !result.Mega {
		t.Fatalf("unexpected mega result: %+v", result)
	}

	view, err := env.service.Results(ctx)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if view.Medal != domain.MedalEmerald {
		t.Fatalf("expected emerald on perfect mega, got %q", view.Medal)
	}
}

func TestExitThenResume(t *testing.T) {
	env := newTestEnv(t, []domain.Quiz{todayQuiz(10, 0)}, fixedBadges{})
	ctx := context.Background()

	if _, err := env.service.Start(ctx, false); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := env.service.SelectAnswer(ctx, "Right"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if _, _, err := env.service.Advance(ctx); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := env.service.Exit(ctx); err != nil {
		t.Fatalf("exit: %v", err)
	}
	if err := env.service.SelectAnswer(ctx, "Right"); !errors.Is(err, domain.ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession after exit, got %v", err)
	}

	session, err := env.service.Start(ctx, true)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if snap := session.Snapshot(); snap.QuestionIndex != 1 {
		t.Fatalf("expected resume at question 1, got %d", snap.QuestionIndex)
	}
}

// slowResultStore delays the write, widening the window between finishing a
// session and the result slot being loadable.
type slowResultStore struct {
	*memory.ResultStore
	delay time.Duration
}

func (s slowResultStore) SaveResult(ctx context.Context, result domain.Result) error {
	time.Sleep(s.delay)
	return s.ResultStore.SaveResult(ctx, result)
}

func TestFinishedSnapshotFollowsResultWrite(t *testing.T) {
	ctx := context.Background()
	progress := memory.NewProgressStore()
	results := memory.NewResultStore()
	repo := memory.NewQuizRepository(memory.NewStaticQuizLoader([]domain.Quiz{todayQuiz(1, 0)}), 5*time.Minute)
	service := app.NewQuizService(repo, progress, slowResultStore{ResultStore: results, delay: 150 * time.Millisecond}, memory.NewHistoryStore(), fixedBadges{},
		app.WithClock(func() time.Time { return testNow }),
		app.WithRand(rand.New(rand.NewSource(99))),
	)

	if _, err := service.Start(ctx, false); err != nil {
		t.Fatalf("start: %v", err)
	}
	updates, cancel, err := service.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	// A subscriber loads the results view the moment it observes the finished
	// snapshot, the way the websocket transport does.
	viewErr := make(chan error, 1)
	go func() {
		for snap := range updates {
			if snap.State == app.StateFinished {
				_, err := service.Results(ctx)
				viewErr <- err
				return
			}
		}
		viewErr <- errors.New("updates closed before finish")
	}()

	if err := service.SelectAnswer(ctx, "Right"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if _, _, err := service.Advance(ctx); err != nil {
		t.Fatalf("advance: %v", err)
	}

	select {
	case err := <-viewErr:
		if err != nil {
			t.Fatalf("result not loadable when finished snapshot arrived: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("finished snapshot never observed")
	}
}

func TestAvailabilityClearsStaleSlotWithoutQuiz(t *testing.T) {
	env := newTestEnv(t, nil, fixedBadges{})
	ctx := context.Background()

	_ = env.progress.Save(ctx, domain.SavedProgress{QuizID: "quiz-2025-05-11", QuestionIndex: 2})

	avail, err := env.service.Availability(ctx)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if avail.QuizAvailable || avail.Resumable {
		t.Fatalf("unexpected availability on a no-quiz day: %+v", avail)
	}
	if _, ok, _ := env.progress.Load(ctx); ok {
		t.Fatalf("stale slot survived a no-quiz day")
	}
}

func TestResultsResolveQuizAcrossMidnight(t *testing.T) {
	ctx := context.Background()
	progress := memory.NewProgressStore()
	results := memory.NewResultStore()
	history := memory.NewHistoryStore()
	repo := memory.NewQuizRepository(memory.NewStaticQuizLoader([]domain.Quiz{todayQuiz(10, 0)}), 5*time.Minute)
	now := testNow
	service := app.NewQuizService(repo, progress, results, history, fixedBadges{},
		app.WithClock(func() time.Time { return now }),
		app.WithRand(rand.New(rand.NewSource(99))),
	)
	env := testEnv{service: service, progress: progress, results: results, history: history}

	if _, err := service.Start(ctx, false); err != nil {
		t.Fatalf("start: %v", err)
	}
	finishQuiz(t, env, "Right", 10)

	now = now.AddDate(0, 0, 1)

	view, err := service.Results(ctx)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if view.Topic != "Science & Nature" {
		t.Fatalf("topic lost across midnight: %q", view.Topic)
	}
	if view.Percentile != 100 || view.TopPercent != 0 {
		t.Fatalf("historical sample lost across midnight: percentile %d", view.Percentile)
	}

	attempts, _ := history.History(ctx)
	if len(attempts) != 1 || attempts[0].Date != app.DateKey(testNow) {
		t.Fatalf("attempt not recorded under the quiz's day: %+v", attempts)
	}
}

func TestBadgeFallbackOnFailure(t *testing.T) {
	env := newTestEnv(t, []domain.Quiz{todayQuiz(10, 0)}, fixedBadges{fail: true})
	badge := env.service.Badge(context.Background(), domain.MedalGold, "alex")
	if badge.Description == "" || badge.ImageURL == "" {
		t.Fatalf("fallback badge incomplete: %+v", badge)
	}

	ok := newTestEnv(t, []domain.Quiz{todayQuiz(10, 0)}, fixedBadges{})
	badge = ok.service.Badge(context.Background(), domain.MedalGold, "alex")
	if badge.Description != "generated badge" {
		t.Fatalf("expected generated badge, got %+v", badge)
	}
}
