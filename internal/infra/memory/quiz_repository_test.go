package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"dailyquiz-service/internal/domain"
)

func TestQuizRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		QuizLoader: NewStaticQuizLoader([]domain.Quiz{sampleQuiz()}),
	}
	repo := NewQuizRepository(loader, time.Minute)

	if _, err := repo.FindByDate(context.Background(), "2025-05-12"); err != nil {
		t.Fatalf("find quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := repo.FindByDate(context.Background(), "2025-05-12"); err != nil {
		t.Fatalf("find quiz 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestQuizRepositoryMiss(t *testing.T) {
	repo := NewQuizRepository(NewStaticQuizLoader(nil), time.Minute)
	if _, err := repo.FindByDate(context.Background(), "2025-05-12"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}

type countingLoader struct {
	QuizLoader
	calls int
}

func (l *countingLoader) LoadQuizByDate(ctx context.Context, dateKey string) (domain.Quiz, error) {
	l.calls++
	return l.QuizLoader.LoadQuizByDate(ctx, dateKey)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:           "quiz-2025-05-12",
		Date:         "2025-05-12",
		Topic:        "Science",
		TimerMinutes: 5,
		Questions: []domain.Question{
			{
				ID:            "q1",
				Prompt:        "What is 2 + 2?",
				Options:       []string{"3", "4", "5", "22"},
				CorrectAnswer: "4",
			},
		},
	}
}
