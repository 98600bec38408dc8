package memory

import (
	"context"
	"testing"
	"time"

	"dailyquiz-service/internal/domain"
)

func TestHistoryStoreRecordAndWeekly(t *testing.T) {
	ctx := context.Background()
	store := NewHistoryStore()
	now := time.Date(2025, 5, 14, 12, 0, 0, 0, time.Local) // a Wednesday

	_ = store.RecordAttempt(ctx, domain.QuizAttempt{Date: "2025-05-12", Medal: domain.MedalGold, Score: 10, Total: 10})
	_ = store.RecordAttempt(ctx, domain.QuizAttempt{Date: "2025-05-13", Medal: domain.MedalBronze, Score: 5, Total: 10})
	// Reprocessing a day replaces its medal.
	_ = store.RecordAttempt(ctx, domain.QuizAttempt{Date: "2025-05-13", Medal: domain.MedalSilver, Score: 8, Total: 10})

	week, err := store.WeeklyProgress(ctx, now)
	if err != nil {
		t.Fatalf("weekly: %v", err)
	}
	if week[time.Monday] != domain.MedalGold || week[time.Tuesday] != domain.MedalSilver {
		t.Fatalf("unexpected week: %+v", week)
	}
	if week[time.Sunday] != domain.MedalNone {
		t.Fatalf("expected empty sunday, got %q", week[time.Sunday])
	}

	attempts, err := store.History(ctx)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(attempts) != 2 || attempts[0].Date != "2025-05-13" {
		t.Fatalf("unexpected history: %+v", attempts)
	}
}

func TestHistoryStoreStreak(t *testing.T) {
	ctx := context.Background()
	store := NewHistoryStore()
	now := time.Date(2025, 5, 14, 12, 0, 0, 0, time.Local)

	_ = store.RecordAttempt(ctx, domain.QuizAttempt{Date: "2025-05-12", Medal: domain.MedalBronze})
	_ = store.RecordAttempt(ctx, domain.QuizAttempt{Date: "2025-05-13", Medal: domain.MedalBronze})

	// Today not taken yet: streak counts back from yesterday.
	streak, err := store.Streak(ctx, now)
	if err != nil {
		t.Fatalf("streak: %v", err)
	}
	if streak != 2 {
		t.Fatalf("expected streak 2, got %d", streak)
	}

	_ = store.RecordAttempt(ctx, domain.QuizAttempt{Date: "2025-05-14", Medal: domain.MedalGold})
	streak, _ = store.Streak(ctx, now)
	if streak != 3 {
		t.Fatalf("expected streak 3, got %d", streak)
	}

	// A gap resets the count.
	_ = store.RecordAttempt(ctx, domain.QuizAttempt{Date: "2025-05-10", Medal: domain.MedalGold})
	streak, _ = store.Streak(ctx, now)
	if streak != 3 {
		t.Fatalf("gap should not extend streak, got %d", streak)
	}
}
