package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"dailyquiz-service/internal/domain"
)

// HistoryStore keeps per-day attempt outcomes in memory. One attempt per
// date; reprocessing a result overwrites that day's medal.
type HistoryStore struct {
	mu       sync.RWMutex
	attempts map[string]domain.QuizAttempt
}

func NewHistoryStore() *HistoryStore {
	return &HistoryStore{attempts: make(map[string]domain.QuizAttempt)}
}

func (s *HistoryStore) RecordAttempt(_ context.Context, attempt domain.QuizAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[attempt.Date] = attempt
	return nil
}

func (s *HistoryStore) History(_ context.Context) ([]domain.QuizAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.QuizAttempt, 0, len(s.attempts))
	for _, a := range s.attempts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}

// WeeklyProgress returns the medal line for the week containing now, indexed
// by weekday with Sunday at 0.
func (s *HistoryStore) WeeklyProgress(_ context.Context, now time.Time) ([7]domain.Medal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var week [7]domain.Medal
	start := now.AddDate(0, 0, -int(now.Weekday()))
	for i := 0; i < 7; i++ {
		day := start.AddDate(0, 0, i).Format("2006-01-02")
		if a, ok := s.attempts[day]; ok {
			week[i] = a.Medal
		}
	}
	return week, nil
}

// Streak counts consecutive attempt days ending today, or yesterday when
// today's quiz has not been taken yet.
func (s *HistoryStore) Streak(_ context.Context, now time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	day := now
	if _, ok := s.attempts[day.Format("2006-01-02")]; !ok {
		day = day.AddDate(0, 0, -1)
	}
	streak := 0
	for {
		if _, ok := s.attempts[day.Format("2006-01-02")]; !ok {
			break
		}
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak, nil
}
