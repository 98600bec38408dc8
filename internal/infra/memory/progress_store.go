package memory

import (
	"context"
	"sync"

	"dailyquiz-service/internal/domain"
)

// ProgressStore is the in-memory single-slot implementation of
// app.ProgressStore. At most one resumable session exists process-wide.
type ProgressStore struct {
	mu    sync.RWMutex
	saved domain.SavedProgress
	set   bool
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{}
}

func (s *ProgressStore) Load(_ context.Context) (domain.SavedProgress, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saved, s.set, nil
}

func (s *ProgressStore) Save(_ context.Context, progress domain.SavedProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = progress
	s.set = true
	return nil
}

func (s *ProgressStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = domain.SavedProgress{}
	s.set = false
	return nil
}

// ResultStore holds the last finished result in memory. Reads are
// non-destructive; the slot is overwritten by the next finished session.
type ResultStore struct {
	mu     sync.RWMutex
	result domain.Result
	set    bool
}

func NewResultStore() *ResultStore {
	return &ResultStore{}
}

func (s *ResultStore) SaveResult(_ context.Context, result domain.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = result
	s.set = true
	return nil
}

func (s *ResultStore) LoadResult(_ context.Context) (domain.Result, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result, s.set, nil
}
