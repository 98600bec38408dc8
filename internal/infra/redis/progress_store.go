package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"dailyquiz-service/internal/domain"
)

const (
	progressSlotKey = "quizProgress"
	resultSlotKey   = "lastQuizResult"
)

// ProgressStore persists the single in-flight session slot in Redis. Written
// on every mutation while a session is in progress; cleared on finish and on
// stale-day detection.
type ProgressStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProgressStore builds the store. ttl bounds how long an abandoned
// session survives; zero keeps it until the next fresh start clears it.
func NewProgressStore(client *redis.Client, ttl time.Duration) *ProgressStore {
	return &ProgressStore{client: client, ttl: ttl}
}

func (s *ProgressStore) Load(ctx context.Context) (domain.SavedProgress, bool, error) {
	raw, err := s.client.Get(ctx, progressSlotKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SavedProgress{}, false, nil
	}
	if err != nil {
		return domain.SavedProgress{}, false, err
	}
	var saved domain.SavedProgress
	if err := json.Unmarshal(raw, &saved); err != nil {
		return domain.SavedProgress{}, false, err
	}
	return saved, true, nil
}

func (s *ProgressStore) Save(ctx context.Context, progress domain.SavedProgress) error {
	data, err := json.Marshal(progress)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, progressSlotKey, data, s.ttl).Err()
}

func (s *ProgressStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, progressSlotKey).Err()
}

// ResultStore holds the last finished result under the well-known
// lastQuizResult slot. Reads are non-destructive.
type ResultStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewResultStore(client *redis.Client, ttl time.Duration) *ResultStore {
	return &ResultStore{client: client, ttl: ttl}
}

func (s *ResultStore) SaveResult(ctx context.Context, result domain.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, resultSlotKey, data, s.ttl).Err()
}

func (s *ResultStore) LoadResult(ctx context.Context) (domain.Result, bool, error) {
	raw, err := s.client.Get(ctx, resultSlotKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Result{}, false, nil
	}
	if err != nil {
		return domain.Result{}, false, err
	}
	var result domain.Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return domain.Result{}, false, err
	}
	return result, true, nil
}
