package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"dailyquiz-service/internal/domain"
)

// QuizLoader fetches quiz content by date from a backing store.
type QuizLoader interface {
	LoadQuizByDate(ctx context.Context, dateKey string) (domain.Quiz, error)
}

// QuizRepository caches full quiz documents in Redis, one JSON value per
// date, and falls back to the loader on a miss:
//
//	SET quiz:date:{YYYY-MM-DD} {quiz json} EX ttl
//
// The session machine needs prompts, options and the mega pool intact, so
// the whole document is cached rather than an answers-only hash.
type QuizRepository struct {
	client *redis.Client
	loader QuizLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuizRepository(client *redis.Client, loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) FindByDate(ctx context.Context, dateKey string) (domain.Quiz, error) {
	key := r.key(dateKey)

	raw, err := r.client.Get(ctx, key).Bytes()
	if err == nil {
		if quiz, uerr := unmarshalQuiz(raw); uerr == nil {
			return quiz, nil
		}
	}

	result, err, _ := r.sf.Do(dateKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		raw, err := r.client.Get(ctx, key).Bytes()
		if err == nil {
			if quiz, uerr := unmarshalQuiz(raw); uerr == nil {
				return quiz, nil
			}
		}

		quiz, err := r.loader.LoadQuizByDate(ctx, dateKey)
		if err != nil {
			return domain.Quiz{}, err
		}

		if data, merr := json.Marshal(quiz); merr == nil {
			_ = r.client.Set(ctx, key, data, r.ttlWithJitter()).Err()
		}
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (r *QuizRepository) key(dateKey string) string {
	return "quiz:date:" + dateKey
}

func unmarshalQuiz(raw []byte) (domain.Quiz, error) {
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, err
	}
	if quiz.ID == "" {
		return domain.Quiz{}, errors.New("empty quiz in cache")
	}
	return quiz, nil
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
