package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"dailyquiz-service/internal/domain"
)

// QuizLoader fetches quiz content by date from a backing store.
type QuizLoader interface {
	LoadQuizByDate(ctx context.Context, dateKey string) (domain.Quiz, error)
}

// QuizRepository caches quizzes per date with TTL to avoid repeated DB hits.
type QuizRepository struct {
	loader QuizLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedQuiz
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewQuizRepository(loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuiz),
	}
}

func (r *QuizRepository) FindByDate(ctx context.Context, dateKey string) (domain.Quiz, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[dateKey]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.quiz, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(dateKey, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[dateKey]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.quiz, nil
		}
		r.mu.RUnlock()

		quiz, err := r.loader.LoadQuizByDate(ctx, dateKey)
		if err != nil {
			return domain.Quiz{}, err
		}

		r.mu.Lock()
		r.cache[dateKey] = cachedQuiz{
			quiz:      quiz,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticQuizLoader is a simple loader backed by an in-memory date map
// (useful for tests/demos).
type StaticQuizLoader struct {
	quizzes map[string]domain.Quiz
}

// NewStaticQuizLoader indexes the given quizzes by their date key.
func NewStaticQuizLoader(quizzes []domain.Quiz) *StaticQuizLoader {
	byDate := make(map[string]domain.Quiz, len(quizzes))
	for _, q := range quizzes {
		byDate[q.Date] = q
	}
	return &StaticQuizLoader{quizzes: byDate}
}

func (l *StaticQuizLoader) LoadQuizByDate(_ context.Context, dateKey string) (domain.Quiz, error) {
	if quiz, ok := l.quizzes[dateKey]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}
