package assessment

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/teamsforge/frontquiz-api/internal/domain/entity"
)

// QuestionSource - банк вопросов. Реализуется postgres.QuestionRepo.
type QuestionSource interface {
	ListAll(ctx context.Context) ([]entity.Question, error)
}

// PoolLoader загружает банк вопросов и кеширует его в памяти на ttl
type PoolLoader struct {
	source QuestionSource
	ttl    time.Duration
	clock  Clock

	mu       sync.Mutex
	cached   Pool
	cachedAt time.Time
}

// NewPoolLoader создает загрузчик банка вопросов
func NewPoolLoader(source QuestionSource, ttl time.Duration, clock Clock) *PoolLoader {
	if clock == nil {
		clock = RealClock()
	}
	return &PoolLoader{
		source: source,
		ttl:    ttl,
		clock:  clock,
	}
}

// LoadPool возвращает весь банк, сгруппированный по темам.
// Пока кеш свежий, источник не опрашивается.
func (l *PoolLoader) LoadPool(ctx context.Context) (Pool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cached != nil && l.clock.Now().Sub(l.cachedAt) < l.ttl {
		return l.cached, nil
	}

	questions, err := l.source.ListAll(ctx)
	if err != nil {
		log.Printf("[PoolLoader] Не удалось получить банк вопросов: %v", err)
		return nil, &FetchError{Reason: "question bank unreachable", Err: err}
	}

	pool := make(Pool)
	for i := range questions {
		q := questions[i]
		if err := q.Validate(); err != nil {
			log.Printf("[PoolLoader] Некорректный вопрос в банке: %v", err)
			return nil, &FetchError{Reason: "malformed question", Err: err}
		}
		pool[q.Topic] = append(pool[q.Topic], q)
	}

	l.cached = pool
	l.cachedAt = l.clock.Now()
	log.Printf("[PoolLoader] Загружено %d вопросов по %d темам", len(questions), len(pool))
	return pool, nil
}

// Invalidate сбрасывает кеш
func (l *PoolLoader) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cached = nil
	l.cachedAt = time.Time{}
}
