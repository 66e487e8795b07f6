package assessment

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/teamsforge/frontquiz-api/internal/domain/entity"
	apperrors "github.com/teamsforge/frontquiz-api/internal/pkg/errors"
)

// ============================================================================
// Фейковые часы
// ============================================================================

type fakeTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               { t.stopped.Store(true) }

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) NewTicker(time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time)}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *fakeClock) tickerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

func (c *fakeClock) ticker(i int) *fakeTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tickers[i]
}

// tick отправляет тик и ждет, пока горутина таймера его заберет
func (c *fakeClock) tick(i int) {
	t := c.ticker(i)
	t.ch <- c.Now()
}

// tryTick отправляет тик, только если горутина таймера еще слушает канал
func (c *fakeClock) tryTick(i int) bool {
	t := c.ticker(i)
	select {
	case t.ch <- c.Now():
		return true
	case <-time.After(50 * time.Millisecond):
		return false
	}
}

// ============================================================================
// Моки
// ============================================================================

// MockQuestionSource реализует QuestionSource
type MockQuestionSource struct {
	mock.Mock
}

func (m *MockQuestionSource) ListAll(ctx context.Context) ([]entity.Question, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Question), args.Error(1)
}

// MockSnapshotStore реализует SnapshotStore
type MockSnapshotStore struct {
	mock.Mock
}

func (m *MockSnapshotStore) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

func (m *MockSnapshotStore) GetJSON(ctx context.Context, key string, dest interface{}) error {
	args := m.Called(ctx, key, dest)
	return args.Error(0)
}

func (m *MockSnapshotStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// memoryStore - SnapshotStore в памяти. После holdNextSave следующий SetJSON
// сообщает о себе в saving и ждет release.
type memoryStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	hold    atomic.Bool
	saving  chan struct{}
	release chan struct{}
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		data:    make(map[string][]byte),
		saving:  make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (m *memoryStore) holdNextSave() { m.hold.Store(true) }

func (m *memoryStore) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if m.hold.CompareAndSwap(true, false) {
		m.saving <- struct{}{}
		<-m.release
	}
	m.mu.Lock()
	m.data[key] = data
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) GetJSON(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	data, ok := m.data[key]
	m.mu.Unlock()
	if !ok {
		return apperrors.ErrNotFound
	}
	return json.Unmarshal(data, dest)
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

// staticPool - PoolSource с фиксированным банком
type staticPool struct {
	pool Pool
	err  error
}

func (p staticPool) LoadPool(context.Context) (Pool, error) { return p.pool, p.err }

// blockingPool отдает банк только после release
type blockingPool struct {
	pool    Pool
	started chan struct{}
	release chan struct{}
}

func newBlockingPool(pool Pool) *blockingPool {
	return &blockingPool{pool: pool, started: make(chan struct{}, 1), release: make(chan struct{})}
}

func (p *blockingPool) LoadPool(context.Context) (Pool, error) {
	p.started <- struct{}{}
	<-p.release
	return p.pool, nil
}

// ============================================================================
// Данные
// ============================================================================

// makeQuestions создает n валидных вопросов темы; правильный ответ всегда 1
func makeQuestions(topic entity.Topic, startID uint, n int) []entity.Question {
	qs := make([]entity.Question, n)
	for i := 0; i < n; i++ {
		id := startID + uint(i)
		qs[i] = entity.Question{
			ID:           id,
			Topic:        topic,
			SequenceID:   i + 1,
			Prompt:       fmt.Sprintf("%s вопрос %d", topic, id),
			Choices:      entity.StringArray{"A", "B", "C", "D"},
			CorrectIndex: 1,
			Rationale:    "потому что B",
		}
	}
	return qs
}

func makePool(html, css, js int) Pool {
	return Pool{
		entity.TopicHTML:       makeQuestions(entity.TopicHTML, 1, html),
		entity.TopicCSS:        makeQuestions(entity.TopicCSS, 1001, css),
		entity.TopicJavaScript: makeQuestions(entity.TopicJavaScript, 2001, js),
	}
}
