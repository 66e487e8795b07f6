package assessment

import (
	"context"
	"log"
	"sync"
	"time"
)

// UserListener получает события всех сессий вместе с ключом пользователя
type UserListener func(key string, event ChangeEvent)

type managedSession struct {
	session  *Session
	lastSeen time.Time
}

// Manager хранит сессии самопроверки по ключу пользователя
type Manager struct {
	cfg  *Config
	deps Dependencies

	mu        sync.Mutex
	sessions  map[string]*managedSession
	listeners []UserListener
}

// NewManager создает реестр сессий
func NewManager(cfg *Config, deps Dependencies) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if deps.Clock == nil {
		deps.Clock = RealClock()
	}
	if deps.Sampler == nil {
		deps.Sampler = NewSampler(nil)
	}
	return &Manager{
		cfg:      cfg,
		deps:     deps,
		sessions: make(map[string]*managedSession),
	}
}

// Config возвращает настройки самопроверки
func (m *Manager) Config() *Config { return m.cfg }

// OnChange подписывает слушателя на события всех текущих и будущих сессий
func (m *Manager) OnChange(fn UserListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
	for key, ms := range m.sessions {
		key := key
		ms.session.Subscribe(func(ev ChangeEvent) { fn(key, ev) })
	}
}

// Session возвращает сессию пользователя, создавая ее при первом обращении.
// Новая сессия поднимает сохраненный снимок, если он есть.
func (m *Manager) Session(ctx context.Context, key string) *Session {
	m.mu.Lock()
	if ms, ok := m.sessions[key]; ok {
		ms.lastSeen = m.deps.Clock.Now()
		m.mu.Unlock()
		return ms.session
	}

	session := NewSession(key, m.cfg, &m.deps)
	for _, fn := range m.listeners {
		fn := fn
		session.Subscribe(func(ev ChangeEvent) { fn(key, ev) })
	}
	m.sessions[key] = &managedSession{session: session, lastSeen: m.deps.Clock.Now()}
	m.mu.Unlock()

	session.Restore(ctx)
	return session
}

// Lookup возвращает сессию, не создавая новую
func (m *Manager) Lookup(key string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, ok := m.sessions[key]
	if !ok {
		return nil, false
	}
	return ms.session, true
}

// Count возвращает число сессий в памяти
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// EvictIdle выгружает из памяти сессии без активной попытки, к которым
// не обращались дольше maxIdle. Сохраненные снимки остаются в хранилище.
func (m *Manager) EvictIdle(maxIdle time.Duration) int {
	now := m.deps.Clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for key, ms := range m.sessions {
		if now.Sub(ms.lastSeen) < maxIdle {
			continue
		}
		screen := ms.session.State().Screen
		if screen == ScreenAssessment || screen == ScreenLoading {
			continue
		}
		ms.session.Close()
		delete(m.sessions, key)
		evicted++
	}
	if evicted > 0 {
		log.Printf("[AssessmentManager] Выгружено %d неактивных сессий", evicted)
	}
	return evicted
}

// RunEviction периодически выгружает неактивные сессии до отмены ctx
func (m *Manager) RunEviction(ctx context.Context, interval, maxIdle time.Duration) {
	if interval <= 0 || maxIdle <= 0 {
		log.Printf("[Assessment] Выгрузка неактивных сессий отключена")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.EvictIdle(maxIdle)
		case <-ctx.Done():
			return
		}
	}
}

// Shutdown останавливает таймеры всех сессий
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ms := range m.sessions {
		ms.session.Close()
	}
	log.Printf("[AssessmentManager] Остановлено %d сессий", len(m.sessions))
}
