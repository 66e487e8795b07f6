package assessment

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/teamsforge/frontquiz-api/internal/domain/entity"
	apperrors "github.com/teamsforge/frontquiz-api/internal/pkg/errors"
)

// SnapshotStore - хранилище сохраненного состояния.
// Реализуется redis.CacheRepo.
type SnapshotStore interface {
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	GetJSON(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
}

// Persister сохраняет проекцию сессии. Ошибки хранилища не возвращаются:
// они логируются, а снимок остается в памяти процесса.
type Persister struct {
	store SnapshotStore
	ttl   time.Duration

	mu       sync.Mutex
	inMemory map[string]Snapshot
}

// NewPersister создает адаптер сохранения. store может быть nil - тогда состояние живет только в памяти.
func NewPersister(store SnapshotStore, ttl time.Duration) *Persister {
	return &Persister{
		store:    store,
		ttl:      ttl,
		inMemory: make(map[string]Snapshot),
	}
}

// Save сохраняет снимок под ключом key
func (p *Persister) Save(ctx context.Context, key string, snap Snapshot) {
	snap = cloneSnapshot(snap)

	if p.store != nil {
		ctx, cancel := context.WithTimeout(ctx, defaultPersistTimeout)
		err := p.store.SetJSON(ctx, key, snap, p.ttl)
		cancel()
		if err == nil {
			p.mu.Lock()
			delete(p.inMemory, key)
			p.mu.Unlock()
			return
		}
		log.Printf("[AssessmentPersister] Не удалось сохранить %s, продолжаем в памяти: %v", key, err)
	}

	p.mu.Lock()
	p.inMemory[key] = snap
	p.mu.Unlock()
}

// Load возвращает сохраненный снимок, если он есть
func (p *Persister) Load(ctx context.Context, key string) (*Snapshot, bool) {
	p.mu.Lock()
	mem, ok := p.inMemory[key]
	p.mu.Unlock()
	if ok {
		snap := cloneSnapshot(mem)
		return &snap, true
	}

	if p.store == nil {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, defaultPersistTimeout)
	defer cancel()

	var snap Snapshot
	if err := p.store.GetJSON(ctx, key, &snap); err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[AssessmentPersister] Не удалось прочитать %s: %v", key, err)
		}
		return nil, false
	}
	return &snap, true
}

// Clear удаляет сохраненный снимок
func (p *Persister) Clear(ctx context.Context, key string) {
	p.mu.Lock()
	delete(p.inMemory, key)
	p.mu.Unlock()

	if p.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, defaultPersistTimeout)
	defer cancel()
	if err := p.store.Delete(ctx, key); err != nil {
		log.Printf("[AssessmentPersister] Не удалось удалить %s: %v", key, err)
	}
}

func cloneSnapshot(s Snapshot) Snapshot {
	out := Snapshot{
		UserAnswers:          append([]entity.UserAnswer(nil), s.UserAnswers...),
		SelectedQuestions:    append([]entity.Question(nil), s.SelectedQuestions...),
		CurrentQuestionIndex: s.CurrentQuestionIndex,
	}
	if s.CompetencyScore != nil {
		out.CompetencyScore = s.CompetencyScore.Clone()
	}
	return out
}
