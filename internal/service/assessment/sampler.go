package assessment

import (
	"math/rand"
	"sync"
	"time"

	"github.com/teamsforge/frontquiz-api/internal/domain/entity"
)

// Sampler выбирает вопросы для одной попытки
type Sampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSampler создает выборщик с заданным источником случайности.
// При rng == nil используется источник, инициализированный текущим временем.
func NewSampler(rng *rand.Rand) *Sampler {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Sampler{rng: rng}
}

// Sample берет min(quota, доступно) вопросов из каждой темы topics
// без повторов и перемешивает итоговый список целиком.
func (s *Sampler) Sample(pool Pool, topics []entity.Topic, quota int) []entity.Question {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quota < 0 {
		quota = 0
	}

	var selected []entity.Question
	for _, topic := range topics {
		selected = append(selected, s.pick(pool[topic], quota)...)
	}

	s.shuffle(selected)
	return selected
}

// pick - частичный Фишер-Йетс по копии: первые n элементов равновероятны
func (s *Sampler) pick(items []entity.Question, n int) []entity.Question {
	if n > len(items) {
		n = len(items)
	}
	if n == 0 {
		return nil
	}

	buf := make([]entity.Question, len(items))
	copy(buf, items)
	for i := 0; i < n; i++ {
		j := i + s.rng.Intn(len(buf)-i)
		buf[i], buf[j] = buf[j], buf[i]
	}
	return buf[:n:n]
}

func (s *Sampler) shuffle(items []entity.Question) {
	for i := len(items) - 1; i > 0; i-- {
		j := s.rng.Intn(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}
