package assessment

import (
	"time"

	"github.com/teamsforge/frontquiz-api/internal/domain/entity"
)

// Значения по умолчанию
const (
	DefaultTotalDuration  = 900 * time.Second
	DefaultTickInterval   = time.Second
	DefaultQuotaPerTopic  = 7
	DefaultPoolCacheTTL   = 5 * time.Minute
	DefaultStorageKey     = "frontend-assessment"
	DefaultSnapshotTTL    = 7 * 24 * time.Hour
	defaultPersistTimeout = 2 * time.Second
)

// Screen - экран (состояние) сессии
type Screen string

const (
	ScreenWelcome    Screen = "welcome"
	ScreenLoading    Screen = "loading"
	ScreenAssessment Screen = "assessment"
	ScreenScoreboard Screen = "scoreboard"
	ScreenReview     Screen = "review"
)

// Config содержит настройки самопроверки
type Config struct {
	TotalDuration time.Duration  // Время на всю попытку
	TickInterval  time.Duration  // Шаг обратного отсчета
	Topics        []entity.Topic // Темы в порядке выборки
	QuotaPerTopic int            // Сколько вопросов брать из каждой темы
	PoolCacheTTL  time.Duration  // Время жизни кеша банка вопросов
	StorageKey    string         // Базовый ключ сохраненного состояния
	SnapshotTTL   time.Duration  // Время жизни сохраненного состояния
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		TotalDuration: DefaultTotalDuration,
		TickInterval:  DefaultTickInterval,
		Topics:        entity.DefaultTopics(),
		QuotaPerTopic: DefaultQuotaPerTopic,
		PoolCacheTTL:  DefaultPoolCacheTTL,
		StorageKey:    DefaultStorageKey,
		SnapshotTTL:   DefaultSnapshotTTL,
	}
}

// TotalSeconds возвращает длительность попытки в целых секундах
func (c *Config) TotalSeconds() int {
	return int(c.TotalDuration / time.Second)
}

// Pool - банк вопросов, сгруппированный по темам
type Pool map[entity.Topic][]entity.Question

// Size возвращает общее число вопросов в банке
func (p Pool) Size() int {
	n := 0
	for _, qs := range p {
		n += len(qs)
	}
	return n
}

// View - неизменяемая копия состояния сессии для клиентов
type View struct {
	Screen           Screen                 `json:"screen"`
	Questions        []entity.Question      `json:"questions"`
	Answers          []entity.UserAnswer    `json:"answers"`
	Score            entity.CompetencyScore `json:"competencyScore"`
	CurrentIndex     int                    `json:"currentQuestionIndex"`
	RemainingSeconds int                    `json:"timeRemaining"`
	StartedAt        *time.Time             `json:"startedAt,omitempty"`
	TotalQuestions   int                    `json:"totalQuestions"`
}

// CurrentQuestion возвращает текущий вопрос, если он есть
func (v View) CurrentQuestion() (entity.Question, bool) {
	if v.CurrentIndex < 0 || v.CurrentIndex >= len(v.Questions) {
		return entity.Question{}, false
	}
	return v.Questions[v.CurrentIndex], true
}

// Snapshot - сохраняемая проекция сессии. Экран и таймер сюда не входят.
type Snapshot struct {
	UserAnswers          []entity.UserAnswer    `json:"userAnswers"`
	CompetencyScore      entity.CompetencyScore `json:"competencyScore"`
	SelectedQuestions    []entity.Question      `json:"selectedQuestions"`
	CurrentQuestionIndex int                    `json:"currentQuestionIndex"`
}
