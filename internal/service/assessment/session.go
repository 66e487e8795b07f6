package assessment

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/teamsforge/frontquiz-api/internal/domain/entity"
)

// PoolSource - источник банка вопросов для сессии (PoolLoader)
type PoolSource interface {
	LoadPool(ctx context.Context) (Pool, error)
}

// Dependencies содержит зависимости сессии
type Dependencies struct {
	Loader    PoolSource
	Sampler   *Sampler
	Persister *Persister // может быть nil
	Clock     Clock
}

// Действия, о которых сообщают события сессии
const (
	ActionLoading    = "loading"
	ActionStarted    = "started"
	ActionStartFail  = "start_failed"
	ActionAnswered   = "answered"
	ActionCompleted  = "completed"
	ActionFinished   = "finished"
	ActionTimeout    = "timeout"
	ActionTick       = "tick"
	ActionReview     = "review"
	ActionScoreboard = "scoreboard"
	ActionReset      = "reset"
	ActionRestored   = "restored"
)

// ChangeEvent - уведомление об изменении сессии
type ChangeEvent struct {
	Action string `json:"action"`
	View   View   `json:"state"`
}

// Listener получает события сессии. Вызывается вне блокировки сессии.
type Listener func(ChangeEvent)

// Session - сессия самопроверки одного пользователя.
// Все обработчики (действия пользователя и тики таймера) выполняются под mu.
type Session struct {
	key        string
	storageKey string
	cfg        *Config
	deps       *Dependencies

	mu           sync.Mutex
	screen       Screen
	questions    []entity.Question
	answers      []entity.UserAnswer
	score        entity.CompetencyScore
	currentIndex int
	remaining    int
	startedAt    time.Time

	// epoch меняется при каждой остановке таймера; тик старой эпохи игнорируется
	epoch uint64
	// attempt меняется при каждом запуске и сбросе; устаревшая загрузка отбрасывается
	attempt       uint64
	stopCountdown context.CancelFunc
	// saveSeq нумерует записи в хранилище; берется под mu
	saveSeq uint64

	// persistMu упорядочивает записи в хранилище; запись с номером не больше
	// appliedSeq уже устарела и пропускается
	persistMu  sync.Mutex
	appliedSeq uint64

	listenersMu  sync.Mutex
	listeners    map[int]Listener
	nextListener int
}

// NewSession создает сессию в состоянии welcome
func NewSession(key string, cfg *Config, deps *Dependencies) *Session {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	d := *deps
	if d.Clock == nil {
		d.Clock = RealClock()
	}
	if d.Sampler == nil {
		d.Sampler = NewSampler(nil)
	}
	s := &Session{
		key:        key,
		storageKey: cfg.StorageKey + ":" + key,
		cfg:        cfg,
		deps:       &d,
		listeners:  make(map[int]Listener),
	}
	s.resetFieldsLocked()
	return s
}

// Subscribe регистрирует слушателя; возвращает функцию отписки
func (s *Session) Subscribe(fn Listener) func() {
	s.listenersMu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

// State возвращает копию текущего состояния
func (s *Session) State() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Start запускает новую попытку: welcome|scoreboard -> loading -> assessment.
// При ошибке загрузки или пустой выборке сессия возвращается в welcome.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.screen != ScreenWelcome && s.screen != ScreenScoreboard {
		screen := s.screen
		s.mu.Unlock()
		log.Printf("[Assessment] %s: запуск недоступен на экране %s", s.key, screen)
		return invalidState("start", screen)
	}
	s.haltCountdownLocked()
	s.attempt++
	attempt := s.attempt
	s.screen = ScreenLoading
	view := s.viewLocked()
	s.mu.Unlock()
	s.notify(ActionLoading, view)

	pool, err := s.deps.Loader.LoadPool(ctx)
	var sampled []entity.Question
	if err == nil {
		sampled = s.deps.Sampler.Sample(pool, s.cfg.Topics, s.cfg.QuotaPerTopic)
	} else if !errors.Is(err, ErrFetch) {
		err = &FetchError{Reason: "load failed", Err: err}
	}

	s.mu.Lock()
	if s.screen != ScreenLoading || s.attempt != attempt {
		s.mu.Unlock()
		log.Printf("[Assessment] %s: результат загрузки попытки #%d отброшен", s.key, attempt)
		return ErrStaleAttempt
	}

	if err != nil || len(sampled) == 0 {
		if err == nil {
			err = ErrEmptyPool
		}
		s.screen = ScreenWelcome
		view = s.viewLocked()
		s.mu.Unlock()
		log.Printf("[Assessment] %s: попытка не запущена: %v", s.key, err)
		s.notify(ActionStartFail, view)
		return err
	}

	s.questions = sampled
	s.answers = nil
	s.score = entity.NewCompetencyScore(s.cfg.Topics)
	s.currentIndex = 0
	s.remaining = s.cfg.TotalSeconds()
	s.startedAt = s.deps.Clock.Now()
	s.screen = ScreenAssessment
	s.startCountdownLocked()
	seq, snap := s.snapshotLocked()
	view = s.viewLocked()
	s.mu.Unlock()

	log.Printf("[Assessment] %s: попытка #%d начата, вопросов: %d", s.key, attempt, len(sampled))
	s.persist(ctx, seq, snap)
	s.notify(ActionStarted, view)
	return nil
}

// SubmitAnswer записывает ответ на текущий вопрос и переходит к следующему.
// После последнего вопроса сессия переходит в scoreboard.
func (s *Session) SubmitAnswer(ctx context.Context, selectedIndex int) (entity.UserAnswer, error) {
	s.mu.Lock()
	if s.screen != ScreenAssessment || s.currentIndex >= len(s.questions) || s.startedAt.IsZero() {
		screen := s.screen
		s.mu.Unlock()
		log.Printf("[Assessment] %s: ответ отклонен, нет текущего вопроса (экран %s)", s.key, screen)
		return entity.UserAnswer{}, invalidState("submit answer", screen)
	}

	q := s.questions[s.currentIndex]
	if !q.IsValidOption(selectedIndex) {
		s.mu.Unlock()
		return entity.UserAnswer{}, ErrInvalidOption
	}

	elapsed := int(s.deps.Clock.Now().Sub(s.startedAt) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	answer := entity.UserAnswer{
		QuestionID:     q.ID,
		SelectedIndex:  selectedIndex,
		IsCorrect:      q.IsCorrect(selectedIndex),
		ElapsedSeconds: elapsed,
	}
	s.answers = append(s.answers, answer)
	s.score.Record(q.Topic, answer.IsCorrect)
	s.currentIndex++

	action := ActionAnswered
	if s.currentIndex >= len(s.questions) {
		s.haltCountdownLocked()
		s.screen = ScreenScoreboard
		action = ActionCompleted
	}
	seq, snap := s.snapshotLocked()
	view := s.viewLocked()
	s.mu.Unlock()

	s.persist(ctx, seq, snap)
	s.notify(action, view)
	return answer, nil
}

// Finish досрочно завершает попытку
func (s *Session) Finish() error {
	s.mu.Lock()
	if s.screen != ScreenAssessment {
		screen := s.screen
		s.mu.Unlock()
		log.Printf("[Assessment] %s: завершение недоступно на экране %s", s.key, screen)
		return invalidState("finish", screen)
	}
	s.haltCountdownLocked()
	s.screen = ScreenScoreboard
	view := s.viewLocked()
	s.mu.Unlock()

	s.notify(ActionFinished, view)
	return nil
}

// NavigateToReview открывает разбор ответов
func (s *Session) NavigateToReview() error {
	return s.navigate(ScreenReview, ActionReview)
}

// NavigateToScoreboard возвращает к результатам
func (s *Session) NavigateToScoreboard() error {
	return s.navigate(ScreenScoreboard, ActionScoreboard)
}

func (s *Session) navigate(target Screen, action string) error {
	s.mu.Lock()
	if s.screen != ScreenScoreboard && s.screen != ScreenReview {
		screen := s.screen
		s.mu.Unlock()
		log.Printf("[Assessment] %s: переход на %s недоступен с экрана %s", s.key, target, screen)
		return invalidState("navigate to "+string(target), screen)
	}
	s.screen = target
	view := s.viewLocked()
	s.mu.Unlock()

	s.notify(action, view)
	return nil
}

// Reset останавливает таймер, возвращает сессию в исходное состояние
// и удаляет сохраненный снимок. Допустим из любого состояния.
func (s *Session) Reset(ctx context.Context) {
	s.mu.Lock()
	s.haltCountdownLocked()
	s.attempt++
	s.resetFieldsLocked()
	s.saveSeq++
	seq := s.saveSeq
	view := s.viewLocked()
	s.mu.Unlock()

	s.clearPersisted(ctx, seq)
	s.notify(ActionReset, view)
}

// Restore поднимает сохраненный снимок в сессию, находящуюся в welcome.
// Экран и таймер не восстанавливаются.
func (s *Session) Restore(ctx context.Context) bool {
	if s.deps.Persister == nil {
		return false
	}
	snap, ok := s.deps.Persister.Load(ctx, s.storageKey)
	if !ok || !snapshotConsistent(snap) {
		return false
	}

	s.mu.Lock()
	if s.screen != ScreenWelcome || len(s.questions) > 0 {
		s.mu.Unlock()
		return false
	}
	s.questions = snap.SelectedQuestions
	s.answers = snap.UserAnswers
	s.score = entity.NewCompetencyScore(s.cfg.Topics)
	for topic, ts := range snap.CompetencyScore {
		s.score[topic] = ts
	}
	s.currentIndex = snap.CurrentQuestionIndex
	view := s.viewLocked()
	s.mu.Unlock()

	log.Printf("[Assessment] %s: восстановлено %d ответов из %d вопросов", s.key, len(snap.UserAnswers), len(snap.SelectedQuestions))
	s.notify(ActionRestored, view)
	return true
}

// Close останавливает таймер сессии
func (s *Session) Close() {
	s.mu.Lock()
	s.haltCountdownLocked()
	s.mu.Unlock()
}

// Report возвращает сводку по записанным ответам
func (s *Session) Report() Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return BuildReport(s.answers, s.score, s.cfg.Topics)
}

// Review возвращает разбор записанных ответов
func (s *Session) Review() []ReviewEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return BuildReview(s.questions, s.answers)
}

// startCountdownLocked запускает единственный таймер текущей эпохи
func (s *Session) startCountdownLocked() {
	s.haltCountdownLocked()
	epoch := s.epoch

	ctx, cancel := context.WithCancel(context.Background())
	s.stopCountdown = cancel
	ticker := s.deps.Clock.NewTicker(s.cfg.TickInterval)
	go s.runCountdown(ctx, ticker, epoch)
}

// haltCountdownLocked отменяет таймер и делает недействительными его тики
func (s *Session) haltCountdownLocked() {
	if s.stopCountdown != nil {
		s.stopCountdown()
		s.stopCountdown = nil
	}
	s.epoch++
}

func (s *Session) runCountdown(ctx context.Context, ticker Ticker, epoch uint64) {
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if !s.onTick(epoch) {
				return
			}
		}
	}
}

// onTick уменьшает оставшееся время. Возвращает false, если таймер должен остановиться.
func (s *Session) onTick(epoch uint64) bool {
	s.mu.Lock()
	if epoch != s.epoch || s.screen != ScreenAssessment {
		s.mu.Unlock()
		return false
	}

	s.remaining--
	if s.remaining > 0 {
		view := s.viewLocked()
		s.mu.Unlock()
		s.notify(ActionTick, view)
		return true
	}

	s.remaining = 0
	s.haltCountdownLocked()
	s.screen = ScreenScoreboard
	answered := len(s.answers)
	view := s.viewLocked()
	s.mu.Unlock()

	log.Printf("[Assessment] %s: время вышло, отвечено %d", s.key, answered)
	s.notify(ActionTimeout, view)
	return false
}

func (s *Session) resetFieldsLocked() {
	s.screen = ScreenWelcome
	s.questions = nil
	s.answers = nil
	s.score = entity.NewCompetencyScore(s.cfg.Topics)
	s.currentIndex = 0
	s.remaining = s.cfg.TotalSeconds()
	s.startedAt = time.Time{}
}

func (s *Session) viewLocked() View {
	v := View{
		Screen:           s.screen,
		Questions:        append([]entity.Question(nil), s.questions...),
		Answers:          append([]entity.UserAnswer(nil), s.answers...),
		Score:            s.score.Clone(),
		CurrentIndex:     s.currentIndex,
		RemainingSeconds: s.remaining,
		TotalQuestions:   len(s.questions),
	}
	if !s.startedAt.IsZero() {
		started := s.startedAt
		v.StartedAt = &started
	}
	return v
}

// snapshotLocked возвращает проекцию для сохранения и ее порядковый номер
func (s *Session) snapshotLocked() (uint64, Snapshot) {
	s.saveSeq++
	return s.saveSeq, Snapshot{
		UserAnswers:          append([]entity.UserAnswer(nil), s.answers...),
		CompetencyScore:      s.score.Clone(),
		SelectedQuestions:    append([]entity.Question(nil), s.questions...),
		CurrentQuestionIndex: s.currentIndex,
	}
}

func (s *Session) persist(ctx context.Context, seq uint64, snap Snapshot) {
	if s.deps.Persister == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if seq <= s.appliedSeq {
		log.Printf("[Assessment] %s: устаревшая запись #%d пропущена", s.key, seq)
		return
	}
	s.appliedSeq = seq
	s.deps.Persister.Save(context.WithoutCancel(ctx), s.storageKey, snap)
}

func (s *Session) clearPersisted(ctx context.Context, seq uint64) {
	if s.deps.Persister == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if seq <= s.appliedSeq {
		return
	}
	s.appliedSeq = seq
	s.deps.Persister.Clear(context.WithoutCancel(ctx), s.storageKey)
}

func (s *Session) notify(action string, view View) {
	s.listenersMu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.listenersMu.Unlock()

	event := ChangeEvent{Action: action, View: view}
	for _, fn := range listeners {
		fn(event)
	}
}

// snapshotConsistent отбрасывает снимки, нарушающие инварианты сессии
func snapshotConsistent(snap *Snapshot) bool {
	if snap == nil {
		return false
	}
	n := len(snap.SelectedQuestions)
	if snap.CurrentQuestionIndex < 0 || snap.CurrentQuestionIndex > n || len(snap.UserAnswers) > n {
		return false
	}
	total := 0
	for _, ts := range snap.CompetencyScore {
		if ts.Correct > ts.Total {
			return false
		}
		total += ts.Total
	}
	return total == len(snap.UserAnswers)
}
