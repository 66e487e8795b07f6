package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/teamsforge/frontquiz-api/internal/domain/entity"
	"github.com/teamsforge/frontquiz-api/internal/domain/repository"
	apperrors "github.com/teamsforge/frontquiz-api/internal/pkg/errors"
)

// Фильтры по статусу прохождения
const (
	LessonStatusAll          = "all"
	LessonStatusCompleted    = "completed"
	LessonStatusNotCompleted = "not_completed"
)

const (
	lessonCatalogCacheKey = "lessons:catalog"
	lessonCatalogCacheTTL = 10 * time.Minute
)

// LessonPreview - краткое описание урока для каталога
type LessonPreview struct {
	ID         uint                  `json:"id"`
	Category   entity.LessonCategory `json:"category"`
	Title      string                `json:"title"`
	Motivation string                `json:"motivation"`
	Completed  bool                  `json:"completed"`
}

// LessonDetails - урок целиком с отметкой пользователя
type LessonDetails struct {
	entity.Lesson
	Completed bool `json:"completed"`
}

// LessonService управляет каталогом уроков и прогрессом пользователей
type LessonService struct {
	lessons  repository.LessonRepository
	progress repository.ProgressRepository
	cache    repository.CacheRepository
}

// NewLessonService создает сервис уроков. Кеш необязателен.
func NewLessonService(lessons repository.LessonRepository, progress repository.ProgressRepository, cache repository.CacheRepository) (*LessonService, error) {
	if lessons == nil || progress == nil {
		return nil, errors.New("lesson and progress repositories are required")
	}
	return &LessonService{lessons: lessons, progress: progress, cache: cache}, nil
}

// ListLessons возвращает превью уроков. telegramID == 0 означает анонимного пользователя,
// для которого все уроки считаются непройденными.
func (s *LessonService) ListLessons(ctx context.Context, category, status string, telegramID int64) ([]LessonPreview, error) {
	switch status {
	case "", LessonStatusAll, LessonStatusCompleted, LessonStatusNotCompleted:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", apperrors.ErrValidation, status)
	}

	var filter *entity.LessonCategory
	if category != "" {
		c, err := entity.ParseLessonCategory(category)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
		}
		filter = &c
	}

	lessons, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}

	completed, err := s.completedSet(ctx, telegramID)
	if err != nil {
		return nil, err
	}

	previews := make([]LessonPreview, 0, len(lessons))
	for _, l := range lessons {
		if filter != nil && l.Category != *filter {
			continue
		}
		done := completed[l.ID]
		if status == LessonStatusCompleted && !done {
			continue
		}
		if status == LessonStatusNotCompleted && done {
			continue
		}
		previews = append(previews, LessonPreview{
			ID:         l.ID,
			Category:   l.Category,
			Title:      l.Title,
			Motivation: l.Motivation,
			Completed:  done,
		})
	}
	return previews, nil
}

// GetLesson возвращает урок с блоками
func (s *LessonService) GetLesson(ctx context.Context, id uint, telegramID int64) (*LessonDetails, error) {
	lesson, err := s.lessons.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := lesson.ValidateBlocks(); err != nil {
		log.Printf("[LessonService] Урок %d содержит некорректные блоки: %v", id, err)
		return nil, err
	}

	completed, err := s.completedSet(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	return &LessonDetails{Lesson: *lesson, Completed: completed[lesson.ID]}, nil
}

// SetCompleted сохраняет отметку о прохождении урока
func (s *LessonService) SetCompleted(ctx context.Context, telegramID int64, lessonID uint, completed bool) error {
	if telegramID == 0 {
		return apperrors.ErrUnauthorized
	}
	lesson, err := s.lessons.GetByID(ctx, lessonID)
	if err != nil {
		return err
	}

	err = s.progress.Upsert(ctx, &entity.UserProgress{
		TelegramID: telegramID,
		LessonID:   lesson.ID,
		Category:   lesson.Category,
		Completed:  completed,
		UpdatedAt:  time.Now(),
	})
	if err != nil {
		log.Printf("[LessonService] Ошибка сохранения прогресса telegram_id=%d lesson=%d: %v", telegramID, lessonID, err)
		return err
	}
	log.Printf("[LessonService] Прогресс сохранен: telegram_id=%d lesson=%d completed=%t", telegramID, lessonID, completed)
	return nil
}

// catalog возвращает все уроки, по возможности из кеша
func (s *LessonService) catalog(ctx context.Context) ([]entity.Lesson, error) {
	if s.cache != nil {
		var cached []entity.Lesson
		if err := s.cache.GetJSON(ctx, lessonCatalogCacheKey, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[LessonService] Кеш каталога недоступен: %v", err)
		}
	}

	lessons, err := s.lessons.List(ctx, nil)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, lessonCatalogCacheKey, lessons, lessonCatalogCacheTTL); err != nil {
			log.Printf("[LessonService] Не удалось закешировать каталог: %v", err)
		}
	}
	return lessons, nil
}

func (s *LessonService) completedSet(ctx context.Context, telegramID int64) (map[uint]bool, error) {
	set := make(map[uint]bool)
	if telegramID == 0 {
		return set, nil
	}
	progress, err := s.progress.ListByUser(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	for _, p := range progress {
		if p.Completed {
			set[p.LessonID] = true
		}
	}
	return set, nil
}
