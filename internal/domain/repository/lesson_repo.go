package repository

import (
	"context"

	"github.com/teamsforge/frontquiz-api/internal/domain/entity"
)

// LessonRepository определяет методы для работы с каталогом уроков
type LessonRepository interface {
	List(ctx context.Context, category *entity.LessonCategory) ([]entity.Lesson, error)
	GetByID(ctx context.Context, id uint) (*entity.Lesson, error)
}

// ProgressRepository определяет методы для отметок о прохождении уроков
type ProgressRepository interface {
	ListByUser(ctx context.Context, telegramID int64) ([]entity.UserProgress, error)
	Upsert(ctx context.Context, progress *entity.UserProgress) error
}
