package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/teamsforge/frontquiz-api/internal/domain/entity"
	apperrors "github.com/teamsforge/frontquiz-api/internal/pkg/errors"
)

// LessonRepo реализует repository.LessonRepository и repository.ProgressRepository
type LessonRepo struct {
	db *gorm.DB
}

// NewLessonRepo создает новый репозиторий уроков
func NewLessonRepo(db *gorm.DB) *LessonRepo {
	return &LessonRepo{db: db}
}

// List возвращает уроки, опционально отфильтрованные по категории
func (r *LessonRepo) List(ctx context.Context, category *entity.LessonCategory) ([]entity.Lesson, error) {
	var lessons []entity.Lesson
	query := r.db.WithContext(ctx).Order("id")
	if category != nil {
		query = query.Where("category = ?", *category)
	}
	if err := query.Find(&lessons).Error; err != nil {
		return nil, err
	}
	return lessons, nil
}

// GetByID возвращает урок по ID
func (r *LessonRepo) GetByID(ctx context.Context, id uint) (*entity.Lesson, error) {
	var lesson entity.Lesson
	err := r.db.WithContext(ctx).First(&lesson, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &lesson, nil
}

// ListByUser возвращает отметки прохождения пользователя
func (r *LessonRepo) ListByUser(ctx context.Context, telegramID int64) ([]entity.UserProgress, error) {
	var progress []entity.UserProgress
	err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).Find(&progress).Error
	if err != nil {
		return nil, err
	}
	return progress, nil
}

// Upsert создает или обновляет отметку по (telegram_id, lesson_id)
func (r *LessonRepo) Upsert(ctx context.Context, progress *entity.UserProgress) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "telegram_id"}, {Name: "lesson_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"category", "completed", "updated_at"}),
	}).Create(progress).Error
}
