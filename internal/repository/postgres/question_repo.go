package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/teamsforge/frontquiz-api/internal/domain/entity"
	apperrors "github.com/teamsforge/frontquiz-api/internal/pkg/errors"
)

// QuestionRepo реализует repository.QuestionRepository
type QuestionRepo struct {
	db *gorm.DB
}

// NewQuestionRepo создает новый репозиторий вопросов
func NewQuestionRepo(db *gorm.DB) *QuestionRepo {
	return &QuestionRepo{db: db}
}

// ListAll возвращает весь банк вопросов
func (r *QuestionRepo) ListAll(ctx context.Context) ([]entity.Question, error) {
	var questions []entity.Question
	err := r.db.WithContext(ctx).Order("topic, sequence_id").Find(&questions).Error
	if err != nil {
		return nil, err
	}
	return questions, nil
}

// UpsertBatch вставляет вопросы, обновляя существующие по (topic, sequence_id)
func (r *QuestionRepo) UpsertBatch(ctx context.Context, questions []entity.Question) error {
	if len(questions) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "topic"}, {Name: "sequence_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"prompt", "choices", "correct_index", "rationale", "updated_at"}),
		}).Create(&questions).Error
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: duplicate question id in batch", apperrors.ErrConflict)
			}
			return err
		}
		return nil
	})
}

// CountByTopic возвращает количество вопросов по каждой теме
func (r *QuestionRepo) CountByTopic(ctx context.Context) (map[entity.Topic]int64, error) {
	var rows []struct {
		Topic entity.Topic
		Count int64
	}
	err := r.db.WithContext(ctx).Model(&entity.Question{}).
		Select("topic, COUNT(*) AS count").
		Group("topic").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[entity.Topic]int64, len(rows))
	for _, row := range rows {
		counts[row.Topic] = row.Count
	}
	return counts, nil
}
