package repository

import (
	"context"

	"github.com/teamsforge/frontquiz-api/internal/domain/entity"
)

// QuestionRepository определяет методы для работы с банком вопросов
type QuestionRepository interface {
	// ListAll возвращает весь банк вопросов одним запросом
	ListAll(ctx context.Context) ([]entity.Question, error)
	// UpsertBatch вставляет или обновляет вопросы по паре (topic, sequence_id)
	UpsertBatch(ctx context.Context, questions []entity.Question) error
	CountByTopic(ctx context.Context) (map[entity.Topic]int64, error)
}
