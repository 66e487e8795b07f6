package repository

import (
	"context"
	"time"

	"github.com/teamsforge/frontquiz-api/internal/domain/entity"
)

// AuthTokenRepository определяет методы для работы с одноразовыми токенами входа
type AuthTokenRepository interface {
	Create(ctx context.Context, token *entity.AuthToken) error
	GetByToken(ctx context.Context, token string) (*entity.AuthToken, error)
	// Consume атомарно удаляет токен и возвращает его содержимое
	Consume(ctx context.Context, token string) (*entity.AuthToken, error)
	// DeleteOlderThan удаляет токены, созданные раньше before
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}
