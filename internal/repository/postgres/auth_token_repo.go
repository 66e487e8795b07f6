package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/teamsforge/frontquiz-api/internal/domain/entity"
	apperrors "github.com/teamsforge/frontquiz-api/internal/pkg/errors"
)

// AuthTokenRepo реализует repository.AuthTokenRepository
type AuthTokenRepo struct {
	db *gorm.DB
}

// NewAuthTokenRepo создает новый репозиторий токенов входа
func NewAuthTokenRepo(db *gorm.DB) *AuthTokenRepo {
	return &AuthTokenRepo{db: db}
}

// Create сохраняет новый токен
func (r *AuthTokenRepo) Create(ctx context.Context, token *entity.AuthToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: auth token already exists", apperrors.ErrConflict)
		}
		return err
	}
	return nil
}

// GetByToken возвращает токен без его удаления
func (r *AuthTokenRepo) GetByToken(ctx context.Context, token string) (*entity.AuthToken, error) {
	var t entity.AuthToken
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Consume удаляет токен и возвращает удаленную запись (DELETE ... RETURNING)
func (r *AuthTokenRepo) Consume(ctx context.Context, token string) (*entity.AuthToken, error) {
	var deleted []entity.AuthToken
	result := r.db.WithContext(ctx).
		Clauses(clause.Returning{}).
		Where("token = ?", token).
		Delete(&deleted)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 || len(deleted) == 0 {
		return nil, apperrors.ErrNotFound
	}
	return &deleted[0], nil
}

// DeleteOlderThan удаляет просроченные токены
func (r *AuthTokenRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("created_at < ?", before).Delete(&entity.AuthToken{})
	return result.RowsAffected, result.Error
}
