package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	apperrors "github.com/teamsforge/frontquiz-api/internal/pkg/errors"
)

// CacheRepo реализует repository.CacheRepository поверх Redis
type CacheRepo struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewCacheRepo создает новый репозиторий кеша. Все ключи получают префикс keyPrefix.
func NewCacheRepo(client redis.UniversalClient, keyPrefix string) (*CacheRepo, error) {
	if client == nil {
		return nil, fmt.Errorf("Redis client cannot be nil for CacheRepo")
	}
	return &CacheRepo{
		client:    client,
		keyPrefix: keyPrefix,
	}, nil
}

func (r *CacheRepo) key(k string) string {
	return prefixedKey(r.keyPrefix, k)
}

func prefixedKey(prefix, k string) string {
	if prefix == "" {
		return k
	}
	return prefix + ":" + k
}

// Delete удаляет значение из кеша
func (r *CacheRepo) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

// SetJSON сериализует value в JSON и сохраняет в кеше
func (r *CacheRepo) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return r.client.Set(ctx, r.key(key), data, expiration).Err()
}

// GetJSON получает JSON из кеша и разбирает его в dest
func (r *CacheRepo) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return apperrors.ErrNotFound
		}
		return err
	}
	return json.Unmarshal(data, dest)
}
