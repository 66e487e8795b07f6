package redis

import (
	"context"
	"fmt"
	"log"

	"github.com/go-redis/redis/v8"
)

const poolRefreshChannel = "quiz:pool:refresh"

// PoolEvents передает между процессами сигнал об обновлении банка вопросов.
// cmd/seed-quiz публикует его после загрузки, API сбрасывает кеш банка.
type PoolEvents struct {
	client  redis.UniversalClient
	channel string
}

// NewPoolEvents создает канал событий банка вопросов с тем же префиксом, что и кеш
func NewPoolEvents(client redis.UniversalClient, keyPrefix string) (*PoolEvents, error) {
	if client == nil {
		return nil, fmt.Errorf("Redis client cannot be nil for PoolEvents")
	}
	return &PoolEvents{client: client, channel: prefixedKey(keyPrefix, poolRefreshChannel)}, nil
}

// Channel возвращает имя канала Redis
func (e *PoolEvents) Channel() string { return e.channel }

// PublishRefresh сообщает подписчикам, что банк вопросов изменился
func (e *PoolEvents) PublishRefresh(ctx context.Context) error {
	receivers, err := e.client.Publish(ctx, e.channel, "refresh").Result()
	if err != nil {
		return fmt.Errorf("publish %s: %w", e.channel, err)
	}
	log.Printf("[PoolEvents] Сигнал обновления банка отправлен, получателей: %d", receivers)
	return nil
}

// ListenRefresh подписывается на канал и вызывает onRefresh на каждое сообщение
// до отмены ctx. Возвращает ошибку, если подписка не подтверждена.
func (e *PoolEvents) ListenRefresh(ctx context.Context, onRefresh func()) error {
	sub := e.client.Subscribe(ctx, e.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", e.channel, err)
	}
	log.Printf("[PoolEvents] Подписка на %s", e.channel)

	go func() {
		defer sub.Close()
		relayRefresh(ctx, sub.Channel(), onRefresh)
	}()
	return nil
}

func relayRefresh(ctx context.Context, messages <-chan *redis.Message, onRefresh func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				log.Println("[PoolEvents] Канал подписки закрыт")
				return
			}
			log.Printf("[PoolEvents] Получен сигнал %q, кеш банка сброшен", msg.Payload)
			onRefresh()
		}
	}
}
