package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/teamsforge/frontquiz-api/internal/config"
)

const (
	redisModeSingle   = "single"
	redisModeSentinel = "sentinel"
	redisModeCluster  = "cluster"

	redisPingTimeout = 5 * time.Second
)

// NewUniversalRedisClient подключается к Redis в режиме single, sentinel или cluster
// и проверяет соединение. Клиент обслуживает снимки сессий, кеш уроков,
// лимиты запросов и сигналы обновления банка вопросов.
func NewUniversalRedisClient(cfg config.RedisConfig) (redis.UniversalClient, error) {
	mode, opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}

	var client redis.UniversalClient
	if mode == redisModeCluster {
		// UniversalClient выбирает кластер только при нескольких адресах
		client = redis.NewClusterClient(opts.Cluster())
	} else {
		client = redis.NewUniversalClient(opts)
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s %v: ping failed: %w", mode, opts.Addrs, err)
	}

	log.Printf("[Redis] Подключено: режим %s, адреса %v, db %d", mode, opts.Addrs, cfg.DB)
	return client, nil
}

// redisOptions проверяет конфигурацию и собирает параметры клиента
func redisOptions(cfg config.RedisConfig) (string, *redis.UniversalOptions, error) {
	addrs := cfg.Addrs
	if len(addrs) == 0 && cfg.Addr != "" {
		addrs = []string{cfg.Addr}
	}
	if len(addrs) == 0 {
		return "", nil, fmt.Errorf("redis: addr or addrs is required")
	}

	mode := cfg.Mode
	if mode == "" {
		mode = redisModeSingle
	}

	opts := &redis.UniversalOptions{
		Addrs:           addrs,
		Password:        cfg.Password,
		DB:              cfg.DB,
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: time.Duration(cfg.MinRetryBackoff) * time.Millisecond,
		MaxRetryBackoff: time.Duration(cfg.MaxRetryBackoff) * time.Millisecond,
	}

	switch mode {
	case redisModeSingle:
		opts.Addrs = addrs[:1]
	case redisModeSentinel:
		if cfg.MasterName == "" {
			return "", nil, fmt.Errorf("redis: sentinel mode requires master_name")
		}
		opts.MasterName = cfg.MasterName
	case redisModeCluster:
		if cfg.DB != 0 {
			return "", nil, fmt.Errorf("redis: cluster mode supports only db 0")
		}
	default:
		return "", nil, fmt.Errorf("redis: unsupported mode %q", mode)
	}
	return mode, opts, nil
}
