package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config хранит все настройки приложения
type Config struct {
	AppEnv     string           `mapstructure:"app_env"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Assessment AssessmentConfig `mapstructure:"assessment"`
	WebSocket  WebSocketConfig  `mapstructure:"websocket"`
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	ReadTimeout    int      `mapstructure:"read_timeout"`  // секунды
	WriteTimeout   int      `mapstructure:"write_timeout"` // секунды
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           string `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	DBName         string `mapstructure:"dbname"`
	SSLMode        string `mapstructure:"sslmode"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

// RedisConfig содержит унифицированные настройки подключения к Redis.
// Поддерживает режимы: single, sentinel, cluster
type RedisConfig struct {
	// Mode: "single", "sentinel" или "cluster". По умолчанию "single".
	Mode string `mapstructure:"mode"`

	// Addrs: список адресов (хост:порт). Для 'single' используется первый.
	Addrs []string `mapstructure:"addrs"`

	// Addr: адрес для режима 'single', если Addrs пуст.
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName: имя мастер-сервера (только для "sentinel")
	MasterName string `mapstructure:"master_name"`

	MaxRetries      int `mapstructure:"max_retries"`
	MinRetryBackoff int `mapstructure:"min_retry_backoff"` // миллисекунды
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"` // миллисекунды

	// KeyPrefix: префикс всех ключей кеша
	KeyPrefix string `mapstructure:"key_prefix"`
}

// JWTConfig содержит настройки JWT
type JWTConfig struct {
	Secret            string `mapstructure:"secret"`
	ExpirationHrs     int    `mapstructure:"expiration_hrs"`
	WSTicketExpirySec int    `mapstructure:"ws_ticket_expiry_sec"`
}

// TelegramConfig содержит настройки входа через Telegram
type TelegramConfig struct {
	BotToken    string `mapstructure:"bot_token"`
	Channel     string `mapstructure:"channel"`
	AppURL      string `mapstructure:"app_url"`      // куда бот ведет ссылку входа
	FrontendURL string `mapstructure:"frontend_url"` // куда перенаправляет вход через виджет
	BotEnabled  bool   `mapstructure:"bot_enabled"`
	PollTimeout int    `mapstructure:"poll_timeout"` // секунды
}

// AssessmentConfig содержит настройки самопроверки
type AssessmentConfig struct {
	DurationSec         int `mapstructure:"duration_sec"`
	QuotaPerTopic       int `mapstructure:"quota_per_topic"`
	PoolCacheTTLSec     int `mapstructure:"pool_cache_ttl_sec"`
	SnapshotTTLHrs      int `mapstructure:"snapshot_ttl_hrs"`
	IdleTimeoutMin      int `mapstructure:"idle_timeout_min"`
	EvictionIntervalMin int `mapstructure:"eviction_interval_min"`
}

// WebSocketConfig содержит настройки WebSocket
type WebSocketConfig struct {
	CleanupIntervalSec   int `mapstructure:"cleanup_interval_sec"`
	InactivityTimeoutSec int `mapstructure:"inactivity_timeout_sec"`
}

// PostgresConnectionString формирует строку подключения к PostgreSQL
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// IsDevelopment сообщает, запущено ли приложение в режиме разработки
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// BotActive сообщает, нужно ли запускать бота
func (t *TelegramConfig) BotActive() bool {
	return t.BotEnabled && t.BotToken != ""
}

// Duration возвращает длительность попытки
func (a *AssessmentConfig) Duration() time.Duration {
	return time.Duration(a.DurationSec) * time.Second
}

// PoolCacheTTL возвращает время жизни кеша банка вопросов
func (a *AssessmentConfig) PoolCacheTTL() time.Duration {
	return time.Duration(a.PoolCacheTTLSec) * time.Second
}

// SnapshotTTL возвращает время жизни сохраненного состояния
func (a *AssessmentConfig) SnapshotTTL() time.Duration {
	return time.Duration(a.SnapshotTTLHrs) * time.Hour
}

// LoadEnvFiles загружает .env и, для APP_ENV=development, .env.development.
// Уже заданные переменные окружения не перезаписываются. Отсутствующие файлы пропускаются.
func LoadEnvFiles() {
	files := []string{".env"}
	if os.Getenv("APP_ENV") == "development" {
		files = append([]string{".env.development"}, files...)
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				log.Printf("[Config] Не удалось прочитать %s: %v", f, err)
			}
			continue
		}
		log.Printf("[Config] Загружен %s", f)
	}
}

func setDefaults(vip *viper.Viper) {
	vip.SetDefault("app_env", "production")

	vip.SetDefault("server.port", "8200")
	vip.SetDefault("server.read_timeout", 15)
	vip.SetDefault("server.write_timeout", 15)
	vip.SetDefault("server.allowed_origins", []string{
		"https://frontend-learning-platform.vercel.app",
		"https://teamsforge.ru",
		"http://localhost:5173",
	})

	vip.SetDefault("database.port", "5432")
	vip.SetDefault("database.sslmode", "disable")
	vip.SetDefault("database.migrations_path", "migrations")

	vip.SetDefault("redis.mode", "single")
	vip.SetDefault("redis.key_prefix", "frontquiz:")

	vip.SetDefault("jwt.expiration_hrs", 24*7)
	vip.SetDefault("jwt.ws_ticket_expiry_sec", 60)

	vip.SetDefault("telegram.bot_enabled", true)
	vip.SetDefault("telegram.poll_timeout", 10)
	vip.SetDefault("telegram.app_url", "http://localhost:5173")
	vip.SetDefault("telegram.frontend_url", "http://localhost:5173")

	vip.SetDefault("assessment.duration_sec", 900)
	vip.SetDefault("assessment.quota_per_topic", 7)
	vip.SetDefault("assessment.pool_cache_ttl_sec", 300)
	vip.SetDefault("assessment.snapshot_ttl_hrs", 24*7)
	vip.SetDefault("assessment.idle_timeout_min", 120)
	vip.SetDefault("assessment.eviction_interval_min", 10)

	vip.SetDefault("websocket.cleanup_interval_sec", 60)
	vip.SetDefault("websocket.inactivity_timeout_sec", 300)
}

func bindEnv(vip *viper.Viper) {
	vip.BindEnv("app_env", "APP_ENV")

	// Server
	vip.BindEnv("server.port", "PORT")
	vip.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	vip.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")
	vip.BindEnv("server.allowed_origins", "ALLOWED_ORIGINS")

	// Database
	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")
	vip.BindEnv("database.migrations_path", "DATABASE_MIGRATIONS_PATH")

	// Redis
	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")
	vip.BindEnv("redis.key_prefix", "REDIS_KEY_PREFIX")

	// JWT
	vip.BindEnv("jwt.secret", "JWT_SECRET")
	vip.BindEnv("jwt.expiration_hrs", "JWT_EXPIRATION_HRS")
	vip.BindEnv("jwt.ws_ticket_expiry_sec", "JWT_WS_TICKET_EXPIRY_SEC")

	// Telegram
	vip.BindEnv("telegram.bot_token", "BOT_TOKEN")
	vip.BindEnv("telegram.channel", "CHANNEL_USERNAME")
	vip.BindEnv("telegram.app_url", "APP_URL")
	vip.BindEnv("telegram.frontend_url", "FRONTEND_URL")
	vip.BindEnv("telegram.bot_enabled", "BOT_ENABLED")

	// Assessment
	vip.BindEnv("assessment.duration_sec", "ASSESSMENT_DURATION_SEC")
	vip.BindEnv("assessment.quota_per_topic", "ASSESSMENT_QUOTA_PER_TOPIC")
	vip.BindEnv("assessment.pool_cache_ttl_sec", "ASSESSMENT_POOL_CACHE_TTL_SEC")
	vip.BindEnv("assessment.snapshot_ttl_hrs", "ASSESSMENT_SNAPSHOT_TTL_HRS")
}

// Load загружает конфигурацию из файла и переменных окружения
func Load(configPath string) (*Config, error) {
	vip := viper.New() // Отдельный экземпляр, без глобального состояния

	setDefaults(vip)
	bindEnv(vip)

	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
				log.Printf("[Config] Файл конфигурации '%s' не найден, используются переменные окружения и умолчания", configPath)
			} else {
				log.Printf("[Config] Предупреждение: не удалось прочитать файл конфигурации '%s': %v", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Списки из переменных окружения приходят одной строкой через запятую
	cfg.Server.AllowedOrigins = splitList(cfg.Server.AllowedOrigins)
	cfg.Redis.Addrs = splitList(cfg.Redis.Addrs)

	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Загруженные значения конфигурации ---")
		log.Printf("App Env: %s", cfg.AppEnv)
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("Allowed Origins: %v", cfg.Server.AllowedOrigins)
		log.Printf("Database Host: %s", cfg.Database.Host)
		log.Printf("Database Name: %s", cfg.Database.DBName)
		log.Printf("Redis Mode: %s", cfg.Redis.Mode)
		log.Printf("Redis Addr: %s %v", cfg.Redis.Addr, cfg.Redis.Addrs)
		log.Printf("JWT Expiration Hours: %d", cfg.JWT.ExpirationHrs)
		log.Printf("Telegram Bot Token Set: %t", cfg.Telegram.BotToken != "")
		log.Printf("Telegram Channel: %s", cfg.Telegram.Channel)
		log.Printf("Frontend URL: %s", cfg.Telegram.FrontendURL)
		log.Printf("Assessment: %ds, %d per topic", cfg.Assessment.DurationSec, cfg.Assessment.QuotaPerTopic)
		log.Printf("-----------------------------------------")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет обязательные параметры
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required in config (check JWT_SECRET env var)")
	}
	if c.Database.Host == "" || c.Database.DBName == "" || c.Database.User == "" {
		return fmt.Errorf("database configuration (host, dbname, user) is incomplete in config (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	if c.Assessment.DurationSec <= 0 {
		return fmt.Errorf("assessment duration must be positive, got %d", c.Assessment.DurationSec)
	}
	if c.Assessment.QuotaPerTopic <= 0 {
		return fmt.Errorf("assessment quota per topic must be positive, got %d", c.Assessment.QuotaPerTopic)
	}
	if c.Telegram.BotActive() && c.Telegram.Channel == "" {
		return fmt.Errorf("telegram channel is required when the bot is enabled (check CHANNEL_USERNAME env var)")
	}
	if !c.IsDevelopment() && c.Database.Password == "" {
		return fmt.Errorf("database password is required outside development (check DATABASE_PASSWORD env var)")
	}
	return nil
}

// splitList разворачивает элементы вида "a,b" в отдельные значения
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
