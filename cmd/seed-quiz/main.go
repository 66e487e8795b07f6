package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/teamsforge/frontquiz-api/internal/config"
	pgRepo "github.com/teamsforge/frontquiz-api/internal/repository/postgres"
	redisRepo "github.com/teamsforge/frontquiz-api/internal/repository/redis"
	"github.com/teamsforge/frontquiz-api/internal/seed"
	"github.com/teamsforge/frontquiz-api/pkg/database"
)

func main() {
	file := flag.String("file", "data/quiz.yaml", "путь к YAML-файлу банка вопросов")
	dryRun := flag.Bool("dry-run", false, "только проверить файл, не записывая в базу")
	flag.Parse()

	f, err := os.Open(*file)
	if err != nil {
		log.Fatalf("Не удалось открыть %s: %v", *file, err)
	}
	defer f.Close()

	questions, err := seed.ParseQuiz(f)
	if err != nil {
		log.Fatalf("Файл %s не прошел проверку: %v", *file, err)
	}
	for topic, n := range seed.CountByTopic(questions) {
		log.Printf("Тема %s: %d вопрос(ов)", topic, n)
	}
	if *dryRun {
		log.Println("Проверка пройдена, запись пропущена (-dry-run)")
		return
	}

	config.LoadEnvFiles()
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString(), false)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.MigrateDB(db, cfg.Database.MigrationsPath); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	repo := pgRepo.NewQuestionRepo(db)
	if err := repo.UpsertBatch(ctx, questions); err != nil {
		log.Fatalf("Ошибка загрузки вопросов: %v", err)
	}

	counts, err := repo.CountByTopic(ctx)
	if err != nil {
		log.Fatalf("Ошибка подсчета вопросов: %v", err)
	}
	log.Printf("Загружено %d вопрос(ов). В банке сейчас: %v", len(questions), counts)

	notifyPoolRefresh(ctx, cfg)
}

// notifyPoolRefresh просит запущенные экземпляры API сбросить кеш банка вопросов.
// Без Redis новые вопросы появятся после истечения TTL кеша.
func notifyPoolRefresh(ctx context.Context, cfg *config.Config) {
	client, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Warning: Redis недоступен, кеш банка обновится по TTL: %v", err)
		return
	}
	defer client.Close()

	events, err := redisRepo.NewPoolEvents(client, cfg.Redis.KeyPrefix)
	if err == nil {
		err = events.PublishRefresh(ctx)
	}
	if err != nil {
		log.Printf("Warning: не удалось отправить сигнал обновления: %v", err)
	}
}
