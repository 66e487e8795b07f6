package main

import (
	"database/sql"
	"errors"
	"flag"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/teamsforge/frontquiz-api/internal/config"
)

// Утилита обслуживания схемы: откат, принудительная версия после сбоя, просмотр версии.
func main() {
	force := flag.Int("force", -1, "принудительно выставить версию (снимает dirty-состояние)")
	down := flag.Int("down", 0, "откатить указанное число миграций")
	up := flag.Bool("up", false, "применить все новые миграции")
	flag.Parse()

	config.LoadEnvFiles()
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("База недоступна: %v", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatal(err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+cfg.Database.MigrationsPath, "postgres", driver)
	if err != nil {
		log.Fatal(err)
	}

	switch {
	case *force >= 0:
		log.Printf("Принудительно выставляем версию %d...", *force)
		if err := m.Force(*force); err != nil {
			log.Fatalf("Failed to force version: %v", err)
		}
	case *down > 0:
		log.Printf("Откатываем %d миграци(й)...", *down)
		if err := m.Steps(-*down); err != nil {
			log.Fatalf("Failed to roll back: %v", err)
		}
	case *up:
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("Failed to migrate up: %v", err)
		}
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		log.Println("Миграции еще не применялись")
		return
	}
	if err != nil {
		log.Fatalf("Failed to read version: %v", err)
	}
	log.Printf("Текущая версия схемы: %d (dirty=%t)", version, dirty)
}
