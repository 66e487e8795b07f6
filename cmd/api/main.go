package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/teamsforge/frontquiz-api/internal/config"
	"github.com/teamsforge/frontquiz-api/internal/handler"
	"github.com/teamsforge/frontquiz-api/internal/middleware"
	pgRepo "github.com/teamsforge/frontquiz-api/internal/repository/postgres"
	redisRepo "github.com/teamsforge/frontquiz-api/internal/repository/redis"
	"github.com/teamsforge/frontquiz-api/internal/service"
	"github.com/teamsforge/frontquiz-api/internal/service/assessment"
	"github.com/teamsforge/frontquiz-api/internal/telegram"
	ws "github.com/teamsforge/frontquiz-api/internal/websocket"
	"github.com/teamsforge/frontquiz-api/pkg/auth"
	"github.com/teamsforge/frontquiz-api/pkg/database"
)

func main() {
	config.LoadEnvFiles()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	isProduction := gin.Mode() == gin.ReleaseMode

	// PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString(), !isProduction)
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}
	if err := database.MigrateDB(db, cfg.Database.MigrationsPath); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Redis
	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}

	// Репозитории
	questionRepo := pgRepo.NewQuestionRepo(db)
	authTokenRepo := pgRepo.NewAuthTokenRepo(db)
	lessonRepo := pgRepo.NewLessonRepo(db)

	cacheRepo, err := redisRepo.NewCacheRepo(redisClient, cfg.Redis.KeyPrefix)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Токены
	jwtService, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpirationHrs, cfg.JWT.WSTicketExpirySec)
	if err != nil {
		log.Printf("Failed to initialize JWTService: %v", err)
		os.Exit(1)
	}

	// Сервисы
	authService, err := service.NewAuthService(authTokenRepo, jwtService, cfg.Telegram.BotToken)
	if err != nil {
		log.Printf("Failed to initialize AuthService: %v", err)
		os.Exit(1)
	}
	go authService.RunPurge(ctx, 15*time.Minute)

	lessonService, err := service.NewLessonService(lessonRepo, lessonRepo, cacheRepo)
	if err != nil {
		log.Printf("Failed to initialize LessonService: %v", err)
		os.Exit(1)
	}

	assessmentConfig := assessment.DefaultConfig()
	assessmentConfig.TotalDuration = cfg.Assessment.Duration()
	assessmentConfig.QuotaPerTopic = cfg.Assessment.QuotaPerTopic
	assessmentConfig.PoolCacheTTL = cfg.Assessment.PoolCacheTTL()
	assessmentConfig.SnapshotTTL = cfg.Assessment.SnapshotTTL()

	clock := assessment.RealClock()
	poolLoader := assessment.NewPoolLoader(questionRepo, assessmentConfig.PoolCacheTTL, clock)

	poolEvents, err := redisRepo.NewPoolEvents(redisClient, cfg.Redis.KeyPrefix)
	if err != nil {
		log.Printf("Failed to initialize PoolEvents: %v", err)
		os.Exit(1)
	}
	if err := poolEvents.ListenRefresh(ctx, poolLoader.Invalidate); err != nil {
		log.Printf("Warning: банк вопросов обновится только по TTL: %v", err)
	}

	assessments := assessment.NewManager(assessmentConfig, assessment.Dependencies{
		Loader:    poolLoader,
		Sampler:   assessment.NewSampler(nil),
		Persister: assessment.NewPersister(cacheRepo, assessmentConfig.SnapshotTTL),
		Clock:     clock,
	})
	go assessments.RunEviction(ctx,
		time.Duration(cfg.Assessment.EvictionIntervalMin)*time.Minute,
		time.Duration(cfg.Assessment.IdleTimeoutMin)*time.Minute,
	)

	// WebSocket
	wsHub := ws.NewHub(ws.HubConfig{
		CleanupInterval:   time.Duration(cfg.WebSocket.CleanupIntervalSec) * time.Second,
		InactivityTimeout: time.Duration(cfg.WebSocket.InactivityTimeoutSec) * time.Second,
	})
	go wsHub.Run(ctx)
	wsManager := ws.NewManager(wsHub)

	// Бот входа
	var bot *telegram.Bot
	if cfg.Telegram.BotActive() {
		bot, err = telegram.NewBot(telegram.Settings{
			Token:       cfg.Telegram.BotToken,
			Channel:     cfg.Telegram.Channel,
			AppURL:      cfg.Telegram.AppURL,
			PollTimeout: time.Duration(cfg.Telegram.PollTimeout) * time.Second,
		}, authService)
		if err != nil {
			log.Printf("Failed to start Telegram bot: %v. Вход через бота недоступен", err)
		} else {
			go bot.Start()
		}
	} else {
		log.Println("Telegram бот отключен: не задан BOT_TOKEN или BOT_ENABLED=false")
	}

	// Обработчики
	authHandler := handler.NewAuthHandler(authService, jwtService, cfg.Telegram.FrontendURL, cfg.JWT.WSTicketExpirySec)
	assessmentHandler := handler.NewAssessmentHandler(assessments)
	lessonHandler := handler.NewLessonHandler(lessonService)
	wsHandler := handler.NewWSHandler(wsHub, wsManager, assessments, jwtService, cfg.Server.AllowedOrigins)

	authMiddleware := middleware.NewAuthMiddleware(jwtService)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	router := gin.Default()

	// В production не доверяем прокси-заголовкам. За балансировщиком добавьте его IP.
	trustedProxies := []string{"127.0.0.1", "::1"}
	if isProduction {
		trustedProxies = nil
	}
	if err := router.SetTrustedProxies(trustedProxies); err != nil {
		log.Printf("Warning: failed to set trusted proxies: %v", err)
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.SessionIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.SecurityHeaders())

	router.GET("/health", healthHandler(db, assessments))
	router.GET("/health/ws", gin.WrapF(ws.WebSocketHealthCheckHandler(wsHub)))
	router.GET("/metrics/ws", gin.WrapF(ws.WebSocketMetricsHandler(wsHub)))

	// Мост входа через Telegram
	authGroup := router.Group("/auth")
	{
		authGroup.GET("", rateLimiter.LimitByIP(middleware.AuthRateLimitConfig()), authHandler.CheckToken)
		strict := authGroup.Group("", rateLimiter.LimitByIP(middleware.StrictAuthRateLimitConfig()))
		{
			strict.POST("", authHandler.RedeemToken)
			strict.GET("/telegram", authHandler.TelegramWidgetLogin)
			strict.POST("/telegram", authHandler.TelegramWidgetLogin)
		}
	}

	api := router.Group("/api")
	{
		api.POST("/auth/ws-ticket", rateLimiter.Limit(middleware.AuthRateLimitConfig()), authMiddleware.RequireAuth(), authHandler.GenerateWsTicket)

		assessmentGroup := api.Group("/assessment")
		assessmentGroup.Use(authMiddleware.OptionalAuth(), rateLimiter.LimitByUser(middleware.AssessmentRateLimitConfig()))
		{
			assessmentGroup.GET("", assessmentHandler.GetState)
			assessmentGroup.POST("/start", assessmentHandler.Start)
			assessmentGroup.POST("/answer", assessmentHandler.SubmitAnswer)
			assessmentGroup.POST("/finish", assessmentHandler.Finish)
			assessmentGroup.POST("/review", assessmentHandler.OpenReview)
			assessmentGroup.POST("/scoreboard", assessmentHandler.OpenScoreboard)
			assessmentGroup.POST("/reset", assessmentHandler.Reset)
			assessmentGroup.GET("/report", assessmentHandler.GetReport)
			assessmentGroup.GET("/review", assessmentHandler.GetReview)
			assessmentGroup.GET("/review/export", assessmentHandler.ExportReview)
		}

		lessons := api.Group("/lessons")
		lessons.Use(authMiddleware.IdentifyIfPresent())
		{
			lessons.GET("", lessonHandler.ListLessons)

			lessonWithID := lessons.Group("/:id")
			lessonWithID.Use(middleware.ExtractUintParam("id", handler.LessonIDKey))
			{
				lessonWithID.GET("", lessonHandler.GetLesson)
				lessonWithID.PUT("/progress", authMiddleware.RequireAuth(), lessonHandler.UpdateProgress)
			}
		}
	}

	router.GET("/ws", wsHandler.HandleConnection)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	if err := wsManager.BroadcastEvent(ws.EventServerShutdown, gin.H{"reconnect_after_sec": 5}); err != nil {
		log.Printf("Warning: failed to notify WebSocket clients: %v", err)
	}

	cancel()
	if bot != nil {
		bot.Stop()
	}
	assessments.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	wsHub.Close()

	if err := redisClient.Close(); err != nil {
		log.Printf("Error closing Redis client: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Println("Server exited properly")
}

// healthHandler проверяет доступность БД и возвращает число активных сессий
func healthHandler(db *gorm.DB, assessments *assessment.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":          "ok",
			"active_sessions": assessments.Count(),
			"time":            time.Now().Format(time.RFC3339),
		})
	}
}
