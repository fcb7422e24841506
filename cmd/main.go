package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/mahjong-league/config"
	"github.com/Dosada05/mahjong-league/db"
	"github.com/Dosada05/mahjong-league/handlers"
	"github.com/Dosada05/mahjong-league/live"
	"github.com/Dosada05/mahjong-league/repositories"
	api "github.com/Dosada05/mahjong-league/routes"
	"github.com/Dosada05/mahjong-league/services"
	"github.com/Dosada05/mahjong-league/storage"
	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
)

const sweepInterval = 10 * time.Minute // How often the stale game sweeper runs

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	// Инициализация загрузчика файлов (Cloudflare R2)
	var uploader storage.FileUploader
	if cfg.R2AccountID != "" {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Warn("R2 storage is not configured, logo uploads are disabled")
	}

	// Инициализация WebSocket Hub
	wsHub := live.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket Hub started")

	// Инициализация репозиториев
	txManager := repositories.NewSQLTxManager(dbConn)
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	groupRepo := repositories.NewPostgresGroupRepository(dbConn)
	memberRepo := repositories.NewPostgresGroupMemberRepository(dbConn)
	gameRepo := repositories.NewPostgresGameRepository()
	recordRepo := repositories.NewPostgresGameRecordRepository()
	seasonRepo := repositories.NewPostgresSeasonRepository(dbConn)
	pointRepo := repositories.NewPostgresSeasonUserPointRepository()
	changeRepo := repositories.NewPostgresPointChangeRepository()
	logger.Info("Repositories initialized")

	// Инициализация сервисов
	authService := services.NewAuthService(userRepo)
	groupService := services.NewGroupService(groupRepo, memberRepo, userRepo, uploader)
	ledgerService := services.NewLedgerService(dbConn, txManager, pointRepo, changeRepo)
	gameService := services.NewGameService(
		dbConn,
		txManager,
		gameRepo,
		recordRepo,
		seasonRepo,
		groupRepo,
		memberRepo,
		userRepo,
		ledgerService,
		wsHub,
		logger,
	)
	seasonService := services.NewSeasonService(
		dbConn,
		txManager,
		seasonRepo,
		gameRepo,
		groupRepo,
		memberRepo,
		pointRepo,
		userRepo,
		ledgerService,
		wsHub,
		logger,
	)
	logger.Info("Services initialized")

	// Запуск уборщика брошенных игр
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		logger.Info("stale game sweeper started",
			slog.Duration("interval", sweepInterval),
			slog.Duration("older_than", cfg.GameSweepAfter))

		for range ticker.C {
			swept, err := gameService.SweepStale(context.Background(), cfg.GameSweepAfter)
			if err != nil {
				logger.Error("stale game sweep failed", slog.Any("error", err))
				continue
			}
			if swept > 0 {
				logger.Info("stale games swept", slog.Int("count", swept))
			}
		}
	}()

	// Инициализация обработчиков HTTP
	authHandler := handlers.NewAuthHandler(authService, cfg.JWTSecretKey)
	groupHandler := handlers.NewGroupHandler(groupService)
	gameHandler := handlers.NewGameHandler(gameService)
	seasonHandler := handlers.NewSeasonHandler(seasonService, ledgerService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, seasonService, logger)
	logger.Info("HTTP handlers initialized")

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		cfg.JWTSecretKey,
		authHandler,
		groupHandler,
		gameHandler,
		seasonHandler,
		webSocketHandler,
	)
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}
