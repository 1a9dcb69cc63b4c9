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

	"github.com/go-chi/chi/v5"
	"github.com/go-co-op/gocron/v2"

	"github.com/vortexplay/arena-server/config"
	"github.com/vortexplay/arena-server/db"
	"github.com/vortexplay/arena-server/handlers"
	"github.com/vortexplay/arena-server/live"
	"github.com/vortexplay/arena-server/repositories"
	"github.com/vortexplay/arena-server/routes"
	"github.com/vortexplay/arena-server/services"
	"github.com/vortexplay/arena-server/storage"
)

const statusSyncInterval = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	if err := db.Migrate(dbConn, cfg.MigrationsDir); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("migrations applied")

	var uploader storage.FileUploader
	if cfg.R2Configured() {
		uploader, err = storage.NewR2Uploader(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("R2 uploader initialized")
	} else {
		logger.Warn("R2 storage not configured, evidence uploads disabled")
	}

	hub := live.NewHub(logger)
	go hub.Run()
	logger.Info("websocket hub started")

	userRepo := repositories.NewPostgresUserRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	participantRepo := repositories.NewPostgresParticipantRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	byeRepo := repositories.NewPostgresByeRepository(dbConn)
	disputeRepo := repositories.NewPostgresDisputeRepository(dbConn)
	messageRepo := repositories.NewPostgresMessageRepository(dbConn)

	txRunner := services.NewSQLTxRunner(dbConn)
	locks := services.NewKeyedMutex()

	authService := services.NewAuthService(userRepo, cfg.JWTSecretKey, logger)
	tournamentService := services.NewTournamentService(
		txRunner, tournamentRepo, participantRepo, matchRepo, userRepo, hub, logger)
	participantService := services.NewParticipantService(
		tournamentRepo, participantRepo, locks, hub, logger)
	bracketService := services.NewBracketService(
		txRunner, tournamentRepo, participantRepo, matchRepo, byeRepo, locks, hub, logger)
	progressionService := services.NewProgressionService(
		txRunner, tournamentRepo, matchRepo, byeRepo, locks, hub, logger)
	matchService := services.NewMatchService(
		txRunner, matchRepo, participantRepo, disputeRepo, messageRepo,
		locks, hub, progressionService, logger)
	evidenceService := services.NewEvidenceService(disputeRepo, uploader, logger)
	logger.Info("services initialized")

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		logger.Error("failed to create scheduler", slog.Any("error", err))
		os.Exit(1)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(statusSyncInterval),
		gocron.NewTask(func() {
			if err := tournamentService.SyncStatusesByDates(context.Background()); err != nil {
				logger.Error("status sync run failed", slog.Any("error", err))
			}
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		logger.Error("failed to schedule status sync", slog.Any("error", err))
		os.Exit(1)
	}
	scheduler.Start()
	defer func() { _ = scheduler.Shutdown() }()
	logger.Info("status sync scheduler started", slog.Duration("interval", statusSyncInterval))

	authHandler := handlers.NewAuthHandler(authService)
	tournamentHandler := handlers.NewTournamentHandler(tournamentService, bracketService, progressionService)
	participantHandler := handlers.NewParticipantHandler(participantService)
	matchHandler := handlers.NewMatchHandler(matchService, evidenceService)
	webSocketHandler := handlers.NewWebSocketHandler(hub, authService, logger)

	router := chi.NewRouter()
	routes.SetupRoutes(
		router,
		authService,
		authHandler,
		tournamentHandler,
		participantHandler,
		matchHandler,
		webSocketHandler,
	)
	logger.Info("routes configured")

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

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
}
