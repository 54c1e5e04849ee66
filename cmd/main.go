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
	_ "github.com/lib/pq"

	"github.com/academyhq/tournament-core/config"
	"github.com/academyhq/tournament-core/db"
	"github.com/academyhq/tournament-core/events"
	"github.com/academyhq/tournament-core/handlers"
	"github.com/academyhq/tournament-core/middleware"
	"github.com/academyhq/tournament-core/repositories"
	"github.com/academyhq/tournament-core/rewards"
	api "github.com/academyhq/tournament-core/routes"
	"github.com/academyhq/tournament-core/services"
	"github.com/academyhq/tournament-core/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

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

	policy := rewards.Default()
	if cfg.RewardPolicyJSON != "" {
		policy, err = rewards.Parse([]byte(cfg.RewardPolicyJSON))
		if err != nil {
			logger.Error("failed to parse reward policy", slog.Any("error", err))
			os.Exit(1)
		}
	}

	var uploader storage.FileUploader
	if cfg.R2Configured() {
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
		logger.Warn("R2 not configured, distribution archival disabled")
	}

	hub := events.NewHub(logger)
	go hub.Run()
	logger.Info("event hub started")

	txRunner := repositories.NewTxRunner(dbConn, logger)
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	creditRepo := repositories.NewPostgresCreditRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	enrollmentRepo := repositories.NewPostgresEnrollmentRepository(dbConn)
	sessionRepo := repositories.NewPostgresSessionRepository(dbConn)
	standingRepo := repositories.NewPostgresStandingRepository(dbConn)
	transitionRepo := repositories.NewPostgresTransitionRepository(dbConn)
	rewardRepo := repositories.NewPostgresRewardRepository(dbConn)
	logger.Info("repositories initialized")

	authService := services.NewAuthService(txRunner, userRepo, creditRepo, cfg.StartingBalance, logger)
	creditService := services.NewCreditService(txRunner, creditRepo, logger)
	tournamentService := services.NewTournamentService(txRunner, tournamentRepo, enrollmentRepo, sessionRepo, standingRepo, transitionRepo, logger)
	lifecycleService := services.NewLifecycleService(txRunner, tournamentRepo, transitionRepo, enrollmentRepo, sessionRepo, standingRepo, userRepo, hub, logger)
	enrollmentService := services.NewEnrollmentService(txRunner, tournamentRepo, enrollmentRepo, creditRepo, sessionRepo, hub, logger)
	scheduleService := services.NewScheduleService(txRunner, tournamentRepo, enrollmentRepo, sessionRepo, standingRepo, hub, logger)
	rewardService := services.NewRewardService(txRunner, tournamentRepo, enrollmentRepo, standingRepo, creditRepo, rewardRepo, transitionRepo, policy, uploader, hub, logger)
	logger.Info("services initialized")

	authenticator := middleware.NewAuthenticator(cfg.JWTSecretKey)

	authHandler := handlers.NewAuthHandler(authService, cfg.JWTSecretKey)
	tournamentHandler := handlers.NewTournamentHandler(tournamentService, lifecycleService)
	enrollmentHandler := handlers.NewEnrollmentHandler(enrollmentService)
	sessionHandler := handlers.NewSessionHandler(scheduleService)
	rewardHandler := handlers.NewRewardHandler(rewardService)
	creditHandler := handlers.NewCreditHandler(creditService)
	webSocketHandler := handlers.NewWebSocketHandler(hub, tournamentService)

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		authenticator,
		authHandler,
		tournamentHandler,
		enrollmentHandler,
		sessionHandler,
		rewardHandler,
		creditHandler,
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
