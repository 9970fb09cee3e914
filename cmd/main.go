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

	"github.com/bracketworks/arena/config"
	"github.com/bracketworks/arena/db"
	"github.com/bracketworks/arena/handlers"
	"github.com/bracketworks/arena/middleware"
	"github.com/bracketworks/arena/notifications"
	"github.com/bracketworks/arena/repositories"
	"github.com/bracketworks/arena/routes"
	"github.com/bracketworks/arena/services"
	"github.com/bracketworks/arena/storage"
	_ "github.com/lib/pq"
)

const schedulerInterval = 30 * time.Second

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

	migrationsPath := os.Getenv("MIGRATIONS_PATH")
	if migrationsPath == "" {
		migrationsPath = "migrations"
	}
	if err := db.Migrate(dbConn, migrationsPath); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("migrations applied")

	var uploader storage.FileUploader
	if cfg.R2Configured() {
		uploader, err = storage.NewR2Uploader(context.Background(), storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			Bucket:          cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("R2 uploader initialized")
	} else {
		uploader = storage.NewDisabledUploader()
		logger.Warn("R2 is not configured, proof uploads disabled")
	}

	hub := notifications.NewHub()
	go hub.Run()
	logger.Info("websocket hub started")

	txManager := repositories.NewTxManager(dbConn)
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	participantRepo := repositories.NewPostgresParticipantRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	disputeRepo := repositories.NewPostgresDisputeRepository(dbConn)
	walletRepo := repositories.NewPostgresWalletRepository(dbConn)
	transactionRepo := repositories.NewPostgresTransactionRepository(dbConn)
	logger.Info("repositories initialized")

	walletService := services.NewWalletService(walletRepo, transactionRepo, txManager, logger)
	authService := services.NewAuthService(userRepo, walletService, txManager, cfg.JWTSecretKey, logger)
	tournamentService := services.NewTournamentService(tournamentRepo, participantRepo, matchRepo, txManager, hub, logger)
	registrationService := services.NewRegistrationService(
		tournamentRepo, participantRepo, teamRepo, transactionRepo, walletRepo,
		walletService, txManager, hub, logger)
	matchService := services.NewMatchService(
		tournamentRepo, matchRepo, participantRepo, teamRepo, txManager, hub, logger)
	disputeService := services.NewDisputeService(
		tournamentRepo, matchRepo, disputeRepo, matchService, txManager, hub, logger)
	settlementService := services.NewSettlementService(
		tournamentRepo, participantRepo, teamRepo, transactionRepo, walletRepo,
		walletService, matchService, txManager, hub, logger)
	logger.Info("services initialized")

	go func() {
		ticker := time.NewTicker(schedulerInterval)
		defer ticker.Stop()
		logger.Info("status scheduler started", slog.Duration("interval", schedulerInterval))

		if err := tournamentService.AutoUpdateStatuses(context.Background(), time.Now()); err != nil {
			logger.Error("scheduler: initial run failed", slog.Any("error", err))
		}
		for range ticker.C {
			if err := tournamentService.AutoUpdateStatuses(context.Background(), time.Now()); err != nil {
				logger.Error("scheduler: run failed", slog.Any("error", err))
			}
		}
	}()

	authenticator := middleware.NewAuthenticator(cfg.JWTSecretKey)
	router := routes.InitRoutes(routes.Handlers{
		Auth:        handlers.NewAuthHandler(authService),
		Tournament:  handlers.NewTournamentHandler(tournamentService, settlementService),
		Participant: handlers.NewParticipantHandler(registrationService),
		Match:       handlers.NewMatchHandler(matchService, uploader),
		Dispute:     handlers.NewDisputeHandler(disputeService),
		Wallet:      handlers.NewWalletHandler(walletService),
		WebSocket:   handlers.NewWebSocketHandler(hub),
	}, authenticator)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  time.Minute,
	}

	shutdownErr := make(chan error, 1)
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		sig := <-quit
		logger.Info("shutting down", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		shutdownErr <- server.Shutdown(ctx)
	}()

	logger.Info("server starting", slog.String("addr", server.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", slog.Any("error", err))
		os.Exit(1)
	}
	if err := <-shutdownErr; err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}
