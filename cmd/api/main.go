package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/autopesu/backend/internal/admin"
	"github.com/autopesu/backend/internal/auth"
	"github.com/autopesu/backend/internal/booking"
	"github.com/autopesu/backend/internal/config"
	"github.com/autopesu/backend/internal/dashboard"
	"github.com/autopesu/backend/internal/handlers"
	"github.com/autopesu/backend/internal/notify"
	"github.com/autopesu/backend/internal/referral"
	"github.com/autopesu/backend/internal/repository"
	"github.com/autopesu/backend/internal/router"
	"github.com/autopesu/backend/internal/vendors"
	"github.com/autopesu/backend/internal/wallet"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(".")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL. Ensure Postgres is running, e.g. make dev-up or docker-compose up -d", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL")

	// River migrations
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed", "error", err)
		os.Exit(1)
	}
	slog.Info("River migrations applied")

	// Repositories
	userRepo := repository.NewUserRepo(pool)
	walletRepo := repository.NewWalletRepo(pool)
	vendorRepo := repository.NewVendorRepo(pool)
	serviceRepo := repository.NewServiceRepo(pool)
	apptRepo := repository.NewAppointmentRepo(pool)
	categoryRepo := repository.NewCategoryRepo(pool)

	// Ledger: the single entry point for coin mutations.
	ledger := wallet.NewService(userRepo, walletRepo)

	// Booking: email-job insert func is set after the River client is
	// created (breaks init cycle).
	var insertMu sync.Mutex
	var insertFn booking.InsertEmailJobTxFunc
	insertEmailJob := func(ctx context.Context, tx pgx.Tx, args notify.AppointmentEmailJobArgs) error {
		insertMu.Lock()
		fn := insertFn
		insertMu.Unlock()
		if fn == nil {
			panic("river insert not wired")
		}
		return fn(ctx, tx, args)
	}

	bookingSvc := booking.NewService(pool, vendorRepo, serviceRepo, apptRepo, ledger, insertEmailJob, logger)
	referralSvc := referral.NewService(pool, userRepo, ledger, cfg.ReferrerBonusCoins, cfg.RedeemerBonusCoins)

	// Notification worker
	var mailer notify.Mailer = &notify.LogMailer{Log: logger}
	if cfg.EmailEnabled {
		mailer = notify.NewSMTPMailer(cfg.SMTPHost+":"+cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)
	}
	workers := river.NewWorkers()
	river.AddWorker(workers, notify.NewAppointmentEmailWorker(apptRepo, userRepo, vendorRepo, mailer, logger))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.NotifyMaxWorkers},
		},
		Workers: workers,
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	insertMu.Lock()
	insertFn = func(ctx context.Context, tx pgx.Tx, args notify.AppointmentEmailJobArgs) error {
		_, err := riverClient.InsertTx(ctx, tx, args, nil)
		return err
	}
	insertMu.Unlock()

	// Auth & handlers
	authRepo := auth.NewRepository(pool)
	authSvc := auth.NewService(authRepo, cfg.JWTSecret)
	authHandler := auth.NewHandler(authSvc, logger)

	vendorSvc := vendors.NewService(vendorRepo, serviceRepo, categoryRepo)
	vendorHandler := vendors.NewHandler(vendorSvc, logger)

	apptHandler := &handlers.AppointmentHandler{
		Booking:  bookingSvc,
		Referral: referralSvc,
		Logger:   logger,
	}

	dashHandler := dashboard.NewHandler(userRepo, walletRepo, apptRepo, vendorRepo, logger)
	adminHandler := admin.NewHandler(pool, ledger, userRepo, vendorRepo, categoryRepo, walletRepo, logger)

	apiRouter := router.New(authHandler, vendorHandler, apptHandler, dashHandler, adminHandler, authSvc)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(apiRouter)

	// Start River client (processes notification jobs)
	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	serverAddr := "0.0.0.0:" + cfg.ServerPort
	slog.Info("Starting HTTP server", "addr", serverAddr)
	if err := http.ListenAndServe(serverAddr, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
