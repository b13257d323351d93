package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"

	"github.com/Bukachka23/image-backend/internal/config"
	"github.com/Bukachka23/image-backend/internal/execution"
	"github.com/Bukachka23/image-backend/internal/generation"
	"github.com/Bukachka23/image-backend/internal/handlers"
	"github.com/Bukachka23/image-backend/internal/payment"
	"github.com/Bukachka23/image-backend/internal/repository"
	"github.com/Bukachka23/image-backend/internal/repository/sqlite"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	generator, err := generation.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
	if err != nil {
		slog.Error("Failed to create image generator", "error", err)
		os.Exit(1)
	}
	gateway, err := payment.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	if err != nil {
		slog.Error("Failed to create payment gateway", "error", err)
		os.Exit(1)
	}
	if cfg.StripeWebhookSecret == "" {
		slog.Warn("STRIPE_WEBHOOK_SECRET is not set; webhooks will be rejected")
	}

	var handler http.Handler
	if cfg.UsesSQLite() {
		store, err := sqlite.Open(ctx, cfg.SQLitePath())
		if err != nil {
			slog.Error("Unable to open SQLite database", "path", cfg.SQLitePath(), "error", err)
			os.Exit(1)
		}
		defer store.Close()
		slog.Info("Using SQLite database", "path", cfg.SQLitePath())

		ledger := newLedger(cfg, store, generator, gateway, logger)
		handler = buildHandler(cfg, ledger, gateway, &handlers.InlinePayments{Ledger: ledger, Logger: logger}, logger)
	} else {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("Unable to create database pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			slog.Error("Cannot reach PostgreSQL (connection refused or invalid). Ensure Postgres is running", "error", err)
			os.Exit(1)
		}
		slog.Info("Connected to PostgreSQL database successfully!")

		if err := repository.Migrate(ctx, pool); err != nil {
			slog.Error("Ledger migrations failed", "error", err)
			os.Exit(1)
		}

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
		slog.Info("Migrations applied")

		ledger := newLedger(cfg, repository.NewStore(pool), generator, gateway, logger)

		workers := river.NewWorkers()
		river.AddWorker(workers, execution.NewCompletePaymentWorker(ledger, logger))
		river.AddWorker(workers, execution.NewRefundUsageWorker(ledger, logger))

		riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
			Queues: map[string]river.QueueConfig{
				river.QueueDefault: {MaxWorkers: 10},
			},
			Workers: workers,
			Logger:  logger,
		})
		if err != nil {
			slog.Error("Failed to create River client", "error", err)
			os.Exit(1)
		}

		// Refunds that fail inline are retried by the refund_usage worker.
		queue := execution.NewQueue(riverClient)
		ledger.Refunds = queue

		riverCtx, stopRiver := context.WithCancel(ctx)
		defer stopRiver()
		go func() {
			if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
				slog.Error("River client stopped", "error", err)
			}
		}()

		handler = buildHandler(cfg, ledger, gateway, queue, logger)
	}

	serverAddr := cfg.Addr()
	slog.Info("Starting HTTP server", "addr", serverAddr, "env", cfg.Env)
	if err := http.ListenAndServe(serverAddr, handler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
