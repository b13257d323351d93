package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/rs/cors"

	"github.com/Bukachka23/image-backend/internal/auth"
	"github.com/Bukachka23/image-backend/internal/config"
	"github.com/Bukachka23/image-backend/internal/handlers"
	"github.com/Bukachka23/image-backend/internal/ledger"
	"github.com/Bukachka23/image-backend/internal/middleware"
	"github.com/Bukachka23/image-backend/internal/models"
	"github.com/Bukachka23/image-backend/internal/router"
	"github.com/Bukachka23/image-backend/internal/services"
)

func newLedger(cfg *config.Config, store ledger.Store, gen services.Generator, gw services.PaymentGateway, logger *slog.Logger) *services.Ledger {
	l := services.NewLedger(store, gen, gw, logger)
	l.Cost = models.Credits(cfg.CreditsPerGeneration)
	return l
}

// buildHandler assembles the API: router -> operator auth on admin routes -> CORS.
func buildHandler(
	cfg *config.Config,
	l *services.Ledger,
	events handlers.EventVerifier,
	payments handlers.PaymentSubmitter,
	logger *slog.Logger,
) http.Handler {
	validator, err := services.NewValidator()
	if err != nil {
		slog.Error("Schema validator init failed", "error", err)
		os.Exit(1)
	}

	h := &handlers.Handler{
		Ledger:         l,
		Events:         events,
		Payments:       payments,
		Validator:      validator,
		FrontendURL:    cfg.FrontendURL,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         logger,
	}

	var operatorAuth func(http.Handler) http.Handler
	if cfg.OperatorJWTSecret != "" {
		tokens, err := auth.NewService(cfg.OperatorJWTSecret)
		if err != nil {
			slog.Error("Operator auth init failed", "error", err)
			os.Exit(1)
		}
		operatorAuth = middleware.OperatorAuth(tokens)
	} else {
		slog.Warn("OPERATOR_JWT_SECRET is not set; admin routes disabled")
	}

	return cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Stripe-Signature"},
		AllowCredentials: true,
	}).Handler(router.New(h, operatorAuth))
}
