package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics
var (
	generationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "image_backend",
		Subsystem: "ledger",
		Name:      "generations_total",
		Help:      "Spend-and-generate attempts by outcome.",
	}, []string{"outcome"})

	creditsMovedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "image_backend",
		Subsystem: "ledger",
		Name:      "credits_total",
		Help:      "Credits moved through the ledger by transaction kind.",
	}, []string{"kind"})

	paymentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "image_backend",
		Subsystem: "ledger",
		Name:      "payments_total",
		Help:      "Payment completions by outcome.",
	}, []string{"outcome"})

	checkoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "image_backend",
		Subsystem: "ledger",
		Name:      "checkouts_total",
		Help:      "Checkout sessions by outcome.",
	}, []string{"outcome"})

	refundFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "image_backend",
		Subsystem: "ledger",
		Name:      "refund_failures_total",
		Help:      "Refunds that could not be written inline.",
	})

	generationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "image_backend",
		Subsystem: "generation",
		Name:      "duration_seconds",
		Help:      "Time spent in the image generator.",
		Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80},
	})
)
