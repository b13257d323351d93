package router

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Bukachka23/image-backend/internal/handlers"
	"github.com/Bukachka23/image-backend/internal/middleware"
)

// New returns an http.Handler that serves the API under /api and Prometheus
// metrics at /metrics. operatorAuth guards the admin routes; when nil they
// are not mounted.
func New(h *handlers.Handler, operatorAuth func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()
	base := "/api"

	mux.HandleFunc("GET "+base+"/health", h.Health)
	mux.HandleFunc("GET "+base+"/credits/{email}", h.GetCredits)
	mux.HandleFunc("GET "+base+"/packages", h.Packages)
	mux.HandleFunc("POST "+base+"/checkout", h.Checkout)
	mux.HandleFunc("POST "+base+"/webhooks/stripe", h.StripeWebhook)
	mux.HandleFunc("POST "+base+"/generate", h.Generate)
	mux.HandleFunc("POST "+base+"/feedback", h.Feedback)

	if operatorAuth != nil {
		mux.Handle("GET "+base+"/admin/credits/{email}/transactions", operatorAuth(http.HandlerFunc(h.ListTransactions)))
	}

	mux.Handle("GET /metrics", promhttp.Handler())

	var handler http.Handler = middleware.Metrics(middleware.MaxBody(requestLimit(h))(mux))
	handler = chimw.Recoverer(handler)
	handler = chimw.RealIP(handler)
	handler = chimw.RequestID(handler)
	return handler
}

// multipartOverhead leaves room for form fields and part headers around the
// uploaded image.
const multipartOverhead = 1 << 20

func requestLimit(h *handlers.Handler) int64 {
	limit := h.MaxUploadBytes
	if limit <= 0 {
		limit = handlers.DefaultMaxUploadBytes
	}
	return limit + multipartOverhead
}
