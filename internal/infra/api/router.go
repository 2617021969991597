package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type RouterOptions struct {
	CORSOrigins    []string
	RequestTimeout time.Duration
}

// NewRouter mounts the public subscription routes, the JWT-gated admin
// routes and the gateway webhook.
func NewRouter(h *Handler, auth *AuthManager, opts RouterOptions, logger *zerolog.Logger) *chi.Mux {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 20 * time.Second
	}
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(TraceID())
	r.Use(RequestLog(logger))
	r.Use(Recover(logger))
	r.Use(Timeout(opts.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", traceHeader},
		ExposedHeaders:   []string{traceHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/subscriptions", func(r chi.Router) {
		r.Post("/upi-payment", h.handleSubmitUPI)
		r.Post("/order", h.handleCreateOrder)
		r.Post("/verify", h.handleVerifyCheckout)
		r.Post("/cancel", h.handleCancel)
		r.Get("/entitlement", h.handleEntitlement)
		r.Get("/history", h.handleHistory)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.RequireAdmin)
		r.Get("/verify-payment", h.handleListPending)
		r.Post("/verify-payment", h.handleVerifyPayment)
		r.Get("/stats", h.handleStats)
	})

	r.Post("/webhook", h.handleWebhook)
	return r
}
