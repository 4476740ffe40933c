// Package httptransport assembles the HTTP surface: middleware stack, domain
// routes, health checks, and the metrics endpoint. Business logic stays in
// the domain services; this layer only wires them to routes.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	certhandler "skillchain/internal/certificate/handler"
	"skillchain/internal/platform/health"
	"skillchain/internal/platform/middleware"
)

// Deps carries the transport layer's collaborators.
type Deps struct {
	Certificates *certhandler.Handler
	Health       *health.Handler
	Logger       *slog.Logger

	// RequestTimeout bounds request handling. It must exceed the ledger
	// confirmation timeout or issuance requests get cut off mid-pipeline.
	RequestTimeout time.Duration
}

// NewRouter wires all public endpoints with middleware.
func NewRouter(deps Deps) http.Handler {
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Timeout(timeout))

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		deps.Certificates.Register(r)
	})

	if deps.Health != nil {
		deps.Health.Register(r)
	}
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
