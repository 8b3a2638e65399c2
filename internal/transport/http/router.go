// Package httptransport is the thin HTTP layer over the registry. Handlers
// decode, validate, and delegate to domain services without embedding
// business logic, so transport concerns remain isolated.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bassrehab/oconsent/internal/platform/health"
	"github.com/bassrehab/oconsent/internal/platform/middleware"
)

// RouterDeps carries the handlers the router mounts.
type RouterDeps struct {
	Agreements *AgreementHandler
	Verify     *VerifyHandler
	Batch      *BatchHandler
	Health     *health.Handler
}

// NewRouter wires all public endpoints with the middleware stack.
func NewRouter(deps RouterDeps, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Caller)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)

	deps.Batch.Register(r)
	deps.Agreements.Register(r)
	deps.Verify.Register(r)

	if deps.Health != nil {
		deps.Health.Register(r)
	}
	r.Handle("/metrics", promhttp.Handler())

	return r
}
