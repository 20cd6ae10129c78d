// Package httptransport assembles the public HTTP surface: middleware
// stack, token and registry endpoints and operational routes.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	registryhandler "sto-gateway/internal/registry/handler"
	tokenhandler "sto-gateway/internal/token/handler"
	"sto-gateway/pkg/platform/httputil"
	"sto-gateway/pkg/platform/middleware/auth"
	"sto-gateway/pkg/platform/middleware/requestid"
)

// HealthChecker reports readiness of one dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Deps carries everything the router mounts. Revocation and health checkers
// are optional.
type Deps struct {
	Token      *tokenhandler.Handler
	Registry   *registryhandler.Handler
	Validator  *auth.Validator
	Revocation auth.TokenRevocationChecker
	Logger     *slog.Logger
	Health     map[string]HealthChecker
}

// NewRouter wires the middleware stack and all endpoints. Token and
// registry routes sit behind bearer auth; health and metrics stay open.
func NewRouter(deps Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(requestid.Middleware)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", handleHealth(deps.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(deps.Validator, deps.Revocation, deps.Logger))
		deps.Token.Register(r)
		deps.Registry.Register(r)
	})

	return r
}

func handleHealth(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check.Health(r.Context()); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = err.Error()
			}
		}
		httputil.WriteJSON(w, status, body)
	}
}
