package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fastprodman/coingate/internal/auth"
)

// AdminRoles may issue coupons.
var AdminRoles = []string{"admin", "service_role"}

// RouterDeps wires the router. Observer, Throttle, Metrics and Ping are optional.
type RouterDeps struct {
	Gate     Submitter
	Ledger   Ledger
	Coupons  CouponSealer
	Auth     auth.Authenticator
	Logger   *slog.Logger
	Observer HTTPObserver
	Throttle AdvisoryLimiter
	Metrics  http.Handler
	Ping     func(ctx context.Context) error
}

// NewRouter builds the chi router with all API endpoints registered.
func NewRouter(d RouterDeps) http.Handler {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}

	h := NewHandler(d.Gate, d.Ledger, d.Coupons, log)
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log, d.Observer))

	r.Get("/healthz", h.HealthHandler(d.Ping))

	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(auth.Middleware(d.Auth, log))

		if d.Throttle != nil {
			r.Use(throttle(d.Throttle, log))
		}

		r.Post("/transactions", h.SubmitTransactionHandler)

		r.Group(func(r chi.Router) {
			r.Use(requireIdentity)
			r.Get("/balance", h.GetBalanceHandler)
			r.Get("/transactions", h.ListTransactionsHandler)
		})

		r.With(requireRole(AdminRoles...)).Post("/admin/coupons", h.IssueCouponHandler)
	})

	return r
}
