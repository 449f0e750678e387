// Package api assembles the storefront HTTP surface: public catalog,
// token-gated cart and orders, admin product/order management, and the
// ops endpoints.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"PharmaStore/internal/auth"
	"PharmaStore/internal/cart"
	"PharmaStore/internal/catalog"
	"PharmaStore/internal/order"
	"PharmaStore/pkg/web"
)

type Deps struct {
	Log      *zap.Logger
	Service  string
	Registry *prometheus.Registry

	MetricsEnabled bool
	MetricsToken   string

	SimulatedLatency time.Duration

	JWT *auth.TokenMaker
}

const (
	loginLimitPerMin = 5
	limitWindow      = 60 * time.Second

	readyTimeout = 2 * time.Second
)

func NewHandler(a *auth.Server, c *catalog.Server, ct *cart.Server, o *order.Server, deps Deps) http.Handler {
	r := chi.NewRouter()

	metricsOn := deps.MetricsEnabled && deps.Registry != nil
	if deps.MetricsEnabled && deps.Registry == nil && deps.Log != nil {
		deps.Log.Warn("metrics enabled but Registry is nil")
	}

	setupMiddleware(r, deps, metricsOn)
	setupRoutes(r, a, c, ct, o, deps, metricsOn)

	return r
}

func setupMiddleware(r *chi.Mux, deps Deps, metricsOn bool) {
	r.Use(chimw.RequestID)
	r.Use(web.Recoverer)
	r.Use(web.CORS)
	r.Use(web.Logging(deps.Log))
	r.Use(web.Latency(deps.SimulatedLatency))

	if metricsOn {
		metrics := web.NewMetrics(deps.Registry)
		r.Use(metrics.Middleware(deps.Service, web.RoutePatternOrPath))
	}
}

func setupRoutes(r *chi.Mux, a *auth.Server, c *catalog.Server, ct *cart.Server, o *order.Server, deps Deps, metricsOn bool) {
	requireUser := auth.RequireUser(deps.JWT)
	loginLimiter := web.NewIPRateLimiter(loginLimitPerMin, limitWindow)

	r.Route("/auth", func(rr chi.Router) {
		rr.With(loginLimiter.Middleware).Post("/login", a.HandleLogin)
		rr.Post("/logout", a.HandleLogout)
		rr.With(requireUser).Get("/me", a.HandleMe)
	})

	r.Route("/products", func(rr chi.Router) {
		rr.Get("/", c.HandleList)
		rr.Get("/{id}", c.HandleGet)

		rr.Group(func(ar chi.Router) {
			ar.Use(requireUser, auth.RequireAdmin)
			ar.Post("/", c.HandleCreate)
			ar.Put("/{id}", c.HandleUpdate)
			ar.Delete("/{id}", c.HandleDelete)
		})
	})

	r.Route("/cart", func(rr chi.Router) {
		rr.Use(requireUser)
		rr.Get("/", ct.HandleGet)
		rr.Post("/items", ct.HandleAddItem)
		rr.Delete("/items/{itemID}", ct.HandleRemoveItem)
	})

	r.Route("/orders", func(rr chi.Router) {
		rr.Use(requireUser)
		rr.Post("/", o.HandleCreate)
		rr.Get("/", o.HandleListMine)
		rr.Get("/{id}", o.HandleGet)
		rr.With(auth.RequireAdmin).Put("/{id}/status", o.HandleUpdateStatus)
	})

	r.With(requireUser, auth.RequireAdmin).Get("/admin/orders", o.HandleListAll)

	r.Get("/healthz", healthz)
	r.Get("/readyz", readyz(a, c, ct, o, deps.Log))

	if metricsOn {
		r.With(web.MetricsAuth(deps.MetricsToken)).Handle(
			"/metrics",
			promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}),
		)
	}
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func readyz(a *auth.Server, c *catalog.Server, ct *cart.Server, o *order.Server, log *zap.Logger) http.HandlerFunc {
	type ping struct {
		name string
		fn   func(context.Context) error
	}
	pings := []ping{
		{"auth", a.Store.Ping},
		{"catalog", c.Store.Ping},
		{"cart", ct.Carts.Ping},
		{"order", o.Store.Ping},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		for _, p := range pings {
			if err := p.fn(ctx); err != nil {
				if log != nil {
					log.Warn("readyz failed", zap.String("store", p.name), zap.Error(err))
				}
				web.WriteError(w, r, http.StatusServiceUnavailable, p.name+" not ready")
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}
