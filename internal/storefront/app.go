// Package storefront wires the storefront process: catalog reads are proxied
// to the catalog service, while the cart and checkout run in process against
// the one cart store.
package storefront

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"CandleShop/internal/cart"
	"CandleShop/internal/catalog"
	"CandleShop/internal/checkout"
	"CandleShop/internal/session"
	"CandleShop/pkg/kit"
)

type HTTPDeps struct {
	Log      *zap.Logger
	Service  string
	Registry *prometheus.Registry

	MetricsToken string
}

type Deps struct {
	Cart       *cart.Store
	Orders     checkout.Store
	CatalogURL string
	JWTSecret  string
	Pricing    checkout.Pricing

	// ConfirmPerMinute caps checkout confirmations per client IP; zero
	// disables the limit.
	ConfirmPerMinute int
}

const (
	readyTimeout      = 2 * time.Second
	readyProbeTimeout = 700 * time.Millisecond
)

var errCartLoading = errors.New("cart still loading")

func NewHandler(deps Deps, httpDeps HTTPDeps) (http.Handler, error) {
	catalogProxy, err := NewReverseProxy(deps.CatalogURL, httpDeps.Log)
	if err != nil {
		return nil, err
	}
	catalogClient := catalog.NewClient(deps.CatalogURL)

	cartSrv := &cart.Server{Catalog: catalogClient, Log: httpDeps.Log}
	checkoutSrv := &checkout.Server{
		Store:   deps.Orders,
		Catalog: catalogClient,
		Pricing: deps.Pricing,
		Log:     httpDeps.Log,
	}
	if deps.ConfirmPerMinute > 0 {
		checkoutSrv.ConfirmLimiter = kit.NewIPRateLimiter(deps.ConfirmPerMinute, time.Minute)
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(kit.Recoverer)
	r.Use(kit.Logging(httpDeps.Log))
	kit.MountMetrics(r, httpDeps.Registry, httpDeps.Service, httpDeps.MetricsToken)

	r.Get("/healthz", healthz)
	r.Get("/readyz", readyz(deps, catalogClient, httpDeps.Log))

	r.Handle("/products", catalogProxy)
	r.Handle("/products/*", catalogProxy)

	r.Group(func(pr chi.Router) {
		pr.Use(session.Optional(session.NewTokenMaker(deps.JWTSecret)))
		pr.Use(cart.Provide(deps.Cart))
		pr.Mount("/cart", cartSrv.Routes())
		pr.Mount("/checkout", checkoutSrv.Routes())
	})

	return r, nil
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func readyz(deps Deps, c *catalog.Client, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		checks := []struct {
			name  string
			check func(context.Context) error
		}{
			{"cart", func(context.Context) error { return cartReady(deps.Cart) }},
			{"orders", deps.Orders.Ping},
			{"catalog", func(ctx context.Context) error {
				pctx, pcancel := context.WithTimeout(ctx, readyProbeTimeout)
				defer pcancel()
				return c.Ping(pctx)
			}},
		}

		for _, ch := range checks {
			if err := ch.check(ctx); err != nil {
				if log != nil {
					log.Warn("readyz failed: "+ch.name, zap.Error(err))
				}
				kit.WriteError(w, r, http.StatusServiceUnavailable, ch.name+" not ready", nil)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
	}
}

func cartReady(s *cart.Store) error {
	select {
	case <-s.Ready():
		return nil
	default:
		return errCartLoading
	}
}
