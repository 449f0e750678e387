package main

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"

	"PharmaStore/internal/api"
	"PharmaStore/internal/auth"
	"PharmaStore/internal/cart"
	"PharmaStore/internal/catalog"
	"PharmaStore/internal/config"
	"PharmaStore/internal/order"
	"PharmaStore/internal/seed"
	"PharmaStore/pkg/web"
)

const service = "api"

type stores struct {
	users    auth.Store
	products catalog.Store
	carts    cart.Store
	orders   order.Store
}

func main() {
	log := web.NewLogger(service)
	defer func() { _ = log.Sync() }()

	cfg := config.Load()
	ctx := context.Background()

	st, err := buildStores(ctx, cfg, log)
	if err != nil {
		log.Fatal("init stores", zap.Error(err))
	}

	events, err := buildPublisher(cfg, log)
	if err != nil {
		log.Fatal("init event publisher", zap.Error(err))
	}
	defer func() { _ = events.Close() }()

	jwt := auth.NewTokenMaker(cfg.JWTSecret)

	authSrv := &auth.Server{Log: log, Store: st.users, JWT: jwt, TokenTTL: cfg.JWTTTL}
	catalogSrv := &catalog.Server{Log: log, Store: st.products}
	cartSrv := &cart.Server{Log: log, Carts: st.carts, Products: st.products}
	orderSrv := &order.Server{Log: log, Store: st.orders, Events: events}

	stopPrune := startCartPruner(st.carts, cfg.CartTTL, log)
	defer stopPrune()

	h := api.NewHandler(authSrv, catalogSrv, cartSrv, orderSrv, api.Deps{
		Log:              log,
		Service:          service,
		Registry:         prometheus.NewRegistry(),
		MetricsEnabled:   cfg.MetricsEnabled,
		MetricsToken:     cfg.MetricsToken,
		SimulatedLatency: cfg.SimulatedLatency,
		JWT:              jwt,
	})

	if err := web.RunHTTPServer(cfg.HTTPAddr, h, log, cfg.ShutdownTimeout); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}

func buildStores(ctx context.Context, cfg config.Config, log *zap.Logger) (stores, error) {
	if cfg.DBDSN != "" {
		db, err := sql.Open("pgx", cfg.DBDSN)
		if err != nil {
			return stores{}, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			return stores{}, err
		}

		log.Info("using postgres stores")
		return stores{
			users:    auth.NewPostgresStore(db),
			products: catalog.NewPostgresStore(db),
			carts:    cart.NewPostgresStore(db),
			orders:   order.NewPostgresStore(db),
		}, nil
	}

	users := auth.NewMemStore()
	products := catalog.NewMemStore()
	carts := cart.NewMemStore()

	if err := seed.Apply(ctx, users, products); err != nil {
		return stores{}, err
	}

	log.Info("using in-memory stores with seeded demo data")
	return stores{
		users:    users,
		products: products,
		carts:    carts,
		orders:   order.NewMemStore(carts, products),
	}, nil
}

func buildPublisher(cfg config.Config, log *zap.Logger) (order.Publisher, error) {
	if cfg.AMQPURL == "" {
		return order.NopPublisher{}, nil
	}

	p, err := order.NewAMQPPublisher(cfg.AMQPURL, cfg.EventQueue)
	if err != nil {
		return nil, err
	}
	log.Info("publishing order events", zap.String("queue", cfg.EventQueue))
	return p, nil
}

// startCartPruner drops carts untouched for longer than ttl, hourly.
func startCartPruner(carts cart.Store, ttl time.Duration, log *zap.Logger) func() {
	if ttl <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	ticker := time.NewTicker(1 * time.Hour)

	go func() {
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				n, err := carts.PruneExpired(ctx, time.Now().Add(-ttl))
				cancel()
				if err != nil {
					log.Warn("cart prune failed", zap.Error(err))
					continue
				}
				if n > 0 {
					log.Info("pruned expired carts", zap.Int("count", n))
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { close(done) }
}
