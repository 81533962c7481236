package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"CandleShop/internal/cart"
	"CandleShop/internal/checkout"
	"CandleShop/internal/config"
	"CandleShop/internal/kvstore"
	"CandleShop/internal/storefront"
	"CandleShop/pkg/kit"
)

func main() {
	service := "storefront"

	cfg, err := config.LoadStorefront()
	if err != nil {
		kit.NewLogger(service, "info").Fatal("load config failed", zap.Error(err))
	}

	log := kit.NewLogger(service, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = openDB(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("open database failed", zap.Error(err))
		}
		defer db.Close()
	}

	kv, closeKV, err := openSlot(cfg, db)
	if err != nil {
		log.Fatal("open cart storage failed", zap.Error(err), zap.String("backend", cfg.CartBackend))
	}
	defer closeKV()

	reg := prometheus.NewRegistry()
	store := cart.Open(context.Background(), kv, cart.Options{
		Log:     log,
		Metrics: cart.NewMetrics(reg),
		Key:     cfg.CartKey,
	})

	var orders checkout.Store = checkout.NewMemStore()
	if db != nil {
		orders = checkout.NewPostgresStore(db)
	}

	h, err := storefront.NewHandler(storefront.Deps{
		Cart:       store,
		Orders:     orders,
		CatalogURL: cfg.CatalogURL,
		JWTSecret:  cfg.JWTSecret,
		Pricing: checkout.Pricing{
			ShippingFee:     cfg.ShippingFee,
			VoucherDiscount: cfg.VoucherDiscount,
		},
		ConfirmPerMinute: cfg.ConfirmPerMinute,
	}, storefront.HTTPDeps{
		Log:          log,
		Service:      service,
		Registry:     reg,
		MetricsToken: cfg.MetricsToken,
	})
	if err != nil {
		log.Fatal("init storefront handler failed", zap.Error(err))
	}

	log.Info("cart storage", zap.String("backend", cfg.CartBackend), zap.String("key", cfg.CartKey))

	if err := kit.RunHTTPServer(":"+cfg.Port, h, log, store.Close); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}

func openSlot(cfg config.Storefront, db *sql.DB) (kvstore.Store, func(), error) {
	noop := func() {}

	switch cfg.CartBackend {
	case config.BackendMemory:
		return kvstore.NewMemStore(), noop, nil
	case config.BackendFile:
		fs, err := kvstore.NewFileStore(cfg.DataDir)
		return fs, noop, err
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return kvstore.NewRedisStore(client, cfg.RedisPrefix), func() { _ = client.Close() }, nil
	case config.BackendPostgres:
		return kvstore.NewPostgresStore(db), noop, nil
	default:
		return nil, noop, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.CartBackend)
	}
}

func openDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
