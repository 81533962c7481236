// Package config reads process settings from the environment. A .env file in
// the working directory, when present, fills in variables that are not
// already set.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const minSecretLen = 32

// Backends for the durable cart slot.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

var (
	ErrWeakSecret     = errors.New("JWT_SECRET is required and must be at least 32 chars")
	ErrUnknownBackend = errors.New("unknown CART_BACKEND")
	ErrMissingDSN     = errors.New("DATABASE_URL is required for the postgres backend")
)

type Storefront struct {
	Port       string
	LogLevel   string
	CatalogURL string
	JWTSecret  string

	CartBackend string
	CartKey     string
	DataDir     string
	RedisAddr   string
	RedisPrefix string
	DatabaseURL string

	MetricsToken     string
	ShippingFee      float64
	VoucherDiscount  float64
	ConfirmPerMinute int
}

type Catalog struct {
	Port         string
	LogLevel     string
	DatabaseURL  string
	MetricsToken string
}

// LoadDotenv loads .env if it exists. Variables already in the environment
// win.
func LoadDotenv() error {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func LoadStorefront() (Storefront, error) {
	if err := LoadDotenv(); err != nil {
		return Storefront{}, err
	}

	c := Storefront{
		Port:         getenv("PORT", "8080"),
		LogLevel:     getenv("LOG_LEVEL", "info"),
		CatalogURL:   getenv("CATALOG_URL", "http://catalog:8082"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		CartBackend:  strings.ToLower(getenv("CART_BACKEND", BackendFile)),
		CartKey:      getenv("CART_KEY", "cart"),
		DataDir:      getenv("DATA_DIR", "./data"),
		RedisAddr:    getenv("REDIS_ADDR", "localhost:6379"),
		RedisPrefix:  getenv("REDIS_PREFIX", "candleshop"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		MetricsToken: os.Getenv("METRICS_TOKEN"),
	}

	var err error
	if c.ShippingFee, err = getfloat("SHIPPING_FEE", 20000); err != nil {
		return Storefront{}, err
	}
	if c.VoucherDiscount, err = getfloat("VOUCHER_DISCOUNT", 5000); err != nil {
		return Storefront{}, err
	}
	if c.ConfirmPerMinute, err = getint("CONFIRM_PER_MINUTE", 10); err != nil {
		return Storefront{}, err
	}

	if len(c.JWTSecret) < minSecretLen {
		return Storefront{}, ErrWeakSecret
	}
	switch c.CartBackend {
	case BackendMemory, BackendFile, BackendRedis:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return Storefront{}, ErrMissingDSN
		}
	default:
		return Storefront{}, fmt.Errorf("%w: %q", ErrUnknownBackend, c.CartBackend)
	}
	return c, nil
}

func LoadCatalog() (Catalog, error) {
	if err := LoadDotenv(); err != nil {
		return Catalog{}, err
	}
	return Catalog{
		Port:         getenv("PORT", "8082"),
		LogLevel:     getenv("LOG_LEVEL", "info"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		MetricsToken: os.Getenv("METRICS_TOKEN"),
	}, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) (float64, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("%s: want a non-negative number, got %q", k, v)
	}
	return f, nil
}

func getint(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s: want a non-negative integer, got %q", k, v)
	}
	return n, nil
}
