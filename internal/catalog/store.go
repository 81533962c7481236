package catalog

import (
	"context"
	"errors"
)

var ErrNoSizes = errors.New("product has no sizes")

type Size struct {
	Size  string  `json:"size"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
}

type Product struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Scent       string `json:"scent"`
	Description string `json:"description"`
	Ingredients string `json:"ingredients"`
	Image       string `json:"image"`
	Sizes       []Size `json:"sizes"`
}

// DefaultSize is the size a product is sold in when none is chosen: the
// first one listed.
func (p Product) DefaultSize() (Size, error) {
	if len(p.Sizes) == 0 {
		return Size{}, ErrNoSizes
	}
	return p.Sizes[0], nil
}

type Store interface {
	Ping(ctx context.Context) error
	ListSortedByID(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id int64) (Product, bool, error)
}
