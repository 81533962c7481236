package catalog

import (
	"context"
	"sort"
	"sync"
)

type MemStore struct {
	mu sync.RWMutex
	m  map[int64]Product
}

func NewMemStore(products ...Product) *MemStore {
	s := &MemStore{m: make(map[int64]Product, len(products))}
	for _, p := range products {
		s.m[p.ID] = p
	}
	return s
}

// NewSeededStore returns a memory store holding the default candle range.
func NewSeededStore() *MemStore {
	return NewMemStore(
		Product{
			ID:          1,
			Name:        "Lavender Dream",
			Scent:       "Lavender",
			Description: "Soft floral candle for winding down.",
			Ingredients: "Soy wax, lavender essential oil, cotton wick",
			Image:       "https://cdn.candleshop.local/lavender.jpg",
			Sizes: []Size{
				{Size: "S", Price: 120000, Stock: 12},
				{Size: "L", Price: 220000, Stock: 4},
			},
		},
		Product{
			ID:          2,
			Name:        "Vanilla Bean",
			Scent:       "Vanilla",
			Description: "Warm, sweet and round.",
			Ingredients: "Coconut wax, vanilla absolute, wooden wick",
			Image:       "https://cdn.candleshop.local/vanilla.jpg",
			Sizes: []Size{
				{Size: "M", Price: 150000, Stock: 8},
			},
		},
		Product{
			ID:          3,
			Name:        "Cedar Forest",
			Scent:       "Cedarwood",
			Description: "Dry woods with a hint of smoke.",
			Ingredients: "Soy wax, cedarwood oil, cotton wick",
			Image:       "https://cdn.candleshop.local/cedar.jpg",
			Sizes: []Size{
				{Size: "M", Price: 180000, Stock: 2},
			},
		},
	)
}

func (s *MemStore) Ping(ctx context.Context) error { return nil }

func (s *MemStore) ListSortedByID(ctx context.Context) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Product, 0, len(s.m))
	for _, p := range s.m {
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) Get(ctx context.Context, id int64) (Product, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.m[id]
	return p, ok, nil
}
