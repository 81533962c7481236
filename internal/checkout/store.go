package checkout

import (
	"context"
	"time"
)

const StatusPaid = "PAID"

type Line struct {
	ItemID   int64   `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

type Order struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Lines        []Line    `json:"lines"`
	ProductTotal float64   `json:"product_total"`
	ShippingFee  float64   `json:"shipping_fee"`
	Discount     float64   `json:"discount"`
	Total        float64   `json:"total"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

type Store interface {
	Create(ctx context.Context, o Order) error
	Get(ctx context.Context, id string) (Order, bool, error)
	Ping(ctx context.Context) error
}
