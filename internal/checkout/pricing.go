package checkout

import "CandleShop/internal/cart"

// Pricing holds the flat fees applied to every checkout, in the store
// currency.
type Pricing struct {
	ShippingFee     float64
	VoucherDiscount float64
}

var DefaultPricing = Pricing{ShippingFee: 20000, VoucherDiscount: 5000}

type Quote struct {
	Lines        []Line  `json:"lines"`
	ProductTotal float64 `json:"product_total"`
	ShippingFee  float64 `json:"shipping_fee"`
	Discount     float64 `json:"discount"`
	Total        float64 `json:"total"`
}

// Quote prices the selected cart entries. The total never goes below zero.
func (p Pricing) Quote(items []cart.LineItem) Quote {
	q := Quote{
		Lines:       make([]Line, 0, len(items)),
		ShippingFee: p.ShippingFee,
		Discount:    p.VoucherDiscount,
	}
	for _, it := range items {
		q.Lines = append(q.Lines, Line{ItemID: it.ItemID, Name: it.Name, Price: it.Price, Quantity: it.Quantity})
		q.ProductTotal += it.Subtotal()
	}

	q.Total = q.ProductTotal + q.ShippingFee - q.Discount
	if q.Total < 0 {
		q.Total = 0
	}
	return q
}
