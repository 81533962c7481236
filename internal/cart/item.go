package cart

// LineItem is one product held by one user. The JSON names match the
// persisted snapshot format.
type LineItem struct {
	ItemID   int64   `json:"id"`
	UserID   string  `json:"userId"`
	Name     string  `json:"name"`
	Image    string  `json:"image"`
	Price    float64 `json:"price"`
	Stock    int     `json:"stock"`
	Quantity int     `json:"quantity"`
}

// SameEntry reports whether two items are the same cart entry: equal item
// and equal owner.
func (it LineItem) SameEntry(other LineItem) bool {
	return it.ItemID == other.ItemID && it.UserID == other.UserID
}

// Subtotal is price times quantity.
func (it LineItem) Subtotal() float64 {
	return it.Price * float64(it.Quantity)
}
