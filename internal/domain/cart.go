package domain

import (
	"time"
)

// CartLine is one product reference with its quantity
type CartLine struct {
	ProductID string `json:"product"`
	Quantity  int    `json:"quantity"`
}

// Cart holds an ordered list of lines, at most one per product
type Cart struct {
	ID        string     `json:"id" db:"id"`
	Lines     []CartLine `json:"products"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time  `json:"updatedAt" db:"updated_at"`
}

// Line returns the line for productID, if any
func (c *Cart) Line(productID string) (CartLine, bool) {
	for _, l := range c.Lines {
		if l.ProductID == productID {
			return l, true
		}
	}
	return CartLine{}, false
}

// CartViewLine is a cart line resolved against the catalog.
// Product is nil when the referenced product no longer exists.
type CartViewLine struct {
	ProductID string   `json:"productId"`
	Product   *Product `json:"product"`
	Quantity  int      `json:"quantity"`
	Subtotal  float64  `json:"subtotal"`
	// Available is false for dangling lines and for products that cannot be bought now
	Available bool `json:"available"`
}

// CartView is a cart prepared for display
type CartView struct {
	ID        string         `json:"id"`
	Lines     []CartViewLine `json:"products"`
	Total     float64        `json:"total"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}
