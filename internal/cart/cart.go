// Package cart implements the shopping cart and its checkout into an order.
package cart

import (
	"errors"

	datamodel "github.com/stempede/stempede-api/internal/core/datamodel/cart"
)

var (
	ErrItemNotFound      = errors.New("cart item not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type Item struct {
	ID          int64  `json:"id"`
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	Quantity    int    `json:"quantity"`
	PriceCents  int64  `json:"price_cents"`
}

type Cart struct {
	ID         int64   `json:"id"`
	UserID     int64   `json:"user_id"`
	Status     string  `json:"status"`
	Items      []*Item `json:"items"`
	TotalCents int64   `json:"total_cents"`
}

func fromDataModel(c *datamodel.Cart, items []*datamodel.CartItem, names map[int64]string) *Cart {
	out := &Cart{
		ID:     c.CartID,
		UserID: c.UserID,
		Status: c.Status,
		Items:  make([]*Item, 0, len(items)),
	}
	for _, it := range items {
		out.Items = append(out.Items, &Item{
			ID:          it.CartItemID,
			ProductID:   it.ProductID,
			ProductName: names[it.ProductID],
			Quantity:    it.Quantity,
			PriceCents:  it.PriceCents,
		})
		out.TotalCents += it.PriceCents * int64(it.Quantity)
	}
	return out
}
