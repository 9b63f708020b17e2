// Package order exposes order history and delivery tracking.
package order

import (
	"errors"
	"time"

	datamodel "github.com/stempede/stempede-api/internal/core/datamodel/order"
)

var (
	ErrNotFound      = errors.New("order not found")
	ErrInvalidStatus = errors.New("invalid delivery status")
)

type Line struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	Quantity    int    `json:"quantity"`
	PriceCents  int64  `json:"price_cents"`
}

type Order struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"user_id"`
	OrderDate      time.Time  `json:"order_date"`
	TotalCents     int64      `json:"total_cents"`
	DeliveryStatus string     `json:"delivery_status,omitempty"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
	Lines          []*Line    `json:"lines,omitempty"`
}

func fromDataModel(o *datamodel.Order, delivery *datamodel.Delivery) *Order {
	out := &Order{
		ID:         o.OrderID,
		UserID:     o.UserID,
		OrderDate:  o.OrderDate,
		TotalCents: o.TotalCents,
	}
	if delivery != nil {
		out.DeliveryStatus = delivery.Status
		if delivery.Status == datamodel.DeliveryDelivered {
			out.DeliveredAt = delivery.UpdatedAt
		}
	}
	return out
}
