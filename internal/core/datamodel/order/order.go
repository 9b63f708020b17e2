// Package order holds the order and delivery persistence models.
package order

import "time"

const (
	DeliveryPending   = "Pending"
	DeliveryShipping  = "Shipping"
	DeliveryDelivered = "Delivered"
	DeliveryFailed    = "Failed"
)

type Order struct {
	OrderID    int64     `gorm:"column:order_id;primaryKey"`
	UserID     int64     `gorm:"column:user_id;not null;index"`
	OrderDate  time.Time `gorm:"column:order_date;not null"`
	TotalCents int64     `gorm:"column:total_cents;not null"`
}

func (Order) TableName() string { return "orders" }

type OrderDetail struct {
	OrderDetailID int64 `gorm:"column:order_detail_id;primaryKey"`
	OrderID       int64 `gorm:"column:order_id;not null;index"`
	ProductID     int64 `gorm:"column:product_id;not null"`
	Quantity      int   `gorm:"column:quantity;not null"`
	PriceCents    int64 `gorm:"column:price_cents;not null"`
}

func (OrderDetail) TableName() string { return "order_details" }

type Delivery struct {
	DeliveryID int64      `gorm:"column:delivery_id;primaryKey"`
	OrderID    int64      `gorm:"column:order_id;not null;uniqueIndex"`
	Status     string     `gorm:"column:status;size:20;not null"`
	UpdatedAt  *time.Time `gorm:"column:updated_at"`
}

func (Delivery) TableName() string { return "deliveries" }

// ValidDeliveryStatus reports whether s is one of the allowed delivery states.
func ValidDeliveryStatus(s string) bool {
	switch s {
	case DeliveryPending, DeliveryShipping, DeliveryDelivered, DeliveryFailed:
		return true
	}
	return false
}
