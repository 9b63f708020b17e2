// Package cart holds the shopping cart persistence models.
package cart

import "time"

const (
	StatusActive     = "Active"
	StatusCheckedOut = "CheckedOut"
)

type Cart struct {
	CartID      int64     `gorm:"column:cart_id;primaryKey"`
	UserID      int64     `gorm:"column:user_id;not null;index"`
	Status      string    `gorm:"column:status;size:20;not null"`
	CreatedDate time.Time `gorm:"column:created_date;not null"`
}

func (Cart) TableName() string { return "carts" }

type CartItem struct {
	CartItemID int64 `gorm:"column:cart_item_id;primaryKey"`
	CartID     int64 `gorm:"column:cart_id;not null;index"`
	ProductID  int64 `gorm:"column:product_id;not null"`
	Quantity   int   `gorm:"column:quantity;not null"`
	PriceCents int64 `gorm:"column:price_cents;not null"`
}

func (CartItem) TableName() string { return "cart_items" }
