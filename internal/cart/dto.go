package cart

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type AddItemDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

func (d AddItemDTO) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.ProductID, validation.Required),
		validation.Field(&d.Quantity, validation.Required, validation.Min(1)),
	)
}

type UpdateItemDTO struct {
	Quantity int `json:"quantity"`
}

func (d UpdateItemDTO) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Quantity, validation.Min(0)),
	)
}

type CheckoutResult struct {
	OrderID    int64 `json:"order_id"`
	TotalCents int64 `json:"total_cents"`
}
