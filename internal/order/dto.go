package order

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type UpdateDeliveryDTO struct {
	Status string `json:"status"`
}

func (d UpdateDeliveryDTO) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Status, validation.Required),
	)
}
