package user

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// UpdateProfileDTO uses pointers so absent fields are left untouched while
// empty strings clear a value.
type UpdateProfileDTO struct {
	FullName *string `json:"full_name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Address  *string `json:"address,omitempty"`
}

func (d UpdateProfileDTO) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.FullName, validation.Length(0, 255)),
		validation.Field(&d.Phone, validation.Length(0, 255)),
		validation.Field(&d.Address, validation.Length(0, 255)),
	)
}
