package auth

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// RegisterDTO is the transport shape for self-service registration.
type RegisterDTO struct {
	Username         string `json:"username"`
	Password         string `json:"password"`
	Email            string `json:"email"`
	FullName         string `json:"full_name,omitempty"`
	Phone            string `json:"phone,omitempty"`
	Address          string `json:"address,omitempty"`
	Role             string `json:"role"`
	IsExternal       bool   `json:"is_external"`
	ExternalProvider string `json:"external_provider,omitempty"`
}

func (d RegisterDTO) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Username, validation.Required, validation.Length(1, 50)),
		validation.Field(&d.Password, validation.Required.When(!d.IsExternal), validation.Length(8, 128)),
		validation.Field(&d.Email, validation.Required, is.Email),
		validation.Field(&d.Role, validation.Required),
	)
}

type LoginDTO struct {
	EmailOrUsername string `json:"email_or_username"`
	Password        string `json:"password"`
}

func (d LoginDTO) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.EmailOrUsername, validation.Required),
		validation.Field(&d.Password, validation.Required),
	)
}

type LogoutDTO struct {
	RefreshToken string `json:"refresh_token"`
}

func (d LogoutDTO) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.RefreshToken, validation.Required),
	)
}

type RefreshDTO struct {
	RefreshToken string `json:"refresh_token"`
}

func (d RefreshDTO) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.RefreshToken, validation.Required),
	)
}

type FederatedLoginDTO struct {
	IdentityToken string `json:"identity_token"`
}

func (d FederatedLoginDTO) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.IdentityToken, validation.Required),
	)
}

// AuthResponse is the structured result every session operation returns.
// Domain failures are encoded here with a client-safe message; internals are
// never echoed.
type AuthResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// LoginResponse additionally carries the role names so clients do not have to
// decode them out of the access token.
type LoginResponse struct {
	Success      bool     `json:"success"`
	Message      string   `json:"message"`
	AccessToken  string   `json:"access_token,omitempty"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	Roles        []string `json:"roles,omitempty"`
}
