package user

import (
	datamodel "github.com/stempede/stempede-api/internal/core/datamodel/user"
)

// User is the API-facing profile shape. The password hash never leaves the
// datamodel layer.
type User struct {
	ID               int64    `json:"id"`
	Username         string   `json:"username"`
	Email            string   `json:"email"`
	FullName         string   `json:"full_name,omitempty"`
	Phone            string   `json:"phone,omitempty"`
	Address          string   `json:"address,omitempty"`
	IsActive         bool     `json:"is_active"`
	IsExternal       bool     `json:"is_external"`
	ExternalProvider string   `json:"external_provider,omitempty"`
	Roles            []string `json:"roles,omitempty"`
	Permissions      []string `json:"permissions,omitempty"`
}

func FromDataModel(u *datamodel.User) *User {
	out := &User{
		ID:         u.UserID,
		Username:   u.Username,
		Email:      u.Email,
		IsActive:   u.Status,
		IsExternal: u.IsExternal,
	}
	if u.FullName != nil {
		out.FullName = *u.FullName
	}
	if u.Phone != nil {
		out.Phone = *u.Phone
	}
	if u.Address != nil {
		out.Address = *u.Address
	}
	if u.ExternalProvider != nil {
		out.ExternalProvider = *u.ExternalProvider
	}
	return out
}
