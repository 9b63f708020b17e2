// Package user holds the persistence models for identity, role membership,
// permission grants and refresh tokens.
package user

import "time"

type User struct {
	UserID           int64   `gorm:"column:user_id;primaryKey"`
	FullName         *string `gorm:"column:full_name;size:255"`
	Username         string  `gorm:"column:username;size:50;uniqueIndex;not null"`
	PasswordHash     *string `gorm:"column:password_hash;size:255"`
	Email            string  `gorm:"column:email;size:255;uniqueIndex;not null"`
	Phone            *string `gorm:"column:phone;size:255"`
	Address          *string `gorm:"column:address;size:255"`
	Status           bool    `gorm:"column:status;not null"`
	IsExternal       bool    `gorm:"column:is_external;not null"`
	ExternalProvider *string `gorm:"column:external_provider;size:50"`
}

func (User) TableName() string { return "users" }

type Role struct {
	RoleID   int64  `gorm:"column:role_id;primaryKey"`
	RoleName string `gorm:"column:role_name;size:20;uniqueIndex;not null"`
}

func (Role) TableName() string { return "roles" }

type UserRole struct {
	UserRoleID int64 `gorm:"column:user_role_id;primaryKey"`
	UserID     int64 `gorm:"column:user_id;not null;index"`
	RoleID     int64 `gorm:"column:role_id;not null"`
}

func (UserRole) TableName() string { return "user_roles" }

type Permission struct {
	PermissionID   int64   `gorm:"column:permission_id;primaryKey"`
	PermissionName string  `gorm:"column:permission_name;size:100;uniqueIndex;not null"`
	Description    *string `gorm:"column:description"`
}

func (Permission) TableName() string { return "permissions" }

// UserPermission records a grant. AssignedBy is the user that caused the
// grant; for self-service grants it equals UserID. The composite unique index
// is load-bearing: it is what makes concurrent permission synchronization
// collapse into a constraint violation instead of a duplicate row.
type UserPermission struct {
	UserPermissionID int64 `gorm:"column:user_permission_id;primaryKey"`
	UserID           int64 `gorm:"column:user_id;not null;uniqueIndex:uq_user_permission"`
	PermissionID     int64 `gorm:"column:permission_id;not null;uniqueIndex:uq_user_permission"`
	AssignedBy       int64 `gorm:"column:assigned_by;not null"`
}

func (UserPermission) TableName() string { return "user_permissions" }

// RefreshToken rows are never deleted; revocation is recorded in place so the
// table doubles as an audit trail of every session ever issued.
type RefreshToken struct {
	ID              int64      `gorm:"column:id;primaryKey"`
	UserID          int64      `gorm:"column:user_id;not null;index"`
	Token           string     `gorm:"column:token;size:255;uniqueIndex;not null"`
	ExpirationTime  time.Time  `gorm:"column:expiration_time;not null"`
	Created         time.Time  `gorm:"column:created;not null"`
	CreatedByIP     string     `gorm:"column:created_by_ip;size:45;not null"`
	Revoked         *time.Time `gorm:"column:revoked"`
	RevokedByIP     *string    `gorm:"column:revoked_by_ip;size:45"`
	ReplacedByToken *string    `gorm:"column:replaced_by_token;size:255"`
}

func (RefreshToken) TableName() string { return "refresh_tokens" }

// IsRevoked is derived state: a revocation timestamp is the single source of
// truth, there is no separate flag to drift out of sync.
func (t *RefreshToken) IsRevoked() bool { return t.Revoked != nil }

func (t *RefreshToken) IsExpired(now time.Time) bool { return t.ExpirationTime.Before(now) }
