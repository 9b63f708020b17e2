// Package auth implements the authentication and session-lifecycle core:
// credential registration and login, stateless access tokens, rotating
// refresh tokens with revocation, and idempotent permission synchronization.
package auth

import (
	"errors"
	"time"

	datamodel "github.com/stempede/stempede-api/internal/core/datamodel/user"
)

// AllowedRoles is the fixed set of roles a user may self-register with. Every
// entry must have a same-named permission in reference data; VerifyReferenceData
// enforces that at startup.
var AllowedRoles = []string{"Customer", "Staff", "Manager"}

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrUserExists         = errors.New("user already exists")
	ErrUnknownRole        = errors.New("unknown role")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid refresh token")
	ErrExpiredToken       = errors.New("expired refresh token")
	ErrRevokedToken       = errors.New("revoked refresh token")
	ErrReferenceData      = errors.New("reference data inconsistent")
	ErrInternal           = errors.New("internal error")
)

// UserStore is the identity slice of the relational store. Lookups by
// identifier are case-insensitive; absent rows return (nil, nil) so callers
// can distinguish "not found" from infrastructure failure.
type UserStore interface {
	FindByID(id int64) (*datamodel.User, error)
	FindByEmail(email string) (*datamodel.User, error)
	FindByIdentifier(emailOrUsername string) (*datamodel.User, error)
	ExistsByEmailOrUsername(email, username string) (bool, error)
	Create(u *datamodel.User) error
	RoleNames(userID int64) ([]string, error)
}

type RoleStore interface {
	FindByName(name string) (*datamodel.Role, error)
	AssignToUser(userID, roleID int64) error
}

type PermissionStore interface {
	FindByName(name string) (*datamodel.Permission, error)
	GrantedIDs(userID int64) (map[int64]struct{}, error)
	GrantedNames(userID int64) ([]string, error)
	Grant(up *datamodel.UserPermission) error
}

// RefreshTokenStore persists the token ledger. Revoke is a compare-and-set on
// the revocation fields: it reports false when another writer already revoked
// the row, which is how racing rotations are serialized.
type RefreshTokenStore interface {
	Create(t *datamodel.RefreshToken) error
	FindByToken(token string) (*datamodel.RefreshToken, error)
	FindByTokenForUser(token string, userID int64) (*datamodel.RefreshToken, error)
	Revoke(token string, at time.Time, ip string, replacedBy *string) (bool, error)
	RevokeAllForUser(userID int64, at time.Time, ip string) (int64, error)
}

// Store aggregates the typed repositories behind one transactional boundary.
// InTx runs fn against a store bound to a single transaction; fn returning an
// error rolls back everything written inside it.
type Store interface {
	Users() UserStore
	Roles() RoleStore
	Permissions() PermissionStore
	RefreshTokens() RefreshTokenStore
	InTx(fn func(Store) error) error
}

// TokenPair is what every successful authentication hands back.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}
