package postgres

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/stempede/stempede-api/internal/auth"
	datamodel "github.com/stempede/stempede-api/internal/core/datamodel/user"
)

// AuthStore implements the auth.Store aggregate using GORM. The typed
// accessors share one *gorm.DB, so a store obtained through InTx runs every
// repository call on the same transaction.
type AuthStore struct {
	db *gorm.DB
}

func NewAuthStore(db *gorm.DB) *AuthStore {
	return &AuthStore{db: db}
}

func (s *AuthStore) Users() auth.UserStore                 { return &userRepository{db: s.db} }
func (s *AuthStore) Roles() auth.RoleStore                 { return &roleRepository{db: s.db} }
func (s *AuthStore) Permissions() auth.PermissionStore     { return &permissionRepository{db: s.db} }
func (s *AuthStore) RefreshTokens() auth.RefreshTokenStore { return &refreshTokenRepository{db: s.db} }

func (s *AuthStore) InTx(fn func(auth.Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&AuthStore{db: tx})
	})
}

type userRepository struct {
	db *gorm.DB
}

func (r *userRepository) FindByID(id int64) (*datamodel.User, error) {
	var user datamodel.User
	err := r.db.Where("user_id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(email string) (*datamodel.User, error) {
	var user datamodel.User
	err := r.db.Where("LOWER(email) = LOWER(?)", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByIdentifier(emailOrUsername string) (*datamodel.User, error) {
	var user datamodel.User
	err := r.db.
		Where("LOWER(email) = LOWER(?) OR LOWER(username) = LOWER(?)", emailOrUsername, emailOrUsername).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) ExistsByEmailOrUsername(email, username string) (bool, error) {
	var count int64
	err := r.db.Model(&datamodel.User{}).
		Where("LOWER(email) = LOWER(?) OR LOWER(username) = LOWER(?)", email, username).
		Count(&count).Error
	return count > 0, err
}

func (r *userRepository) Create(u *datamodel.User) error {
	return r.db.Create(u).Error
}

func (r *userRepository) RoleNames(userID int64) ([]string, error) {
	var names []string
	err := r.db.Model(&datamodel.Role{}).
		Joins("JOIN user_roles ON user_roles.role_id = roles.role_id").
		Where("user_roles.user_id = ?", userID).
		Pluck("roles.role_name", &names).Error
	return names, err
}

type roleRepository struct {
	db *gorm.DB
}

func (r *roleRepository) FindByName(name string) (*datamodel.Role, error) {
	var role datamodel.Role
	err := r.db.Where("LOWER(role_name) = LOWER(?)", name).First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) AssignToUser(userID, roleID int64) error {
	return r.db.Create(&datamodel.UserRole{UserID: userID, RoleID: roleID}).Error
}

type permissionRepository struct {
	db *gorm.DB
}

func (r *permissionRepository) FindByName(name string) (*datamodel.Permission, error) {
	var permission datamodel.Permission
	err := r.db.Where("LOWER(permission_name) = LOWER(?)", name).First(&permission).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &permission, nil
}

func (r *permissionRepository) GrantedIDs(userID int64) (map[int64]struct{}, error) {
	var ids []int64
	err := r.db.Model(&datamodel.UserPermission{}).
		Where("user_id = ?", userID).
		Pluck("permission_id", &ids).Error
	if err != nil {
		return nil, err
	}
	granted := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		granted[id] = struct{}{}
	}
	return granted, nil
}

func (r *permissionRepository) GrantedNames(userID int64) ([]string, error) {
	var names []string
	err := r.db.Model(&datamodel.Permission{}).
		Joins("JOIN user_permissions ON user_permissions.permission_id = permissions.permission_id").
		Where("user_permissions.user_id = ?", userID).
		Pluck("permissions.permission_name", &names).Error
	return names, err
}

func (r *permissionRepository) Grant(up *datamodel.UserPermission) error {
	return r.db.Create(up).Error
}

type refreshTokenRepository struct {
	db *gorm.DB
}

func (r *refreshTokenRepository) Create(t *datamodel.RefreshToken) error {
	return r.db.Create(t).Error
}

func (r *refreshTokenRepository) FindByToken(token string) (*datamodel.RefreshToken, error) {
	var rt datamodel.RefreshToken
	err := r.db.Where("token = ?", token).First(&rt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

func (r *refreshTokenRepository) FindByTokenForUser(token string, userID int64) (*datamodel.RefreshToken, error) {
	var rt datamodel.RefreshToken
	err := r.db.Where("token = ? AND user_id = ?", token, userID).First(&rt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

// Revoke marks the token revoked only if it is still live. The WHERE clause
// on revoked IS NULL makes concurrent revocations race safely: exactly one
// caller sees a row update and wins.
func (r *refreshTokenRepository) Revoke(token string, at time.Time, ip string, replacedBy *string) (bool, error) {
	updates := map[string]interface{}{
		"revoked":       at,
		"revoked_by_ip": ip,
	}
	if replacedBy != nil {
		updates["replaced_by_token"] = *replacedBy
	}
	res := r.db.Model(&datamodel.RefreshToken{}).
		Where("token = ? AND revoked IS NULL", token).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RevokeAllForUser revokes every non-revoked token of the user regardless of
// expiry: an expired-but-unrevoked token still reads as live in storage.
func (r *refreshTokenRepository) RevokeAllForUser(userID int64, at time.Time, ip string) (int64, error) {
	res := r.db.Model(&datamodel.RefreshToken{}).
		Where("user_id = ? AND revoked IS NULL", userID).
		Updates(map[string]interface{}{
			"revoked":       at,
			"revoked_by_ip": ip,
		})
	return res.RowsAffected, res.Error
}
