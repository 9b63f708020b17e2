package postgres

import (
	"errors"
	"time"

	"gorm.io/gorm"

	datamodel "github.com/stempede/stempede-api/internal/core/datamodel/user"
	"github.com/stempede/stempede-api/internal/user"
)

// UserRepository implements user.Repository using GORM.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) user.Repository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(userID int64) (*datamodel.User, error) {
	var u datamodel.User
	err := r.db.Where("user_id = ?", userID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetRoles(userID int64) ([]string, error) {
	var names []string
	err := r.db.Model(&datamodel.Role{}).
		Joins("JOIN user_roles ON user_roles.role_id = roles.role_id").
		Where("user_roles.user_id = ?", userID).
		Pluck("roles.role_name", &names).Error
	return names, err
}

func (r *UserRepository) GetPermissions(userID int64) ([]string, error) {
	var names []string
	err := r.db.Model(&datamodel.Permission{}).
		Joins("JOIN user_permissions ON user_permissions.permission_id = permissions.permission_id").
		Where("user_permissions.user_id = ?", userID).
		Pluck("permissions.permission_name", &names).Error
	return names, err
}

func (r *UserRepository) UpdateProfile(userID int64, fullName, phone, address *string) error {
	updates := map[string]interface{}{}
	if fullName != nil {
		updates["full_name"] = *fullName
	}
	if phone != nil {
		updates["phone"] = *phone
	}
	if address != nil {
		updates["address"] = *address
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(&datamodel.User{}).Where("user_id = ?", userID).Updates(updates).Error
}

func (r *UserRepository) SetStatus(userID int64, active bool) error {
	res := r.db.Model(&datamodel.User{}).Where("user_id = ?", userID).Update("status", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return user.ErrNotFound
	}
	return nil
}

// RevokeLiveTokens revokes every non-revoked token of the user, expired ones
// included; expiry is a validation-time predicate and the audit trail must
// show the ban touched the whole chain.
func (r *UserRepository) RevokeLiveTokens(userID int64, at time.Time, ip string) (int64, error) {
	res := r.db.Model(&datamodel.RefreshToken{}).
		Where("user_id = ? AND revoked IS NULL", userID).
		Updates(map[string]interface{}{
			"revoked":       at,
			"revoked_by_ip": ip,
		})
	return res.RowsAffected, res.Error
}

func (r *UserRepository) InTx(fn func(user.Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&UserRepository{db: tx})
	})
}
