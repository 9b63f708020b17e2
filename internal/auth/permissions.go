package auth

import (
	"fmt"
	"log/slog"

	datamodel "github.com/stempede/stempede-api/internal/core/datamodel/user"
)

// PermissionSynchronizer backfills permissions implied by role membership.
// Each assignable role has a same-named permission; a user holding the role
// without the permission is missing a grant that synchronization creates,
// self-assigned. Calling it twice with the same inputs is a no-op the second
// time, and the unique (user, permission) index makes concurrent callers safe.
type PermissionSynchronizer struct {
	store  Store
	logger *slog.Logger
}

func NewPermissionSynchronizer(store Store, logger *slog.Logger) *PermissionSynchronizer {
	return &PermissionSynchronizer{store: store, logger: logger}
}

func (ps *PermissionSynchronizer) Synchronize(userID int64, roleNames []string) error {
	if len(roleNames) == 0 {
		ps.logger.Warn("no roles provided, skipping permission synchronization", "user_id", userID)
		return nil
	}

	var implied []*datamodel.Permission
	for _, roleName := range roleNames {
		permission, err := ps.store.Permissions().FindByName(roleName)
		if err != nil {
			return fmt.Errorf("lookup permission for role %q: %w", roleName, err)
		}
		if permission == nil {
			ps.logger.Warn("no corresponding permission for role", "role", roleName)
			continue
		}
		implied = append(implied, permission)
	}

	if len(implied) == 0 {
		ps.logger.Warn("no permissions to assign from roles", "user_id", userID, "roles", roleNames)
		return nil
	}

	granted, err := ps.store.Permissions().GrantedIDs(userID)
	if err != nil {
		return fmt.Errorf("load granted permissions: %w", err)
	}

	var missing []*datamodel.Permission
	for _, p := range implied {
		if _, ok := granted[p.PermissionID]; !ok {
			missing = append(missing, p)
		}
	}

	if len(missing) == 0 {
		ps.logger.Info("user already holds all role-implied permissions", "user_id", userID)
		return nil
	}

	// all grants commit together or not at all
	err = ps.store.InTx(func(s Store) error {
		for _, p := range missing {
			grant := &datamodel.UserPermission{
				UserID:       userID,
				PermissionID: p.PermissionID,
				AssignedBy:   userID,
			}
			if err := s.Permissions().Grant(grant); err != nil {
				return fmt.Errorf("grant permission %q: %w", p.PermissionName, err)
			}
			ps.logger.Info("permission granted", "permission", p.PermissionName, "user_id", userID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	ps.logger.Info("permission synchronization complete", "user_id", userID, "granted", len(missing))
	return nil
}

// VerifyReferenceData checks at startup that every assignable role exists and
// has a same-named permission. Discovering the mismatch here beats discovering
// it during someone's registration.
func VerifyReferenceData(store Store) error {
	for _, roleName := range AllowedRoles {
		role, err := store.Roles().FindByName(roleName)
		if err != nil {
			return fmt.Errorf("lookup role %q: %w", roleName, err)
		}
		if role == nil {
			return fmt.Errorf("%w: role %q is missing", ErrReferenceData, roleName)
		}

		permission, err := store.Permissions().FindByName(roleName)
		if err != nil {
			return fmt.Errorf("lookup permission %q: %w", roleName, err)
		}
		if permission == nil {
			return fmt.Errorf("%w: permission %q is missing", ErrReferenceData, roleName)
		}
	}
	return nil
}
