package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stempede/stempede-api/internal/core/clock"
	"github.com/stempede/stempede-api/internal/core/events"
	datamodel "github.com/stempede/stempede-api/internal/core/datamodel/user"
)

var ErrNotFound = errors.New("user not found")

// banActorIP is recorded as the revoking IP when an administrative ban kills
// a user's live sessions; there is no client request behind it.
const banActorIP = "System"

type Repository interface {
	GetByID(userID int64) (*datamodel.User, error)
	GetRoles(userID int64) ([]string, error)
	GetPermissions(userID int64) ([]string, error)
	UpdateProfile(userID int64, fullName, phone, address *string) error
	SetStatus(userID int64, active bool) error
	RevokeLiveTokens(userID int64, at time.Time, ip string) (int64, error)
	InTx(fn func(Repository) error) error
}

type Service struct {
	repo   Repository
	bus    *events.EventBus
	clock  clock.Clock
	logger *slog.Logger
}

func NewService(repo Repository, bus *events.EventBus, clk clock.Clock, logger *slog.Logger) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{repo: repo, bus: bus, clock: clk, logger: logger}
}

// GetByID returns the profile with roles and permissions attached.
func (s *Service) GetByID(userID int64) (*User, error) {
	u, err := s.repo.GetByID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	if u == nil {
		return nil, ErrNotFound
	}

	out := FromDataModel(u)

	if out.Roles, err = s.repo.GetRoles(userID); err != nil {
		return nil, fmt.Errorf("failed to get user roles: %w", err)
	}
	if out.Permissions, err = s.repo.GetPermissions(userID); err != nil {
		return nil, fmt.Errorf("failed to get user permissions: %w", err)
	}
	return out, nil
}

func (s *Service) GetPermissions(userID int64) ([]string, error) {
	return s.repo.GetPermissions(userID)
}

// UpdateProfile changes the mutable profile fields. Identity fields
// (username, email) and status are out of reach here.
func (s *Service) UpdateProfile(userID int64, dto UpdateProfileDTO) (*User, error) {
	existing, err := s.repo.GetByID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if existing == nil {
		return nil, ErrNotFound
	}

	if err := s.repo.UpdateProfile(userID, dto.FullName, dto.Phone, dto.Address); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return s.GetByID(userID)
}

// Ban deactivates the account and revokes every live refresh token in the
// same transaction, so there is no window where the user is banned but can
// still mint access tokens.
func (s *Service) Ban(userID int64) error {
	existing, err := s.repo.GetByID(userID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if existing == nil {
		return ErrNotFound
	}
	if !existing.Status {
		s.logger.Info("ban requested for already banned user", "user_id", userID)
		return nil
	}

	var revoked int64
	err = s.repo.InTx(func(tx Repository) error {
		if err := tx.SetStatus(userID, false); err != nil {
			return err
		}
		revoked, err = tx.RevokeLiveTokens(userID, s.clock.Now(), banActorIP)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to ban user: %w", err)
	}

	s.logger.Info("user banned", "user_id", userID, "revoked_tokens", revoked)
	s.publish(events.NewUserBannedEvent(userID, revoked))
	return nil
}

// Unban reactivates the account. Previously revoked tokens stay revoked; the
// user signs in again for a fresh session.
func (s *Service) Unban(userID int64) error {
	existing, err := s.repo.GetByID(userID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if existing == nil {
		return ErrNotFound
	}
	if existing.Status {
		return nil
	}

	if err := s.repo.SetStatus(userID, true); err != nil {
		return fmt.Errorf("failed to unban user: %w", err)
	}

	s.logger.Info("user unbanned", "user_id", userID)
	s.publish(events.NewUserUnbannedEvent(userID))
	return nil
}

func (s *Service) publish(ev events.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(context.Background(), ev); err != nil {
		s.logger.Error("event publish failed", "event_type", ev.EventType(), "error", err)
	}
}
