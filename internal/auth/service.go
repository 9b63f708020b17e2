package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/stempede/stempede-api/internal/core/clock"
	datamodel "github.com/stempede/stempede-api/internal/core/datamodel/user"
	"github.com/stempede/stempede-api/internal/core/events"
)

// Client-facing messages. Deliberately generic where distinguishing the
// failure would leak whether an account or token exists.
const (
	msgInvalidRegistration = "Invalid registration data."
	msgUserExists          = "User already exists."
	msgInvalidRole         = "Invalid or missing role provided."
	msgRoleNotFound        = "Role not found."
	msgRegistered          = "Registration successful."
	msgInvalidLogin        = "Invalid login data."
	msgBadCredentials      = "Invalid credentials."
	msgBadCredsOrBanned    = "Invalid credentials or user is banned."
	msgLoggedIn            = "Login successful."
	msgLoginFailed         = "Login failed. Please try again."
	msgInvalidRefresh      = "Invalid refresh token."
	msgExpiredRefresh      = "Expired refresh token."
	msgRevokedRefresh      = "Revoked refresh token."
	msgRefreshed           = "Token refreshed successfully."
	msgLoggedOut           = "Logout successful."
	msgInvalidIdentity     = "Invalid Google token."
	msgUnexpected          = "An unexpected error occurred. Please try again."
)

// Service orchestrates the session lifecycle: Register, Login, Logout,
// Refresh and FederatedLogin. Domain failures come back as structured
// responses with client-safe messages plus a sentinel error for transport
// status mapping; infrastructure failures are logged here and reduced to a
// generic message.
type Service struct {
	store        Store
	hasher       PasswordHasher
	issuer       *TokenIssuer
	ledger       *Ledger
	synchronizer *PermissionSynchronizer
	identity     IdentityValidator
	denylist     Denylist
	bus          *events.EventBus
	clock        clock.Clock
	logger       *slog.Logger
}

type ServiceOption func(*Service)

func WithIdentityValidator(v IdentityValidator) ServiceOption {
	return func(s *Service) { s.identity = v }
}

func WithDenylist(d Denylist) ServiceOption {
	return func(s *Service) { s.denylist = d }
}

func WithEventBus(bus *events.EventBus) ServiceOption {
	return func(s *Service) { s.bus = bus }
}

func NewService(store Store, hasher PasswordHasher, issuer *TokenIssuer, ledger *Ledger, synchronizer *PermissionSynchronizer, clk clock.Clock, logger *slog.Logger, opts ...ServiceOption) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	s := &Service{
		store:        store,
		hasher:       hasher,
		issuer:       issuer,
		ledger:       ledger,
		synchronizer: synchronizer,
		clock:        clk,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issuer exposes the token issuer for middleware that needs to parse tokens.
func (s *Service) Issuer() *TokenIssuer { return s.issuer }

// Store exposes the aggregate store for middleware identity loading.
func (s *Service) Store() Store { return s.store }

// DenylistContains reports whether the access token id has been denylisted.
// Always false when the denylist feature is disabled.
func (s *Service) DenylistContains(ctx context.Context, jti string) bool {
	if s.denylist == nil {
		return false
	}
	listed, err := s.denylist.Contains(ctx, jti)
	if err != nil {
		s.logger.Error("denylist lookup failed", "error", err)
		return false
	}
	return listed
}

// Register creates a user with one role, the role-implied permission and a
// fresh token pair, all inside a single transaction: either the whole
// registration exists afterwards or none of it does.
func (s *Service) Register(dto RegisterDTO, ipAddress string) (AuthResponse, error) {
	s.logger.Info("registration attempt", "ip", ipAddress)

	if strings.TrimSpace(dto.Username) == "" || strings.TrimSpace(dto.Email) == "" ||
		(!dto.IsExternal && strings.TrimSpace(dto.Password) == "") {
		return AuthResponse{Message: msgInvalidRegistration}, ErrInvalidInput
	}

	exists, err := s.store.Users().ExistsByEmailOrUsername(dto.Email, dto.Username)
	if err != nil {
		return s.registerFailure(err)
	}
	if exists {
		s.logger.Warn("user already exists with provided email or username")
		return AuthResponse{Message: msgUserExists}, ErrUserExists
	}

	if !roleAllowed(dto.Role) {
		s.logger.Warn("invalid or missing role on registration", "role", dto.Role)
		return AuthResponse{Message: msgInvalidRole}, ErrUnknownRole
	}

	role, err := s.store.Roles().FindByName(dto.Role)
	if err != nil {
		return s.registerFailure(err)
	}
	if role == nil {
		s.logger.Error("role not present in reference data", "role", dto.Role)
		return AuthResponse{Message: msgRoleNotFound}, ErrUnknownRole
	}

	var pair TokenPair
	var createdID int64
	err = s.store.InTx(func(tx Store) error {
		user := &datamodel.User{
			Username:   dto.Username,
			Email:      dto.Email,
			Status:     true,
			IsExternal: dto.IsExternal,
		}
		if dto.FullName != "" {
			user.FullName = &dto.FullName
		}
		if dto.Phone != "" {
			user.Phone = &dto.Phone
		}
		if dto.Address != "" {
			user.Address = &dto.Address
		}
		if dto.IsExternal {
			if dto.ExternalProvider != "" {
				user.ExternalProvider = &dto.ExternalProvider
			}
		} else {
			digest, err := s.hasher.Hash(dto.Password)
			if err != nil {
				return err
			}
			user.PasswordHash = &digest
		}

		if err := tx.Users().Create(user); err != nil {
			return err
		}
		createdID = user.UserID

		if err := tx.Roles().AssignToUser(user.UserID, role.RoleID); err != nil {
			return err
		}

		// reference data must carry a permission named after every role;
		// a miss here is an integrity fault, not a user error
		permission, err := tx.Permissions().FindByName(role.RoleName)
		if err != nil {
			return err
		}
		if permission == nil {
			s.logger.Error("permission matching role not found", "role", role.RoleName)
			return ErrReferenceData
		}

		granted, err := tx.Permissions().GrantedIDs(user.UserID)
		if err != nil {
			return err
		}
		if _, ok := granted[permission.PermissionID]; !ok {
			grant := &datamodel.UserPermission{
				UserID:       user.UserID,
				PermissionID: permission.PermissionID,
				AssignedBy:   user.UserID,
			}
			if err := tx.Permissions().Grant(grant); err != nil {
				return err
			}
		} else {
			s.logger.Warn("user already holds permission", "permission", permission.PermissionName)
		}

		accessToken, err := s.issuer.Issue(user.UserID, user.Username, []string{role.RoleName}, user.Status)
		if err != nil {
			return err
		}

		refreshToken, err := s.ledger.Generate(user.UserID, ipAddress)
		if err != nil {
			return err
		}
		if err := tx.RefreshTokens().Create(refreshToken); err != nil {
			return err
		}

		pair = TokenPair{AccessToken: accessToken, RefreshToken: refreshToken.Token}
		return nil
	})
	if err != nil {
		return s.registerFailure(err)
	}

	s.publish(events.NewUserRegisteredEvent(createdID, dto.Username, ipAddress))
	s.logger.Info("user registration successful", "user_id", createdID)
	return AuthResponse{
		Success:      true,
		Message:      msgRegistered,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

// Login authenticates by email or username. Unknown account and banned
// account answer identically so the response cannot be used to enumerate
// users. Before issuing tokens it backfills any permissions the user's
// current roles imply but the account lacks; that sync commits independently
// of token issuance.
func (s *Service) Login(dto LoginDTO, ipAddress string) (LoginResponse, error) {
	s.logger.Info("login attempt", "ip", ipAddress)

	if strings.TrimSpace(dto.EmailOrUsername) == "" || strings.TrimSpace(dto.Password) == "" {
		return LoginResponse{Message: msgInvalidLogin}, ErrInvalidInput
	}

	identifier := strings.TrimSpace(dto.EmailOrUsername)

	user, err := s.store.Users().FindByIdentifier(identifier)
	if err != nil {
		s.logger.Error("login lookup failed", "error", err)
		return LoginResponse{Message: msgLoginFailed}, ErrInternal
	}
	if user == nil || !user.Status {
		s.logger.Warn("invalid credentials or banned user")
		return LoginResponse{Message: msgBadCredsOrBanned}, ErrInvalidCredentials
	}

	if user.PasswordHash == nil || !s.hasher.Verify(dto.Password, *user.PasswordHash) {
		s.logger.Warn("password verification failed", "user_id", user.UserID)
		return LoginResponse{Message: msgBadCredentials}, ErrInvalidCredentials
	}

	roleNames, err := s.store.Users().RoleNames(user.UserID)
	if err != nil {
		s.logger.Error("role lookup failed", "error", err, "user_id", user.UserID)
		return LoginResponse{Message: msgLoginFailed}, ErrInternal
	}

	if err := s.synchronizer.Synchronize(user.UserID, roleNames); err != nil {
		s.logger.Error("permission synchronization failed", "error", err, "user_id", user.UserID)
		return LoginResponse{Message: msgLoginFailed}, ErrInternal
	}

	accessToken, err := s.issuer.Issue(user.UserID, user.Username, roleNames, user.Status)
	if err != nil {
		s.logger.Error("access token issuance failed", "error", err, "user_id", user.UserID)
		return LoginResponse{Message: msgLoginFailed}, ErrInternal
	}

	refreshToken, err := s.ledger.Generate(user.UserID, ipAddress)
	if err != nil {
		s.logger.Error("refresh token generation failed", "error", err, "user_id", user.UserID)
		return LoginResponse{Message: msgLoginFailed}, ErrInternal
	}
	if err := s.ledger.Persist(refreshToken); err != nil {
		s.logger.Error("refresh token persistence failed", "error", err, "user_id", user.UserID)
		return LoginResponse{Message: msgLoginFailed}, ErrInternal
	}

	s.publish(events.NewUserLoggedInEvent(user.UserID, user.Username, ipAddress))
	s.logger.Info("login successful", "user_id", user.UserID)
	return LoginResponse{
		Success:      true,
		Message:      msgLoggedIn,
		AccessToken:  accessToken,
		RefreshToken: refreshToken.Token,
		Roles:        roleNames,
	}, nil
}

// Logout revokes the refresh token. The access token stays valid until its
// natural expiry unless the denylist feature is enabled, in which case its
// token id is denylisted for the remainder of its window.
func (s *Service) Logout(ctx context.Context, refreshToken, accessToken, ipAddress string) (AuthResponse, error) {
	s.logger.Info("logout attempt", "ip", ipAddress)

	if refreshToken == "" {
		return AuthResponse{Message: msgInvalidRefresh}, ErrInvalidToken
	}

	existing, err := s.store.RefreshTokens().FindByToken(refreshToken)
	if err != nil {
		s.logger.Error("logout lookup failed", "error", err)
		return AuthResponse{Message: msgUnexpected}, ErrInternal
	}
	if existing == nil {
		s.logger.Warn("refresh token not found during logout")
		return AuthResponse{Message: msgInvalidRefresh}, ErrInvalidToken
	}

	if err := s.ledger.Invalidate(refreshToken, ipAddress); err != nil {
		s.logger.Error("refresh token invalidation failed", "error", err)
		return AuthResponse{Message: msgUnexpected}, ErrInternal
	}

	if s.denylist != nil && accessToken != "" {
		s.denylistAccessToken(ctx, accessToken)
	}

	s.publish(events.NewUserLoggedOutEvent(existing.UserID, ipAddress))
	s.logger.Info("logout successful", "user_id", existing.UserID)
	return AuthResponse{Success: true, Message: msgLoggedOut}, nil
}

// RefreshToken rotates the presented refresh token into a new pair.
func (s *Service) RefreshToken(token, ipAddress string) (AuthResponse, error) {
	s.logger.Info("refresh token attempt", "ip", ipAddress)

	if strings.TrimSpace(token) == "" {
		return AuthResponse{Message: msgInvalidRefresh}, ErrInvalidToken
	}

	rotated, err := s.ledger.Rotate(token, ipAddress)
	if err != nil {
		switch {
		case errors.Is(err, ErrExpiredToken):
			return AuthResponse{Message: msgExpiredRefresh}, ErrExpiredToken
		case errors.Is(err, ErrRevokedToken):
			return AuthResponse{Message: msgRevokedRefresh}, ErrRevokedToken
		case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrInvalidInput):
			return AuthResponse{Message: msgInvalidRefresh}, ErrInvalidToken
		default:
			s.logger.Error("token rotation failed", "error", err)
			return AuthResponse{Message: msgUnexpected}, ErrInternal
		}
	}

	s.publish(events.NewTokenRotatedEvent(rotated.UserID, ipAddress))
	return AuthResponse{
		Success:      true,
		Message:      msgRefreshed,
		AccessToken:  rotated.AccessToken,
		RefreshToken: rotated.RefreshToken,
	}, nil
}

func (s *Service) registerFailure(err error) (AuthResponse, error) {
	if errors.Is(err, ErrReferenceData) {
		s.logger.Error("registration aborted: reference data inconsistent", "error", err)
		return AuthResponse{Message: msgUnexpected}, ErrReferenceData
	}
	s.logger.Error("registration failed", "error", err)
	return AuthResponse{Message: msgUnexpected}, ErrInternal
}

func (s *Service) denylistAccessToken(ctx context.Context, accessToken string) {
	claims, err := s.issuer.Parse(accessToken)
	if err != nil {
		s.logger.Warn("access token not denylisted: parse failed", "error", err)
		return
	}
	until := claims.ExpiresAt.Time
	if err := s.denylist.Add(ctx, claims.ID, until); err != nil {
		s.logger.Error("denylist write failed", "error", err)
	}
}

func (s *Service) publish(ev events.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(context.Background(), ev); err != nil {
		s.logger.Error("event publish failed", "event_type", ev.EventType(), "error", err)
	}
}

func roleAllowed(role string) bool {
	for _, allowed := range AllowedRoles {
		if strings.EqualFold(allowed, role) {
			return true
		}
	}
	return false
}
