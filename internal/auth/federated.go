package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/stempede/stempede-api/internal"
	"github.com/stempede/stempede-api/internal/core/clock"
	datamodel "github.com/stempede/stempede-api/internal/core/datamodel/user"
	"github.com/stempede/stempede-api/internal/core/events"
)

// DefaultFederatedRole is assigned to accounts created on first federated
// sign-in.
const DefaultFederatedRole = "Customer"

// IdentityPayload is the subset of a validated third-party identity assertion
// the bridge needs to map onto a local account.
type IdentityPayload struct {
	Subject  string
	Email    string
	Name     string
	Provider string
}

// IdentityValidator checks a third-party identity assertion. Implementations
// must contain every parser failure: the returned error is always a wrapped
// ErrInvalidToken, never a raw library error or panic.
type IdentityValidator interface {
	Validate(idToken string) (*IdentityPayload, error)
}

var googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

// GoogleValidator validates Google-issued identity tokens against Google's
// published JWKS. The key set is cached and refreshed in the background.
type GoogleValidator struct {
	jwks     *keyfunc.JWKS
	clientID string
	clock    clock.Clock
	logger   *slog.Logger
}

type googleClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

func NewGoogleValidator(cfg internal.GoogleConfig, clk clock.Clock, logger *slog.Logger) (*GoogleValidator, error) {
	if cfg.ClientID == "" {
		return nil, internal.NewConfigurationError("Google client ID is not configured")
	}
	if clk == nil {
		clk = clock.System{}
	}

	jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
		RefreshInterval:  time.Hour,
		RefreshRateLimit: 5 * time.Minute,
		RefreshErrorHandler: func(err error) {
			logger.Error("google JWKS refresh failed", "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch google JWKS: %w", err)
	}

	return &GoogleValidator{
		jwks:     jwks,
		clientID: cfg.ClientID,
		clock:    clk,
		logger:   logger,
	}, nil
}

func (v *GoogleValidator) Validate(idToken string) (*IdentityPayload, error) {
	claims := &googleClaims{}
	token, err := jwt.ParseWithClaims(idToken, claims, v.jwks.Keyfunc,
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(v.clientID),
		jwt.WithTimeFunc(v.clock.Now),
	)
	if err != nil {
		v.logger.Warn("google identity token rejected", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	issuerOK := false
	for _, iss := range googleIssuers {
		if claims.Issuer == iss {
			issuerOK = true
			break
		}
	}
	if !issuerOK {
		v.logger.Warn("google identity token has unexpected issuer", "issuer", claims.Issuer)
		return nil, fmt.Errorf("%w: unexpected issuer", ErrInvalidToken)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: no email claim", ErrInvalidToken)
	}

	return &IdentityPayload{
		Subject:  claims.Subject,
		Email:    claims.Email,
		Name:     claims.Name,
		Provider: "Google",
	}, nil
}

// FederatedLogin validates a third-party identity assertion and maps it to a
// local account, creating one with the default Customer role on first sight.
// Account creation commits on its own; token issuance that follows is not
// transactional with it.
func (s *Service) FederatedLogin(dto FederatedLoginDTO, ipAddress string) (AuthResponse, error) {
	s.logger.Info("federated login attempt", "ip", ipAddress)

	if s.identity == nil {
		s.logger.Error("federated login requested but no identity validator configured")
		return AuthResponse{Message: msgInvalidIdentity}, ErrInvalidToken
	}

	payload, err := s.identity.Validate(dto.IdentityToken)
	if err != nil {
		return AuthResponse{Message: msgInvalidIdentity}, ErrInvalidToken
	}

	user, err := s.store.Users().FindByEmail(payload.Email)
	if err != nil {
		s.logger.Error("federated login lookup failed", "error", err)
		return AuthResponse{Message: msgLoginFailed}, ErrInternal
	}

	if user == nil {
		user, err = s.createFederatedUser(payload)
		if err != nil {
			if errors.Is(err, ErrReferenceData) {
				return AuthResponse{Message: msgUnexpected}, ErrReferenceData
			}
			s.logger.Error("federated user creation failed", "error", err)
			return AuthResponse{Message: msgLoginFailed}, ErrInternal
		}
		s.publish(events.NewUserRegisteredEvent(user.UserID, user.Username, ipAddress))
	}

	roleNames, err := s.store.Users().RoleNames(user.UserID)
	if err != nil {
		s.logger.Error("role lookup failed", "error", err, "user_id", user.UserID)
		return AuthResponse{Message: msgLoginFailed}, ErrInternal
	}

	accessToken, err := s.issuer.Issue(user.UserID, user.Username, roleNames, user.Status)
	if err != nil {
		s.logger.Error("access token issuance failed", "error", err, "user_id", user.UserID)
		return AuthResponse{Message: msgLoginFailed}, ErrInternal
	}

	refreshToken, err := s.ledger.Generate(user.UserID, ipAddress)
	if err != nil {
		s.logger.Error("refresh token generation failed", "error", err, "user_id", user.UserID)
		return AuthResponse{Message: msgLoginFailed}, ErrInternal
	}
	if err := s.ledger.Persist(refreshToken); err != nil {
		s.logger.Error("refresh token persistence failed", "error", err, "user_id", user.UserID)
		return AuthResponse{Message: msgLoginFailed}, ErrInternal
	}

	s.publish(events.NewUserLoggedInEvent(user.UserID, user.Username, ipAddress))
	s.logger.Info("federated login successful", "user_id", user.UserID)
	return AuthResponse{
		Success:      true,
		Message:      msgLoggedIn,
		AccessToken:  accessToken,
		RefreshToken: refreshToken.Token,
	}, nil
}

func (s *Service) createFederatedUser(payload *IdentityPayload) (*datamodel.User, error) {
	username := payload.Name
	if username == "" {
		username = payload.Email
	}
	fullName := username
	provider := payload.Provider

	user := &datamodel.User{
		Username:         username,
		Email:            payload.Email,
		FullName:         &fullName,
		Status:           true,
		IsExternal:       true,
		ExternalProvider: &provider,
	}

	err := s.store.InTx(func(tx Store) error {
		if err := tx.Users().Create(user); err != nil {
			return err
		}

		role, err := tx.Roles().FindByName(DefaultFederatedRole)
		if err != nil {
			return err
		}
		if role == nil {
			return fmt.Errorf("%w: role %q is missing", ErrReferenceData, DefaultFederatedRole)
		}
		if err := tx.Roles().AssignToUser(user.UserID, role.RoleID); err != nil {
			return err
		}

		permission, err := tx.Permissions().FindByName(role.RoleName)
		if err != nil {
			return err
		}
		if permission == nil {
			return fmt.Errorf("%w: permission %q is missing", ErrReferenceData, role.RoleName)
		}
		return tx.Permissions().Grant(&datamodel.UserPermission{
			UserID:       user.UserID,
			PermissionID: permission.PermissionID,
			AssignedBy:   user.UserID,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("federated user created", "user_id", user.UserID, "provider", provider)
	return user, nil
}
