package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/stempede/stempede-api/internal/core/clock"
	datamodel "github.com/stempede/stempede-api/internal/core/datamodel/user"
)

const refreshTokenTTL = 30 * 24 * time.Hour

// Ledger owns the refresh-token state machine. A token is Active until it is
// revoked by logout, rotation or ban; expiry is a predicate evaluated at
// validation time, never a stored transition.
type Ledger struct {
	store  Store
	issuer *TokenIssuer
	clock  clock.Clock
	ttl    time.Duration
	logger *slog.Logger
}

func NewLedger(store Store, issuer *TokenIssuer, clk clock.Clock, logger *slog.Logger) *Ledger {
	if clk == nil {
		clk = clock.System{}
	}
	return &Ledger{
		store:  store,
		issuer: issuer,
		clock:  clk,
		ttl:    refreshTokenTTL,
		logger: logger,
	}
}

// Generate builds a new, unpersisted refresh token: 256 random bits,
// base64-encoded, expiring 30 days out. The originating IP is part of the
// audit trail and therefore mandatory.
func (l *Ledger) Generate(userID int64, ipAddress string) (*datamodel.RefreshToken, error) {
	if ipAddress == "" {
		l.logger.Warn("refresh token requested without an IP address", "user_id", userID)
		return nil, fmt.Errorf("%w: ip address cannot be empty", ErrInvalidInput)
	}

	value, err := secureTokenValue()
	if err != nil {
		return nil, fmt.Errorf("generate token value: %w", err)
	}

	now := l.clock.Now()
	return &datamodel.RefreshToken{
		Token:          value,
		UserID:         userID,
		ExpirationTime: now.Add(l.ttl),
		Created:        now,
		CreatedByIP:    ipAddress,
	}, nil
}

// Persist writes a generated token to the ledger.
func (l *Ledger) Persist(token *datamodel.RefreshToken) error {
	if token == nil {
		return fmt.Errorf("%w: refresh token cannot be nil", ErrInvalidInput)
	}
	if err := l.store.RefreshTokens().Create(token); err != nil {
		return fmt.Errorf("persist refresh token: %w", err)
	}
	return nil
}

// Validate reports whether the token exists for the user, is unexpired and
// unrevoked. It never returns an error to the caller; any failure reads as
// invalid.
func (l *Ledger) Validate(token string, userID int64) bool {
	if token == "" {
		return false
	}

	existing, err := l.store.RefreshTokens().FindByTokenForUser(token, userID)
	if err != nil {
		l.logger.Error("refresh token lookup failed", "error", err)
		return false
	}
	if existing == nil {
		l.logger.Warn("refresh token not found", "user_id", userID)
		return false
	}
	if existing.IsExpired(l.clock.Now()) {
		l.logger.Warn("refresh token expired", "user_id", userID)
		return false
	}
	if existing.IsRevoked() {
		l.logger.Warn("refresh token already revoked", "user_id", userID)
		return false
	}
	return true
}

// Invalidate revokes the token exactly once. An unknown token is a logged
// no-op, not an error: logout must not reveal whether a token ever existed.
func (l *Ledger) Invalidate(token, ipAddress string) error {
	if token == "" {
		return fmt.Errorf("%w: token cannot be empty", ErrInvalidInput)
	}

	existing, err := l.store.RefreshTokens().FindByToken(token)
	if err != nil {
		return fmt.Errorf("lookup refresh token: %w", err)
	}
	if existing == nil {
		l.logger.Warn("attempted to invalidate a non-existent refresh token")
		return nil
	}

	revoked, err := l.store.RefreshTokens().Revoke(token, l.clock.Now(), ipAddress, nil)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if !revoked {
		l.logger.Warn("refresh token was already revoked", "user_id", existing.UserID)
	}
	return nil
}

// Rotate implements the rotation protocol: the presented token must be known,
// unexpired and unrevoked and its owner active; then the old token is revoked
// and a fresh pair issued. Revocation and persistence of the successor happen
// in one transaction, and the revocation itself is a compare-and-set, so of
// two racing rotations exactly one wins and the loser observes "revoked".
func (l *Ledger) Rotate(presented, ipAddress string) (*RotationResult, error) {
	existing, err := l.store.RefreshTokens().FindByToken(presented)
	if err != nil {
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}
	if existing == nil {
		l.logger.Warn("refresh token not found during rotation")
		return nil, ErrInvalidToken
	}
	if existing.IsExpired(l.clock.Now()) {
		l.logger.Warn("refresh token expired during rotation", "user_id", existing.UserID)
		return nil, ErrExpiredToken
	}
	if existing.IsRevoked() {
		l.logger.Warn("refresh token already revoked during rotation", "user_id", existing.UserID)
		return nil, ErrRevokedToken
	}

	user, err := l.store.Users().FindByID(existing.UserID)
	if err != nil {
		return nil, fmt.Errorf("lookup token owner: %w", err)
	}
	if user == nil || !user.Status {
		l.logger.Warn("token owner missing or banned", "user_id", existing.UserID)
		return nil, ErrInvalidToken
	}

	roleNames, err := l.store.Users().RoleNames(user.UserID)
	if err != nil {
		return nil, fmt.Errorf("load role names: %w", err)
	}

	accessToken, err := l.issuer.Issue(user.UserID, user.Username, roleNames, user.Status)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	successor, err := l.Generate(user.UserID, ipAddress)
	if err != nil {
		return nil, err
	}

	now := l.clock.Now()
	err = l.store.InTx(func(s Store) error {
		won, err := s.RefreshTokens().Revoke(presented, now, ipAddress, &successor.Token)
		if err != nil {
			return err
		}
		if !won {
			// another request rotated this token first
			return ErrRevokedToken
		}
		return s.RefreshTokens().Create(successor)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("refresh token rotated", "user_id", user.UserID)
	return &RotationResult{
		TokenPair: TokenPair{AccessToken: accessToken, RefreshToken: successor.Token},
		UserID:    user.UserID,
	}, nil
}

// RotationResult is a successful rotation: the fresh pair plus the owner,
// which callers need for audit events.
type RotationResult struct {
	TokenPair
	UserID int64
}

func secureTokenValue() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}
