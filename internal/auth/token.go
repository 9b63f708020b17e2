package auth

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/stempede/stempede-api/internal"
	"github.com/stempede/stempede-api/internal/core/clock"
)

// AccessClaims is the payload of an access token: identity, display name,
// activity flag and one role entry per role the user held at issuance.
type AccessClaims struct {
	Name     string   `json:"name"`
	IsActive bool     `json:"isActive"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

func (c *AccessClaims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// TokenIssuer builds signed, self-contained access tokens. Tokens are
// stateless: once issued they cannot be recalled before natural expiry, which
// is why the validity window stays short and revocation lives on the refresh
// token (and, optionally, the denylist).
type TokenIssuer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	clock    clock.Clock
}

// NewTokenIssuer fails fast when the signing material is not configured;
// this is a startup error, not something to discover on the first login.
func NewTokenIssuer(cfg internal.SecurityConfig, clk clock.Clock) (*TokenIssuer, error) {
	if cfg.JWTSecret == "" {
		return nil, internal.NewConfigurationError("JWT secret is not configured")
	}
	if cfg.JWTIssuer == "" {
		return nil, internal.NewConfigurationError("JWT issuer is not configured")
	}
	if cfg.JWTAudience == "" {
		return nil, internal.NewConfigurationError("JWT audience is not configured")
	}

	ttl := cfg.AccessTokenDuration
	if ttl == 0 {
		ttl = time.Hour
	}
	if clk == nil {
		clk = clock.System{}
	}

	return &TokenIssuer{
		secret:   []byte(cfg.JWTSecret),
		issuer:   cfg.JWTIssuer,
		audience: cfg.JWTAudience,
		ttl:      ttl,
		clock:    clk,
	}, nil
}

// Issue signs an access token for the given identity. An access token that
// asserts no roles is meaningless, so an empty role list is rejected outright.
// Blank role names are skipped rather than embedded as empty claims.
func (i *TokenIssuer) Issue(userID int64, username string, roles []string, isActive bool) (string, error) {
	if len(roles) == 0 {
		return "", fmt.Errorf("%w: roles cannot be empty", ErrInvalidInput)
	}

	cleaned := make([]string, 0, len(roles))
	for _, r := range roles {
		if strings.TrimSpace(r) != "" {
			cleaned = append(cleaned, r)
		}
	}
	if len(cleaned) == 0 {
		return "", fmt.Errorf("%w: roles cannot be empty", ErrInvalidInput)
	}

	now := i.clock.Now()
	claims := &AccessClaims{
		Name:     username,
		IsActive: isActive,
		Roles:    cleaned,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ID:        uuid.NewString(),
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Parse verifies signature, issuer, audience and expiry of an access token and
// returns its claims. Expiry is checked against the injected clock so tests
// can move time instead of sleeping.
func (i *TokenIssuer) Parse(tokenString string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return i.secret, nil
		},
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithTimeFunc(i.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
