package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/stempede/stempede-api/internal"
	"github.com/stempede/stempede-api/internal/transport"
	"github.com/stempede/stempede-api/pkg/logger"
)

// ServiceAPI is the surface the HTTP layer needs from the auth service.
type ServiceAPI interface {
	Register(dto RegisterDTO, ipAddress string) (AuthResponse, error)
	Login(dto LoginDTO, ipAddress string) (LoginResponse, error)
	Logout(ctx context.Context, refreshToken, accessToken, ipAddress string) (AuthResponse, error)
	RefreshToken(token, ipAddress string) (AuthResponse, error)
	FederatedLogin(dto FederatedLoginDTO, ipAddress string) (AuthResponse, error)
	Issuer() *TokenIssuer
	Store() Store
	DenylistContains(ctx context.Context, jti string) bool
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

// Register godoc
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterDTO true "registration data"
// @Success 201 {object} AuthResponse
// @Router /api/v1/auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var dto RegisterDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.Service.Register(dto, clientIP(r))
	if err != nil {
		h.WriteJSON(w, statusForAuthError(err), resp)
		return
	}
	h.WriteJSON(w, http.StatusCreated, resp)
}

// Login godoc
// @Summary Authenticate with email or username and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginDTO true "credentials"
// @Success 200 {object} LoginResponse
// @Router /api/v1/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.Service.Login(dto, clientIP(r))
	if err != nil {
		h.WriteJSON(w, statusForAuthError(err), resp)
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

// Logout godoc
// @Summary Revoke the presented refresh token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LogoutDTO true "refresh token"
// @Success 200 {object} AuthResponse
// @Router /api/v1/auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var dto LogoutDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	accessToken := h.ExtractTokenFromHeader(r)
	resp, err := h.Service.Logout(r.Context(), dto.RefreshToken, accessToken, clientIP(r))
	if err != nil {
		h.WriteJSON(w, statusForAuthError(err), resp)
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

// RefreshToken godoc
// @Summary Rotate a refresh token into a new token pair
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RefreshDTO true "refresh token"
// @Success 200 {object} AuthResponse
// @Router /api/v1/auth/refresh [post]
func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var dto RefreshDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.Service.RefreshToken(dto.RefreshToken, clientIP(r))
	if err != nil {
		h.WriteJSON(w, statusForAuthError(err), resp)
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

// GoogleLogin godoc
// @Summary Sign in with a Google identity token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body FederatedLoginDTO true "identity token"
// @Success 200 {object} AuthResponse
// @Router /api/v1/auth/google [post]
func (h *Handler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var dto FederatedLoginDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.Service.FederatedLogin(dto, clientIP(r))
	if err != nil {
		h.WriteJSON(w, statusForAuthError(err), resp)
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

func statusForAuthError(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, ErrUnknownRole):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrExpiredToken),
		errors.Is(err, ErrRevokedToken):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// clientIP prefers the leftmost X-Forwarded-For entry, then X-Real-IP, then
// the socket peer.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// AuthMiddleware parses the bearer token, rejects denylisted token ids and
// loads the caller's roles and permissions into the request context.
func AuthMiddleware(svc ServiceAPI) func(http.Handler) http.Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeUnauthorized(w, "missing or malformed authorization header")
				return
			}

			claims, err := svc.Issuer().Parse(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				writeUnauthorized(w, "invalid or expired token")
				return
			}
			if svc.DenylistContains(r.Context(), claims.ID) {
				writeUnauthorized(w, "token has been revoked")
				return
			}

			userID, err := claims.UserID()
			if err != nil {
				writeUnauthorized(w, "invalid or expired token")
				return
			}

			user, err := svc.Store().Users().FindByID(userID)
			if err != nil {
				lg.Error("auth middleware user lookup failed", "error", err, "user_id", userID)
				writeUnauthorized(w, "invalid or expired token")
				return
			}
			if user == nil || !user.Status {
				writeUnauthorized(w, "user is inactive")
				return
			}

			roles, err := svc.Store().Users().RoleNames(userID)
			if err != nil {
				lg.Error("auth middleware role lookup failed", "error", err, "user_id", userID)
				writeUnauthorized(w, "invalid or expired token")
				return
			}
			permissions, err := svc.Store().Permissions().GrantedNames(userID)
			if err != nil {
				lg.Error("auth middleware permission lookup failed", "error", err, "user_id", userID)
				writeUnauthorized(w, "invalid or expired token")
				return
			}

			current := &internal.CurrentUser{
				ID:          userID,
				Username:    user.Username,
				IsActive:    user.Status,
				Roles:       roles,
				Permissions: permissions,
			}
			next.ServeHTTP(w, r.WithContext(internal.ContextWithUser(r.Context(), current)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    http.StatusUnauthorized,
		"message": message,
	})
}
