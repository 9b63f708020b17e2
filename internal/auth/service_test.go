package auth_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stempede/stempede-api/internal"
	"github.com/stempede/stempede-api/internal/auth"
	authpg "github.com/stempede/stempede-api/internal/auth/postgres"
	"github.com/stempede/stempede-api/internal/core/clock"
	datamodel "github.com/stempede/stempede-api/internal/core/datamodel/user"
)

func TestAuth(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Auth Module Suite")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSecurityConfig() internal.SecurityConfig {
	return internal.SecurityConfig{
		JWTSecret:            "test-secret-key-for-specs-only",
		JWTIssuer:            "stempede-api-test",
		JWTAudience:          "stempede-clients",
		AccessTokenDuration:  time.Hour,
		RefreshTokenDuration: 30 * 24 * time.Hour,
		BCryptCost:           4,
	}
}

func seedReferenceData(db *gorm.DB) {
	for _, name := range []string{"Customer", "Staff", "Manager"} {
		Expect(db.Create(&datamodel.Role{RoleName: name}).Error).NotTo(HaveOccurred())
		Expect(db.Create(&datamodel.Permission{PermissionName: name}).Error).NotTo(HaveOccurred())
	}
}

type stubValidator struct {
	payload *auth.IdentityPayload
}

func (v *stubValidator) Validate(idToken string) (*auth.IdentityPayload, error) {
	if v.payload == nil {
		return nil, auth.ErrInvalidToken
	}
	return v.payload, nil
}

var _ = Describe("Auth Service", func() {
	var (
		db      *gorm.DB
		store   auth.Store
		clk     *clock.Fixed
		issuer  *auth.TokenIssuer
		ledger  *auth.Ledger
		sync    *auth.PermissionSynchronizer
		service *auth.Service
	)

	newService := func(opts ...auth.ServiceOption) *auth.Service {
		return auth.NewService(
			store,
			auth.NewBcryptHasher(4),
			issuer,
			ledger,
			sync,
			clk,
			discardLogger(),
			opts...,
		)
	}

	registerDTO := func(username, email string) auth.RegisterDTO {
		return auth.RegisterDTO{
			Username: username,
			Password: "password123",
			Email:    email,
			Role:     "Customer",
		}
	}

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(
			&datamodel.User{},
			&datamodel.Role{},
			&datamodel.UserRole{},
			&datamodel.Permission{},
			&datamodel.UserPermission{},
			&datamodel.RefreshToken{},
		)
		Expect(err).NotTo(HaveOccurred())
		seedReferenceData(db)

		store = authpg.NewAuthStore(db)
		clk = clock.NewFixed(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

		issuer, err = auth.NewTokenIssuer(testSecurityConfig(), clk)
		Expect(err).NotTo(HaveOccurred())

		lg := discardLogger()
		ledger = auth.NewLedger(store, issuer, clk, lg)
		sync = auth.NewPermissionSynchronizer(store, lg)
		service = newService()
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		Expect(sqlDB.Close()).NotTo(HaveOccurred())
	})

	Describe("Register", func() {
		It("creates the user, role link, permission grant and token pair", func() {
			resp, err := service.Register(registerDTO("alice", "alice@example.com"), "10.0.0.1")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Success).To(BeTrue())
			Expect(resp.Message).To(Equal("Registration successful."))
			Expect(resp.AccessToken).NotTo(BeEmpty())
			Expect(resp.RefreshToken).NotTo(BeEmpty())

			user, err := store.Users().FindByEmail("alice@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(user).NotTo(BeNil())
			Expect(user.Status).To(BeTrue())
			Expect(user.PasswordHash).NotTo(BeNil())
			Expect(*user.PasswordHash).NotTo(Equal("password123"))

			roles, err := store.Users().RoleNames(user.UserID)
			Expect(err).NotTo(HaveOccurred())
			Expect(roles).To(ConsistOf("Customer"))

			names, err := store.Permissions().GrantedNames(user.UserID)
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(ConsistOf("Customer"))

			claims, err := issuer.Parse(resp.AccessToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(claims.Name).To(Equal("alice"))
			Expect(claims.Roles).To(ConsistOf("Customer"))
			Expect(claims.ExpiresAt.Time).To(BeTemporally("==", clk.Now().Add(time.Hour)))

			stored, err := store.RefreshTokens().FindByToken(resp.RefreshToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).NotTo(BeNil())
			Expect(stored.UserID).To(Equal(user.UserID))
			Expect(stored.CreatedByIP).To(Equal("10.0.0.1"))
			Expect(stored.ExpirationTime).To(BeTemporally("==", clk.Now().Add(30*24*time.Hour)))
		})

		It("records the grant as self-assigned", func() {
			resp, err := service.Register(registerDTO("bob", "bob@example.com"), "10.0.0.1")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Success).To(BeTrue())

			user, _ := store.Users().FindByEmail("bob@example.com")
			var grant datamodel.UserPermission
			Expect(db.Where("user_id = ?", user.UserID).First(&grant).Error).NotTo(HaveOccurred())
			Expect(grant.AssignedBy).To(Equal(user.UserID))
		})

		It("rejects a duplicate email or username", func() {
			_, err := service.Register(registerDTO("alice", "alice@example.com"), "10.0.0.1")
			Expect(err).NotTo(HaveOccurred())

			resp, err := service.Register(registerDTO("alice", "other@example.com"), "10.0.0.1")
			Expect(err).To(MatchError(auth.ErrUserExists))
			Expect(resp.Success).To(BeFalse())
			Expect(resp.Message).To(Equal("User already exists."))
		})

		It("rejects roles outside the allowed set", func() {
			dto := registerDTO("mallory", "mallory@example.com")
			dto.Role = "Admin"

			resp, err := service.Register(dto, "10.0.0.1")
			Expect(err).To(MatchError(auth.ErrUnknownRole))
			Expect(resp.Message).To(Equal("Invalid or missing role provided."))
		})

		It("accepts role names case-insensitively", func() {
			dto := registerDTO("carol", "carol@example.com")
			dto.Role = "customer"

			resp, err := service.Register(dto, "10.0.0.1")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Success).To(BeTrue())
		})

		It("leaves no rows behind when the transaction fails midway", func() {
			Expect(db.Where("permission_name = ?", "Staff").Delete(&datamodel.Permission{}).Error).NotTo(HaveOccurred())

			dto := registerDTO("dave", "dave@example.com")
			dto.Role = "Staff"

			_, err := service.Register(dto, "10.0.0.1")
			Expect(err).To(HaveOccurred())

			user, err := store.Users().FindByEmail("dave@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(user).To(BeNil())
		})
	})

	Describe("Login", func() {
		BeforeEach(func() {
			_, err := service.Register(registerDTO("alice", "alice@example.com"), "10.0.0.1")
			Expect(err).NotTo(HaveOccurred())
		})

		It("authenticates by email", func() {
			resp, err := service.Login(auth.LoginDTO{EmailOrUsername: "alice@example.com", Password: "password123"}, "10.0.0.2")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Success).To(BeTrue())
			Expect(resp.Roles).To(ConsistOf("Customer"))
			Expect(resp.AccessToken).NotTo(BeEmpty())
			Expect(resp.RefreshToken).NotTo(BeEmpty())
		})

		It("authenticates by username", func() {
			resp, err := service.Login(auth.LoginDTO{EmailOrUsername: "alice", Password: "password123"}, "10.0.0.2")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Success).To(BeTrue())
		})

		It("rejects a wrong password", func() {
			resp, err := service.Login(auth.LoginDTO{EmailOrUsername: "alice", Password: "wrong"}, "10.0.0.2")
			Expect(err).To(MatchError(auth.ErrInvalidCredentials))
			Expect(resp.Message).To(Equal("Invalid credentials."))
		})

		It("uses the same message for unknown and banned users", func() {
			unknown, err := service.Login(auth.LoginDTO{EmailOrUsername: "ghost", Password: "password123"}, "10.0.0.2")
			Expect(err).To(MatchError(auth.ErrInvalidCredentials))

			Expect(db.Model(&datamodel.User{}).Where("username = ?", "alice").Update("status", false).Error).NotTo(HaveOccurred())
			banned, err := service.Login(auth.LoginDTO{EmailOrUsername: "alice", Password: "password123"}, "10.0.0.2")
			Expect(err).To(MatchError(auth.ErrInvalidCredentials))

			Expect(unknown.Message).To(Equal(banned.Message))
			Expect(unknown.Message).To(Equal("Invalid credentials or user is banned."))
		})

		It("keeps permission grants idempotent across repeated logins", func() {
			for i := 0; i < 3; i++ {
				resp, err := service.Login(auth.LoginDTO{EmailOrUsername: "alice", Password: "password123"}, "10.0.0.2")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.Success).To(BeTrue())
			}

			user, _ := store.Users().FindByEmail("alice@example.com")
			var count int64
			Expect(db.Model(&datamodel.UserPermission{}).Where("user_id = ?", user.UserID).Count(&count).Error).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(1)))
		})

		It("backfills a missing grant during login", func() {
			user, _ := store.Users().FindByEmail("alice@example.com")
			Expect(db.Where("user_id = ?", user.UserID).Delete(&datamodel.UserPermission{}).Error).NotTo(HaveOccurred())

			_, err := service.Login(auth.LoginDTO{EmailOrUsername: "alice", Password: "password123"}, "10.0.0.2")
			Expect(err).NotTo(HaveOccurred())

			names, err := store.Permissions().GrantedNames(user.UserID)
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(ConsistOf("Customer"))
		})
	})

	Describe("RefreshToken", func() {
		var refreshToken string

		BeforeEach(func() {
			resp, err := service.Register(registerDTO("alice", "alice@example.com"), "10.0.0.1")
			Expect(err).NotTo(HaveOccurred())
			refreshToken = resp.RefreshToken
		})

		It("rotates into a fresh pair and revokes the old token", func() {
			resp, err := service.RefreshToken(refreshToken, "10.0.0.3")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Success).To(BeTrue())
			Expect(resp.Message).To(Equal("Token refreshed successfully."))
			Expect(resp.RefreshToken).NotTo(Equal(refreshToken))

			old, err := store.RefreshTokens().FindByToken(refreshToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(old.IsRevoked()).To(BeTrue())
			Expect(*old.RevokedByIP).To(Equal("10.0.0.3"))
			Expect(old.ReplacedByToken).NotTo(BeNil())
			Expect(*old.ReplacedByToken).To(Equal(resp.RefreshToken))
		})

		It("rejects the second rotation of the same token", func() {
			_, err := service.RefreshToken(refreshToken, "10.0.0.3")
			Expect(err).NotTo(HaveOccurred())

			resp, err := service.RefreshToken(refreshToken, "10.0.0.3")
			Expect(err).To(MatchError(auth.ErrRevokedToken))
			Expect(resp.Message).To(Equal("Revoked refresh token."))
		})

		It("rejects an expired token no matter how often it is presented", func() {
			clk.Advance(31 * 24 * time.Hour)

			for i := 0; i < 2; i++ {
				resp, err := service.RefreshToken(refreshToken, "10.0.0.3")
				Expect(err).To(MatchError(auth.ErrExpiredToken))
				Expect(resp.Message).To(Equal("Expired refresh token."))
			}
		})

		It("rejects an unknown token", func() {
			resp, err := service.RefreshToken("no-such-token", "10.0.0.3")
			Expect(err).To(MatchError(auth.ErrInvalidToken))
			Expect(resp.Message).To(Equal("Invalid refresh token."))
		})

		It("rejects rotation for a banned owner", func() {
			Expect(db.Model(&datamodel.User{}).Where("username = ?", "alice").Update("status", false).Error).NotTo(HaveOccurred())

			_, err := service.RefreshToken(refreshToken, "10.0.0.3")
			Expect(err).To(MatchError(auth.ErrInvalidToken))
		})

		It("survives the full session walk: register, refresh twice, replay, expire", func() {
			first, err := service.RefreshToken(refreshToken, "10.0.0.3")
			Expect(err).NotTo(HaveOccurred())

			second, err := service.RefreshToken(first.RefreshToken, "10.0.0.3")
			Expect(err).NotTo(HaveOccurred())

			_, err = service.RefreshToken(first.RefreshToken, "10.0.0.3")
			Expect(err).To(MatchError(auth.ErrRevokedToken))

			clk.Advance(31 * 24 * time.Hour)
			_, err = service.RefreshToken(second.RefreshToken, "10.0.0.3")
			Expect(err).To(MatchError(auth.ErrExpiredToken))
		})
	})

	Describe("Logout", func() {
		var refreshToken string

		BeforeEach(func() {
			resp, err := service.Register(registerDTO("alice", "alice@example.com"), "10.0.0.1")
			Expect(err).NotTo(HaveOccurred())
			refreshToken = resp.RefreshToken
		})

		It("revokes the refresh token", func() {
			resp, err := service.Logout(context.Background(), refreshToken, "", "10.0.0.4")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Success).To(BeTrue())
			Expect(resp.Message).To(Equal("Logout successful."))

			stored, err := store.RefreshTokens().FindByToken(refreshToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.IsRevoked()).To(BeTrue())
		})

		It("rejects an unknown refresh token", func() {
			resp, err := service.Logout(context.Background(), "no-such-token", "", "10.0.0.4")
			Expect(err).To(MatchError(auth.ErrInvalidToken))
			Expect(resp.Message).To(Equal("Invalid refresh token."))
		})

		It("prevents rotation after logout", func() {
			_, err := service.Logout(context.Background(), refreshToken, "", "10.0.0.4")
			Expect(err).NotTo(HaveOccurred())

			_, err = service.RefreshToken(refreshToken, "10.0.0.4")
			Expect(err).To(MatchError(auth.ErrRevokedToken))
		})
	})

	Describe("Ledger Validate", func() {
		var (
			refreshToken string
			ownerID      int64
		)

		BeforeEach(func() {
			resp, err := service.Register(registerDTO("alice", "alice@example.com"), "10.0.0.1")
			Expect(err).NotTo(HaveOccurred())
			refreshToken = resp.RefreshToken

			owner, err := store.Users().FindByEmail("alice@example.com")
			Expect(err).NotTo(HaveOccurred())
			ownerID = owner.UserID
		})

		It("accepts a live token presented by its owner", func() {
			Expect(ledger.Validate(refreshToken, ownerID)).To(BeTrue())
		})

		It("reads empty and unknown tokens as invalid without erroring", func() {
			Expect(ledger.Validate("", ownerID)).To(BeFalse())
			Expect(ledger.Validate("no-such-token", ownerID)).To(BeFalse())
		})

		It("rejects a token presented for the wrong user", func() {
			Expect(ledger.Validate(refreshToken, ownerID+1)).To(BeFalse())
		})

		It("rejects a token past its expiration", func() {
			clk.Advance(31 * 24 * time.Hour)
			Expect(ledger.Validate(refreshToken, ownerID)).To(BeFalse())
		})

		It("rejects a revoked token", func() {
			_, err := service.Logout(context.Background(), refreshToken, "", "10.0.0.4")
			Expect(err).NotTo(HaveOccurred())
			Expect(ledger.Validate(refreshToken, ownerID)).To(BeFalse())
		})
	})

	Describe("Logout with a denylist", func() {
		var (
			mr       *miniredis.Miniredis
			denylist *auth.RedisDenylist
		)

		BeforeEach(func() {
			var err error
			mr, err = miniredis.Run()
			Expect(err).NotTo(HaveOccurred())

			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			denylist = auth.NewRedisDenylistWithClient(client, clk)
			service = newService(auth.WithDenylist(denylist))
		})

		AfterEach(func() {
			mr.Close()
		})

		It("denylists the access token id on logout", func() {
			resp, err := service.Register(registerDTO("alice", "alice@example.com"), "10.0.0.1")
			Expect(err).NotTo(HaveOccurred())

			claims, err := issuer.Parse(resp.AccessToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(service.DenylistContains(context.Background(), claims.ID)).To(BeFalse())

			_, err = service.Logout(context.Background(), resp.RefreshToken, resp.AccessToken, "10.0.0.4")
			Expect(err).NotTo(HaveOccurred())

			Expect(service.DenylistContains(context.Background(), claims.ID)).To(BeTrue())
		})
	})

	Describe("FederatedLogin", func() {
		It("creates a Customer account on first sign-in", func() {
			service = newService(auth.WithIdentityValidator(&stubValidator{
				payload: &auth.IdentityPayload{Subject: "g-123", Email: "fed@example.com", Name: "Fed User", Provider: "Google"},
			}))

			resp, err := service.FederatedLogin(auth.FederatedLoginDTO{IdentityToken: "opaque"}, "10.0.0.5")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Success).To(BeTrue())

			user, err := store.Users().FindByEmail("fed@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(user).NotTo(BeNil())
			Expect(user.IsExternal).To(BeTrue())
			Expect(user.PasswordHash).To(BeNil())
			Expect(*user.ExternalProvider).To(Equal("Google"))

			roles, _ := store.Users().RoleNames(user.UserID)
			Expect(roles).To(ConsistOf("Customer"))
		})

		It("reuses the existing account on later sign-ins", func() {
			service = newService(auth.WithIdentityValidator(&stubValidator{
				payload: &auth.IdentityPayload{Subject: "g-123", Email: "fed@example.com", Name: "Fed User", Provider: "Google"},
			}))

			_, err := service.FederatedLogin(auth.FederatedLoginDTO{IdentityToken: "opaque"}, "10.0.0.5")
			Expect(err).NotTo(HaveOccurred())
			_, err = service.FederatedLogin(auth.FederatedLoginDTO{IdentityToken: "opaque"}, "10.0.0.5")
			Expect(err).NotTo(HaveOccurred())

			var count int64
			Expect(db.Model(&datamodel.User{}).Where("email = ?", "fed@example.com").Count(&count).Error).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(1)))
		})

		It("rejects an invalid identity token with the fixed message", func() {
			service = newService(auth.WithIdentityValidator(&stubValidator{}))

			resp, err := service.FederatedLogin(auth.FederatedLoginDTO{IdentityToken: "garbage"}, "10.0.0.5")
			Expect(err).To(MatchError(auth.ErrInvalidToken))
			Expect(resp.Message).To(Equal("Invalid Google token."))
		})

		It("fails when no validator is configured", func() {
			_, err := service.FederatedLogin(auth.FederatedLoginDTO{IdentityToken: "opaque"}, "10.0.0.5")
			Expect(err).To(MatchError(auth.ErrInvalidToken))
		})
	})
})
