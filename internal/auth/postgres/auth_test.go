package postgres

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stempede/stempede-api/internal/auth"
	datamodel "github.com/stempede/stempede-api/internal/core/datamodel/user"
)

func TestAuthStore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "AuthStore Suite")
}

var _ = Describe("AuthStore", func() {
	var (
		db    *gorm.DB
		store auth.Store
		now   time.Time
	)

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

		store = NewAuthStore(db)
		now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		Expect(sqlDB.Close()).NotTo(HaveOccurred())
	})

	seedUser := func(username, email string) *datamodel.User {
		u := &datamodel.User{Username: username, Email: email, Status: true}
		Expect(store.Users().Create(u)).NotTo(HaveOccurred())
		return u
	}

	seedToken := func(userID int64, token string) *datamodel.RefreshToken {
		rt := &datamodel.RefreshToken{
			UserID:         userID,
			Token:          token,
			ExpirationTime: now.Add(30 * 24 * time.Hour),
			Created:        now,
			CreatedByIP:    "10.0.0.1",
		}
		Expect(store.RefreshTokens().Create(rt)).NotTo(HaveOccurred())
		return rt
	}

	Describe("user lookups", func() {
		It("returns nil without error when nothing matches", func() {
			user, err := store.Users().FindByIdentifier("nobody")
			Expect(err).NotTo(HaveOccurred())
			Expect(user).To(BeNil())
		})

		It("matches email and username case-insensitively", func() {
			seedUser("Alice", "Alice@Example.com")

			byEmail, err := store.Users().FindByIdentifier("alice@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(byEmail).NotTo(BeNil())

			byName, err := store.Users().FindByIdentifier("ALICE")
			Expect(err).NotTo(HaveOccurred())
			Expect(byName).NotTo(BeNil())
			Expect(byName.UserID).To(Equal(byEmail.UserID))
		})

		It("reports existence across both identifiers", func() {
			seedUser("alice", "alice@example.com")

			exists, err := store.Users().ExistsByEmailOrUsername("other@example.com", "ALICE")
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeTrue())

			exists, err = store.Users().ExistsByEmailOrUsername("other@example.com", "bob")
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeFalse())
		})
	})

	Describe("roles and permissions", func() {
		It("lists role names through the join table", func() {
			u := seedUser("alice", "alice@example.com")
			role := &datamodel.Role{RoleName: "Customer"}
			Expect(db.Create(role).Error).NotTo(HaveOccurred())
			Expect(store.Roles().AssignToUser(u.UserID, role.RoleID)).NotTo(HaveOccurred())

			names, err := store.Users().RoleNames(u.UserID)
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(ConsistOf("Customer"))
		})

		It("finds roles case-insensitively", func() {
			Expect(db.Create(&datamodel.Role{RoleName: "Manager"}).Error).NotTo(HaveOccurred())

			role, err := store.Roles().FindByName("manager")
			Expect(err).NotTo(HaveOccurred())
			Expect(role).NotTo(BeNil())
		})

		It("returns granted ids as a set", func() {
			u := seedUser("alice", "alice@example.com")
			p := &datamodel.Permission{PermissionName: "Customer"}
			Expect(db.Create(p).Error).NotTo(HaveOccurred())
			Expect(store.Permissions().Grant(&datamodel.UserPermission{
				UserID: u.UserID, PermissionID: p.PermissionID, AssignedBy: u.UserID,
			})).NotTo(HaveOccurred())

			granted, err := store.Permissions().GrantedIDs(u.UserID)
			Expect(err).NotTo(HaveOccurred())
			Expect(granted).To(HaveKey(p.PermissionID))
			Expect(granted).To(HaveLen(1))
		})

		It("rejects a duplicate grant via the unique index", func() {
			u := seedUser("alice", "alice@example.com")
			p := &datamodel.Permission{PermissionName: "Customer"}
			Expect(db.Create(p).Error).NotTo(HaveOccurred())

			grant := func() error {
				return store.Permissions().Grant(&datamodel.UserPermission{
					UserID: u.UserID, PermissionID: p.PermissionID, AssignedBy: u.UserID,
				})
			}
			Expect(grant()).NotTo(HaveOccurred())
			Expect(grant()).To(HaveOccurred())
		})
	})

	Describe("refresh token revocation", func() {
		It("revokes a live token exactly once", func() {
			u := seedUser("alice", "alice@example.com")
			seedToken(u.UserID, "tok-1")

			replacement := "tok-2"
			won, err := store.RefreshTokens().Revoke("tok-1", now, "10.0.0.2", &replacement)
			Expect(err).NotTo(HaveOccurred())
			Expect(won).To(BeTrue())

			won, err = store.RefreshTokens().Revoke("tok-1", now, "10.0.0.3", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(won).To(BeFalse())

			stored, err := store.RefreshTokens().FindByToken("tok-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.IsRevoked()).To(BeTrue())
			Expect(*stored.RevokedByIP).To(Equal("10.0.0.2"))
			Expect(*stored.ReplacedByToken).To(Equal("tok-2"))
		})

		It("reports false for an unknown token", func() {
			won, err := store.RefreshTokens().Revoke("missing", now, "10.0.0.2", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(won).To(BeFalse())
		})

		It("revokes every unrevoked token for a user, expired ones included", func() {
			u := seedUser("alice", "alice@example.com")
			seedToken(u.UserID, "live-1")
			seedToken(u.UserID, "live-2")

			expired := seedToken(u.UserID, "expired")
			Expect(db.Model(expired).Update("expiration_time", now.Add(-time.Hour)).Error).NotTo(HaveOccurred())

			_, err := store.RefreshTokens().Revoke("live-1", now.Add(-time.Minute), "10.0.0.2", nil)
			Expect(err).NotTo(HaveOccurred())

			count, err := store.RefreshTokens().RevokeAllForUser(u.UserID, now, "System")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(2)))

			remaining, err := store.RefreshTokens().FindByToken("live-2")
			Expect(err).NotTo(HaveOccurred())
			Expect(remaining.IsRevoked()).To(BeTrue())
			Expect(*remaining.RevokedByIP).To(Equal("System"))

			wasExpired, err := store.RefreshTokens().FindByToken("expired")
			Expect(err).NotTo(HaveOccurred())
			Expect(wasExpired.IsRevoked()).To(BeTrue())

			alreadyRevoked, err := store.RefreshTokens().FindByToken("live-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(*alreadyRevoked.RevokedByIP).To(Equal("10.0.0.2"))
		})
	})

	Describe("InTx", func() {
		It("rolls back every repository write on error", func() {
			err := store.InTx(func(tx auth.Store) error {
				if err := tx.Users().Create(&datamodel.User{Username: "ghost", Email: "ghost@example.com", Status: true}); err != nil {
					return err
				}
				return gorm.ErrInvalidTransaction
			})
			Expect(err).To(HaveOccurred())

			user, err := store.Users().FindByEmail("ghost@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(user).To(BeNil())
		})
	})
})
