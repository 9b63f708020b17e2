package auth_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stempede/stempede-api/internal"
	"github.com/stempede/stempede-api/internal/auth"
	"github.com/stempede/stempede-api/internal/core/clock"
)

var _ = Describe("TokenIssuer", func() {
	var (
		clk    *clock.Fixed
		issuer *auth.TokenIssuer
	)

	BeforeEach(func() {
		var err error
		clk = clock.NewFixed(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
		issuer, err = auth.NewTokenIssuer(testSecurityConfig(), clk)
		Expect(err).NotTo(HaveOccurred())
	})

	It("round-trips claims through issue and parse", func() {
		token, err := issuer.Issue(42, "alice", []string{"Customer", "Staff"}, true)
		Expect(err).NotTo(HaveOccurred())

		claims, err := issuer.Parse(token)
		Expect(err).NotTo(HaveOccurred())
		Expect(claims.Subject).To(Equal("42"))
		Expect(claims.Name).To(Equal("alice"))
		Expect(claims.IsActive).To(BeTrue())
		Expect(claims.Roles).To(Equal([]string{"Customer", "Staff"}))
		Expect(claims.ID).NotTo(BeEmpty())

		id, err := claims.UserID()
		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(Equal(int64(42)))
	})

	It("gives every token a distinct id", func() {
		first, err := issuer.Issue(42, "alice", []string{"Customer"}, true)
		Expect(err).NotTo(HaveOccurred())
		second, err := issuer.Issue(42, "alice", []string{"Customer"}, true)
		Expect(err).NotTo(HaveOccurred())

		a, _ := issuer.Parse(first)
		b, _ := issuer.Parse(second)
		Expect(a.ID).NotTo(Equal(b.ID))
	})

	It("refuses to issue without roles", func() {
		_, err := issuer.Issue(42, "alice", nil, true)
		Expect(err).To(MatchError(auth.ErrInvalidInput))

		_, err = issuer.Issue(42, "alice", []string{"", "  "}, true)
		Expect(err).To(MatchError(auth.ErrInvalidInput))
	})

	It("rejects a token after its expiry", func() {
		token, err := issuer.Issue(42, "alice", []string{"Customer"}, true)
		Expect(err).NotTo(HaveOccurred())

		clk.Advance(time.Hour + time.Minute)
		_, err = issuer.Parse(token)
		Expect(err).To(HaveOccurred())
	})

	It("rejects a token signed with another secret", func() {
		otherCfg := testSecurityConfig()
		otherCfg.JWTSecret = "a-completely-different-secret"
		other, err := auth.NewTokenIssuer(otherCfg, clk)
		Expect(err).NotTo(HaveOccurred())

		token, err := other.Issue(42, "alice", []string{"Customer"}, true)
		Expect(err).NotTo(HaveOccurred())

		_, err = issuer.Parse(token)
		Expect(err).To(HaveOccurred())
	})

	It("rejects a token from another issuer or audience", func() {
		otherCfg := testSecurityConfig()
		otherCfg.JWTIssuer = "someone-else"
		other, err := auth.NewTokenIssuer(otherCfg, clk)
		Expect(err).NotTo(HaveOccurred())

		token, err := other.Issue(42, "alice", []string{"Customer"}, true)
		Expect(err).NotTo(HaveOccurred())

		_, err = issuer.Parse(token)
		Expect(err).To(HaveOccurred())
	})

	It("fails construction on incomplete configuration", func() {
		cfg := internal.SecurityConfig{JWTIssuer: "x", JWTAudience: "y"}
		_, err := auth.NewTokenIssuer(cfg, clk)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("BcryptHasher", func() {
	It("verifies a matching password and rejects the rest", func() {
		hasher := auth.NewBcryptHasher(4)

		digest, err := hasher.Hash("hunter2hunter2")
		Expect(err).NotTo(HaveOccurred())
		Expect(digest).NotTo(Equal("hunter2hunter2"))

		Expect(hasher.Verify("hunter2hunter2", digest)).To(BeTrue())
		Expect(hasher.Verify("wrong", digest)).To(BeFalse())
		Expect(hasher.Verify("hunter2hunter2", "not-a-digest")).To(BeFalse())
	})
})
