package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stempede/stempede-api/internal"
	"github.com/stempede/stempede-api/internal/core/clock"
)

const denylistKeyPrefix = "auth:denylist:"

// Denylist records access token ids that must stop being honored before
// their natural expiry, typically after an explicit logout.
type Denylist interface {
	Add(ctx context.Context, jti string, until time.Time) error
	Contains(ctx context.Context, jti string) (bool, error)
}

// RedisDenylist keeps denylisted token ids in Redis. Entries carry a TTL
// matching the token's remaining lifetime so the set cleans itself up.
type RedisDenylist struct {
	client *redis.Client
	clock  clock.Clock
}

func NewRedisDenylist(cfg internal.DenylistConfig, clk clock.Clock) (*RedisDenylist, error) {
	if cfg.RedisAddr == "" {
		return nil, internal.NewConfigurationError("denylist enabled but no redis address configured")
	}
	if clk == nil {
		clk = clock.System{}
	}
	client := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	return &RedisDenylist{client: client, clock: clk}, nil
}

// NewRedisDenylistWithClient wraps an existing client, used by tests.
func NewRedisDenylistWithClient(client *redis.Client, clk clock.Clock) *RedisDenylist {
	if clk == nil {
		clk = clock.System{}
	}
	return &RedisDenylist{client: client, clock: clk}
}

func (d *RedisDenylist) Add(ctx context.Context, jti string, until time.Time) error {
	ttl := until.Sub(d.clock.Now())
	if ttl <= 0 {
		// already expired, nothing to deny
		return nil
	}
	return d.client.Set(ctx, denylistKeyPrefix+jti, "1", ttl).Err()
}

func (d *RedisDenylist) Contains(ctx context.Context, jti string) (bool, error) {
	n, err := d.client.Exists(ctx, denylistKeyPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *RedisDenylist) Close() error { return d.client.Close() }

// Ping verifies connectivity, called once at startup.
func (d *RedisDenylist) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}
