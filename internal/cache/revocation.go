package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const blacklistPrefix = "blacklist:"

// RevokeToken marks a session token id as revoked until ttl elapses.
// Non-positive ttls are a no-op since the token has already expired.
func RevokeToken(ctx context.Context, rdb *redis.Client, jti string, ttl time.Duration) error {
	if rdb == nil || jti == "" || ttl <= 0 {
		return nil
	}
	return rdb.Set(ctx, blacklistPrefix+jti, "1", ttl).Err()
}

// IsTokenRevoked reports whether jti has been revoked. Lookup errors are
// returned so callers can decide whether to fail open.
func IsTokenRevoked(ctx context.Context, rdb *redis.Client, jti string) (bool, error) {
	if rdb == nil || jti == "" {
		return false, nil
	}
	n, err := rdb.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
