package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revocations remembers signed-out sessions until their tokens expire.
type Revocations interface {
	Revoke(ctx context.Context, sessionID string, until time.Time) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// RedisRevocations keeps one key per revoked session with a TTL equal to the
// token's remaining lifetime.
type RedisRevocations struct {
	rdb *redis.Client
	now func() time.Time
}

func NewRedisRevocations(rdb *redis.Client) *RedisRevocations {
	return &RedisRevocations{rdb: rdb, now: time.Now}
}

func revokedKey(sessionID string) string { return "auth:revoked:" + sessionID }

func (r *RedisRevocations) Revoke(ctx context.Context, sessionID string, until time.Time) error {
	ttl := until.Sub(r.now())
	if ttl <= 0 {
		// токен уже прострочений, пам'ятати нічого
		return nil
	}
	return r.rdb.Set(ctx, revokedKey(sessionID), 1, ttl).Err()
}

func (r *RedisRevocations) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	err := r.rdb.Get(ctx, revokedKey(sessionID)).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, err
	}
}
