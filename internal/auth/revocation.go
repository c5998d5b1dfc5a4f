package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedPrefix = "auth:revoked:"

// RevocationStore remembers revoked token ids until they expire.
type RevocationStore interface {
	Revoke(ctx context.Context, id string, until time.Time) error
	IsRevoked(ctx context.Context, id string) (bool, error)
}

// RedisRevocations keeps one key per revoked token with a TTL matching the
// token's remaining lifetime.
type RedisRevocations struct {
	client *redis.Client
}

// NewRedisRevocations constructs the store.
func NewRedisRevocations(client *redis.Client) *RedisRevocations {
	return &RedisRevocations{client: client}
}

// Revoke marks id as revoked until the given time.
func (s *RedisRevocations) Revoke(ctx context.Context, id string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, revokedPrefix+id, "1", ttl).Err()
}

// IsRevoked reports whether id was revoked.
func (s *RedisRevocations) IsRevoked(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedPrefix+id).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
