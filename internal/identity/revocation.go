package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// revocationKeyPrefix namespaces revocation watermarks in Redis.
const revocationKeyPrefix = "unionhub:revoked:"

// RevocationStore tracks the per-subject tokens-valid-after watermark.
// Session cookies issued before the watermark are considered revoked. The
// boundary only ever reads the watermark during authoritative verification;
// writes come from the admin revoke endpoint.
type RevocationStore interface {
	// ValidAfter returns the subject's watermark. The zero time means the
	// subject has no revocation on record.
	ValidAfter(ctx context.Context, subject string) (time.Time, error)
	// Revoke advances the subject's watermark to at.
	Revoke(ctx context.Context, subject string, at time.Time) error
}

// RedisRevocationStore stores watermarks in Redis with a bounded TTL: a
// watermark only matters while pre-revocation cookies could still be live,
// so entries expire one session lifetime (plus margin) after the revocation.
type RedisRevocationStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRevocationStore wraps a Redis client. ttl should be the session
// cookie lifetime plus a safety margin.
func NewRedisRevocationStore(client *redis.Client, ttl time.Duration) *RedisRevocationStore {
	if ttl <= 0 {
		ttl = 25 * time.Hour
	}
	return &RedisRevocationStore{client: client, ttl: ttl}
}

// ValidAfter implements RevocationStore.
func (s *RedisRevocationStore) ValidAfter(ctx context.Context, subject string) (time.Time, error) {
	val, err := s.client.Get(ctx, revocationKeyPrefix+subject).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("identity: read revocation watermark: %w", err)
	}
	secs, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("identity: corrupt revocation watermark %q: %w", val, err)
	}
	return time.Unix(secs, 0), nil
}

// Revoke implements RevocationStore.
func (s *RedisRevocationStore) Revoke(ctx context.Context, subject string, at time.Time) error {
	err := s.client.Set(ctx, revocationKeyPrefix+subject, strconv.FormatInt(at.Unix(), 10), s.ttl).Err()
	if err != nil {
		return fmt.Errorf("identity: write revocation watermark: %w", err)
	}
	return nil
}

// NoopRevocationStore is used when Redis is not configured. Every session is
// treated as unrevoked and revocation requests are discarded.
type NoopRevocationStore struct{}

// ValidAfter implements RevocationStore.
func (NoopRevocationStore) ValidAfter(context.Context, string) (time.Time, error) {
	return time.Time{}, nil
}

// Revoke implements RevocationStore.
func (NoopRevocationStore) Revoke(context.Context, string, time.Time) error {
	return nil
}
