package identity

import (
	"context"
	"fmt"
	"time"

	"ruminster/internal/platform/redis"
)

const revokedKeyPrefix = "ruminster:revoked:"

// RevocationStore tracks revoked token IDs in redis. Entries expire with
// the token itself, so the set stays bounded.
type RevocationStore struct {
	client *redis.Client
}

// NewRevocationStore builds a redis-backed revocation store. A nil client
// disables revocation checks.
func NewRevocationStore(client *redis.Client) *RevocationStore {
	if client == nil {
		return nil
	}
	return &RevocationStore{client: client}
}

// Revoke marks a token ID revoked until its natural expiry.
func (s *RevocationStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, revokedKeyPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsTokenRevoked implements middleware.TokenRevocationChecker.
func (s *RevocationStore) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check token revocation: %w", err)
	}
	return n > 0, nil
}
