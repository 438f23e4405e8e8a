package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationList records logged-out tokens until they would have expired.
// Key format: revoked:<jti>
type RevocationList struct {
	client *redis.Client
}

func NewRevocationList(client *redis.Client) *RevocationList {
	return &RevocationList{client: client}
}

// IsRevoked reports whether the token with this id was logged out.
func (l *RevocationList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := l.client.Exists(ctx, l.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("revocation check: %w", err)
	}
	return n > 0, nil
}

// Revoke marks the token as revoked for ttl.
func (l *RevocationList) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if err := l.client.Set(ctx, l.key(tokenID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke: %w", err)
	}
	return nil
}

func (l *RevocationList) key(tokenID string) string {
	return "revoked:" + tokenID
}
