package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTokenStore shares one token between the consoles of a profile, e.g.
// several fleetctl processes on an operator workstation.
type RedisTokenStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisTokenStore stores the token under fleet:token:<profile>. A ttl of
// zero keeps it until Clear.
func NewRedisTokenStore(client *redis.Client, profile string, ttl time.Duration) *RedisTokenStore {
	if profile == "" {
		profile = "default"
	}
	return &RedisTokenStore{
		client: client,
		key:    "fleet:token:" + profile,
		ttl:    ttl,
	}
}

func (s *RedisTokenStore) Load(ctx context.Context) (string, error) {
	val, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis token: failed to load: %w", err)
	}
	return val, nil
}

func (s *RedisTokenStore) Save(ctx context.Context, token string) error {
	if err := s.client.Set(ctx, s.key, token, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis token: failed to save: %w", err)
	}
	return nil
}

func (s *RedisTokenStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis token: failed to clear: %w", err)
	}
	return nil
}
