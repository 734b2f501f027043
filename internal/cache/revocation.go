package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lumen_backend/internal/config"
)

// Key prefix shared with prior deployments; changing it would un-revoke
// every session currently on the denylist.
const blacklistKeyPrefix = "TOKEN_BLACKLIST:"

// RevocationList is the session denylist. A sessionId is either unrevoked
// (valid) or present here until its TTL lapses; sessions are never
// enumerable, only queried by id.
type RevocationList interface {
	// Add marks a session revoked for at least ttl. Idempotent.
	Add(ctx context.Context, sessionID string, ttl time.Duration) error
	// Contains reports whether the session is revoked. Errors propagate:
	// callers treat an unreachable cache as "cannot confirm validity".
	Contains(ctx context.Context, sessionID string) (bool, error)
}

// RedisRevocationList implements RevocationList on a redis TTL store.
type RedisRevocationList struct {
	client *redis.Client
}

func NewRedisRevocationList(client *redis.Client) *RedisRevocationList {
	return &RedisRevocationList{client: client}
}

// NewRedisClient connects to redis and verifies the connection. The
// revocation list is load-bearing for refresh-token security, so unlike
// optional caches a failed connection is fatal at startup.
func NewRedisClient(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
	}
	return client, nil
}

func (r *RedisRevocationList) Add(ctx context.Context, sessionID string, ttl time.Duration) error {
	key := blacklistKeyPrefix + sessionID
	if err := r.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("add session to revocation list: %w", err)
	}
	return nil
}

func (r *RedisRevocationList) Contains(ctx context.Context, sessionID string) (bool, error) {
	key := blacklistKeyPrefix + sessionID
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation list: %w", err)
	}
	return n == 1, nil
}
