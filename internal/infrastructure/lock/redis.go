// Package lock provides the per-connector sync lease: Redis when configured,
// an in-process map otherwise.
package lock

import (
	"context"
	"fmt"
	"time"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/ports"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "connector-sync:lock:"

// releaseScript deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker hands out leases with SET NX PX
type RedisLocker struct {
	client *redis.Client
	logger zerolog.Logger
}

var _ ports.SyncLocker = (*RedisLocker)(nil)

// NewRedisClient parses a redis:// URL and pings the server
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisLocker creates a locker over a connected client
func NewRedisLocker(client *redis.Client, logger zerolog.Logger) *RedisLocker {
	return &RedisLocker{client: client, logger: logger}
}

// Acquire takes the lease for key or returns domain.ErrSyncInProgress
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (ports.Lease, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, keyPrefix+key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSyncInProgress, key)
	}
	return &redisLease{client: l.client, key: keyPrefix + key, token: token, logger: l.logger}, nil
}

type redisLease struct {
	client *redis.Client
	key    string
	token  string
	logger zerolog.Logger
}

func (l *redisLease) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
	if err != nil {
		return fmt.Errorf("failed to release sync lock: %w", err)
	}
	if n == 0 {
		l.logger.Warn().Str("key", l.key).Msg("Sync lock expired before release")
	}
	return nil
}
