package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// redisLockManager serializes per-ticket execution across instances with a
// SET NX PX lock. Acquire polls until the lock is free or ctx is done.
type redisLockManager struct {
	client   *redis.Client
	prefix   string
	interval time.Duration
	logger   *zap.Logger
}

// releaseScript deletes the lock only when the caller still owns it, so an
// expired-and-reacquired lock is never released by the previous holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0`)

// NewRedisLockManager creates a Redis-backed lock manager.
func NewRedisLockManager(client *redis.Client, prefix string, logger *zap.Logger) LockManager {
	if prefix == "" {
		prefix = "workflow:lock:"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisLockManager{
		client:   client,
		prefix:   prefix,
		interval: 25 * time.Millisecond,
		logger:   logger,
	}
}

func (m *redisLockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	lockKey := m.prefix + key
	token := uuid.NewString()

	for {
		ok, err := m.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := releaseScript.Run(releaseCtx, m.client, []string{lockKey}, token).Err(); err != nil && err != redis.Nil {
					m.logger.Warn("failed to release lock", zap.String("key", lockKey), zap.Error(err))
				}
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.interval):
		}
	}
}
