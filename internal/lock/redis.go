package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the key only if it still carries our token, so an
// expired lock taken over by another holder is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client     *redis.Client
	logger     *zap.Logger
	ttl        time.Duration
	attempts   int
	retryDelay time.Duration
}

func NewRedisLocker(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{
		client:     client,
		logger:     logger,
		ttl:        ttl,
		attempts:   20,
		retryDelay: 50 * time.Millisecond,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	lockKey := "lock:item:" + key
	token := uuid.NewString()

	for i := 0; i < l.attempts; i++ {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			l.logger.Warn("redis lock attempt failed", zap.String("key", lockKey), zap.Error(err))
		}
		if ok {
			return func() {
				// The caller's context may already be cancelled by the time we release.
				releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := releaseScript.Run(releaseCtx, l.client, []string{lockKey}, token).Err(); err != nil {
					l.logger.Warn("redis lock release failed", zap.String("key", lockKey), zap.Error(err))
				}
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryDelay):
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotAcquired, lockKey)
}
