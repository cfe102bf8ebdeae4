package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/logging"
	"go.uber.org/zap"
)

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// RedisLocker is a Locker shared by every replica connected to one Redis.
// Lock polls SET NX until it succeeds, ctx is done, or Wait elapses.
// A failed release is logged to Logger; the key then frees itself after TTL.
type RedisLocker struct {
	client *redis.Client
	script *redis.Script

	Logger *zap.Logger
	Prefix string
	TTL    time.Duration
	Wait   time.Duration
	Retry  time.Duration
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{
		client: client,
		script: redis.NewScript(releaseScript),
		Prefix: "attendance:reconcile:",
		TTL:    30 * time.Second,
		Wait:   10 * time.Second,
		Retry:  50 * time.Millisecond,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l == nil || l.client == nil {
		return nil, errors.New("redis lock client not configured")
	}
	if key == "" {
		return nil, errors.New("lock key is empty")
	}

	redisKey := l.Prefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.Wait)

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", redisKey, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("acquire %s: %w", redisKey, generic.ErrLockNotAcquired)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.Retry):
		}
	}

	return func() {
		// ctx may already be cancelled by the time the caller unlocks.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		released, err := l.script.Run(releaseCtx, l.client, []string{redisKey}, token).Int()
		switch {
		case err != nil:
			logging.OrNop(l.Logger).Warn("release redis lock failed",
				zap.String("lock_key", redisKey), zap.Duration("ttl", l.TTL), zap.Error(err))
		case released == 0:
			logging.OrNop(l.Logger).Warn("redis lock expired before release",
				zap.String("lock_key", redisKey), zap.Duration("ttl", l.TTL))
		}
	}, nil
}
