package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Locker serializes critical sections across workers by key.
type Locker interface {
	// Acquire tries to take the lock. When acquired it returns true and a
	// release function; when contended it returns false with a no-op release.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}

// releaseScript deletes the lock only when it still holds our value, so an
// expired lock taken over by another worker is never released from here.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`)

// NewRedisLocker constructs a redis-backed locker.
func NewRedisLocker(client *redis.Client, logger zerolog.Logger) Locker {
	return &redisLocker{
		client: client,
		logger: logger.With().Str("component", "redis_locker").Logger(),
	}
}

type redisLocker struct {
	client *redis.Client
	logger zerolog.Logger
}

func (l *redisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	value := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return func() {}, false, err
	}
	if !ok {
		return func() {}, false, nil
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, value).Err(); err != nil {
			l.logger.Error().Err(err).Str("key", key).Msg("failed to release lock")
		}
	}
	return release, true, nil
}
