package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func setupLocker(t *testing.T) (Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLocker(client, zerolog.Nop()), mr
}

func TestRedisLockerAcquireAndRelease(t *testing.T) {
	locker, mr := setupLocker(t)
	ctx := context.Background()

	release, acquired, err := locker.Acquire(ctx, "judge:contest_result:3:5", 10*time.Second)
	require.NoError(t, err)
	require.True(t, acquired)
	require.True(t, mr.Exists("judge:contest_result:3:5"))

	release()
	require.False(t, mr.Exists("judge:contest_result:3:5"))
}

func TestRedisLockerContention(t *testing.T) {
	locker, _ := setupLocker(t)
	ctx := context.Background()

	release, acquired, err := locker.Acquire(ctx, "k", 10*time.Second)
	require.NoError(t, err)
	require.True(t, acquired)
	defer release()

	_, acquired, err = locker.Acquire(ctx, "k", 10*time.Second)
	require.NoError(t, err)
	require.False(t, acquired, "a held lock cannot be acquired twice")
}

func TestRedisLockerReleaseIsScopedToOwner(t *testing.T) {
	locker, mr := setupLocker(t)
	ctx := context.Background()

	release, acquired, err := locker.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, acquired)

	// Simulate expiry plus takeover by another worker.
	mr.FastForward(2 * time.Second)
	_, acquired, err = locker.Acquire(ctx, "k", 10*time.Second)
	require.NoError(t, err)
	require.True(t, acquired)

	release()
	require.True(t, mr.Exists("k"), "releasing a lost lock must not delete the new owner's lock")
}
