package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLocker(client), mr
}

func TestTryLockExcludesSecondHolder(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()

	release, ok, err := locker.TryLock(ctx, "ledger:integrity:lock", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, mr.Exists("ledger:integrity:lock"))

	_, ok, err = locker.TryLock(ctx, "ledger:integrity:lock", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, release(ctx))
	require.False(t, mr.Exists("ledger:integrity:lock"))

	_, ok, err = locker.TryLock(ctx, "ledger:integrity:lock", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestReleaseAfterExpiryDoesNotDropNewHolder(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()

	release, ok, err := locker.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	mr.FastForward(2 * time.Second)

	_, ok, err = locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.ErrorIs(t, release(ctx), ErrLockLost)
	require.True(t, mr.Exists("k"))
}

func TestTryLockReportsRedisErrors(t *testing.T) {
	locker, mr := newLocker(t)
	mr.Close()
	_, ok, err := locker.TryLock(context.Background(), "k", time.Minute)
	require.Error(t, err)
	require.False(t, ok)
}
