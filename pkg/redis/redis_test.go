package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T) (*miniredis.Miniredis, RedisAdapter) {
	mr := miniredis.RunT(t)
	adapter, err := NewRedisAdapter(t.Name(), "test:", &goredis.UniversalOptions{Addrs: []string{mr.Addr()}})
	require.NoError(t, err)
	return mr, adapter
}

func TestRedisAdapter_TryLock(t *testing.T) {
	mr, adapter := newTestAdapter(t)
	ctx := context.Background()

	release, err := adapter.TryLock(ctx, "job:auto-red", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:job:auto-red"))

	_, err = adapter.TryLock(ctx, "job:auto-red", time.Minute)
	assert.ErrorIs(t, err, ErrLockNotObtained)

	release()
	assert.False(t, mr.Exists("test:job:auto-red"))

	release, err = adapter.TryLock(ctx, "job:auto-red", time.Minute)
	require.NoError(t, err)
	release()
}

func TestRedisAdapter_LockExpires(t *testing.T) {
	mr, adapter := newTestAdapter(t)
	ctx := context.Background()

	_, err := adapter.TryLock(ctx, "sync:erp", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	release, err := adapter.TryLock(ctx, "sync:erp", time.Second)
	require.NoError(t, err)
	release()
}

func TestRedisAdapter_LockIsRenewedWhileHeld(t *testing.T) {
	mr, adapter := newTestAdapter(t)
	ctx := context.Background()

	release, err := adapter.TryLock(ctx, "job:erp-sync", 400*time.Millisecond)
	require.NoError(t, err)

	// use up most of the ttl in redis time; only a renewal brings it back
	mr.FastForward(300 * time.Millisecond)
	require.Eventually(t, func() bool {
		return mr.TTL("test:job:erp-sync") > 300*time.Millisecond
	}, 2*time.Second, 10*time.Millisecond)
	mr.FastForward(300 * time.Millisecond)
	assert.True(t, mr.Exists("test:job:erp-sync"))

	_, err = adapter.TryLock(ctx, "job:erp-sync", time.Minute)
	assert.ErrorIs(t, err, ErrLockNotObtained)

	release()
	release()
	assert.False(t, mr.Exists("test:job:erp-sync"))
}

func TestRedisAdapter_PrefixAndIncr(t *testing.T) {
	mr, adapter := newTestAdapter(t)
	ctx := context.Background()

	ok, err := adapter.SetNX(ctx, "k", []byte("v"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = adapter.SetNX(ctx, "k", []byte("w"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := mr.Get("test:k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	n, err := adapter.Incr(ctx, "counter", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = adapter.Incr(ctx, "counter", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, time.Minute, mr.TTL("test:counter"))

	_, err = adapter.Get(ctx, "missing")
	assert.ErrorIs(t, err, NilError)
}

func TestGetRedis_FallsBackToDefault(t *testing.T) {
	mr := miniredis.RunT(t)
	def, err := NewRedisAdapter("default", "", &goredis.UniversalOptions{Addrs: []string{mr.Addr()}})
	require.NoError(t, err)

	assert.Same(t, def, GetRedis())
	assert.Same(t, def, GetRedis("unknown"))
}
