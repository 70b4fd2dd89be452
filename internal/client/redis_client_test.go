package client

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := NewRedisClientFromAddr(mr.Addr())
	t.Cleanup(func() { rc.Close() })
	return rc, mr
}

func TestRedisSetGet(t *testing.T) {
	rc, _ := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, rc.Set(ctx, "session:abc", "payload", time.Minute))

	val, err := rc.Get(ctx, "session:abc")
	require.NoError(t, err)
	assert.Equal(t, "payload", val)
}

func TestRedisGetMissingKey(t *testing.T) {
	rc, _ := newTestRedis(t)

	_, err := rc.Get(context.Background(), "absent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key not found")
}

func TestRedisDelAndExists(t *testing.T) {
	rc, _ := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, rc.Set(ctx, "k", "v", 0))

	exists, err := rc.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, rc.Del(ctx, "k"))

	exists, err = rc.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRedisSetNX(t *testing.T) {
	rc, _ := newTestRedis(t)
	ctx := context.Background()

	ok, err := rc.SetNX(ctx, "lock", "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rc.SetNX(ctx, "lock", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	val, err := rc.Get(ctx, "lock")
	require.NoError(t, err)
	assert.Equal(t, "a", val)
}

func TestRedisIncrWithExpireKeepsWindowFixed(t *testing.T) {
	rc, mr := newTestRedis(t)
	ctx := context.Background()

	n, err := rc.IncrWithExpire(ctx, "counter", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	mr.FastForward(30 * time.Second)

	// The second increment must not push the expiry out.
	n, err = rc.IncrWithExpire(ctx, "counter", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ttl, err := rc.TTL(ctx, "counter")
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, 30*time.Second)
	assert.Greater(t, ttl, time.Duration(0))

	mr.FastForward(31 * time.Second)
	n, err = rc.IncrWithExpire(ctx, "counter", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "counter restarts after the window lapses")
}
