package redis

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geosnap-service/internal/client"
)

func newTestCache(t *testing.T) (*RateLimitCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rc := client.NewRedisClientFromAddr(mr.Addr())
	t.Cleanup(func() { _ = rc.Close() })

	return NewRateLimitCache(rc), mr
}

func TestIssueCounterIncrements(t *testing.T) {
	cache, _ := newTestCache(t)

	for want := 1; want <= 3; want++ {
		count, err := cache.IncrementIssueCounter("user@example.com", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, want, count)
	}
}

func TestCountersAreIndependentPerEmail(t *testing.T) {
	cache, _ := newTestCache(t)

	_, err := cache.IncrementIssueCounter("a@example.com", time.Hour)
	require.NoError(t, err)

	count, err := cache.IncrementIssueCounter("b@example.com", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIssueAndVerifyCountersSeparate(t *testing.T) {
	cache, _ := newTestCache(t)

	_, err := cache.IncrementIssueCounter("user@example.com", time.Hour)
	require.NoError(t, err)

	count, err := cache.IncrementVerifyCounter("user@example.com", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCounterExpiresAfterWindow(t *testing.T) {
	cache, mr := newTestCache(t)

	_, err := cache.IncrementIssueCounter("user@example.com", time.Minute)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	count, err := cache.IncrementIssueCounter("user@example.com", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestResetVerifyCounter(t *testing.T) {
	cache, _ := newTestCache(t)

	_, err := cache.IncrementVerifyCounter("user@example.com", time.Minute)
	require.NoError(t, err)
	require.NoError(t, cache.ResetVerifyCounter("user@example.com"))

	count, err := cache.IncrementVerifyCounter("user@example.com", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
