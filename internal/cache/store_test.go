package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetGetDel(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Set(ctx, "k", "v", 0))
	val, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", val)

	require.NoError(t, s.Del(ctx, "k"))
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Set(ctx, "k", "v", 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	exists, err := s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryStoreExistsAcrossNamespaces(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.HSet(ctx, "h", map[string]string{"f": "1"}))
	_, err := s.RPush(ctx, "l", "a")
	require.NoError(t, err)

	for _, key := range []string{"h", "l"} {
		exists, err := s.Exists(ctx, key)
		require.NoError(t, err)
		assert.True(t, exists, key)
	}
}

func TestMemoryStoreHIncrByCreatesField(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	n, err := s.HIncrBy(ctx, "h", "count", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.HIncrBy(ctx, "h", "count", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	val, ok, err := s.HGet(ctx, "h", "count")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "3", val)
}

func TestMemoryStoreLRangeNegativeIndices(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.RPush(ctx, "l", "a", "b", "c", "d")
	require.NoError(t, err)

	out, err := s.LRange(ctx, "l", -2, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, out)

	out, err = s.LRange(ctx, "l", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, out)

	out, err = s.LRange(ctx, "l", -10, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out)

	out, err = s.LRange(ctx, "missing", 0, -1)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestMemoryStoreScanPages(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for i := 0; i < 25; i++ {
		require.NoError(t, s.Set(ctx, fmt.Sprintf("match:%02d", i), "v", 0))
	}
	require.NoError(t, s.Set(ctx, "other", "v", 0))

	keys, err := ScanAll(ctx, s, "match:*")
	require.NoError(t, err)
	assert.Len(t, keys, 25)
	assert.NotContains(t, keys, "other")
}

// brokenStore errors on everything, standing in for an unreachable redis.
type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (string, bool, error) {
	return "", false, assert.AnError
}
func (brokenStore) Set(context.Context, string, string, time.Duration) error { return assert.AnError }
func (brokenStore) Del(context.Context, ...string) error                     { return assert.AnError }
func (brokenStore) Exists(context.Context, string) (bool, error)             { return false, assert.AnError }
func (brokenStore) Expire(context.Context, string, time.Duration) error      { return assert.AnError }
func (brokenStore) HSet(context.Context, string, map[string]string) error    { return assert.AnError }
func (brokenStore) HGet(context.Context, string, string) (string, bool, error) {
	return "", false, assert.AnError
}
func (brokenStore) HGetAll(context.Context, string) (map[string]string, error) {
	return nil, assert.AnError
}
func (brokenStore) HIncrBy(context.Context, string, string, int64) (int64, error) {
	return 0, assert.AnError
}
func (brokenStore) RPush(context.Context, string, ...string) (int64, error) {
	return 0, assert.AnError
}
func (brokenStore) LRange(context.Context, string, int64, int64) ([]string, error) {
	return nil, assert.AnError
}
func (brokenStore) Scan(context.Context, uint64, string, int64) ([]string, uint64, error) {
	return nil, 0, assert.AnError
}

func TestFailoverStoreFallsBack(t *testing.T) {
	ctx := context.Background()
	s := NewFailoverStore(brokenStore{}, NewMemoryStore())

	require.NoError(t, s.Set(ctx, "k", "v", 0))
	val, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", val)

	n, err := s.HIncrBy(ctx, "h", "f", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestFailoverStoreDelHitsBothTiers(t *testing.T) {
	ctx := context.Background()
	primary := NewMemoryStore()
	fallback := NewMemoryStore()
	s := NewFailoverStore(primary, fallback)

	require.NoError(t, primary.Set(ctx, "k", "v", 0))
	require.NoError(t, fallback.Set(ctx, "k", "v", 0))

	require.NoError(t, s.Del(ctx, "k"))

	_, ok, err := primary.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = fallback.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
