package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRedisStore creates a miniredis instance and returns a connected
// RedisStore.
func setupRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	mr := miniredis.RunT(t)
	s, err := NewRedisStore(RedisOptions{
		URL:            fmt.Sprintf("redis://%s", mr.Addr()),
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   5 * time.Second,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = s.Close()
		mr.Close()
	})
	return s
}

func TestNewRedisStore(t *testing.T) {
	t.Run("successful connection", func(t *testing.T) {
		mr := miniredis.RunT(t)
		defer mr.Close()

		s, err := NewRedisStore(RedisOptions{URL: fmt.Sprintf("redis://%s", mr.Addr())})
		require.NoError(t, err)
		require.NotNil(t, s)
		defer s.Close()
	})

	t.Run("connection failure", func(t *testing.T) {
		_, err := NewRedisStore(RedisOptions{
			URL:            "redis://localhost:1",
			ConnectTimeout: 100 * time.Millisecond,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to connect to Redis")
	})

	t.Run("invalid URL", func(t *testing.T) {
		_, err := NewRedisStore(RedisOptions{URL: "invalid://url"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse Redis URL")
	})
}

func TestRedisStoreRoundTrip(t *testing.T) {
	s := setupRedisStore(t)
	roundTrip(t, s)
}

func TestRedisStoreSaveDropsStaleRecords(t *testing.T) {
	s := setupRedisStore(t)
	ctx := context.Background()

	techniques := sampleTechniques()
	require.NoError(t, s.Save(ctx, techniques))
	require.NoError(t, s.Save(ctx, techniques[1:]))

	// The record for the removed technique must be gone, not orphaned.
	val := s.client.Get(ctx, s.attackKey("T1566"))
	assert.Error(t, val.Err())

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "T1059", loaded[0].AttackID)
}

func TestRedisStoreKeyPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	defer mr.Close()

	s, err := NewRedisStore(RedisOptions{
		URL:       fmt.Sprintf("redis://%s", mr.Addr()),
		KeyPrefix: "custom",
	})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(context.Background(), sampleTechniques()))
	assert.True(t, mr.Exists("custom:attacks"))
	assert.True(t, mr.Exists("custom:attack:T1566"))
}
