package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a test Redis client using miniredis
func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	opts := &redis.Options{
		Addr: mr.Addr(),
	}
	redisClient := redis.NewClient(opts)

	client := &Client{
		Redis: redisClient,
	}

	return client, mr
}

func TestClient_SetGet(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()

	err := client.Set(ctx, "test:key1", "value1", 1*time.Hour)
	require.NoError(t, err)

	val, err := client.Get(ctx, "test:key1")
	require.NoError(t, err)
	assert.Equal(t, "value1", val)
}

func TestClient_GetInt(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()

	// Missing key reads as zero
	val, err := client.GetInt(ctx, "guest:abc:usage:tiles")
	require.NoError(t, err)
	assert.Equal(t, int64(0), val)

	_, err = client.IncrBy(ctx, "guest:abc:usage:tiles", 7)
	require.NoError(t, err)

	val, err = client.GetInt(ctx, "guest:abc:usage:tiles")
	require.NoError(t, err)
	assert.Equal(t, int64(7), val)
}

func TestClient_IncrBy(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()

	val, err := client.IncrBy(ctx, "member:u1:usage:notes", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), val)

	val, err = client.IncrBy(ctx, "member:u1:usage:notes", 4)
	require.NoError(t, err)
	assert.Equal(t, int64(5), val)
}

func TestClient_IncrByWithCeiling(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()
	key := "member:u1:usage:tile_chats"

	// Under the ceiling: applied
	allowed, val, err := client.IncrByWithCeiling(ctx, key, 4, 5)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, int64(4), val)

	// Exactly at the ceiling: applied
	allowed, val, err = client.IncrByWithCeiling(ctx, key, 1, 5)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, int64(5), val)

	// Over the ceiling: rolled back, counter unchanged
	allowed, val, err = client.IncrByWithCeiling(ctx, key, 1, 5)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, int64(5), val)

	current, err := client.GetInt(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(5), current)
}

func TestClient_Delete(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()

	_ = client.Set(ctx, "test:key1", "value1", 1*time.Hour)
	_ = client.Set(ctx, "test:key2", "value2", 1*time.Hour)

	err := client.Delete(ctx, "test:key1")
	require.NoError(t, err)

	_, err = client.Get(ctx, "test:key1")
	assert.Error(t, err) // Should be redis.Nil error

	val, err := client.Get(ctx, "test:key2")
	require.NoError(t, err)
	assert.Equal(t, "value2", val)
}

func TestClient_Exists(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()

	exists, err := client.Exists(ctx, "test:nonexistent")
	require.NoError(t, err)
	assert.False(t, exists)

	_ = client.Set(ctx, "test:exists", "value", 1*time.Hour)

	exists, err = client.Exists(ctx, "test:exists")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestClient_Expire(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()

	_ = client.Set(ctx, "test:expire", "value", 1*time.Hour)

	err := client.Expire(ctx, "test:expire", 5*time.Second)
	require.NoError(t, err)

	ttl, err := client.TTL(ctx, "test:expire")
	require.NoError(t, err)
	assert.Greater(t, ttl.Seconds(), 4.0)
	assert.LessOrEqual(t, ttl.Seconds(), 5.0)
}
