package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client holds the Redis client
type Client struct {
	Redis *redis.Client
}

// incrWithCeilingScript atomically increments a counter and rolls the
// increment back when the result would exceed the ceiling. Returns
// {allowed, value-after-call}.
var incrWithCeilingScript = redis.NewScript(`
local v = redis.call('INCRBY', KEYS[1], ARGV[1])
if v > tonumber(ARGV[2]) then
  redis.call('DECRBY', KEYS[1], ARGV[1])
  return {0, v - ARGV[1]}
end
return {1, v}
`)

// NewClient creates a new Redis client
func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed connecting to redis: %w", err)
	}

	log.Println("✅ Redis connected")

	return &Client{
		Redis: client,
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.Redis.Close()
}

// Set sets a key-value pair with expiration
func (c *Client) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.Redis.Set(ctx, key, value, expiration).Err()
}

// Get gets a value by key
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.Redis.Get(ctx, key).Result()
}

// GetInt reads an integer counter. A missing key reads as zero.
func (c *Client) GetInt(ctx context.Context, key string) (int64, error) {
	val, err := c.Redis.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read counter %s: %w", key, err)
	}
	return val, nil
}

// IncrBy atomically increments a counter and returns the new value
func (c *Client) IncrBy(ctx context.Context, key string, amount int64) (int64, error) {
	val, err := c.Redis.IncrBy(ctx, key, amount).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter %s: %w", key, err)
	}
	return val, nil
}

// IncrByWithCeiling atomically increments a counter unless the result
// would exceed ceiling; in that case the counter is left unchanged.
// Returns whether the increment was applied and the counter value after
// the call.
func (c *Client) IncrByWithCeiling(ctx context.Context, key string, amount, ceiling int64) (bool, int64, error) {
	res, err := incrWithCeilingScript.Run(ctx, c.Redis, []string{key}, amount, ceiling).Slice()
	if err != nil {
		return false, 0, fmt.Errorf("failed conditional increment on %s: %w", key, err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("unexpected script reply for %s: %v", key, res)
	}

	allowed, _ := res[0].(int64)
	value, _ := res[1].(int64)
	return allowed == 1, value, nil
}

// Delete deletes a key
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	return c.Redis.Del(ctx, keys...).Err()
}

// Exists checks if a key exists
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	count, err := c.Redis.Exists(ctx, key).Result()
	return count > 0, err
}

// TTL returns the time-to-live for a key
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	return c.Redis.TTL(ctx, key).Result()
}

// Expire sets a new expiration time for a key
func (c *Client) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return c.Redis.Expire(ctx, key, expiration).Err()
}
