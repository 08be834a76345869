package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps go-redis for the session-list cache
type Client struct {
	client *redis.Client
	ttl    time.Duration
}

// NewClient connects to the redis instance at addr. A zero ttl means entries
// never expire on their own.
func NewClient(addr string, ttl time.Duration) *Client {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0,
	})
	return &Client{client: client, ttl: ttl}
}

// Ping verifies the connection
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get returns the cached value and whether it was present
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return raw, true
}

// Set stores the value under key with the configured TTL
func (c *Client) Set(ctx context.Context, key string, value []byte) {
	_ = c.client.Set(ctx, key, value, c.ttl).Err()
}

// Del removes the key
func (c *Client) Del(ctx context.Context, key string) {
	_ = c.client.Del(ctx, key).Err()
}

// Close releases the underlying connection pool
func (c *Client) Close() error {
	return c.client.Close()
}
