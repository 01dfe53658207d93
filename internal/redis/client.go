package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	rdb *redis.Client
}

func New(dsn string) (*Client, error) {
	opts, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = 10
	opts.MinIdleConns = 5
	opts.ConnMaxIdleTime = 5 * time.Minute
	opts.ConnMaxLifetime = 30 * time.Minute

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Client{rdb: rdb}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) RDB() *redis.Client {
	return c.rdb
}

// MarkSeen records key for ttl and reports whether it was already present.
// Used to dedupe redelivered trigger events; a false return on error is
// intentional so a redis outage degrades to at-least-once processing.
func (c *Client) MarkSeen(ctx context.Context, key string, ttl time.Duration) bool {
	ok, err := c.rdb.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false
	}
	return !ok
}

// Forget drops a dedup key so a redelivery of the same event is
// processed instead of suppressed.
func (c *Client) Forget(ctx context.Context, key string) {
	_ = c.rdb.Del(ctx, key).Err()
}

// DeadLetter appends a failed work item to the engine's dead-letter list.
func (c *Client) DeadLetter(ctx context.Context, list string, item any) error {
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}
	pipe := c.rdb.Pipeline()
	pipe.LPush(ctx, list, data)
	pipe.Expire(ctx, list, 7*24*time.Hour)
	_, err = pipe.Exec(ctx)
	return err
}

// DeadLetterLen reports the current depth of a dead-letter list.
func (c *Client) DeadLetterLen(ctx context.Context, list string) (int64, error) {
	return c.rdb.LLen(ctx, list).Result()
}
