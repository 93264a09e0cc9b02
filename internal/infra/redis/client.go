package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultStream       = "stealthwatch:alerts"
	defaultStreamMaxLen = 100_000
	cursorsKey          = "stealthwatch:cursors"
)

// Client wraps Redis operations for alert publishing and cursor storage.
type Client struct {
	rdb    *redis.Client
	stream string
	maxLen int64
}

// Config holds Redis connection configuration.
type Config struct {
	URL          string `yaml:"url"`
	Password     string `yaml:"password"`
	Stream       string `yaml:"stream"`         // alert stream key
	StreamMaxLen int64  `yaml:"stream_max_len"` // approximate trim length
}

// Enabled reports whether a Redis URL is configured.
func (c Config) Enabled() bool {
	return c.URL != ""
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newClient(rdb, cfg), nil
}

func newClient(rdb *redis.Client, cfg Config) *Client {
	c := &Client{rdb: rdb, stream: cfg.Stream, maxLen: cfg.StreamMaxLen}
	if c.stream == "" {
		c.stream = defaultStream
	}
	if c.maxLen <= 0 {
		c.maxLen = defaultStreamMaxLen
	}
	return c
}

// Stream returns the alert stream key.
func (c *Client) Stream() string {
	return c.stream
}

// Health pings the server.
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}
