// Package redis builds the go-redis client used by the user cache.
package redis

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultDialTimeout = 5 * time.Second
	defaultIOTimeout   = 3 * time.Second
	connectTimeout     = 5 * time.Second
)

// Config holds Redis connection configuration. Zero timeouts use defaults.
type Config struct {
	Host        string
	Port        string
	Password    string
	DB          int
	MaxRetries  int // -1 disables retries
	PoolSize    int
	MinIdleConn int
	DialTimeout time.Duration
	IOTimeout   time.Duration // read and write
}

// Addr is the host:port the client dials.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c Config) options() *redis.Options {
	dial := c.DialTimeout
	if dial <= 0 {
		dial = defaultDialTimeout
	}
	io := c.IOTimeout
	if io <= 0 {
		io = defaultIOTimeout
	}

	return &redis.Options{
		Addr:         c.Addr(),
		Password:     c.Password,
		DB:           c.DB,
		MaxRetries:   c.MaxRetries,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConn,
		DialTimeout:  dial,
		ReadTimeout:  io,
		WriteTimeout: io,
		PoolTimeout:  io + time.Second,
	}
}

// Client is a go-redis client that reports its own health and logs its close.
type Client struct {
	*redis.Client
	log *zap.Logger
}

// NewClient connects to Redis and fails unless a ping succeeds within ctx
// and the connect timeout.
func NewClient(ctx context.Context, cfg Config, log *zap.Logger) (*Client, error) {
	rdb := redis.NewClient(cfg.options())

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr(), err)
	}

	log.Info("Redis connected successfully",
		zap.String("addr", cfg.Addr()),
		zap.Int("db", cfg.DB),
		zap.Int("pool_size", cfg.PoolSize),
	)

	return &Client{Client: rdb, log: log}, nil
}

// Ping reports whether Redis answers; it serves the /health probe.
func (c *Client) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (c *Client) Close() error {
	c.log.Info("closing Redis connection", zap.String("addr", c.Options().Addr))
	return c.Client.Close()
}
