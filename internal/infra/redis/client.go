package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/dal/internal/core/reconnect"
)

// Config holds Redis connection configuration.
type Config struct {
	Name        string           `yaml:"name"`
	URL         string           `yaml:"url"`
	Addrs       []string         `yaml:"addrs"` // cluster or sentinel endpoints, used when URL is empty
	Username    string           `yaml:"username"`
	Password    string           `yaml:"password"`
	DB          int              `yaml:"db"`
	MasterName  string           `yaml:"master_name"`
	DialTimeout time.Duration    `yaml:"dial_timeout"`
	Reconnect   reconnect.Config `yaml:"reconnect"`
}

// Enabled reports whether an endpoint is configured.
func (c Config) Enabled() bool {
	return c.URL != "" || len(c.Addrs) > 0
}

// UniversalOptions builds go-redis options from the configuration. A URL takes
// precedence over the address list.
func (c Config) UniversalOptions() (*redis.UniversalOptions, error) {
	var opts *redis.UniversalOptions

	if c.URL != "" {
		parsed, err := redis.ParseURL(c.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis URL: %w", err)
		}
		opts = &redis.UniversalOptions{
			Addrs:     []string{parsed.Addr},
			Username:  parsed.Username,
			Password:  parsed.Password,
			DB:        parsed.DB,
			TLSConfig: parsed.TLSConfig,
		}
	} else {
		if len(c.Addrs) == 0 {
			return nil, fmt.Errorf("redis url or addrs is required")
		}
		opts = &redis.UniversalOptions{
			Addrs: c.Addrs,
			DB:    c.DB,
		}
	}

	if c.Username != "" {
		opts.Username = c.Username
	}
	if c.Password != "" {
		opts.Password = c.Password
	}
	opts.MasterName = c.MasterName
	opts.DialTimeout = c.dialTimeout()
	// Retries belong to the connection manager.
	opts.MaxRetries = -1
	return opts, nil
}

func (c Config) dialTimeout() time.Duration {
	if c.DialTimeout > 0 {
		return c.DialTimeout
	}
	return 5 * time.Second
}

func (c Config) name() string {
	if c.Name != "" {
		return c.Name
	}
	return "redis"
}

// Client is the self-healing Redis connection shared by repositories and the
// cache facade.
type Client struct {
	mgr       *reconnect.Manager[redis.UniversalClient]
	endpoints []string
	accessors atomic.Pointer[accessors]
	logger    *slog.Logger
}

// NewClient creates a Client without connecting. The first operation dials.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	opts, err := cfg.UniversalOptions()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	dial := func(ctx context.Context) (redis.UniversalClient, error) {
		// Copy so a dial never observes mutations made by go-redis to a
		// previous client's options.
		o := *opts
		rdb := redis.NewUniversalClient(&o)

		pingCtx, cancel := context.WithTimeout(ctx, cfg.dialTimeout())
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return rdb, nil
	}

	mgr, err := reconnect.NewManager[redis.UniversalClient](cfg.name(), cfg.Reconnect, dial, IsTransient, logger)
	if err != nil {
		return nil, err
	}

	c := &Client{
		mgr:       mgr,
		endpoints: append([]string(nil), opts.Addrs...),
		logger:    logger.With("component", "redis", "target", cfg.name()),
	}
	c.accessors.Store(newAccessors(0))
	mgr.OnReconnect(func(redis.UniversalClient) {
		c.accessorsFor(mgr.Generation())
	})
	return c, nil
}

// Connect creates a Client and establishes its connection eagerly.
func Connect(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	c, err := NewClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	if _, err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Connect establishes the connection if needed and returns the current handle.
func (c *Client) Connect(ctx context.Context) (redis.UniversalClient, error) {
	return c.mgr.Connect(ctx)
}

// Handle returns the current go-redis client, connecting first if needed.
// Callers must not close it.
func (c *Client) Handle(ctx context.Context) (redis.UniversalClient, error) {
	return c.mgr.Handle(ctx)
}

// Do runs fn with the current handle and retries transient faults.
func (c *Client) Do(ctx context.Context, fn func(ctx context.Context, rdb redis.UniversalClient) error) error {
	return c.mgr.Do(ctx, fn)
}

// Execute runs fn with the current handle of c and retries transient faults.
func Execute[T any](
	ctx context.Context,
	c *Client,
	fn func(ctx context.Context, rdb redis.UniversalClient) (T, error),
) (T, error) {
	return reconnect.Execute(ctx, c.mgr, fn)
}

// Manager exposes the underlying connection manager.
func (c *Client) Manager() *reconnect.Manager[redis.UniversalClient] {
	return c.mgr
}

// Name returns the configured target name.
func (c *Client) Name() string {
	return c.mgr.Name()
}

// Endpoints returns the configured server addresses.
func (c *Client) Endpoints() []string {
	return append([]string(nil), c.endpoints...)
}

// Ping checks connectivity through the retry wrapper.
func (c *Client) Ping(ctx context.Context) error {
	return c.Do(ctx, func(ctx context.Context, rdb redis.UniversalClient) error {
		return rdb.Ping(ctx).Err()
	})
}

// Close closes cached subscriptions and the Redis connection.
func (c *Client) Close() error {
	c.accessors.Load().close(c.logger)
	return c.mgr.Close()
}
