package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/vietddude/dal/internal/metrics"
)

// ErrCacheMiss is returned by Cache.Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// ErrExpirationInPast is returned by Cache.Set for an absolute expiration
// that has already elapsed.
var ErrExpirationInPast = errors.New("absolute expiration is in the past")

const (
	fieldData     = "data"
	fieldSliding  = "sld"
	fieldAbsolute = "abs"

	notPresent = int64(-1)
)

// EntryOptions controls the lifetime of a cache entry. Zero values disable
// the corresponding expiration.
type EntryOptions struct {
	// AbsoluteExpiration is measured from the time of Set.
	AbsoluteExpiration time.Duration
	// SlidingExpiration is extended on every Get or Refresh, but never past
	// the absolute expiration.
	SlidingExpiration time.Duration
}

// Cache is a distributed byte cache stored in Redis hashes. Every call goes
// through the client's retry wrapper.
type Cache struct {
	client *Client
	prefix string
	now    func() time.Time
}

// NewCache creates a cache that namespaces its keys with prefix.
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (c *Cache) key(k string) string {
	return c.prefix + k
}

// Get returns the value stored under key and extends its sliding expiration.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.getAndRefresh(ctx, key, true)
	switch {
	case errors.Is(err, ErrCacheMiss):
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	case err != nil:
		metrics.CacheLookups.WithLabelValues("error").Inc()
	default:
		metrics.CacheLookups.WithLabelValues("hit").Inc()
	}
	return data, err
}

// Refresh extends the sliding expiration of key without reading its value.
func (c *Cache) Refresh(ctx context.Context, key string) error {
	_, err := c.getAndRefresh(ctx, key, false)
	if errors.Is(err, ErrCacheMiss) {
		return nil
	}
	return err
}

func (c *Cache) getAndRefresh(ctx context.Context, key string, withData bool) ([]byte, error) {
	k := c.key(key)
	fields := []string{fieldSliding, fieldAbsolute}
	if withData {
		fields = append(fields, fieldData)
	}

	vals, err := Execute(ctx, c.client, func(ctx context.Context, rdb redis.UniversalClient) ([]any, error) {
		return rdb.HMGet(ctx, k, fields...).Result()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry %s: %w", key, err)
	}

	if vals[0] == nil {
		return nil, ErrCacheMiss
	}
	sliding := parseInt(vals[0])
	absolute := parseInt(vals[1])

	var data []byte
	if withData {
		s, ok := vals[2].(string)
		if !ok {
			return nil, ErrCacheMiss
		}
		data = []byte(s)
	}

	if sliding != notPresent {
		ttl := entryTTL(c.now(), time.Duration(sliding)*time.Millisecond, absolute)
		if ttl > 0 {
			err := c.client.Do(ctx, func(ctx context.Context, rdb redis.UniversalClient) error {
				return rdb.PExpire(ctx, k, ttl).Err()
			})
			if err != nil {
				return nil, fmt.Errorf("failed to refresh cache entry %s: %w", key, err)
			}
		}
	}
	return data, nil
}

// Set stores value under key.
func (c *Cache) Set(ctx context.Context, key string, value []byte, opts EntryOptions) error {
	now := c.now()

	absolute := notPresent
	if opts.AbsoluteExpiration > 0 {
		absolute = now.Add(opts.AbsoluteExpiration).UnixMilli()
	} else if opts.AbsoluteExpiration < 0 {
		return ErrExpirationInPast
	}
	sliding := notPresent
	if opts.SlidingExpiration > 0 {
		sliding = opts.SlidingExpiration.Milliseconds()
	}

	var ttl time.Duration
	if sliding != notPresent {
		ttl = entryTTL(now, opts.SlidingExpiration, absolute)
	} else if absolute != notPresent {
		ttl = opts.AbsoluteExpiration
	}

	k := c.key(key)
	err := c.client.Do(ctx, func(ctx context.Context, rdb redis.UniversalClient) error {
		_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, k, fieldData, value, fieldSliding, sliding, fieldAbsolute, absolute)
			if ttl > 0 {
				pipe.PExpire(ctx, k, ttl)
			} else {
				pipe.Persist(ctx, k)
			}
			return nil
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to write cache entry %s: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing an absent key is not an error.
func (c *Cache) Remove(ctx context.Context, key string) error {
	k := c.key(key)
	err := c.client.Do(ctx, func(ctx context.Context, rdb redis.UniversalClient) error {
		return rdb.Del(ctx, k).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to remove cache entry %s: %w", key, err)
	}
	return nil
}

// GetValue reads key and decodes it with msgpack.
func GetValue[T any](ctx context.Context, c *Cache, key string) (T, error) {
	var v T
	data, err := c.Get(ctx, key)
	if err != nil {
		return v, err
	}
	if err := msgpack.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("failed to decode cache entry %s: %w", key, err)
	}
	return v, nil
}

// SetValue encodes v with msgpack and stores it under key.
func SetValue[T any](ctx context.Context, c *Cache, key string, v T, opts EntryOptions) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", key, err)
	}
	return c.Set(ctx, key, data, opts)
}

// entryTTL is the sliding window capped by the absolute deadline.
func entryTTL(now time.Time, sliding time.Duration, absoluteMillis int64) time.Duration {
	if absoluteMillis == notPresent {
		return sliding
	}
	remaining := time.UnixMilli(absoluteMillis).Sub(now)
	if remaining < sliding {
		return remaining
	}
	return sliding
}

func parseInt(v any) int64 {
	s, ok := v.(string)
	if !ok {
		return notPresent
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return notPresent
	}
	return n
}
