package redis

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/redis/go-redis/v9"
)

var errShardFound = errors.New("shard found")

// errAccessorsRotated is returned when the accessor set kept being replaced
// while a lookup was in flight.
var errAccessorsRotated = errors.New("redis: connection replaced during lookup")

const accessorAttempts = 3

// accessors memoizes objects derived from the connection handle published
// under generation gen.
type accessors struct {
	gen         uint64
	mu          sync.Mutex
	closed      bool
	subscribers *xsync.MapOf[string, *redis.PubSub]
	servers     *xsync.MapOf[string, *redis.Client]
}

func newAccessors(gen uint64) *accessors {
	return &accessors{
		gen:         gen,
		subscribers: xsync.NewMapOf[string, *redis.PubSub](),
		servers:     xsync.NewMapOf[string, *redis.Client](),
	}
}

// store runs fn unless the set was closed. It reports whether fn ran.
func (a *accessors) store(fn func()) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false
	}
	fn()
	return true
}

func (a *accessors) close(logger *slog.Logger) {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	a.subscribers.Range(func(name string, ps *redis.PubSub) bool {
		if err := ps.Close(); err != nil {
			logger.Debug("Closing subscriber failed", "subscriber", name, "error", err)
		}
		return true
	})
	a.subscribers.Clear()
	a.servers.Clear()
}

// accessorsFor returns the set for generation gen, replacing an older set.
// It returns nil when gen is already stale.
func (c *Client) accessorsFor(gen uint64) *accessors {
	for {
		acc := c.accessors.Load()
		switch {
		case acc.gen == gen:
			return acc
		case acc.gen > gen:
			return nil
		}
		next := newAccessors(gen)
		if c.accessors.CompareAndSwap(acc, next) {
			acc.close(c.logger)
			return next
		}
	}
}

// Subscriber returns the pub/sub session registered under name, creating it
// on first use. Sessions are dropped and recreated after a reconnect.
func (c *Client) Subscriber(ctx context.Context, name string) (*redis.PubSub, error) {
	for range accessorAttempts {
		rdb, gen, err := c.mgr.HandleGeneration(ctx)
		if err != nil {
			return nil, err
		}
		acc := c.accessorsFor(gen)
		if acc == nil {
			continue
		}
		if ps, ok := acc.subscribers.Load(name); ok {
			return ps, nil
		}

		var ps *redis.PubSub
		if acc.store(func() {
			ps, _ = acc.subscribers.LoadOrCompute(name, func() *redis.PubSub {
				return rdb.Subscribe(ctx)
			})
		}) {
			return ps, nil
		}
	}
	return nil, errAccessorsRotated
}

// Server returns a client bound to the node at endpoint. ok is false when the
// endpoint is not part of the current topology or the topology does not
// expose individual nodes (sentinel failover).
func (c *Client) Server(ctx context.Context, endpoint string) (*redis.Client, bool, error) {
	for range accessorAttempts {
		rdb, gen, err := c.mgr.HandleGeneration(ctx)
		if err != nil {
			return nil, false, err
		}
		acc := c.accessorsFor(gen)
		if acc == nil {
			continue
		}
		if node, ok := acc.servers.Load(endpoint); ok {
			return node, true, nil
		}

		node, err := findNode(ctx, rdb, endpoint)
		if err != nil {
			return nil, false, err
		}
		if node == nil {
			return nil, false, nil
		}
		if acc.store(func() {
			node, _ = acc.servers.LoadOrStore(endpoint, node)
		}) {
			return node, true, nil
		}
	}
	return nil, false, errAccessorsRotated
}

func findNode(ctx context.Context, rdb redis.UniversalClient, endpoint string) (*redis.Client, error) {
	switch h := rdb.(type) {
	case *redis.Client:
		if h.Options().Addr == endpoint {
			return h, nil
		}
		return nil, nil
	case *redis.ClusterClient:
		// ForEachShard visits shards concurrently.
		var found atomic.Pointer[redis.Client]
		err := h.ForEachShard(ctx, func(ctx context.Context, shard *redis.Client) error {
			if shard.Options().Addr == endpoint {
				found.Store(shard)
				return errShardFound
			}
			return nil
		})
		if err != nil && !errors.Is(err, errShardFound) {
			return nil, err
		}
		return found.Load(), nil
	default:
		return nil, nil
	}
}
