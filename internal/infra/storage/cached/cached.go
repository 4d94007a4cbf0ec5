// Package cached decorates a category repository with a two level read-through
// cache: an in-process sturdyc layer in front of the Redis distributed cache.
package cached

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viccon/sturdyc"

	"github.com/vietddude/dal/internal/core/domain"
	redisinfra "github.com/vietddude/dal/internal/infra/redis"
	"github.com/vietddude/dal/internal/infra/storage"
)

const keyPrefix = "category:"

// Config sizes the cache layers.
type Config struct {
	Capacity           int           `yaml:"capacity"`
	NumShards          int           `yaml:"num_shards"`
	LocalTTL           time.Duration `yaml:"local_ttl"`
	EvictionPercentage int           `yaml:"eviction_percentage"`
	// RemoteTTL is the sliding expiration of distributed entries.
	RemoteTTL time.Duration `yaml:"remote_ttl"`
}

// DefaultConfig returns the sizes used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          64,
		LocalTTL:           30 * time.Second,
		EvictionPercentage: 10,
		RemoteTTL:          10 * time.Minute,
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.Capacity <= 0 {
		c.Capacity = d.Capacity
	}
	if c.NumShards <= 0 {
		c.NumShards = d.NumShards
	}
	if c.LocalTTL <= 0 {
		c.LocalTTL = d.LocalTTL
	}
	if c.EvictionPercentage <= 0 || c.EvictionPercentage > 100 {
		c.EvictionPercentage = d.EvictionPercentage
	}
	if c.RemoteTTL <= 0 {
		c.RemoteTTL = d.RemoteTTL
	}
	return c
}

// CategoryRepo caches GetByID. Every other read passes through; writes
// invalidate both layers after the base repository accepted them.
type CategoryRepo struct {
	storage.CategoryRepository

	local     *sturdyc.Client[domain.Category]
	remote    *redisinfra.Cache
	remoteTTL time.Duration
	logger    *slog.Logger
}

var _ storage.CategoryRepository = (*CategoryRepo)(nil)

// NewCategoryRepo wraps base. remote may be nil, leaving only the in-process layer.
func NewCategoryRepo(
	base storage.CategoryRepository,
	remote *redisinfra.Cache,
	cfg Config,
	logger *slog.Logger,
) *CategoryRepo {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.WithDefaults()
	return &CategoryRepo{
		CategoryRepository: base,
		local:              sturdyc.New[domain.Category](cfg.Capacity, cfg.NumShards, cfg.LocalTTL, cfg.EvictionPercentage),
		remote:             remote,
		remoteTTL:          cfg.RemoteTTL,
		logger:             logger,
	}
}

func cacheKey(id uuid.UUID) string {
	return keyPrefix + id.String()
}

// GetByID reads through the in-process layer, then Redis, then the base
// repository. Concurrent misses for one key share a single fetch.
func (r *CategoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	key := cacheKey(id)
	c, err := r.local.GetOrFetch(ctx, key, func(ctx context.Context) (domain.Category, error) {
		return r.fetch(ctx, key, id)
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CategoryRepo) fetch(ctx context.Context, key string, id uuid.UUID) (domain.Category, error) {
	if r.remote != nil {
		c, err := redisinfra.GetValue[domain.Category](ctx, r.remote, key)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, redisinfra.ErrCacheMiss) {
			r.logger.Warn("Distributed cache read failed, using repository", "key", key, "error", err)
		}
	}

	c, err := r.CategoryRepository.GetByID(ctx, id)
	if err != nil {
		return domain.Category{}, err
	}

	if r.remote != nil {
		opts := redisinfra.EntryOptions{SlidingExpiration: r.remoteTTL}
		if err := redisinfra.SetValue(ctx, r.remote, key, *c, opts); err != nil {
			r.logger.Warn("Distributed cache write failed", "key", key, "error", err)
		}
	}
	return *c, nil
}

func (r *CategoryRepo) Update(ctx context.Context, c *domain.Category) error {
	if err := r.CategoryRepository.Update(ctx, c); err != nil {
		return err
	}
	r.invalidate(ctx, c.ID)
	return nil
}

func (r *CategoryRepo) Rename(ctx context.Context, ids []uuid.UUID, name string) ([]*domain.Category, error) {
	renamed, err := r.CategoryRepository.Rename(ctx, ids, name)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx, ids...)
	return renamed, nil
}

func (r *CategoryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.CategoryRepository.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

// DeleteAll collects the ids before deleting so distributed entries can be
// removed afterwards.
func (r *CategoryRepo) DeleteAll(ctx context.Context) (int64, error) {
	var ids []uuid.UUID
	if r.remote != nil {
		all, err := r.CategoryRepository.List(ctx, domain.All())
		if err != nil {
			return 0, err
		}
		for _, c := range all.Items {
			ids = append(ids, c.ID)
		}
	}

	n, err := r.CategoryRepository.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	r.invalidate(ctx, ids...)
	r.purgeLocal()
	return n, nil
}

// Invalidate drops the cached entries of ids from both layers.
func (r *CategoryRepo) Invalidate(ctx context.Context, ids ...uuid.UUID) {
	r.invalidate(ctx, ids...)
}

// InvalidateAll empties the in-process layer. Distributed entries expire on
// their own.
func (r *CategoryRepo) InvalidateAll() {
	r.purgeLocal()
}

func (r *CategoryRepo) invalidate(ctx context.Context, ids ...uuid.UUID) {
	for _, id := range ids {
		key := cacheKey(id)
		r.local.Delete(key)
		if r.remote == nil {
			continue
		}
		if err := r.remote.Remove(ctx, key); err != nil {
			r.logger.Warn("Distributed cache invalidation failed", "key", key, "error", err)
		}
	}
}

func (r *CategoryRepo) purgeLocal() {
	for _, key := range r.local.ScanKeys() {
		if strings.HasPrefix(key, keyPrefix) {
			r.local.Delete(key)
		}
	}
}
