package redis

import (
	"context"
	"errors"
	"testing"
	"time"
)

type cachedCategory struct {
	ID   string `msgpack:"id"`
	Name string `msgpack:"name"`
	Type int    `msgpack:"type"`
}

func TestCache_SetGetRemove(t *testing.T) {
	c, mr := newTestClient(t)
	cache := NewCache(c, "dal:")
	ctx := context.Background()

	if _, err := cache.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get on empty cache = %v, want ErrCacheMiss", err)
	}

	if err := cache.Set(ctx, "k", []byte("v1"), EntryOptions{}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if !mr.Exists("dal:k") {
		t.Fatal("entry not stored under prefixed key")
	}
	if ttl := mr.TTL("dal:k"); ttl != 0 {
		t.Errorf("TTL without expiration = %s, want none", ttl)
	}

	got, err := cache.Get(ctx, "k")
	if err != nil || string(got) != "v1" {
		t.Fatalf("Get() = %q, %v", got, err)
	}

	if err := cache.Remove(ctx, "k"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := cache.Remove(ctx, "k"); err != nil {
		t.Fatalf("second Remove() error = %v", err)
	}
	if _, err := cache.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get after Remove = %v, want ErrCacheMiss", err)
	}
}

func TestCache_SlidingExpiration(t *testing.T) {
	c, mr := newTestClient(t)
	cache := NewCache(c, "")
	ctx := context.Background()

	opts := EntryOptions{SlidingExpiration: 10 * time.Second}
	if err := cache.Set(ctx, "s", []byte("x"), opts); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if ttl := mr.TTL("s"); ttl != 10*time.Second {
		t.Fatalf("TTL after Set = %s, want 10s", ttl)
	}

	mr.FastForward(6 * time.Second)
	if _, err := cache.Get(ctx, "s"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ttl := mr.TTL("s"); ttl != 10*time.Second {
		t.Fatalf("TTL after Get = %s, want refreshed 10s", ttl)
	}

	mr.FastForward(6 * time.Second)
	if err := cache.Refresh(ctx, "s"); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if ttl := mr.TTL("s"); ttl != 10*time.Second {
		t.Fatalf("TTL after Refresh = %s, want refreshed 10s", ttl)
	}

	mr.FastForward(11 * time.Second)
	if _, err := cache.Get(ctx, "s"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get after expiry = %v, want ErrCacheMiss", err)
	}
	if err := cache.Refresh(ctx, "s"); err != nil {
		t.Fatalf("Refresh on missing key = %v, want nil", err)
	}
}

func TestCache_AbsoluteCapsSliding(t *testing.T) {
	c, mr := newTestClient(t)
	cache := NewCache(c, "")
	ctx := context.Background()

	base := time.UnixMilli(1711775556000)
	cache.now = func() time.Time { return base }

	opts := EntryOptions{AbsoluteExpiration: 20 * time.Second, SlidingExpiration: 10 * time.Second}
	if err := cache.Set(ctx, "a", []byte("x"), opts); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if ttl := mr.TTL("a"); ttl != 10*time.Second {
		t.Fatalf("TTL after Set = %s, want 10s", ttl)
	}

	mr.FastForward(5 * time.Second)
	cache.now = func() time.Time { return base.Add(15 * time.Second) }
	if _, err := cache.Get(ctx, "a"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ttl := mr.TTL("a"); ttl != 5*time.Second {
		t.Fatalf("TTL after Get = %s, want capped 5s", ttl)
	}
}

func TestCache_AbsoluteOnly(t *testing.T) {
	c, mr := newTestClient(t)
	cache := NewCache(c, "")
	ctx := context.Background()

	if err := cache.Set(ctx, "a", []byte("x"), EntryOptions{AbsoluteExpiration: time.Minute}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if ttl := mr.TTL("a"); ttl != time.Minute {
		t.Fatalf("TTL = %s, want 1m", ttl)
	}

	mr.FastForward(30 * time.Second)
	if _, err := cache.Get(ctx, "a"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ttl := mr.TTL("a"); ttl != 30*time.Second {
		t.Fatalf("TTL = %s, want untouched 30s", ttl)
	}

	if err := cache.Set(ctx, "b", []byte("x"), EntryOptions{AbsoluteExpiration: -time.Second}); !errors.Is(err, ErrExpirationInPast) {
		t.Fatalf("Set with past expiration = %v, want ErrExpirationInPast", err)
	}
}

func TestCache_TypedValues(t *testing.T) {
	c, _ := newTestClient(t)
	cache := NewCache(c, "cat:")
	ctx := context.Background()

	want := cachedCategory{ID: "8a1c", Name: "Beverages", Type: 2}
	if err := SetValue(ctx, cache, want.ID, want, EntryOptions{SlidingExpiration: time.Minute}); err != nil {
		t.Fatalf("SetValue() error = %v", err)
	}
	got, err := GetValue[cachedCategory](ctx, cache, want.ID)
	if err != nil {
		t.Fatalf("GetValue() error = %v", err)
	}
	if got != want {
		t.Fatalf("GetValue() = %+v, want %+v", got, want)
	}

	if _, err := GetValue[cachedCategory](ctx, cache, "nope"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("GetValue on missing key = %v, want ErrCacheMiss", err)
	}
}
