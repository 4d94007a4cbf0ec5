package redis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/vietddude/dal/internal/core/reconnect"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig(addr string) Config {
	return Config{
		Name:  "cache",
		Addrs: []string{addr},
		Reconnect: reconnect.Config{
			MinReconnectInterval:   time.Minute,
			ErrorDurationThreshold: 30 * time.Second,
			GateAcquireTimeout:     time.Second,
			MaxRetryAttempts:       2,
			RetryDelay:             time.Millisecond,
		},
	}
}

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := Connect(context.Background(), testConfig(mr.Addr()), discardLogger)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestConfig_UniversalOptions(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantAddrs []string
		wantDB    int
		wantPass  string
		wantErr   bool
	}{
		{
			name:      "url",
			cfg:       Config{URL: "redis://:secret@localhost:6380/2"},
			wantAddrs: []string{"localhost:6380"},
			wantDB:    2,
			wantPass:  "secret",
		},
		{
			name:      "password overrides url",
			cfg:       Config{URL: "redis://:secret@localhost:6380/2", Password: "other"},
			wantAddrs: []string{"localhost:6380"},
			wantDB:    2,
			wantPass:  "other",
		},
		{
			name:      "cluster addrs",
			cfg:       Config{Addrs: []string{"10.0.0.1:6379", "10.0.0.2:6379"}, DB: 1},
			wantAddrs: []string{"10.0.0.1:6379", "10.0.0.2:6379"},
			wantDB:    1,
		},
		{name: "bad url", cfg: Config{URL: "http://localhost"}, wantErr: true},
		{name: "nothing", cfg: Config{}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := tt.cfg.UniversalOptions()
			if (err != nil) != tt.wantErr {
				t.Fatalf("UniversalOptions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(opts.Addrs) != len(tt.wantAddrs) {
				t.Fatalf("Addrs = %v, want %v", opts.Addrs, tt.wantAddrs)
			}
			for i := range opts.Addrs {
				if opts.Addrs[i] != tt.wantAddrs[i] {
					t.Errorf("Addrs[%d] = %s, want %s", i, opts.Addrs[i], tt.wantAddrs[i])
				}
			}
			if opts.DB != tt.wantDB {
				t.Errorf("DB = %d, want %d", opts.DB, tt.wantDB)
			}
			if opts.Password != tt.wantPass {
				t.Errorf("Password = %q, want %q", opts.Password, tt.wantPass)
			}
			if opts.DialTimeout != 5*time.Second {
				t.Errorf("DialTimeout = %s, want default 5s", opts.DialTimeout)
			}
		})
	}
}

func TestClient_LazyConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewClient(testConfig(mr.Addr()), discardLogger)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	defer c.Close()

	if gen := c.Manager().Generation(); gen != 0 {
		t.Fatalf("generation before first use = %d, want 0", gen)
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if gen := c.Manager().Generation(); gen != 1 {
		t.Fatalf("generation after first use = %d, want 1", gen)
	}
}

func TestClient_ConnectUnreachableIsSetupError(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig(addr)
	cfg.DialTimeout = 200 * time.Millisecond
	_, err := Connect(context.Background(), cfg, discardLogger)
	if err == nil {
		t.Fatal("expected error connecting to a closed server")
	}
	if !reconnect.IsSetupError(err) {
		t.Fatalf("expected *SetupError, got %T: %v", err, err)
	}
}

func TestClient_RoundTrip(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	err := c.Do(ctx, func(ctx context.Context, rdb redis.UniversalClient) error {
		return rdb.Set(ctx, "greeting", "hello", 0).Err()
	})
	if err != nil {
		t.Fatalf("Set error = %v", err)
	}
	if got, _ := mr.Get("greeting"); got != "hello" {
		t.Fatalf("server value = %q, want hello", got)
	}

	got, err := Execute(ctx, c, func(ctx context.Context, rdb redis.UniversalClient) (string, error) {
		return rdb.Get(ctx, "greeting").Result()
	})
	if err != nil || got != "hello" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	_, err = Execute(ctx, c, func(ctx context.Context, rdb redis.UniversalClient) (string, error) {
		return rdb.Get(ctx, "missing").Result()
	})
	if !errors.Is(err, redis.Nil) {
		t.Fatalf("missing key error = %v, want redis.Nil", err)
	}
}

func TestClient_TransientServerErrorExhaustsRetries(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	mr.SetError("LOADING Redis is loading the dataset in memory")
	var calls int
	err := c.Do(ctx, func(ctx context.Context, rdb redis.UniversalClient) error {
		calls++
		return rdb.Ping(ctx).Err()
	})
	if err == nil || !redis.IsLoadingError(err) {
		t.Fatalf("error = %v, want LOADING", err)
	}
	if want := c.Manager().Config().MaxRetryAttempts + 1; calls != want {
		t.Fatalf("calls = %d, want %d", calls, want)
	}

	mr.SetError("")
	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Ping after recovery: %v", err)
	}
}

func TestClient_ReconnectResetsAccessors(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()
	clock := &stepClock{now: time.Date(2024, 3, 30, 5, 12, 36, 0, time.UTC)}
	c.Manager().SetClock(clock)

	first, err := c.Subscriber(ctx, "events")
	if err != nil {
		t.Fatalf("Subscriber() error = %v", err)
	}
	again, _ := c.Subscriber(ctx, "events")
	if first != again {
		t.Fatal("subscriber not memoized")
	}
	node, ok, err := c.Server(ctx, mr.Addr())
	if err != nil || !ok {
		t.Fatalf("Server(%s) = %v, %v", mr.Addr(), ok, err)
	}

	if got := c.Manager().RequestReconnect(ctx); got != reconnect.OutcomeFirstFault {
		t.Fatalf("first request = %v", got)
	}
	clock.Advance(30 * time.Second)
	if got := c.Manager().RequestReconnect(ctx); got != reconnect.OutcomeReconnected {
		t.Fatalf("second request = %v, want reconnected", got)
	}
	if gen := c.Manager().Generation(); gen != 2 {
		t.Fatalf("generation = %d, want 2", gen)
	}

	fresh, err := c.Subscriber(ctx, "events")
	if err != nil {
		t.Fatalf("Subscriber() after reconnect error = %v", err)
	}
	if fresh == first {
		t.Fatal("subscriber survived reconnect")
	}
	freshNode, ok, _ := c.Server(ctx, mr.Addr())
	if !ok || freshNode == node {
		t.Fatal("server accessor survived reconnect")
	}
	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Ping on new handle: %v", err)
	}
}

func TestClient_AccessorsFollowHandleGeneration(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	clock := &stepClock{now: time.Date(2024, 3, 30, 5, 12, 36, 0, time.UTC)}
	c.Manager().SetClock(clock)

	c.Manager().RequestReconnect(ctx)
	clock.Advance(30 * time.Second)
	if got := c.Manager().RequestReconnect(ctx); got != reconnect.OutcomeReconnected {
		t.Fatalf("request = %v, want reconnected", got)
	}

	// The new handle is published but its accessor set is not installed yet.
	stale := newAccessors(1)
	c.accessors.Store(stale)

	ps, err := c.Subscriber(ctx, "events")
	if err != nil {
		t.Fatalf("Subscriber() error = %v", err)
	}
	current := c.accessors.Load()
	if current.gen != 2 {
		t.Fatalf("accessor generation = %d, want 2", current.gen)
	}
	if got, ok := current.subscribers.Load("events"); !ok || got != ps {
		t.Fatal("subscriber not registered with the current handle")
	}
	if _, ok := stale.subscribers.Load("events"); ok || !stale.closed {
		t.Fatal("stale accessor set kept or still open")
	}

	if acc := c.accessorsFor(1); acc != nil {
		t.Fatal("older generation replaced the current accessor set")
	}
	if c.accessors.Load() != current {
		t.Fatal("current accessor set replaced")
	}
}

func TestClient_ClosedAccessorsRejectNewSessions(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	if _, err := c.Subscriber(ctx, "warmup"); err != nil {
		t.Fatalf("Subscriber() error = %v", err)
	}
	acc := c.accessors.Load()
	acc.close(discardLogger)

	if _, err := c.Subscriber(ctx, "events"); !errors.Is(err, errAccessorsRotated) {
		t.Fatalf("Subscriber() = %v, want errAccessorsRotated", err)
	}
	if _, ok := acc.subscribers.Load("events"); ok {
		t.Fatal("session stored in a closed accessor set")
	}
}

func TestClient_ServerUnknownEndpoint(t *testing.T) {
	c, _ := newTestClient(t)

	_, ok, err := c.Server(context.Background(), "10.255.255.1:6379")
	if err != nil {
		t.Fatalf("Server() error = %v", err)
	}
	if ok {
		t.Fatal("unknown endpoint must be absent")
	}
}

func TestClient_CloseStopsOperations(t *testing.T) {
	c, _ := newTestClient(t)
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Ping(context.Background()); !errors.Is(err, reconnect.ErrClosed) {
		t.Fatalf("Ping after close = %v, want ErrClosed", err)
	}
}
