package reconnect

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: epoch}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeHandle struct {
	id       int
	closed   atomic.Bool
	closeErr error
}

func (h *fakeHandle) Close() error {
	h.closed.Store(true)
	return h.closeErr
}

type fakeDialer struct {
	mu       sync.Mutex
	handles  []*fakeHandle
	failFrom int // dials numbered >= failFrom fail; 0 disables
	closeErr error
}

var errDial = errors.New("dial tcp 10.0.0.1:6379: connect: connection refused")

func (d *fakeDialer) Dial(ctx context.Context) (*fakeHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.handles) + 1
	if d.failFrom > 0 && n >= d.failFrom {
		return nil, errDial
	}
	h := &fakeHandle{id: n, closeErr: d.closeErr}
	d.handles = append(d.handles, h)
	return h, nil
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.handles)
}

func (d *fakeDialer) Handle(i int) *fakeHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handles[i]
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func testConfig() Config {
	return Config{
		MinReconnectInterval:   60 * time.Second,
		ErrorDurationThreshold: 30 * time.Second,
		GateAcquireTimeout:     5 * time.Second,
		MaxRetryAttempts:       3,
		RetryDelay:             time.Millisecond,
	}
}

func newTestManager(cfg Config, d *fakeDialer, clock Clock) *Manager[*fakeHandle] {
	m, err := NewManager[*fakeHandle]("test", cfg, d.Dial, IsMarkedTransient, discardLogger)
	if err != nil {
		panic(err)
	}
	m.SetClock(clock)
	return m
}
