package reconnect

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/semaphore"

	"github.com/vietddude/dal/internal/metrics"
)

// Handle is a connection handle owned by a Manager.
type Handle interface {
	Close() error
}

// DialFunc establishes a new handle. The endpoint and credential descriptor is
// captured by the closure and used unchanged on every call.
type DialFunc[H Handle] func(ctx context.Context) (H, error)

type slot[H Handle] struct {
	handle     H
	generation uint64
}

// Manager owns a lazily established, shared connection handle and replaces it
// when faults persist. Reads of the current handle are lock-free; every write
// goes through a single-slot gate.
type Manager[H Handle] struct {
	name     string
	cfg      Config
	dial     DialFunc[H]
	classify Classifier
	clock    Clock
	logger   *slog.Logger

	gate    *semaphore.Weighted
	policy  *Policy
	current atomic.Pointer[slot[H]]
	gen     atomic.Uint64
	closed  atomic.Bool

	hooksMu sync.RWMutex
	hooks   []func(old H)
}

// NewManager creates a Manager. It does not dial; the first handle is
// established by Connect or on first use.
func NewManager[H Handle](
	name string,
	cfg Config,
	dial DialFunc[H],
	classify Classifier,
	logger *slog.Logger,
) (*Manager[H], error) {
	if dial == nil {
		return nil, fmt.Errorf("connection manager %s: dial func is required", name)
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("connection manager %s: %w", name, err)
	}
	if classify == nil {
		classify = IsMarkedTransient
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager[H]{
		name:     name,
		cfg:      cfg,
		dial:     dial,
		classify: classify,
		clock:    SystemClock,
		logger:   logger.With("component", "reconnect", "target", name),
		gate:     semaphore.NewWeighted(1),
		policy:   NewPolicy(cfg.MinReconnectInterval, cfg.ErrorDurationThreshold),
	}, nil
}

// SetClock replaces the clock used by the reconnect policy. It must be called
// before the Manager is shared.
func (m *Manager[H]) SetClock(c Clock) {
	m.clock = c
}

// OnReconnect registers fn to run after a new handle has been published. fn
// receives the handle that was replaced; it runs while the gate is held.
func (m *Manager[H]) OnReconnect(fn func(old H)) {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()
	m.hooks = append(m.hooks, fn)
}

// Name returns the target name used in logs and metrics.
func (m *Manager[H]) Name() string { return m.name }

// Config returns the effective configuration.
func (m *Manager[H]) Config() Config { return m.cfg }

// Policy exposes the reconnect state for inspection.
func (m *Manager[H]) Policy() *Policy { return m.policy }

// Generation increments every time a handle is published. It is 0 before the
// first connect.
func (m *Manager[H]) Generation() uint64 { return m.gen.Load() }

// Connect establishes the initial handle if there is none and returns the
// current one. Dial failures are returned as *SetupError.
func (m *Manager[H]) Connect(ctx context.Context) (H, error) {
	return m.Handle(ctx)
}

// Handle returns the current handle, dialing one first if necessary.
func (m *Manager[H]) Handle(ctx context.Context) (H, error) {
	h, _, err := m.HandleGeneration(ctx)
	return h, err
}

// HandleGeneration is Handle that also returns the generation the handle was
// published under.
func (m *Manager[H]) HandleGeneration(ctx context.Context) (H, uint64, error) {
	var zero H
	if m.closed.Load() {
		return zero, 0, ErrClosed
	}
	if s := m.current.Load(); s != nil {
		return s.handle, s.generation, nil
	}

	if err := m.gate.Acquire(ctx, 1); err != nil {
		return zero, 0, err
	}
	defer m.gate.Release(1)

	if m.closed.Load() {
		return zero, 0, ErrClosed
	}
	if s := m.current.Load(); s != nil {
		return s.handle, s.generation, nil
	}

	h, err := m.dial(ctx)
	if err != nil {
		return zero, 0, &SetupError{Target: m.name, Err: err}
	}
	s, _ := m.publish(h)
	m.logger.Info("Connection established", "generation", s.generation)
	return h, s.generation, nil
}

// publish installs h as the current handle. The caller must hold the gate.
func (m *Manager[H]) publish(h H) (s, old *slot[H]) {
	s = &slot[H]{handle: h, generation: m.gen.Add(1)}
	metrics.HandlesEstablished.WithLabelValues(m.name).Inc()
	return s, m.current.Swap(s)
}

// RequestReconnect reports a transient fault. Whether a reconnect actually
// happens depends on the debounce interval and on how long faults have been
// persisting.
func (m *Manager[H]) RequestReconnect(ctx context.Context) Outcome {
	outcome := m.requestReconnect(ctx)
	metrics.ReconnectRequests.WithLabelValues(m.name, outcome.String()).Inc()
	return outcome
}

func (m *Manager[H]) requestReconnect(ctx context.Context) Outcome {
	if m.policy.Debounced(m.clock.Now()) {
		return OutcomeDebounced
	}

	gateCtx, cancel := context.WithTimeout(ctx, m.cfg.GateAcquireTimeout)
	defer cancel()
	if err := m.gate.Acquire(gateCtx, 1); err != nil {
		m.logger.Debug("Reconnect gate not acquired, abandoning", "error", err)
		return OutcomeGateTimeout
	}
	defer m.gate.Release(1)

	now := m.clock.Now()
	if m.policy.Debounced(now) {
		return OutcomeDebounced
	}

	outcome := m.policy.Observe(now)
	if outcome != OutcomeReconnected {
		return outcome
	}
	if m.closed.Load() {
		return OutcomeFailed
	}

	// Dial before discarding the old handle so callers never observe an
	// empty slot.
	h, err := m.dial(ctx)
	if err != nil {
		m.logger.Warn("Reconnect failed, keeping current handle", "error", err)
		return OutcomeFailed
	}

	_, old := m.publish(h)
	if old != nil {
		if err := old.handle.Close(); err != nil {
			m.logger.Debug("Closing stale handle failed", "error", err)
		}
	}
	m.policy.Reconnected(now)
	m.logger.Info("Reconnected", "generation", m.gen.Load())

	if old != nil {
		m.hooksMu.RLock()
		hooks := m.hooks
		m.hooksMu.RUnlock()
		for _, fn := range hooks {
			fn(old.handle)
		}
	}
	return OutcomeReconnected
}

// Do runs op against the current handle, retrying transient faults. See Execute.
func (m *Manager[H]) Do(ctx context.Context, op func(ctx context.Context, h H) error) error {
	_, err := Execute(ctx, m, func(ctx context.Context, h H) (struct{}, error) {
		return struct{}{}, op(ctx, h)
	})
	return err
}

// Execute runs op against the current handle of m.
//
// A transient fault requests a reconnect and retries op, up to
// MaxRetryAttempts retries; once they are exhausted the last fault is
// returned. Any other error is returned unchanged on the first occurrence.
// If ctx is done between attempts, ctx.Err() is returned.
func Execute[H Handle, T any](
	ctx context.Context,
	m *Manager[H],
	op func(ctx context.Context, h H) (T, error),
) (T, error) {
	var result T
	maxRetries := m.cfg.retries()
	backoff := retry.WithMaxRetries(uint64(maxRetries), retry.NewConstant(m.cfg.RetryDelay))

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++

		h, err := m.Handle(ctx)
		if err != nil {
			return err
		}

		v, err := op(ctx, h)
		if err == nil {
			result = v
			return nil
		}
		if !m.classify(err) {
			return err
		}

		if attempt > maxRetries {
			metrics.OperationFailures.WithLabelValues(m.name).Inc()
			m.logger.Warn("Operation failed after retries", "attempts", attempt, "error", err)
			return retry.RetryableError(err)
		}

		m.logger.Debug("Transient fault, retrying", "attempt", attempt, "error", err)
		metrics.OperationRetries.WithLabelValues(m.name).Inc()
		m.RequestReconnect(ctx)
		return retry.RetryableError(err)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// Close releases the current handle. Subsequent calls to Handle and Execute
// return ErrClosed. Close waits for an in-flight reconnect to finish.
func (m *Manager[H]) Close() error {
	if m.closed.Swap(true) {
		return nil
	}

	if err := m.gate.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer m.gate.Release(1)

	old := m.current.Swap(nil)
	if old == nil {
		return nil
	}
	if err := old.handle.Close(); err != nil {
		return fmt.Errorf("close %s: %w", m.name, err)
	}
	m.logger.Info("Connection closed")
	return nil
}
