package reconnect

import (
	"sync/atomic"
	"time"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock. time.Now carries a monotonic reading, so
// elapsed-time comparisons are not affected by wall clock jumps.
var SystemClock Clock = systemClock{}

// Outcome describes what a reconnect request ended up doing.
type Outcome int

const (
	// OutcomeDebounced: the last reconnect is too recent.
	OutcomeDebounced Outcome = iota
	// OutcomeGateTimeout: another caller held the gate for too long.
	OutcomeGateTimeout
	// OutcomeFirstFault: a new error run started.
	OutcomeFirstFault
	// OutcomeWaiting: the error run has not persisted long enough, or the
	// previous fault is stale.
	OutcomeWaiting
	// OutcomeReconnected: a new handle was published.
	OutcomeReconnected
	// OutcomeFailed: a reconnect was triggered but dialing failed.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDebounced:
		return "debounced"
	case OutcomeGateTimeout:
		return "gate_timeout"
	case OutcomeFirstFault:
		return "first_fault"
	case OutcomeWaiting:
		return "waiting"
	case OutcomeReconnected:
		return "reconnected"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Policy holds the reconnect state of one Manager.
//
// lastReconnect is read without the gate for the cheap debounce check and is
// therefore atomic. firstError and mostRecentError are only touched by the
// goroutine holding the gate.
type Policy struct {
	minInterval time.Duration
	threshold   time.Duration

	lastReconnect   atomic.Pointer[time.Time] // nil = never
	firstError      time.Time
	mostRecentError time.Time
}

// NewPolicy creates a Policy with an empty error run and no previous reconnect.
func NewPolicy(minInterval, threshold time.Duration) *Policy {
	return &Policy{minInterval: minInterval, threshold: threshold}
}

// Debounced reports whether now is within the minimum interval of the last
// successful reconnect.
func (p *Policy) Debounced(now time.Time) bool {
	last := p.lastReconnect.Load()
	if last == nil {
		return false
	}
	return now.Sub(*last) < p.minInterval
}

// Observe records a fault at now. It returns OutcomeReconnected when a
// reconnect is due, in which case the error run has already been reset.
// The caller must hold the gate.
func (p *Policy) Observe(now time.Time) Outcome {
	if p.firstError.IsZero() {
		p.firstError = now
		p.mostRecentError = now
		return OutcomeFirstFault
	}

	sinceFirst := now.Sub(p.firstError)
	sinceRecent := now.Sub(p.mostRecentError)
	p.mostRecentError = now

	// Inclusive on both sides: an error exactly threshold old still counts
	// as recent.
	if sinceFirst >= p.threshold && sinceRecent <= p.threshold {
		p.firstError = time.Time{}
		p.mostRecentError = time.Time{}
		return OutcomeReconnected
	}
	return OutcomeWaiting
}

// Reconnected stamps a successful reconnect at now. The caller must hold the gate.
func (p *Policy) Reconnected(now time.Time) {
	p.lastReconnect.Store(&now)
}

// LastReconnect returns the time of the last successful reconnect, or the
// zero time if none happened yet.
func (p *Policy) LastReconnect() time.Time {
	if last := p.lastReconnect.Load(); last != nil {
		return *last
	}
	return time.Time{}
}

// ErrorRun returns the bounds of the current error run. Both are zero when
// no run is in progress. The caller must hold the gate.
func (p *Policy) ErrorRun() (first, mostRecent time.Time) {
	return p.firstError, p.mostRecentError
}
