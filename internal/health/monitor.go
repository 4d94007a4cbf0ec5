package health

import (
	"context"
	"sync"
	"time"
)

// Check probes one component.
type Check struct {
	Name string
	// Critical components make the whole system critical when they fail.
	// Failures of other components only degrade it.
	Critical bool
	Probe    func(ctx context.Context) error
	// Generation is optional.
	Generation func() uint64
}

// Monitor aggregates health status from various system components.
type Monitor struct {
	checks        []Check
	timeout       time.Duration
	slowThreshold time.Duration
	minInterval   time.Duration
	now           func() time.Time

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport *HealthReport
}

// NewMonitor creates a new health monitor.
func NewMonitor(checks ...Check) *Monitor {
	return &Monitor{
		checks:        checks,
		timeout:       2 * time.Second,
		slowThreshold: 500 * time.Millisecond,
		minInterval:   5 * time.Second,
		now:           time.Now,
	}
}

// CheckHealth runs every check concurrently. Results are reused for a few
// seconds so probes are not hammered by frequent polling.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastReport != nil && m.now().Sub(m.lastCheck) < m.minInterval {
		return *m.lastReport
	}

	results := make([]ComponentHealth, len(m.checks))
	var wg sync.WaitGroup
	for i, c := range m.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = m.run(ctx, c)
		}()
	}
	wg.Wait()

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Components:   make(map[string]ComponentHealth, len(results)),
	}
	for i, r := range results {
		report.Components[r.Name] = r
		switch {
		case r.Status == StatusHealthy:
		case m.checks[i].Critical && r.Error != "":
			report.SystemStatus = StatusCritical
		case report.SystemStatus != StatusCritical:
			report.SystemStatus = StatusDegraded
		}
	}

	m.lastCheck = m.now()
	m.lastReport = &report
	return report
}

func (m *Monitor) run(ctx context.Context, c Check) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	err := c.Probe(ctx)
	latency := time.Since(start)

	h := ComponentHealth{
		Name:      c.Name,
		Status:    StatusHealthy,
		LatencyMs: latency.Milliseconds(),
	}
	if c.Generation != nil {
		h.Generation = c.Generation()
	}

	switch {
	case err != nil && c.Critical:
		h.Status = StatusCritical
		h.Error = err.Error()
	case err != nil:
		h.Status = StatusDegraded
		h.Error = err.Error()
	case latency > m.slowThreshold:
		h.Status = StatusDegraded
	}
	return h
}
