package reconnect

import (
	"testing"
	"time"
)

var epoch = time.Date(2024, 3, 30, 5, 12, 36, 0, time.UTC)

func at(seconds int) time.Time {
	return epoch.Add(time.Duration(seconds) * time.Second)
}

func TestPolicy_Scenario(t *testing.T) {
	p := NewPolicy(60*time.Second, 30*time.Second)

	if p.Debounced(at(0)) {
		t.Fatal("fresh policy must not be debounced")
	}
	if got := p.Observe(at(0)); got != OutcomeFirstFault {
		t.Fatalf("t=0: got %v, want first_fault", got)
	}
	if got := p.Observe(at(10)); got != OutcomeWaiting {
		t.Fatalf("t=10: got %v, want waiting", got)
	}
	if _, recent := p.ErrorRun(); !recent.Equal(at(10)) {
		t.Fatalf("most recent error = %v, want t=10", recent)
	}
	if got := p.Observe(at(35)); got != OutcomeReconnected {
		t.Fatalf("t=35: got %v, want reconnected", got)
	}
	p.Reconnected(at(35))

	if first, recent := p.ErrorRun(); !first.IsZero() || !recent.IsZero() {
		t.Fatalf("error run not reset: first=%v recent=%v", first, recent)
	}
	if !p.LastReconnect().Equal(at(35)) {
		t.Fatalf("last reconnect = %v, want t=35", p.LastReconnect())
	}
	if !p.Debounced(at(40)) {
		t.Fatal("t=40 must be debounced")
	}
}

func TestPolicy_Debounce(t *testing.T) {
	p := NewPolicy(60*time.Second, 30*time.Second)
	p.Reconnected(at(100))

	for _, offset := range []int{0, 1, 30, 59} {
		if !p.Debounced(at(100 + offset)) {
			t.Errorf("offset %ds: expected debounced", offset)
		}
	}
	if p.Debounced(at(160)) {
		t.Error("exactly min interval later must not be debounced")
	}
}

func TestPolicy_SingleBlip(t *testing.T) {
	p := NewPolicy(60*time.Second, 30*time.Second)

	if got := p.Observe(at(0)); got != OutcomeFirstFault {
		t.Fatalf("got %v, want first_fault", got)
	}
	if !p.LastReconnect().IsZero() {
		t.Fatal("a single fault must not reconnect")
	}
}

func TestPolicy_SustainedOutage(t *testing.T) {
	p := NewPolicy(60*time.Second, 30*time.Second)

	want := []struct {
		sec     int
		outcome Outcome
	}{
		{0, OutcomeFirstFault},
		{10, OutcomeWaiting},
		{20, OutcomeWaiting},
		{30, OutcomeReconnected},
		{31, OutcomeFirstFault},
	}
	reconnects := 0
	for _, w := range want {
		got := p.Observe(at(w.sec))
		if got != w.outcome {
			t.Fatalf("t=%d: got %v, want %v", w.sec, got, w.outcome)
		}
		if got == OutcomeReconnected {
			reconnects++
		}
	}
	if reconnects != 1 {
		t.Fatalf("reconnects = %d, want 1", reconnects)
	}
}

func TestPolicy_StaleErrorDoesNotTrigger(t *testing.T) {
	p := NewPolicy(60*time.Second, 30*time.Second)

	p.Observe(at(0))
	if got := p.Observe(at(45)); got != OutcomeWaiting {
		t.Fatalf("fault after long silence: got %v, want waiting", got)
	}
}

func TestPolicy_ThresholdBoundaryIsInclusive(t *testing.T) {
	p := NewPolicy(60*time.Second, 30*time.Second)

	p.Observe(at(0))
	if got := p.Observe(at(30)); got != OutcomeReconnected {
		t.Fatalf("previous error exactly threshold old: got %v, want reconnected", got)
	}
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{}.WithDefaults()
	if cfg != DefaultConfig() {
		t.Fatalf("WithDefaults() = %+v, want %+v", cfg, DefaultConfig())
	}

	custom := Config{MinReconnectInterval: time.Second, MaxRetryAttempts: 2}.WithDefaults()
	if custom.MinReconnectInterval != time.Second || custom.MaxRetryAttempts != 2 {
		t.Errorf("explicit values overwritten: %+v", custom)
	}
	if none := (Config{MaxRetryAttempts: NoRetries}).WithDefaults(); none.MaxRetryAttempts != NoRetries {
		t.Errorf("NoRetries overwritten: %d", none.MaxRetryAttempts)
	}
	if custom.ErrorDurationThreshold != DefaultErrorDurationThreshold {
		t.Errorf("threshold = %s, want default", custom.ErrorDurationThreshold)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", DefaultConfig(), false},
		{"negative interval", Config{MinReconnectInterval: -time.Second}, true},
		{"negative threshold", Config{ErrorDurationThreshold: -time.Second}, true},
		{"negative gate timeout", Config{GateAcquireTimeout: -time.Second}, true},
		{"no retries", Config{MaxRetryAttempts: NoRetries}, false},
		{"negative attempts", Config{MaxRetryAttempts: -2}, true},
		{"negative delay", Config{RetryDelay: -time.Millisecond}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
