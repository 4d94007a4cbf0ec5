package reconnect

import (
	"fmt"
	"time"
)

// Config controls the reconnect policy and the retry wrapper of a Manager.
// Zero values are replaced by the defaults below.
type Config struct {
	// MinReconnectInterval is the minimum time between two reconnects.
	MinReconnectInterval time.Duration `yaml:"min_reconnect_interval"`

	// ErrorDurationThreshold is how long faults must persist before a reconnect
	// is triggered. It also bounds how old the previous fault may be.
	ErrorDurationThreshold time.Duration `yaml:"error_duration_threshold"`

	// GateAcquireTimeout bounds the wait for the reconnect gate.
	GateAcquireTimeout time.Duration `yaml:"gate_acquire_timeout"`

	// MaxRetryAttempts is the number of retries after the first attempt.
	// Zero selects the default; use NoRetries to disable retrying.
	MaxRetryAttempts int `yaml:"max_retry_attempts"`

	// RetryDelay is the pause between two attempts of the same operation.
	RetryDelay time.Duration `yaml:"retry_delay"`
}

const (
	DefaultMinReconnectInterval   = 60 * time.Second
	DefaultErrorDurationThreshold = 30 * time.Second
	DefaultGateAcquireTimeout     = 15 * time.Second
	DefaultMaxRetryAttempts       = 5
	DefaultRetryDelay             = 50 * time.Millisecond

	// NoRetries as MaxRetryAttempts runs each operation exactly once.
	NoRetries = -1
)

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		MinReconnectInterval:   DefaultMinReconnectInterval,
		ErrorDurationThreshold: DefaultErrorDurationThreshold,
		GateAcquireTimeout:     DefaultGateAcquireTimeout,
		MaxRetryAttempts:       DefaultMaxRetryAttempts,
		RetryDelay:             DefaultRetryDelay,
	}
}

// WithDefaults returns a copy of c with every zero field set to its default.
func (c Config) WithDefaults() Config {
	if c.MinReconnectInterval == 0 {
		c.MinReconnectInterval = DefaultMinReconnectInterval
	}
	if c.ErrorDurationThreshold == 0 {
		c.ErrorDurationThreshold = DefaultErrorDurationThreshold
	}
	if c.GateAcquireTimeout == 0 {
		c.GateAcquireTimeout = DefaultGateAcquireTimeout
	}
	if c.MaxRetryAttempts == 0 {
		c.MaxRetryAttempts = DefaultMaxRetryAttempts
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	return c
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.MinReconnectInterval < 0:
		return fmt.Errorf("min_reconnect_interval must not be negative, got %s", c.MinReconnectInterval)
	case c.ErrorDurationThreshold < 0:
		return fmt.Errorf("error_duration_threshold must not be negative, got %s", c.ErrorDurationThreshold)
	case c.GateAcquireTimeout < 0:
		return fmt.Errorf("gate_acquire_timeout must not be negative, got %s", c.GateAcquireTimeout)
	case c.MaxRetryAttempts < NoRetries:
		return fmt.Errorf("max_retry_attempts must be %d or more, got %d", NoRetries, c.MaxRetryAttempts)
	case c.RetryDelay < 0:
		return fmt.Errorf("retry_delay must not be negative, got %s", c.RetryDelay)
	}
	return nil
}

// retries is the effective retry count.
func (c Config) retries() int {
	return max(c.MaxRetryAttempts, 0)
}
