package reconnect

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by a Manager after Close.
var ErrClosed = errors.New("connection manager closed")

// SetupError reports a failure to establish a session at all (bad address,
// DNS failure, rejected credentials). It is never retried by the Manager.
type SetupError struct {
	Target string
	Err    error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Target, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// IsSetupError reports whether err carries a *SetupError.
func IsSetupError(err error) bool {
	var se *SetupError
	return errors.As(err, &se)
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// MarkTransient flags err as a connectivity fault regardless of what the
// store-specific classifier decides.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsMarkedTransient reports whether err was flagged with MarkTransient.
func IsMarkedTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// Classifier decides whether an error is a transient connectivity fault.
type Classifier func(err error) bool
