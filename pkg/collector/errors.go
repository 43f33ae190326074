package collector

import (
	"context"
	"errors"
	"fmt"
)

// CollectionError reports that a signal could not be read from the host.
// It degrades the signal to unknown; it never aborts a scan.
type CollectionError struct {
	Signal Signal
	Reason string
	Err    error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("collect %s: %s", e.Signal, e.Reason)
}

func (e *CollectionError) Unwrap() error { return e.Err }

// Timeout reports whether the host call exceeded its time budget.
func (e *CollectionError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

func collectionError(sig Signal, err error) *CollectionError {
	reason := err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		reason = "host call timed out"
	}
	return &CollectionError{Signal: sig, Reason: reason, Err: err}
}
