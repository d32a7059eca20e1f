package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// BusyError is returned under the reject policy when a summary for the same
// chat is already in flight. RetryAfter is a hint for the caller's
// user-facing message.
type BusyError struct {
	ChatID     string
	RetryAfter time.Duration
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("summary for chat %s already in flight, retry in %s", e.ChatID, e.RetryAfter)
}

// IsBusy reports whether err is a *BusyError.
func IsBusy(err error) bool {
	var be *BusyError
	return errors.As(err, &be)
}

// CanceledError wraps a caller-initiated cancellation or timeout. It is a
// no-op for the caller, not a failure.
type CanceledError struct {
	Err error
}

func (e *CanceledError) Error() string {
	return fmt.Sprintf("summary request canceled: %v", e.Err)
}

func (e *CanceledError) Unwrap() error {
	return e.Err
}

// IsCanceled reports whether err is a *CanceledError.
func IsCanceled(err error) bool {
	var ce *CanceledError
	return errors.As(err, &ce)
}

func wrapCanceled(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &CanceledError{Err: err}
	}
	return err
}
