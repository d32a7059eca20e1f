package interval

import (
	"errors"
	"fmt"
)

// ErrUnrecognized signals that no expression class matched. Resolve absorbs
// it into the default window; it is exported so callers of match-level
// helpers and telemetry can still distinguish the case.
var ErrUnrecognized = errors.New("unrecognized time expression")

// MagnitudeError reports a non-positive magnitude in a "last N <unit>"
// expression. It is user input error, surfaced to the requester.
type MagnitudeError struct {
	Value int
}

func (e *MagnitudeError) Error() string {
	return fmt.Sprintf("interval magnitude must be positive, got %d", e.Value)
}

// IsMagnitudeError reports whether err is a *MagnitudeError.
func IsMagnitudeError(err error) bool {
	var me *MagnitudeError
	return errors.As(err, &me)
}
