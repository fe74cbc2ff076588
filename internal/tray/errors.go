package tray

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument indicates a configuration string that the native
	// layer cannot accept, such as one containing a NUL byte
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrEventChannel indicates the backend could not deliver or report events
	ErrEventChannel = errors.New("event channel failure")
	// ErrAlreadyRunning indicates Start was called while a previous run still
	// occupies the session
	ErrAlreadyRunning = errors.New("session already running")
	// ErrClosed indicates the session's native resources have been destroyed
	ErrClosed = errors.New("session closed")
)

// UnrecognizedEventError reports a poll discriminant outside the known set.
// The raw value is preserved for diagnostics; polling may continue after
// receiving one.
type UnrecognizedEventError struct {
	Code EventCode
}

func (e *UnrecognizedEventError) Error() string {
	return fmt.Sprintf("unknown event type value: %d", e.Code)
}

// IsUnrecognizedEvent checks if an error stems from an unknown poll discriminant
func IsUnrecognizedEvent(err error) bool {
	var ue *UnrecognizedEventError
	return errors.As(err, &ue)
}

// IsInvalidArgument checks if an error stems from a rejected configuration value
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}
