package backend

import "errors"

var (
	// ErrUnknownBackend indicates a driver id that no build of the agent knows
	ErrUnknownBackend = errors.New("unknown backend")
	// ErrUnsupported indicates a driver that exists but not on this platform
	ErrUnsupported = errors.New("backend not supported on this platform")
	// ErrHelperNotFound indicates the tray helper binary is not installed
	ErrHelperNotFound = errors.New("tray helper binary not found")
	// ErrHelperTimeout indicates the helper did not answer a command in time
	ErrHelperTimeout = errors.New("helper command timed out")
	// ErrProtocol indicates the helper sent something the agent cannot parse
	ErrProtocol = errors.New("helper protocol violation")
)

// IsHelperNotFound checks if an error indicates a missing helper binary
func IsHelperNotFound(err error) bool {
	return errors.Is(err, ErrHelperNotFound)
}
