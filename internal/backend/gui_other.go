//go:build !darwin && !linux

package backend

import "time"

// WaitForGUI is a no-op on platforms where the status bar is available as
// soon as the session is. Returns true immediately.
func WaitForGUI(timeout time.Duration, retryInterval time.Duration) bool {
	return true
}
