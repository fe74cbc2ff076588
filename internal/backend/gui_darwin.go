//go:build darwin

package backend

import (
	"os/exec"
	"time"

	"github.com/glasswing-io/tray-agent/internal/logging"
)

// WaitForGUI waits for the WindowServer to be ready. Launch agents can
// start before the login session has a GUI, and the native status bar is
// not available until it does. Returns true once the GUI is ready, false
// on timeout.
func WaitForGUI(timeout time.Duration, retryInterval time.Duration) bool {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		// Check if WindowServer process exists
		cmd := exec.Command("pgrep", "-x", "WindowServer")
		if err := cmd.Run(); err == nil {
			// WindowServer is running, give it a moment to be fully ready
			time.Sleep(500 * time.Millisecond)
			logging.Info(logging.CatBackend, "WindowServer is ready", nil)
			return true
		}
		logging.Debug(logging.CatBackend, "Waiting for WindowServer", map[string]any{
			"remaining": time.Until(deadline).Round(time.Second).String(),
		})
		time.Sleep(retryInterval)
	}

	logging.Warn(logging.CatBackend, "Timed out waiting for WindowServer", nil)
	return false
}
