//go:build linux

package backend

import (
	"os"
	"path/filepath"
	"time"

	"github.com/glasswing-io/tray-agent/internal/logging"
)

// WaitForGUI waits for the D-Bus session bus to be reachable. Autostart
// can launch the agent before the user session has a bus, and the
// StatusNotifierItem driver fails its loop without one. Returns true once
// a bus is present, false on timeout.
func WaitForGUI(timeout time.Duration, retryInterval time.Duration) bool {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if sessionBusPresent() {
			return true
		}
		logging.Debug(logging.CatBackend, "Waiting for session bus", map[string]any{
			"remaining": time.Until(deadline).Round(time.Second).String(),
		})
		time.Sleep(retryInterval)
	}

	logging.Warn(logging.CatBackend, "Timed out waiting for session bus", nil)
	return false
}

func sessionBusPresent() bool {
	if os.Getenv("DBUS_SESSION_BUS_ADDRESS") != "" {
		return true
	}
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(runtimeDir, "bus"))
	return err == nil
}
