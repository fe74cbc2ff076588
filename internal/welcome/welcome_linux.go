//go:build linux

package welcome

import (
	"os/exec"
)

// ShowWelcome sends a desktop notification on first run. Best effort; desks
// without notify-send just skip it.
func ShowWelcome(statusURL string) {
	body := "Tray Agent is running. Status page: " + statusURL
	exec.Command("notify-send", "--app-name=Tray Agent", "Tray Agent", body).Run()
}

// ShowAbout sends the version as a desktop notification.
func ShowAbout(version, statusURL string) {
	body := "Version " + version + "\nStatus page: " + statusURL
	exec.Command("notify-send", "--app-name=Tray Agent", "About Tray Agent", body).Run()
}
