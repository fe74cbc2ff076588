//go:build darwin

package welcome

import (
	"os/exec"
)

const welcomeTitle = "Tray Agent"

// ShowWelcome displays a native first-run dialog.
func ShowWelcome(statusURL string) {
	message := `Tray Agent is now running!

It lives in your menu bar and keeps the Glasswing desktop integration available while you work.

You can check on it anytime at:
` + statusURL + `

Click the menu bar icon to open the status page or quit.`

	script := `display dialog "` + escapeAppleScript(message) + `" with title "` + welcomeTitle + `" buttons {"Got it!"} default button 1 with icon note`
	exec.Command("osascript", "-e", script).Run()
}

// ShowAbout displays a native about dialog.
func ShowAbout(version, statusURL string) {
	message := `Tray Agent

A lightweight menu bar companion that hosts the system tray for Glasswing applications and exposes a local status API.

Status page: ` + statusURL + `
Version: ` + version

	script := `display dialog "` + escapeAppleScript(message) + `" with title "About Tray Agent" buttons {"OK"} default button 1 with icon note`
	exec.Command("osascript", "-e", script).Run()
}

func escapeAppleScript(s string) string {
	result := ""
	for _, c := range s {
		switch c {
		case '"':
			result += `\"`
		case '\\':
			result += `\\`
		default:
			result += string(c)
		}
	}
	return result
}
