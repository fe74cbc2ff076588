package data

import (
	_ "embed"
	"runtime"
)

// Icon formats understood by the session builder and the helper protocol.
const (
	FormatPNG = "PNG"
	FormatICO = "ICO"
)

//go:embed icons/tray.png
var trayPNG []byte

//go:embed icons/tray-attention.png
var trayAttentionPNG []byte

//go:embed icons/tray.ico
var trayICO []byte

// TrayIcon returns the default tray icon in the format the current platform
// wants. Windows status bars take ICO data, everything else takes PNG.
func TrayIcon() ([]byte, string) {
	if runtime.GOOS == "windows" {
		return trayICO, FormatICO
	}
	return trayPNG, FormatPNG
}

// AttentionIcon returns the variant used while the agent wants the user's
// attention. Only shipped as PNG; Windows callers keep the default icon.
func AttentionIcon() ([]byte, string) {
	return trayAttentionPNG, FormatPNG
}

// TrayIconPNG returns the PNG rendition regardless of platform.
func TrayIconPNG() []byte {
	return trayPNG
}
