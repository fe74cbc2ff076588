package backend

import (
	"github.com/glasswing-io/tray-agent/internal/tray"
)

// Kind identifies a tray driver.
type Kind string

const (
	// KindAuto selects the preferred driver for the current platform.
	KindAuto Kind = "auto"
	// KindSystray is the in-process status bar driver for macOS and Windows.
	KindSystray Kind = "systray"
	// KindSNI is the StatusNotifierItem D-Bus driver for Linux desktops.
	KindSNI Kind = "sni"
	// KindHelper delegates the tray to an external helper process.
	KindHelper Kind = "helper"
	// KindHeadless runs without a native tray, for servers and tests.
	KindHeadless Kind = "headless"
)

// Info describes one driver choice for the status surfaces.
type Info struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Default bool   `json:"default"`
}

// Resolve maps KindAuto and the empty string to the concrete driver New
// would pick; explicit kinds pass through.
func Resolve(kind Kind) Kind {
	if kind == "" || kind == KindAuto {
		return defaultKind
	}
	return kind
}

// New builds the driver for the requested kind. KindAuto and the empty
// string pick the platform default. The helper path is only consulted for
// KindHelper.
func New(kind Kind, helperPath string) (tray.Backend, error) {
	switch kind := Resolve(kind); kind {
	case KindHelper:
		return NewHelper(helperPath)
	case KindHeadless:
		return NewHeadless(), nil
	default:
		return newPlatformBackend(kind)
	}
}

// Available lists the drivers this build can construct, marking the one
// KindAuto would pick.
func Available() []Info {
	infos := platformInfos()
	infos = append(infos,
		Info{ID: string(KindHelper), Name: "External helper process"},
		Info{ID: string(KindHeadless), Name: "Headless (no native tray)"},
	)
	for i := range infos {
		infos[i].Default = infos[i].ID == string(defaultKind)
	}
	return infos
}
