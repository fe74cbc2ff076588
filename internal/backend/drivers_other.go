//go:build !linux

package backend

import (
	"fmt"

	"github.com/glasswing-io/tray-agent/internal/tray"
)

const defaultKind = KindSystray

func newPlatformBackend(kind Kind) (tray.Backend, error) {
	switch kind {
	case KindSystray:
		return NewSystray(), nil
	case KindSNI:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, kind)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, kind)
	}
}

func platformInfos() []Info {
	return []Info{
		{ID: string(KindSystray), Name: "Native status bar (systray)"},
	}
}
