//go:build linux

package backend

import (
	"fmt"

	"github.com/glasswing-io/tray-agent/internal/tray"
)

const defaultKind = KindSNI

func newPlatformBackend(kind Kind) (tray.Backend, error) {
	switch kind {
	case KindSNI:
		return NewNotifierItem(), nil
	case KindSystray:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, kind)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, kind)
	}
}

func platformInfos() []Info {
	return []Info{
		{ID: string(KindSNI), Name: "StatusNotifierItem (D-Bus)"},
	}
}
