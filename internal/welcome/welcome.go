package welcome

import (
	"os"
	"path/filepath"
)

const markerFileName = ".tray-agent-welcomed"

func markerPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "tray-agent", markerFileName), nil
}

// IsFirstRun reports whether the welcome has never been shown on this machine.
func IsFirstRun() bool {
	path, err := markerPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return os.IsNotExist(err)
}

// MarkAsShown records that the welcome was shown.
func MarkAsShown() error {
	path, err := markerPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	return f.Close()
}
