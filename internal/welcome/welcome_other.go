//go:build !darwin && !linux

package welcome

// ShowWelcome is a no-op on platforms without a native dialog helper.
func ShowWelcome(statusURL string) {}

// ShowAbout is a no-op on platforms without a native dialog helper.
func ShowAbout(version, statusURL string) {}
