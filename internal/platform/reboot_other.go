//go:build !linux

package platform

// SystemRebooter is unsupported on this platform.
type SystemRebooter struct{}

// Reboot returns ErrUnsupported.
func (SystemRebooter) Reboot() error {
	return ErrUnsupported
}
