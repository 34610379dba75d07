//go:build linux

package platform

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// SystemRebooter restarts the host.
type SystemRebooter struct{}

// Reboot flushes filesystems and restarts the machine. It only returns on
// failure.
func (SystemRebooter) Reboot() error {
	unix.Sync()
	if err := unix.Reboot(unix.LINUX_REBOOT_CMD_RESTART); err != nil {
		return fmt.Errorf("reboot: %w", err)
	}
	return nil
}
