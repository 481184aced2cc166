//go:build linux

package transport

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// InterfaceIsRunning reads the raw IFF_RUNNING flag via SIOCGIFFLAGS,
// giving the migration monitor a cheaper link-state check than a full
// route-table probe when deciding whether a newly-seen interface address
// is worth a path probe.
func InterfaceIsRunning(name string) (bool, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return false, fmt.Errorf("open control socket: %w", err)
	}
	defer unix.Close(fd)

	ifr, err := unix.NewIfreq(name)
	if err != nil {
		return false, fmt.Errorf("build ifreq for %s: %w", name, err)
	}
	if err := unix.IoctlIfreq(fd, unix.SIOCGIFFLAGS, ifr); err != nil {
		return false, fmt.Errorf("SIOCGIFFLAGS %s: %w", name, err)
	}
	return ifr.Uint16()&unix.IFF_RUNNING != 0, nil
}
