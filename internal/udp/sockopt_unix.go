//go:build unix

package udp

import (
	"syscall"

	"golang.org/x/sys/unix"
)

func socketControl(reuseAddr bool) func(network, address string, c syscall.RawConn) error {
	return func(_, _ string, c syscall.RawConn) error {
		var opErr error
		err := c.Control(func(fd uintptr) {
			if reuseAddr {
				opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
				if opErr != nil {
					return
				}
			}
			opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
		})
		if err != nil {
			return err
		}
		return opErr
	}
}

// isTruncated is always false here: the kernel drops the excess bytes of an
// oversized datagram without reporting an error.
func isTruncated(error) bool {
	return false
}
