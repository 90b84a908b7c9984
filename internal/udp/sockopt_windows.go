//go:build windows

package udp

import (
	"errors"
	"syscall"
)

// wsaEMSGSIZE is returned by a read whose datagram did not fit the buffer.
// The buffer still holds the leading bytes.
const wsaEMSGSIZE = syscall.Errno(10040)

// Windows has no SO_REUSEPORT; SO_REUSEADDR already allows shared bindings.
func socketControl(reuseAddr bool) func(network, address string, c syscall.RawConn) error {
	return func(_, _ string, c syscall.RawConn) error {
		var opErr error
		err := c.Control(func(fd uintptr) {
			if reuseAddr {
				opErr = syscall.SetsockoptInt(syscall.Handle(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
				if opErr != nil {
					return
				}
			}
			opErr = syscall.SetsockoptInt(syscall.Handle(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1)
		})
		if err != nil {
			return err
		}
		return opErr
	}
}

// isTruncated reports whether err only signals that a datagram was cut to
// the buffer size.
func isTruncated(err error) bool {
	return errors.Is(err, wsaEMSGSIZE)
}
