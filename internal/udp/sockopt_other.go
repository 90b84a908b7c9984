//go:build !unix && !windows

package udp

import "syscall"

func socketControl(bool) func(network, address string, c syscall.RawConn) error {
	return nil
}

// isTruncated recognises no truncation error on this platform.
func isTruncated(error) bool {
	return false
}
