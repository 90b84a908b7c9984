package udp

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
)

// listen binds an IPv4 UDP socket on every local address at port.
// The socket always allows broadcast; SO_REUSEADDR follows cfg.
func listen(cfg Config, port int) (*net.UDPConn, error) {
	lc := net.ListenConfig{
		Control: socketControl(!cfg.DisableReuseAddress),
	}

	pc, err := lc.ListenPacket(context.Background(), "udp4", targetAddr("0.0.0.0", port))
	if err != nil {
		return nil, err
	}
	conn := pc.(*net.UDPConn)

	if cfg.TTL > 0 {
		if err := ipv4.NewPacketConn(conn).SetTTL(cfg.TTL); err != nil {
			conn.Close()
			return nil, fmt.Errorf("set ttl %d: %w", cfg.TTL, err)
		}
	}

	return conn, nil
}
