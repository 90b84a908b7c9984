package udp

import (
	"fmt"
	"net"
	"runtime"
	"strconv"
	"time"
)

const (
	// DefaultPort is used for both binding and sending when no port is set.
	DefaultPort = 9090

	// DefaultHost is the limited broadcast address. It is the target when no
	// host is configured and the fallback when no broadcast address can be
	// derived from a local interface.
	DefaultHost = "255.255.255.255"

	// DefaultHotspotHost is the directed broadcast address of the subnet an
	// Android portable hotspot hands out (192.168.43.0/24).
	DefaultHotspotHost = "192.168.43.255"

	// DefaultBufferSize is the receive buffer capacity. Larger datagrams are
	// truncated.
	DefaultBufferSize = 1024

	// DefaultWorkerIdleTimeout is how long an idle send worker lives.
	DefaultWorkerIdleTimeout = 30 * time.Second
)

// Config holds configuration for a Manager.
type Config struct {
	// Host is the initial target host. Empty means DefaultHost.
	Host string

	// Port is the initial bind and target port. 0 means DefaultPort.
	Port int

	// DefaultHost replaces the package DefaultHost when non-empty.
	DefaultHost string

	// HotspotHost is the target pinned by the SendToHotspot family.
	HotspotHost string

	// BufferSize is the receive buffer capacity in bytes.
	BufferSize int

	// Workers bounds concurrent send tasks. 0 means 2*NumCPU+1.
	Workers int

	// WorkerIdleTimeout is how long an idle send worker waits before exiting.
	WorkerIdleTimeout time.Duration

	// DisableReuseAddress binds without SO_REUSEADDR. The zero value keeps
	// address reuse on.
	DisableReuseAddress bool

	// TTL sets the IPv4 TTL of outgoing datagrams. 0 keeps the system default.
	TTL int

	// SendRate limits outgoing datagrams per second. 0 means unlimited.
	SendRate float64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port:              DefaultPort,
		DefaultHost:       DefaultHost,
		HotspotHost:       DefaultHotspotHost,
		BufferSize:        DefaultBufferSize,
		Workers:           defaultWorkers(),
		WorkerIdleTimeout: DefaultWorkerIdleTimeout,
	}
}

func defaultWorkers() int {
	return 2*runtime.NumCPU() + 1
}

// withDefaults fills zero values.
func (c Config) withDefaults() Config {
	if c.DefaultHost == "" {
		c.DefaultHost = DefaultHost
	}
	if c.HotspotHost == "" {
		c.HotspotHost = DefaultHotspotHost
	}
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkers()
	}
	if c.WorkerIdleTimeout <= 0 {
		c.WorkerIdleTimeout = DefaultWorkerIdleTimeout
	}
	return c
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.BufferSize < 0 {
		return fmt.Errorf("buffer size must not be negative: %d", c.BufferSize)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative: %d", c.Workers)
	}
	if c.TTL < 0 || c.TTL > 255 {
		return fmt.Errorf("ttl out of range: %d", c.TTL)
	}
	if c.SendRate < 0 {
		return fmt.Errorf("send rate must not be negative: %v", c.SendRate)
	}
	for _, h := range []string{c.DefaultHost, c.HotspotHost} {
		if h != "" && !IsValidIPAddress(h) {
			return fmt.Errorf("invalid IPv4 address: %q", h)
		}
	}
	return nil
}

// targetAddr joins host and port.
func targetAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
