package udp

import (
	"net"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
)

// ipv4Regex matches a dotted quad with every octet in 0-255.
var ipv4Regex = regexp.MustCompile(`^((2[0-4]\d|25[0-5]|[01]?\d\d?)\.){3}(2[0-4]\d|25[0-5]|[01]?\d\d?)$`)

// IsValidIPAddress reports whether s is a dotted-quad IPv4 literal.
// It is input validation only and never consults the network.
func IsValidIPAddress(s string) bool {
	return s != "" && ipv4Regex.MatchString(s)
}

// BroadcastAddress returns (ip & mask) | ^mask for an IPv4 address.
func BroadcastAddress(ip net.IP, mask net.IPMask) (net.IP, bool) {
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, false
	}
	if len(mask) == net.IPv6len {
		mask = mask[12:]
	}
	if len(mask) != net.IPv4len {
		return nil, false
	}

	out := make(net.IP, net.IPv4len)
	for i := range out {
		out[i] = (ip4[i] & mask[i]) | ^mask[i]
	}
	return out, true
}

// Resolver derives the directed broadcast address of the local network.
//
// Policy: among interfaces that are up, not loopback, broadcast capable and
// carry an IPv4 address, prefer a wireless one, else take the first. Its
// broadcast address is (ip & mask) | ^mask. When no interface qualifies the
// fallback host is returned.
type Resolver struct {
	fallback string

	interfaces func() ([]net.Interface, error)
	addrs      func(net.Interface) ([]net.Addr, error)
	wireless   func(name string) bool
}

// NewResolver creates a Resolver that falls back to fallback, or to
// DefaultHost when fallback is empty.
func NewResolver(fallback string) *Resolver {
	if fallback == "" {
		fallback = DefaultHost
	}
	return &Resolver{
		fallback:   fallback,
		interfaces: net.Interfaces,
		addrs:      func(i net.Interface) ([]net.Addr, error) { return i.Addrs() },
		wireless:   isWireless,
	}
}

type broadcastCandidate struct {
	name      string
	broadcast net.IP
}

// ComputeBroadcastAddress returns the broadcast address as a dotted quad.
func (r *Resolver) ComputeBroadcastAddress() string {
	candidates := r.candidates()
	if len(candidates) == 0 {
		return r.fallback
	}

	for _, c := range candidates {
		if r.wireless(c.name) {
			return c.broadcast.String()
		}
	}
	return candidates[0].broadcast.String()
}

func (r *Resolver) candidates() []broadcastCandidate {
	ifaces, err := r.interfaces()
	if err != nil {
		return nil
	}

	var out []broadcastCandidate
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if iface.Flags&net.FlagBroadcast == 0 {
			continue
		}

		addrs, err := r.addrs(iface)
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok || ipNet.IP.To4() == nil {
				continue
			}
			// /31 and /32 have no broadcast address.
			if ones, bits := ipNet.Mask.Size(); bits == 0 || bits-ones < 2 {
				continue
			}
			if bcast, ok := BroadcastAddress(ipNet.IP, ipNet.Mask); ok {
				out = append(out, broadcastCandidate{name: iface.Name, broadcast: bcast})
				break
			}
		}
	}
	return out
}

// isWireless reports whether the named interface is a Wi-Fi interface.
func isWireless(name string) bool {
	if runtime.GOOS == "linux" {
		for _, marker := range []string{"wireless", "phy80211"} {
			if _, err := os.Stat(filepath.Join("/sys/class/net", name, marker)); err == nil {
				return true
			}
		}
	}
	return strings.HasPrefix(name, "wl")
}
