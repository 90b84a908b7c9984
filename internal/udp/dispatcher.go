package udp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/postalsys/udpkit/internal/logging"
	"github.com/postalsys/udpkit/internal/metrics"
	"github.com/postalsys/udpkit/internal/recovery"
)

// Send queues text as one datagram to the current host and port. The
// socket is started on demand. Send returns before the datagram is on the
// wire; failures are logged and the datagram dropped.
func (m *Manager) Send(text string) {
	m.dispatch([]byte(text))
}

// SendBytes is Send for raw bytes. b is copied.
func (m *Manager) SendBytes(b []byte) {
	m.dispatch(append([]byte(nil), b...))
}

// SendMap sends fields as a flat JSON object with every value stringified.
func (m *Manager) SendMap(fields map[string]any) {
	data, err := EncodeMap(fields)
	if err != nil {
		m.sendFault(&SendFault{Op: "encode", Host: m.Host(), Port: m.Port(), Err: err})
		return
	}
	m.dispatch(data)
}

// SendBroadcast points the host at the local broadcast address and sends text.
// The host stays pinned for later sends.
func (m *Manager) SendBroadcast(text string) {
	m.SetHost(m.ComputeBroadcastAddress())
	m.Send(text)
}

// SendBroadcastBytes is SendBroadcast for raw bytes.
func (m *Manager) SendBroadcastBytes(b []byte) {
	m.SetHost(m.ComputeBroadcastAddress())
	m.SendBytes(b)
}

// SendBroadcastMap is SendBroadcast for a key/value payload.
func (m *Manager) SendBroadcastMap(fields map[string]any) {
	m.SetHost(m.ComputeBroadcastAddress())
	m.SendMap(fields)
}

// SendToHotspot pins the host to the hotspot broadcast address and sends
// text. Use it when both ends sit on a phone's portable hotspot.
func (m *Manager) SendToHotspot(text string) {
	m.SetHost(m.cfg.HotspotHost)
	m.Send(text)
}

// SendToHotspotBytes is SendToHotspot for raw bytes.
func (m *Manager) SendToHotspotBytes(b []byte) {
	m.SetHost(m.cfg.HotspotHost)
	m.SendBytes(b)
}

// SendToHotspotMap is SendToHotspot for a key/value payload.
func (m *Manager) SendToHotspotMap(fields map[string]any) {
	m.SetHost(m.cfg.HotspotHost)
	m.SendMap(fields)
}

// Flush blocks until every send queued so far has been written or dropped.
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.RLock()
	s := m.session
	m.mu.RUnlock()

	if s == nil {
		return nil
	}
	return s.pool.Flush(ctx)
}

func (m *Manager) dispatch(payload []byte) {
	s, err := m.ensureSession()
	if err != nil {
		m.metrics.RecordDropped("not_started")
		m.logger.Warn("dropping datagram, socket not started",
			logging.KeyBytes, len(payload),
			logging.KeyError, err)
		return
	}

	m.logger.Debug("queueing datagram", logging.KeyBytes, len(payload))

	queued := time.Now()
	err = s.pool.Submit(func(ctx context.Context) {
		m.transmit(ctx, s, payload, queued)
	})
	if err != nil {
		m.sendFault(&SendFault{Op: "submit", Host: m.Host(), Port: m.Port(), Err: err})
	}
}

// ensureSession returns the open session, starting one when closed.
func (m *Manager) ensureSession() (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		if err := m.startLocked(); err != nil {
			return nil, err
		}
		m.logger.Debug("socket started on first send")
	}
	return m.session, nil
}

// transmit runs on a send worker. Host and port are read here, not at
// queue time.
func (m *Manager) transmit(ctx context.Context, s *session, payload []byte, queued time.Time) {
	host, port := m.Host(), m.Port()

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			m.metrics.RecordDropped("cancelled")
			return
		}
	}

	addr, err := resolveTarget(ctx, host, port)
	if err != nil {
		if ctx.Err() != nil {
			m.metrics.RecordDropped("cancelled")
			return
		}
		m.sendFault(&SendFault{Op: "resolve", Host: host, Port: port, Err: err})
		return
	}

	n, err := s.conn.WriteToUDPAddrPort(payload, addr)
	if err != nil {
		if s.closing.Load() && errors.Is(err, net.ErrClosed) {
			m.metrics.RecordDropped("cancelled")
			return
		}
		m.sendFault(&SendFault{Op: "write", Host: host, Port: port, Err: err})
		return
	}

	m.datagramsSent.Add(1)
	m.bytesSent.Add(uint64(n))
	m.metrics.RecordSent(n, time.Since(queued).Seconds())
}

// resolveTarget looks up the first IPv4 address of host. The lookup is
// abandoned when ctx is cancelled.
func resolveTarget(ctx context.Context, host string, port int) (netip.AddrPort, error) {
	ips, err := net.DefaultResolver.LookupNetIP(ctx, "ip4", host)
	if err != nil {
		return netip.AddrPort{}, err
	}
	if len(ips) == 0 {
		return netip.AddrPort{}, fmt.Errorf("no IPv4 address for %s", host)
	}
	return netip.AddrPortFrom(ips[0].Unmap(), uint16(port)), nil
}

// sendPanic counts a panicking send task as a dropped datagram.
func (m *Manager) sendPanic(p *recovery.Panic) {
	m.sendFault(&SendFault{Op: "panic", Host: m.Host(), Port: m.Port(), Err: p})
}

func (m *Manager) sendFault(fault *SendFault) {
	m.sendFaults.Add(1)
	m.metrics.RecordFault(metrics.FaultSend)
	m.logger.Warn("UDP send failed, datagram dropped",
		logging.KeyFault, "send",
		logging.KeyHost, fault.Host,
		logging.KeyPort, fault.Port,
		"op", fault.Op,
		logging.KeyError, fault.Err)
}
