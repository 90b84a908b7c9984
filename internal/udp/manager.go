package udp

import (
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/postalsys/udpkit/internal/logging"
	"github.com/postalsys/udpkit/internal/metrics"
	"github.com/postalsys/udpkit/internal/recovery"
)

// ReceiveFunc is called on the receive goroutine for every non-empty
// datagram with the decoded text and the sender's address.
type ReceiveFunc func(data string, addr net.IP, port int)

// Manager owns a single UDP socket session.
type Manager struct {
	cfg      Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	resolver *Resolver

	// Endpoint configuration. Each field is atomic on its own.
	host atomic.Pointer[string]
	port atomic.Int64

	mu       sync.RWMutex
	session  *session
	buf      []byte
	listener ReceiveFunc

	datagramsSent     atomic.Uint64
	datagramsReceived atomic.Uint64
	bytesSent         atomic.Uint64
	bytesReceived     atomic.Uint64
	sendFaults        atomic.Uint64
	receiveFaults     atomic.Uint64
	listenerFaults    atomic.Uint64
}

// NewManager creates a closed Manager. A nil logger discards output and a
// nil metrics uses metrics.Default().
func NewManager(cfg Config, logger *slog.Logger, m *metrics.Metrics) *Manager {
	cfg = cfg.withDefaults()
	if m == nil {
		m = metrics.Default()
	}

	mgr := &Manager{
		cfg:      cfg,
		logger:   logging.Component(logger, "udp"),
		metrics:  m,
		resolver: NewResolver(cfg.DefaultHost),
	}
	mgr.SetHost(cfg.Host)
	mgr.SetPort(cfg.Port)
	return mgr
}

// SetHost sets the target host for subsequent sends. Empty restores the
// default host.
func (m *Manager) SetHost(host string) {
	m.host.Store(&host)
}

// Host returns the configured target host, or the default host when none
// is set.
func (m *Manager) Host() string {
	if h := m.host.Load(); h != nil && *h != "" {
		return *h
	}
	return m.cfg.DefaultHost
}

// SetPort sets the bind and target port. It affects subsequent sends
// immediately and the bound port on the next Start or Restart.
func (m *Manager) SetPort(port int) {
	m.port.Store(int64(port))
}

// Port returns the configured port, or DefaultPort when none is set.
func (m *Manager) Port() int {
	if p := int(m.port.Load()); p > 0 {
		return p
	}
	return DefaultPort
}

// SetReceiveListener registers fn as the only listener, replacing any
// previous one. nil unregisters. Stop clears the listener.
func (m *Manager) SetReceiveListener(fn ReceiveFunc) {
	m.mu.Lock()
	m.listener = fn
	m.mu.Unlock()
}

// Start binds the socket and starts the receive loop. It is a no-op while a
// session is open. A bind failure is returned as *BindError.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.startLocked()
}

func (m *Manager) startLocked() error {
	if m.session != nil {
		return nil
	}

	port := m.Port()
	conn, err := listen(m.cfg, port)
	if err != nil {
		m.metrics.RecordFault(metrics.FaultBind)
		m.logger.Error("UDP bind failed",
			logging.KeyPort, port,
			logging.KeyError, err)
		return &BindError{Port: port, Err: err}
	}

	if m.buf == nil {
		m.buf = make([]byte, m.cfg.BufferSize)
	}

	pool := newWorkerPool(m.cfg.Workers, m.cfg.WorkerIdleTimeout, m.logger, m.metrics.SetSendQueueDepth)
	pool.onPanic = m.sendPanic
	s := newSession(conn, m.buf, pool, m.cfg.SendRate)
	m.session = s
	m.metrics.RecordSessionStart()

	go m.receiveLoop(s)

	m.logger.Info("UDP session started",
		logging.KeyLocalAddr, s.localAddr().String(),
		"buffer_size", len(s.buf),
		"workers", m.cfg.Workers)

	return nil
}

// Stop closes the session: the socket is closed, the receive buffer
// released, the listener cleared and queued sends cancelled. Stop on a
// closed Manager does nothing. Once Stop returns no further datagram is
// delivered, unless Stop was called from inside the listener.
func (m *Manager) Stop() error {
	m.mu.Lock()
	s, err := m.teardownLocked(nil)
	m.mu.Unlock()

	if s != nil && !s.inCallback.Load() {
		<-s.done
	}
	return err
}

// Restart stops and starts the session, picking up a changed port.
func (m *Manager) Restart() error {
	if err := m.Stop(); err != nil {
		m.logger.Warn("error closing socket on restart", logging.KeyError, err)
	}
	return m.Start()
}

// teardownLocked closes the current session if it is only (or any session
// when only is nil). It returns the session that was closed.
func (m *Manager) teardownLocked(only *session) (*session, error) {
	s := m.session
	if s == nil || (only != nil && s != only) {
		return nil, nil
	}

	m.session = nil
	m.buf = nil
	m.listener = nil

	err := s.close()
	dropped := s.pool.Close()
	m.metrics.RecordSessionStop()

	m.logger.Info("UDP session stopped",
		logging.KeyLocalAddr, s.localAddr().String(),
		logging.KeyDuration, time.Since(s.startedAt).String(),
		"dropped_sends", dropped)

	return s, err
}

// IsOpen reports whether a session is bound.
func (m *Manager) IsOpen() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.session != nil
}

// closedChan is returned by Done when no session is open.
var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Done returns a channel that is closed when the current session ends,
// whether by Stop or by a receive failure. With no open session the
// channel is already closed.
func (m *Manager) Done() <-chan struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.session == nil {
		return closedChan
	}
	return m.session.done
}

// LocalAddr returns the bound address, or nil when closed.
func (m *Manager) LocalAddr() *net.UDPAddr {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.session == nil {
		return nil
	}
	return m.session.localAddr()
}

// ComputeBroadcastAddress returns the local broadcast address, falling back
// to the default host.
func (m *Manager) ComputeBroadcastAddress() string {
	return m.resolver.ComputeBroadcastAddress()
}

// receiveLoop blocks on the socket until it is closed. It never holds m.mu
// while reading.
func (m *Manager) receiveLoop(s *session) {
	defer close(s.done)
	defer recovery.RecoverWithLog(m.logger, "udp-receive")

	for {
		n, from, err := s.conn.ReadFromUDP(s.readBuffer())
		if err != nil {
			if s.closing.Load() {
				return
			}
			if !isTruncated(err) {
				m.receiveFault(s, &ReceiveFault{Err: err})
				return
			}
			if n == 0 {
				m.metrics.RecordDropped("truncated")
				continue
			}
			// A truncated read on Windows carries no sender address.
			if from == nil {
				from = &net.UDPAddr{}
			}
			m.logger.Debug("oversized datagram truncated",
				logging.KeyRemoteAddr, from.String(),
				logging.KeyBytes, n)
		}

		if n == 0 {
			m.metrics.RecordDropped("empty")
			m.logger.Debug("empty datagram skipped",
				logging.KeyRemoteAddr, from.String())
			continue
		}

		m.datagramsReceived.Add(1)
		m.bytesReceived.Add(uint64(n))
		m.metrics.RecordReceived(n)

		m.deliver(s, decodeText(s.buf[:n]), from)
	}
}

func (m *Manager) receiveFault(s *session, fault *ReceiveFault) {
	m.receiveFaults.Add(1)
	m.metrics.RecordFault(metrics.FaultReceive)
	m.logger.Error("UDP receive failed, stopping session",
		logging.KeyFault, "receive",
		logging.KeyError, fault.Err)

	m.mu.Lock()
	_, err := m.teardownLocked(s)
	m.mu.Unlock()
	if err != nil {
		m.logger.Debug("close after receive fault", logging.KeyError, err)
	}
}

func (m *Manager) deliver(s *session, data string, from *net.UDPAddr) {
	m.mu.RLock()
	fn := m.listener
	current := m.session == s
	m.mu.RUnlock()

	if !current {
		return
	}
	if fn == nil {
		m.metrics.RecordDropped("no_listener")
		return
	}

	s.inCallback.Store(true)
	p := recovery.Call(func() { fn(data, from.IP, from.Port) })
	s.inCallback.Store(false)

	if p != nil {
		fault := &ListenerFault{Value: p.Value, Stack: p.Stack}
		m.listenerFaults.Add(1)
		m.metrics.RecordFault(metrics.FaultListener)
		m.logger.Error("receive listener failed",
			logging.KeyFault, "listener",
			logging.KeyRemoteAddr, from.String(),
			logging.KeyError, fault,
			"stack", string(fault.Stack))
	}
}

// Stats is a point-in-time view of a Manager.
type Stats struct {
	Open              bool   `json:"open"`
	LocalAddr         string `json:"local_addr,omitempty"`
	Host              string `json:"host"`
	Port              int    `json:"port"`
	DatagramsSent     uint64 `json:"datagrams_sent"`
	DatagramsReceived uint64 `json:"datagrams_received"`
	BytesSent         uint64 `json:"bytes_sent"`
	BytesReceived     uint64 `json:"bytes_received"`
	SendFaults        uint64 `json:"send_faults"`
	ReceiveFaults     uint64 `json:"receive_faults"`
	ListenerFaults    uint64 `json:"listener_faults"`
	PendingSends      int    `json:"pending_sends"`
}

// Stats returns current counters. Counters survive Stop.
func (m *Manager) Stats() Stats {
	st := Stats{
		Host:              m.Host(),
		Port:              m.Port(),
		DatagramsSent:     m.datagramsSent.Load(),
		DatagramsReceived: m.datagramsReceived.Load(),
		BytesSent:         m.bytesSent.Load(),
		BytesReceived:     m.bytesReceived.Load(),
		SendFaults:        m.sendFaults.Load(),
		ReceiveFaults:     m.receiveFaults.Load(),
		ListenerFaults:    m.listenerFaults.Load(),
	}

	m.mu.RLock()
	if s := m.session; s != nil {
		st.Open = true
		st.LocalAddr = s.localAddr().String()
		st.PendingSends = s.pool.Pending()
	}
	m.mu.RUnlock()

	return st
}
