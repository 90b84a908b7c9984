package udp

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// session is one bound socket together with its receive buffer and send
// workers. It is created by Start and destroyed by Stop.
type session struct {
	conn      *net.UDPConn
	buf       []byte
	pool      *workerPool
	limiter   *rate.Limiter
	startedAt time.Time

	// done is closed when the receive loop exits.
	done chan struct{}

	closing    atomic.Bool
	inCallback atomic.Bool
	closeOnce  sync.Once
	closeErr   error
}

func newSession(conn *net.UDPConn, buf []byte, pool *workerPool, sendRate float64) *session {
	s := &session{
		conn:      conn,
		buf:       buf,
		pool:      pool,
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
	if sendRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(sendRate), max(1, int(sendRate)))
	}
	return s
}

// close closes the socket once. Later calls return the first result.
func (s *session) close() error {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// readBuffer returns the buffer at full capacity. Reads must never reuse the
// length of a previous datagram or the next larger one is truncated.
func (s *session) readBuffer() []byte {
	return s.buf[:cap(s.buf)]
}

func (s *session) localAddr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}
