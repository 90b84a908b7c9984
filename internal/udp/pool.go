package udp

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/postalsys/udpkit/internal/recovery"
)

// task is one unit of send work. ctx is cancelled when the pool closes.
type task func(ctx context.Context)

// workerPool runs tasks on at most size goroutines. The queue is unbounded.
// Workers start on demand and exit after idleTimeout without work.
type workerPool struct {
	size        int
	idleTimeout time.Duration
	logger      *slog.Logger
	onDepth     func(int)

	// onPanic, when set before the first Submit, receives panics raised by
	// tasks after they are logged.
	onPanic func(*recovery.Panic)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	queue   []task
	workers int
	idle    int
	closed  bool
	wake    chan struct{}

	// pending counts queued plus running tasks; drained is closed whenever
	// pending is zero.
	pending int
	drained chan struct{}
}

func newWorkerPool(size int, idleTimeout time.Duration, logger *slog.Logger, onDepth func(int)) *workerPool {
	if size < 1 {
		size = 1
	}
	if onDepth == nil {
		onDepth = func(int) {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	drained := make(chan struct{})
	close(drained)

	return &workerPool{
		size:        size,
		idleTimeout: idleTimeout,
		logger:      logger,
		onDepth:     onDepth,
		ctx:         ctx,
		cancel:      cancel,
		wake:        make(chan struct{}, size),
		drained:     drained,
	}
}

// Submit queues t. It never blocks on the queue.
func (p *workerPool) Submit(t task) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}

	p.queue = append(p.queue, t)
	if p.pending == 0 {
		p.drained = make(chan struct{})
	}
	p.pending++
	p.onDepth(p.pending)

	if p.idle > 0 {
		select {
		case p.wake <- struct{}{}:
		default:
		}
		return nil
	}

	if p.workers < p.size {
		p.workers++
		p.wg.Add(1)
		go p.work()
	}
	return nil
}

// Flush waits until every task submitted so far has run or been dropped.
func (p *workerPool) Flush(ctx context.Context) error {
	p.mu.Lock()
	drained := p.drained
	p.mu.Unlock()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drops queued tasks, cancels running ones and waits for the workers.
// It returns the number of dropped tasks.
func (p *workerPool) Close() int {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0
	}
	p.closed = true
	dropped := len(p.queue)
	p.queue = nil
	p.finishLocked(dropped)
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
	return dropped
}

// Workers returns the number of live worker goroutines.
func (p *workerPool) Workers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers
}

// Pending returns the number of queued plus running tasks.
func (p *workerPool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

func (p *workerPool) finishLocked(n int) {
	if n == 0 {
		return
	}
	p.pending -= n
	p.onDepth(p.pending)
	if p.pending == 0 {
		close(p.drained)
	}
}

func (p *workerPool) work() {
	defer p.wg.Done()

	timer := time.NewTimer(p.idleTimeout)
	defer timer.Stop()

	for {
		p.mu.Lock()
		if p.closed {
			p.workers--
			p.mu.Unlock()
			return
		}
		if len(p.queue) > 0 {
			t := p.queue[0]
			p.queue[0] = nil
			p.queue = p.queue[1:]
			p.mu.Unlock()

			p.run(t)
			continue
		}
		p.idle++
		p.mu.Unlock()

		timer.Reset(p.idleTimeout)
		select {
		case <-p.wake:
			p.mu.Lock()
			p.idle--
			p.mu.Unlock()
		case <-timer.C:
			p.mu.Lock()
			p.idle--
			if len(p.queue) == 0 {
				p.workers--
				p.mu.Unlock()
				return
			}
			p.mu.Unlock()
		case <-p.ctx.Done():
			p.mu.Lock()
			p.idle--
			p.workers--
			p.mu.Unlock()
			return
		}
	}
}

func (p *workerPool) run(t task) {
	defer func() {
		p.mu.Lock()
		p.finishLocked(1)
		p.mu.Unlock()
	}()
	defer recovery.RecoverWithCallback(p.logger, "udp-send", p.onPanic)

	t(p.ctx)
}
