package workerpool

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// tempIdleTimeout is how long an overflow goroutine waits for more work.
const tempIdleTimeout = time.Minute

// Pool is a goroutine pool: workers receive tasks from the task channel, and
// overflow tasks get a temporary goroutine so Schedule never waits.
type Pool struct {
	sync.RWMutex

	wg sync.WaitGroup

	task   chan func()
	worker chan struct{}
	closed bool

	// use for monitor pool status.
	id      string
	size    int
	current atomic.Int64

	logger *zap.Logger
}

// NewPool create a new Pool with n long lived workers.
func NewPool(n int, logger *zap.Logger) *Pool {
	if n < 1 {
		n = 1
	}
	return &Pool{
		id:     uuid.New().String(),
		task:   make(chan func()),
		worker: make(chan struct{}, n),
		size:   n,
		logger: logger.With(zap.String("pool", "workerpool")),
	}
}

// Schedule see WorkerPool.Schedule.
func (p *Pool) Schedule(task func()) {
	p.RLock()
	defer p.RUnlock()
	if p.closed {
		p.logger.Warn("[Pool] schedule after close, task dropped", zap.String("id", p.id))
		return
	}

	// Prefer a worker that is already idle.
	select {
	case p.task <- task:
		return
	default:
	}

	select {
	case p.worker <- struct{}{}:
		p.add(1)
		go p.spawnWorker(task)
	default:
		p.add(1)
		go p.spawnWorkerWithTimeout(task, tempIdleTimeout)
	}
}

// spawnWorker runs task, then keeps taking tasks until the pool closes.
func (p *Pool) spawnWorker(task func()) {
	defer func() {
		<-p.worker
		p.done()
	}()

	p.run(task)
	for next := range p.task {
		p.run(next)
	}
}

// spawnWorkerWithTimeout runs task and then waits up to timeout for another
// one before exiting.
func (p *Pool) spawnWorkerWithTimeout(task func(), timeout time.Duration) {
	defer p.done()

	p.run(task)
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			return
		case next, ok := <-p.task:
			if !ok {
				return
			}
			p.run(next)

			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(timeout)
		}
	}
}

// run executes one task; a panicking task does not take its worker down.
func (p *Pool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("[Pool] task panic", zap.String("id", p.id), zap.Any("panic", r))
		}
	}()
	task()
}

// Close see WorkerPool.Close.
func (p *Pool) Close() {
	p.Lock()
	if p.closed {
		p.Unlock()
		return
	}
	p.closed = true
	close(p.task)
	p.Unlock()

	p.wg.Wait()
	p.logger.Debug("[Pool] closed", zap.String("id", p.id), zap.Int("size", p.size))
}

// Running see WorkerPool.Running.
func (p *Pool) Running() int {
	return int(p.current.Load())
}

func (p *Pool) add(n int) {
	p.wg.Add(n)
	p.current.Add(int64(n))
	p.logger.Debug("[Pool] worker started", zap.String("id", p.id), zap.Int("size", p.size))
}

func (p *Pool) done() {
	p.current.Add(-1)
	p.wg.Done()
	p.logger.Debug("[Pool] worker exited", zap.String("id", p.id), zap.Int("size", p.size))
}
