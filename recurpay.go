// Package recurpay schedules recurring Lightning payments.
package recurpay

import (
	"context"
	"runtime"
	"sync"
	"time"

	"recurpay/job"
	"recurpay/metrics"
	"recurpay/workerpool"

	"go.uber.org/zap"
)

// State of the scheduler loop.
type State int32

const (
	// Selecting is the running state: pick, wait, dispatch.
	Selecting State = iota
	// Draining is entered once no job has a pending activation.
	Draining
	// ShuttingDown is entered when the context is cancelled during a wait.
	ShuttingDown
)

func (s State) String() string {
	switch s {
	case Selecting:
		return "selecting"
	case Draining:
		return "draining"
	case ShuttingDown:
		return "shutting_down"
	}
	return "unknown"
}

// Executor runs a single firing of a job.
type Executor interface {
	Execute(ctx context.Context, j job.Job)
}

// Scheduler fires jobs at their activation times. It is the only writer of
// the jobs' timestamps; executions receive snapshots.
type Scheduler struct {
	sync.RWMutex

	state State
	jobs  []job.Job

	executor Executor
	workers  workerpool.WorkerPool
	logger   *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

type FuncOption func(s *Scheduler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) FuncOption {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithSleep replaces the cancellable wait between firings.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) FuncOption {
	return func(s *Scheduler) {
		s.sleep = sleep
	}
}

// WithWorkerPool replaces the pool executions are dispatched to.
func WithWorkerPool(pool workerpool.WorkerPool) FuncOption {
	return func(s *Scheduler) {
		s.workers = pool
	}
}

// New returns a scheduler owning a copy of jobs.
func New(jobs []job.Job, executor Executor, logger *zap.Logger, options ...FuncOption) *Scheduler {
	s := &Scheduler{
		jobs:     make([]job.Job, len(jobs)),
		executor: executor,
		logger:   logger,
		now:      time.Now,
		sleep:    sleep,
	}
	for i := range jobs {
		s.jobs[i] = jobs[i].Snapshot()
	}
	for _, option := range options {
		option(s)
	}
	if s.workers == nil {
		s.workers = workerpool.NewPool(runtime.NumCPU(), logger)
	}
	return s
}

// Run fires jobs until none has a pending activation, returning nil, or
// until ctx is cancelled during a wait, returning ctx.Err(). Executions
// already dispatched keep running; Close waits for them.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("[Scheduler] start", zap.Int("jobs", len(s.jobs)))
	for _, j := range s.Jobs() {
		metrics.SetNextRun(j.Name(), j.NextRun)
	}

	for {
		i, ok := s.selectNext()
		if !ok {
			s.logger.Info("[Scheduler] drained, no job has a pending activation")
			s.setState(Draining)
			return nil
		}

		s.RLock()
		target := s.jobs[i].NextRun
		name := s.jobs[i].Name()
		s.RUnlock()

		if wait := target.Sub(s.now()); wait > 0 {
			s.logger.Info("[Scheduler] waiting",
				zap.String("job", name),
				zap.Duration("wait", wait),
				zap.Time("target", target))
			if err := s.sleep(ctx, wait); err != nil {
				s.logger.Info("[Scheduler] shutting down", zap.Error(err))
				s.setState(ShuttingDown)
				return err
			}
		}

		s.dispatch(ctx, i)
	}
}

// selectNext returns the due job with the earliest NextRun, the first
// registered one on ties.
func (s *Scheduler) selectNext() (int, bool) {
	s.RLock()
	defer s.RUnlock()

	selected := -1
	for i := range s.jobs {
		if !s.jobs[i].Due() {
			continue
		}
		if selected < 0 || s.jobs[i].NextRun.Before(s.jobs[selected].NextRun) {
			selected = i
		}
	}
	return selected, selected >= 0
}

func (s *Scheduler) dispatch(ctx context.Context, i int) {
	s.Lock()
	s.jobs[i].Advance(s.now())
	snapshot := s.jobs[i].Snapshot()
	s.Unlock()

	name := snapshot.Name()
	metrics.SetNextRun(name, snapshot.NextRun)
	metrics.Dispatched.WithLabelValues(name).Inc()
	s.logger.Debug("[Scheduler] dispatch",
		zap.String("job", name),
		zap.Time("scheduled_at", snapshot.LastRun),
		zap.Time("next_run", snapshot.NextRun))

	execCtx := context.WithoutCancel(ctx)
	s.workers.Schedule(func() {
		s.executor.Execute(execCtx, snapshot)
	})
}

// State returns the current state of the loop.
func (s *Scheduler) State() State {
	s.RLock()
	defer s.RUnlock()
	return s.state
}

func (s *Scheduler) setState(state State) {
	s.Lock()
	defer s.Unlock()
	s.state = state
}

// Jobs returns snapshots of the scheduled jobs in registration order.
func (s *Scheduler) Jobs() []job.Job {
	s.RLock()
	defer s.RUnlock()

	jobs := make([]job.Job, len(s.jobs))
	for i := range s.jobs {
		jobs[i] = s.jobs[i].Snapshot()
	}
	return jobs
}

// Close waits for in-flight executions.
func (s *Scheduler) Close() {
	s.workers.Close()
	s.logger.Info("[Scheduler] closed")
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
