// Package timer provides the cancellable repeating timer used for per-command cadence.
//
// The production Scheduler is backed by robfig/cron with one ConstantDelaySchedule
// entry per timer, so every timer keeps its own cadence independent of the others.
package timer

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "shellglance/pkg/logx"
)

// Timer is a running repeating trigger. Cancel is idempotent; after it returns
// no new tick is dispatched.
type Timer interface {
	Cancel()
}

// Scheduler starts repeating timers.
type Scheduler interface {
	// Every calls fn every interval until the returned Timer is cancelled.
	// The first call happens one interval after Every returns.
	Every(interval time.Duration, fn func()) Timer
}

// Cron is a Scheduler backed by a single cron runner.
type Cron struct {
	log logx.Logger

	mu      sync.Mutex
	c       *cron.Cron
	running bool
}

func NewCron(log logx.Logger) *Cron {
	if log.IsZero() {
		log = logx.Nop()
	}
	cl := logx.Cron(log)
	return &Cron{
		log: log,
		// Recover keeps a panicking tick from taking the process down.
		c: cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
	}
}

// Start begins dispatching ticks. Timers may be added before or after Start.
func (s *Cron) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.c.Start()
	s.log.Debug("timer scheduler started")
}

// Stop halts dispatching and waits (bounded by ctx) for ticks already running.
func (s *Cron) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	select {
	case <-s.c.Stop().Done():
	case <-ctx.Done():
		// best-effort
	}
	s.log.Debug("timer scheduler stopped")
}

// Every registers a constant-delay entry. cron works in whole seconds:
// intervals below one second are raised to one second.
func (s *Cron) Every(interval time.Duration, fn func()) Timer {
	id := s.c.Schedule(cron.Every(interval), cron.FuncJob(fn))
	return &cronTimer{c: s.c, id: id}
}

// Len reports the number of registered entries.
func (s *Cron) Len() int { return len(s.c.Entries()) }

type cronTimer struct {
	c    *cron.Cron
	id   cron.EntryID
	once sync.Once
}

func (t *cronTimer) Cancel() {
	t.once.Do(func() { t.c.Remove(t.id) })
}
