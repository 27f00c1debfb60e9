package coordinator

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"shellglance/internal/command"
	"shellglance/internal/eventbus"
	logx "shellglance/pkg/logx"
)

// tick is the timer callback for id. Ticks from a cancelled or replaced timer
// are ignored.
func (c *Coordinator) tick(id string, slot *timerSlot) {
	c.mu.Lock()
	if c.destroyed || c.timers[id] != slot {
		c.mu.Unlock()
		return
	}
	spec, ok := c.beginLocked(id)
	c.mu.Unlock()
	if ok {
		c.launch(spec)
	}
}

// beginLocked marks a run of id as outstanding. It refuses when id is not an
// enabled configured command or a run for it is already outstanding.
func (c *Coordinator) beginLocked(id string) (command.Spec, bool) {
	i := command.Index(c.specs, id)
	if i < 0 || !c.specs[i].Enabled {
		return command.Spec{}, false
	}
	if c.inflight[id] > 0 {
		c.log.Debug("tick skipped; previous run still outstanding", logx.String("id", id))
		c.publish(eventbus.TypeRunSkipped, RunEvent{ID: id})
		return command.Spec{}, false
	}
	c.inflight[id]++
	c.runs.Add(1)
	return c.specs[i], true
}

func (c *Coordinator) launch(spec command.Spec) {
	go func() {
		defer c.runs.Done()
		c.run(spec)
	}()
}

func (c *Coordinator) run(spec command.Spec) {
	start := time.Now()
	res := c.exec.Execute(c.runCtx, spec.Command, spec.TimeoutDuration())
	c.finish(spec, res, time.Since(start))
}

func (c *Coordinator) finish(spec command.Spec, res command.Result, took time.Duration) {
	id := spec.ID

	c.mu.Lock()
	if n := c.inflight[id] - 1; n > 0 {
		c.inflight[id] = n
	} else {
		delete(c.inflight, id)
	}
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	if command.Index(c.specs, id) < 0 {
		c.mu.Unlock()
		c.log.Debug("result dropped; command no longer configured", logx.String("id", id))
		return
	}
	c.results[id] = res
	warn := false
	if !res.Success {
		lim := c.warn[id]
		if lim == nil {
			lim = rate.NewLimiter(rate.Every(c.warnEvery), 1)
			c.warn[id] = lim
		}
		warn = lim.Allow()
	}
	c.mu.Unlock()

	if warn {
		c.log.Warn("command failed",
			logx.String("id", id),
			logx.String("name", spec.DisplayName()),
			logx.String("error", res.Error),
			logx.Duration("took", took),
		)
	} else {
		c.log.Debug("command finished",
			logx.String("id", id),
			logx.Bool("success", res.Success),
			logx.Duration("took", took),
		)
	}
	c.publish(eventbus.TypeRunFinished, RunEvent{ID: id, Result: res, Duration: took})
	c.notify()
}

// RefreshAll runs every enabled command once, concurrently and regardless of
// timers, and returns when all runs have completed. Results become visible as
// each run finishes. ctx bounds the wait only; runs are not cancelled by it.
func (c *Coordinator) RefreshAll(ctx context.Context) error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return ErrDestroyed
	}
	batch := make([]command.Spec, 0, len(c.specs))
	for _, s := range c.specs {
		if !s.Enabled {
			continue
		}
		// Explicit requests always run; they still count as outstanding for ticks.
		c.inflight[s.ID]++
		c.runs.Add(1)
		batch = append(batch, s)
	}
	c.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(len(batch))
	for _, s := range batch {
		go func(s command.Spec) {
			defer c.runs.Done()
			defer wg.Done()
			c.run(s)
		}(s)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
