package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"shellglance/internal/command"
	"shellglance/internal/eventbus"
	"shellglance/internal/settings"
	"shellglance/internal/task/timer"
	logx "shellglance/pkg/logx"
)

// DefaultWarnEvery bounds how often a repeatedly failing command is logged at warn level.
const DefaultWarnEvery = time.Minute

// ErrDestroyed is returned by RefreshAll once the coordinator was destroyed.
var ErrDestroyed = errors.New("coordinator destroyed")

// Executor runs one command once. It never fails; every failure is a Result.
type Executor interface {
	Execute(ctx context.Context, cmd string, timeout time.Duration) command.Result
}

// RunEvent is the payload of eventbus.TypeRunFinished and eventbus.TypeRunSkipped.
type RunEvent struct {
	ID       string
	Result   command.Result
	Duration time.Duration
}

type Option func(*Coordinator)

// WithBus publishes run and reload events to b.
func WithBus(b eventbus.Bus) Option {
	return func(c *Coordinator) { c.bus = b }
}

// WithRunContext sets the parent context of every run. Cancelling it kills
// the runs still going. Destroy never cancels it. Default: context.Background().
func WithRunContext(ctx context.Context) Option {
	return func(c *Coordinator) {
		if ctx != nil {
			c.runCtx = ctx
		}
	}
}

// WithWarnEvery sets the failure warning throttle per command.
func WithWarnEvery(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.warnEvery = d
		}
	}
}

type timerSlot struct {
	t timer.Timer
}

type observer struct {
	id uint64
	fn func()
}

type Coordinator struct {
	log   logx.Logger
	store settings.Store
	exec  Executor
	sched timer.Scheduler
	bus   eventbus.Bus

	warnEvery time.Duration

	// runCtx is the parent of every run. Only its owner cancels it.
	runCtx context.Context

	mu        sync.Mutex
	specs     []command.Spec
	timers    map[string]*timerSlot
	results   map[string]command.Result
	inflight  map[string]int
	warn      map[string]*rate.Limiter
	observers []observer
	obsSeq    uint64
	handler   settings.HandlerID
	connected bool
	destroyed bool

	// One goroutine at a time drains pending passes; idle is signalled on mu
	// when it stops.
	notifying bool
	pending   int
	idle      *sync.Cond

	runs sync.WaitGroup
}

// New builds a coordinator, loads the command list from store and follows
// store changes. Timers are not started until StartAll. store may be nil, in
// which case the list is only set through LoadConfiguration or SetCommands.
func New(store settings.Store, exec Executor, sched timer.Scheduler, log logx.Logger, opts ...Option) *Coordinator {
	if log.IsZero() {
		log = logx.Nop()
	}
	c := &Coordinator{
		log:       log.With(logx.String("comp", "coordinator")),
		store:     store,
		exec:      exec,
		sched:     sched,
		warnEvery: DefaultWarnEvery,
		runCtx:    context.Background(),
		timers:    map[string]*timerSlot{},
		results:   map[string]command.Result{},
		inflight:  map[string]int{},
		warn:      map[string]*rate.Limiter{},
	}
	c.idle = sync.NewCond(&c.mu)
	for _, o := range opts {
		if o != nil {
			o(c)
		}
	}

	if store != nil {
		c.setSpecs(c.parse(store.GetString(settings.KeyCommands)))
		c.handler = store.Connect("", c.onSettingChanged)
		c.connected = true
	}
	return c
}

// LoadConfiguration replaces the command list with the parsed raw JSON array.
// Malformed input yields an empty list. Timers are left alone; call RestartAll
// to apply new cadences.
func (c *Coordinator) LoadConfiguration(raw string) {
	if c.setSpecs(c.parse(raw)) {
		c.notify()
	}
}

// SetCommands replaces the command list with specs (duplicates by id dropped).
func (c *Coordinator) SetCommands(specs []command.Spec) {
	if c.setSpecs(c.dedup(append([]command.Spec(nil), specs...))) {
		c.notify()
	}
}

func (c *Coordinator) parse(raw string) []command.Spec {
	specs, err := command.Parse(raw)
	if err != nil {
		c.log.Warn("command list is malformed; using an empty list", logx.Err(err))
		return nil
	}
	return c.dedup(specs)
}

func (c *Coordinator) dedup(specs []command.Spec) []command.Spec {
	out, dropped := command.Dedup(specs)
	for _, id := range dropped {
		c.log.Warn("duplicate command id dropped", logx.String("id", id))
	}
	return out
}

// setSpecs swaps the list and prunes state for ids that left it.
// It reports false when the coordinator is destroyed.
func (c *Coordinator) setSpecs(specs []command.Spec) bool {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return false
	}
	c.specs = specs
	keep := make(map[string]struct{}, len(specs))
	for _, s := range specs {
		keep[s.ID] = struct{}{}
	}
	for id := range c.results {
		if _, ok := keep[id]; !ok {
			delete(c.results, id)
		}
	}
	for id := range c.warn {
		if _, ok := keep[id]; !ok {
			delete(c.warn, id)
		}
	}
	n := len(specs)
	c.mu.Unlock()

	c.log.Info("commands loaded", logx.Int("count", n))
	c.publish(eventbus.TypeCommandsReloaded, n)
	return true
}

func (c *Coordinator) onSettingChanged(key string) {
	if key == settings.KeyCommands && c.store != nil {
		if !c.setSpecs(c.parse(c.store.GetString(settings.KeyCommands))) {
			return
		}
		c.RestartAll()
	}
	c.notify()
}

// StartAll starts a timer for every enabled command that has none.
// Each new timer runs its command immediately, then every interval.
func (c *Coordinator) StartAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return
	}
	for _, s := range c.specs {
		if !s.Enabled {
			continue
		}
		if _, ok := c.timers[s.ID]; ok {
			continue
		}
		c.startLocked(s)
	}
}

func (c *Coordinator) startLocked(s command.Spec) {
	id := s.ID
	slot := &timerSlot{}
	// The slot is registered before the timer exists, so the first tick can
	// always verify it against the map.
	c.timers[id] = slot
	slot.t = c.sched.Every(s.IntervalDuration(), func() { c.tick(id, slot) })
	c.log.Debug("timer started", logx.String("id", id), logx.Duration("interval", s.IntervalDuration()))

	if spec, ok := c.beginLocked(id); ok {
		c.launch(spec)
	}
}

// StopAll cancels every timer. Cached results are kept.
func (c *Coordinator) StopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Coordinator) stopLocked() {
	for id, slot := range c.timers {
		if slot.t != nil {
			slot.t.Cancel()
		}
		delete(c.timers, id)
	}
}

// RestartAll is StopAll followed by StartAll.
func (c *Coordinator) RestartAll() {
	c.mu.Lock()
	c.stopLocked()
	c.mu.Unlock()
	c.StartAll()
}

// Result returns the latest result for id, or the pending default.
func (c *Coordinator) Result(id string) command.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.results[id]; ok {
		return r
	}
	return command.Pending()
}

// Results returns the latest result of every configured command.
func (c *Coordinator) Results() map[string]command.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]command.Result, len(c.specs))
	for _, s := range c.specs {
		if r, ok := c.results[s.ID]; ok {
			out[s.ID] = r
		} else {
			out[s.ID] = command.Pending()
		}
	}
	return out
}

// EnabledCommands returns the enabled commands in configured order.
func (c *Coordinator) EnabledCommands() []command.Spec {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]command.Spec, 0, len(c.specs))
	for _, s := range c.specs {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// Commands returns the full configured list.
func (c *Coordinator) Commands() []command.Spec {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]command.Spec(nil), c.specs...)
}

// Destroy disconnects from the settings store, cancels timers, and clears
// observers and cached results. Runs already in flight are left to finish or
// time out; their results are discarded.
func (c *Coordinator) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	c.stopLocked()
	c.observers = nil
	c.results = map[string]command.Result{}
	c.warn = map[string]*rate.Limiter{}
	connected, handler := c.connected, c.handler
	c.connected = false
	c.mu.Unlock()

	if connected && c.store != nil {
		c.store.Disconnect(handler)
	}
	c.log.Info("coordinator destroyed")
}

// Wait blocks until every outstanding run has returned and its notification
// pass has run, or ctx is done. It must not be called from an observer.
func (c *Coordinator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.runs.Wait()
		c.mu.Lock()
		for c.notifying {
			c.idle.Wait()
		}
		c.mu.Unlock()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) publish(typ string, data any) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(eventbus.Event{Type: typ, Data: data})
}
