package coordinator

import (
	"fmt"
	"runtime/debug"

	logx "shellglance/pkg/logx"
)

// Subscribe registers fn to be called after every result update and every
// reload. Passes never overlap and call observers in registration order. An
// observer may read the coordinator and may change its configuration (directly
// or through the settings store); a pass triggered from inside fn runs after
// the current one. It must not call Wait.
func (c *Coordinator) Subscribe(fn func()) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return func() {}
	}
	c.obsSeq++
	id := c.obsSeq
	c.observers = append(c.observers, observer{id: id, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, o := range c.observers {
			if o.id == id {
				c.observers = append(c.observers[:i:i], c.observers[i+1:]...)
				return
			}
		}
	}
}

// notify queues one pass. If no pass is running, the caller drains the queue;
// otherwise the running drainer picks it up, so a pass requested from inside
// an observer never blocks.
func (c *Coordinator) notify() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return
	}
	c.pending++
	if c.notifying {
		return
	}

	c.notifying = true
	for c.pending > 0 && !c.destroyed {
		c.pending--
		obs := append([]observer(nil), c.observers...)
		c.mu.Unlock()
		for _, o := range obs {
			c.call(o)
		}
		c.mu.Lock()
	}
	c.pending = 0
	c.notifying = false
	c.idle.Broadcast()
}

func (c *Coordinator) call(o observer) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("observer panic",
				logx.Uint64("observer", o.id),
				logx.String("panic", fmt.Sprint(r)),
				logx.Stack(string(debug.Stack())),
			)
		}
	}()
	o.fn()
}
