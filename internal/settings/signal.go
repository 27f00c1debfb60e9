package settings

import (
	"fmt"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"sync"

	logx "shellglance/pkg/logx"
)

// values is the canonical in-memory view shared by all drivers:
// every value is kept as its string form.
type values map[string]string

func (v values) getString(key string) string {
	if s, ok := v[key]; ok {
		return s
	}
	return defaults[key]
}

func (v values) getInt(key string) int {
	return atoiLoose(v.getString(key))
}

// diff returns the keys whose value differs between a and b, sorted.
func diff(a, b values) []string {
	var keys []string
	for k, av := range a {
		if bv, ok := b[k]; !ok || bv != av {
			keys = append(keys, k)
		}
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func atoiLoose(s string) int {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

type handler struct {
	key string
	fn  func(key string)
}

// hub is the change-notification registry embedded by every driver.
type hub struct {
	log logx.Logger

	mu       sync.Mutex
	seq      HandlerID
	handlers map[HandlerID]handler
}

func (h *hub) Connect(key string, fn func(key string)) HandlerID {
	if fn == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.handlers == nil {
		h.handlers = map[HandlerID]handler{}
	}
	h.seq++
	h.handlers[h.seq] = handler{key: key, fn: fn}
	return h.seq
}

func (h *hub) Disconnect(id HandlerID) {
	h.mu.Lock()
	delete(h.handlers, id)
	h.mu.Unlock()
}

// emit calls every handler interested in key, in registration order.
// A panicking handler is logged and does not stop the others.
func (h *hub) emit(key string) {
	h.mu.Lock()
	ids := make([]HandlerID, 0, len(h.handlers))
	for id, hd := range h.handlers {
		if hd.key == "" || hd.key == key {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(string), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, h.handlers[id].fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					if !h.log.IsZero() {
						h.log.Error("settings handler panicked", logx.String("key", key), logx.String("panic", fmt.Sprint(r)), logx.Stack(string(debug.Stack())))
					}
				}
			}()
			fn(key)
		}()
	}
}

func (h *hub) emitAll(keys []string) {
	for _, k := range keys {
		h.emit(k)
	}
}
