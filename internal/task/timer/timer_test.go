package timer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	logx "shellglance/pkg/logx"
)

func TestCronTimerTicksAndCancels(t *testing.T) {
	s := NewCron(logx.Nop())
	s.Start()
	t.Cleanup(func() { s.Stop(context.Background()) })

	var ticks atomic.Int32
	tm := s.Every(time.Second, func() { ticks.Add(1) })

	deadline := time.Now().Add(4 * time.Second)
	for ticks.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if got := ticks.Load(); got < 2 {
		t.Fatalf("ticks = %d, want >= 2", got)
	}

	tm.Cancel()
	tm.Cancel() // idempotent
	if s.Len() != 0 {
		t.Fatalf("entries after cancel = %d, want 0", s.Len())
	}

	after := ticks.Load()
	time.Sleep(1500 * time.Millisecond)
	if got := ticks.Load(); got != after {
		t.Fatalf("ticks after cancel = %d, want %d", got, after)
	}
}

func TestCronTimersAreIndependent(t *testing.T) {
	s := NewCron(logx.Nop())
	s.Start()
	t.Cleanup(func() { s.Stop(context.Background()) })

	var a, b atomic.Int32
	ta := s.Every(time.Second, func() { a.Add(1) })
	tb := s.Every(time.Hour, func() { b.Add(1) })
	defer ta.Cancel()

	tb.Cancel()
	time.Sleep(2500 * time.Millisecond)
	if a.Load() < 2 {
		t.Fatalf("a ticks = %d, want >= 2 after cancelling b", a.Load())
	}
	if b.Load() != 0 {
		t.Fatalf("b ticked %d times", b.Load())
	}
}
