package executor

import (
	"context"
	"strings"
	"testing"
	"time"

	"shellglance/internal/command"
	logx "shellglance/pkg/logx"
)

func newTestExecutor() *Executor {
	return New(Config{WaitDelay: 500 * time.Millisecond}, logx.Nop())
}

func TestExecuteSuccessTrimsOutput(t *testing.T) {
	e := newTestExecutor()
	res := e.Execute(context.Background(), "echo hi", 5*time.Second)
	want := command.Result{Success: true, Output: "hi", Error: ""}
	if res != want {
		t.Fatalf("Execute = %+v, want %+v", res, want)
	}
}

func TestExecutePreservesInternalNewlines(t *testing.T) {
	e := newTestExecutor()
	res := e.Execute(context.Background(), `printf '  \n a\nb \n\n'`, 5*time.Second)
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Output != "a\nb" {
		t.Fatalf("output = %q, want %q", res.Output, "a\nb")
	}
}

func TestExecuteNonZeroExitKeepsStreams(t *testing.T) {
	e := newTestExecutor()
	res := e.Execute(context.Background(), "echo out; echo '  boom  ' >&2; exit 3", 5*time.Second)
	if res.Success {
		t.Fatalf("expected failure, got %+v", res)
	}
	if res.Output != "out" {
		t.Fatalf("output = %q, want %q", res.Output, "out")
	}
	if res.Error != "boom" {
		t.Fatalf("error = %q, want %q", res.Error, "boom")
	}
}

func TestExecuteTimeout(t *testing.T) {
	e := newTestExecutor()
	start := time.Now()
	res := e.Execute(context.Background(), "sleep 10", time.Second)
	took := time.Since(start)

	if res != command.TimedOut() {
		t.Fatalf("Execute = %+v, want %+v", res, command.TimedOut())
	}
	if took > 5*time.Second {
		t.Fatalf("timeout not enforced: took %s", took)
	}
}

func TestExecuteTimeoutKillsProcessGroup(t *testing.T) {
	e := newTestExecutor()
	marker := t.TempDir() + "/survived"
	// The grandchild would create the marker after 2s if it outlived the timeout.
	res := e.Execute(context.Background(), "(sleep 2; touch "+marker+") & sleep 10", 500*time.Millisecond)
	if res.Error != command.TimeoutMessage {
		t.Fatalf("expected timeout, got %+v", res)
	}

	time.Sleep(3 * time.Second)
	check := e.Execute(context.Background(), "test -e "+marker, 5*time.Second)
	if check.Success {
		t.Fatalf("background child survived the timeout")
	}
}

func TestExecuteSpawnFailure(t *testing.T) {
	e := New(Config{Shell: "/nonexistent/shell"}, logx.Nop())
	res := e.Execute(context.Background(), "echo hi", 5*time.Second)
	if res.Success {
		t.Fatalf("expected failure, got %+v", res)
	}
	if res.Output != "" {
		t.Fatalf("output = %q, want empty", res.Output)
	}
	if !strings.Contains(res.Error, "/nonexistent/shell") {
		t.Fatalf("error = %q, want diagnostic naming the shell", res.Error)
	}
}

func TestExecuteParentCancel(t *testing.T) {
	e := newTestExecutor()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()
	res := e.Execute(ctx, "sleep 10", 5*time.Second)
	if res.Error != command.CancelMessage {
		t.Fatalf("Execute = %+v, want cancel result", res)
	}
}

func TestExecuteBackgroundChildDoesNotBlock(t *testing.T) {
	e := newTestExecutor()
	start := time.Now()
	res := e.Execute(context.Background(), "sleep 5 & echo done", 10*time.Second)
	if time.Since(start) > 4*time.Second {
		t.Fatalf("Execute waited for background child")
	}
	if !res.Success || res.Output != "done" {
		t.Fatalf("Execute = %+v, want success with output done", res)
	}
}

func TestExecuteOverlappingCallsAreIndependent(t *testing.T) {
	e := newTestExecutor()
	results := make(chan command.Result, 2)
	for _, word := range []string{"one", "two"} {
		w := word
		go func() { results <- e.Execute(context.Background(), "sleep 0.2; echo "+w, 5*time.Second) }()
	}
	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		r := <-results
		if !r.Success {
			t.Fatalf("run failed: %+v", r)
		}
		got[r.Output] = true
	}
	if !got["one"] || !got["two"] {
		t.Fatalf("outputs = %v, want one and two", got)
	}
}
