package app

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"shellglance/internal/command"
	"shellglance/internal/config"
	"shellglance/internal/render"
	logx "shellglance/pkg/logx"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func writeSettings(t *testing.T, specs ...command.Spec) string {
	t.Helper()
	raw, err := command.Encode(specs)
	if err != nil {
		t.Fatal(err)
	}
	doc, _ := json.Marshal(map[string]any{"commands": raw, "separator": " | "})
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, doc, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOncePrintsBreakdown(t *testing.T) {
	settingsPath := writeSettings(t,
		command.Spec{ID: "a", Name: "Greeting", Command: "echo hi", Interval: 5, Timeout: 5, Enabled: true},
		command.Spec{ID: "b", Command: "echo off", Interval: 5, Timeout: 5, Enabled: false},
		command.Spec{ID: "c", Command: "echo oops >&2; exit 3", Interval: 5, Timeout: 5, Enabled: true},
	)
	var out syncBuffer
	a, err := New(Options{
		ConfigPath:     writeConfig(t, `{"logging":{"level":"error","console":true}}`),
		SettingsDriver: "file",
		SettingsPath:   settingsPath,
		Out:            &out,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if err := a.Once(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := "Greeting: hi\n\nUnnamed: Error: oops\n"
	if got := out.String(); got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

func TestOnceJSON(t *testing.T) {
	settingsPath := writeSettings(t,
		command.Spec{ID: "a", Name: "Greeting", Command: "echo hi", Interval: 5, Timeout: 5, Enabled: true},
	)
	var out syncBuffer
	a, err := New(Options{
		ConfigPath:     writeConfig(t, `{"logging":{"level":"error","console":true},"output":{"format":"json"}}`),
		SettingsDriver: "file",
		SettingsPath:   settingsPath,
		Out:            &out,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if err := a.Once(context.Background()); err != nil {
		t.Fatal(err)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(out.String()), &got); err != nil {
		t.Fatalf("output %q: %v", out.String(), err)
	}
	if got["text"] != "Greeting: hi" || got["class"] != "ok" {
		t.Fatalf("waybar = %v", got)
	}
}

func TestRunPrintsUpdatesUntilCancelled(t *testing.T) {
	settingsPath := writeSettings(t,
		command.Spec{ID: "a", Command: "echo tick", Interval: 1, Timeout: 5, Enabled: true},
	)
	var out syncBuffer
	a, err := New(Options{
		ConfigPath:     writeConfig(t, `{"logging":{"level":"error","console":true},"output":{"format":"text","dedup":true}}`),
		SettingsDriver: "file",
		SettingsPath:   settingsPath,
		Out:            &out,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(out.String(), "tick") {
		if time.Now().After(deadline) {
			t.Fatalf("no update printed; output %q", out.String())
		}
		time.Sleep(20 * time.Millisecond)
	}

	// An edit from the editor reaches the running coordinator.
	if err := NewEditor(a.Store()).SetSeparator(" + "); err != nil {
		t.Fatal(err)
	}
	if _, err := NewEditor(a.Store()).Add(command.Spec{ID: "b", Command: "echo tock", Interval: 60, Timeout: 5, Enabled: true}); err != nil {
		t.Fatal(err)
	}
	deadline = time.Now().Add(5 * time.Second)
	for !strings.Contains(out.String(), "tick + tock") {
		if time.Now().After(deadline) {
			t.Fatalf("edit not reflected; output %q", out.String())
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}

	// Dedup: the label never repeats on consecutive lines.
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	for i := 1; i < len(lines); i++ {
		if lines[i] == lines[i-1] {
			t.Fatalf("duplicate consecutive line %q", lines[i])
		}
	}
}

func TestCloseWaitsForRunsWithinGrace(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "done")
	settingsPath := writeSettings(t,
		command.Spec{ID: "a", Command: "sleep 0.3; touch '" + marker + "'", Interval: 60, Timeout: 5, Enabled: true},
	)
	a, err := New(Options{
		ConfigPath:     writeConfig(t, `{"logging":{"level":"error","console":true}}`),
		SettingsDriver: "file",
		SettingsPath:   settingsPath,
		Out:            &syncBuffer{},
	})
	if err != nil {
		t.Fatal(err)
	}
	a.coord.StartAll()
	time.Sleep(50 * time.Millisecond)
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Fatalf("run killed by Close inside the grace period: %v", err)
	}
}

func TestCloseKillsRunsAfterGrace(t *testing.T) {
	settingsPath := writeSettings(t,
		command.Spec{ID: "a", Command: "sleep 30", Interval: 60, Timeout: 60, Enabled: true},
	)
	a, err := New(Options{
		ConfigPath:     writeConfig(t, `{"logging":{"level":"error","console":true}}`),
		SettingsDriver: "file",
		SettingsPath:   settingsPath,
		Out:            &syncBuffer{},
	})
	if err != nil {
		t.Fatal(err)
	}
	a.stopGrace = 100 * time.Millisecond
	a.coord.StartAll()
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if took := time.Since(start); took > 3*time.Second {
		t.Fatalf("Close took %s; run was not killed after the grace period", took)
	}
}

func TestPrinterDedup(t *testing.T) {
	var out syncBuffer
	cfg := config.Default()
	p := newPrinter(&out, cfg, logx.Nop())

	f := render.Frame{Label: "a"}
	if !p.print(f) || p.print(f) {
		t.Fatalf("dedup not applied")
	}
	if !p.print(render.Frame{Label: "b"}) {
		t.Fatalf("changed frame not printed")
	}

	cfg.Output.Dedup = false
	p = newPrinter(&out, cfg, logx.Nop())
	if !p.print(f) || !p.print(f) {
		t.Fatalf("dedup applied while disabled")
	}
}

func TestSettingsPathDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	p, err := settingsPath("file", "")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(p) != "settings.json" || filepath.Base(filepath.Dir(p)) != "shellglance" {
		t.Fatalf("file default = %q", p)
	}
	if p, _ := settingsPath("memory", ""); p != "" {
		t.Fatalf("memory path = %q", p)
	}
	p, err = settingsPath("sqlite", "~/x.db")
	if err != nil || strings.HasPrefix(p, "~") {
		t.Fatalf("home not expanded: %q %v", p, err)
	}
}
