package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestWithFieldsAndCaller(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "debug").With(String("comp", "coordinator"))
	l.Info("run finished", String("id", "a"), Err(errors.New("boom")), Err(nil))

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("lines = %d", len(lines))
	}
	m := lines[0]
	if m["comp"] != "coordinator" || m["id"] != "a" || m["err"] != "boom" {
		t.Fatalf("fields = %v", m)
	}
	caller, _ := m["caller"].(string)
	if !strings.HasPrefix(caller, "logging_test.go:") {
		t.Fatalf("caller = %q", caller)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "warn")
	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")
	if n := len(decodeLines(t, &buf)); n != 1 {
		t.Fatalf("lines = %d, want 1", n)
	}
	if l.Enabled(LevelDebug) || !l.Enabled(LevelError) {
		t.Fatalf("Enabled disagrees with level")
	}
}

func TestZeroAndNopLoggersAreSilent(t *testing.T) {
	var zero Logger
	if !zero.IsZero() {
		t.Fatalf("zero logger not IsZero")
	}
	zero.Error("nothing")
	Nop().With(String("k", "v")).Error("nothing")
}

func TestServiceApplySwapsLevelForDerivedLoggers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	svc, root := New(Config{Level: "info", File: FileConfig{Enabled: true, Path: path}})
	l := root.With(String("comp", "test"))

	l.Debug("dropped")
	svc.Apply(Config{Level: "debug", File: FileConfig{Enabled: true, Path: path}})
	l.Debug("kept")
	if err := svc.Close(); err != nil {
		t.Fatal(err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := decodeLines(t, bytes.NewBuffer(b))
	if len(lines) != 1 || lines[0]["message"] != "kept" || lines[0]["comp"] != "test" {
		t.Fatalf("log file = %v", lines)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"trace":   LevelTrace,
		" Debug ": LevelDebug,
		"WARNING": LevelWarn,
		"error":   LevelError,
		"bogus":   LevelInfo,
		"":        LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in, LevelInfo); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestCronAdapter(t *testing.T) {
	var buf bytes.Buffer
	cl := Cron(NewWriter(&buf, "debug"))
	cl.Info("wake", "now", 1)
	cl.Error(errors.New("job panicked"), "recovered", "entry", 3, "odd")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("lines = %v", lines)
	}
	m := lines[0]
	if m["err"] != "job panicked" || m["entry"] != float64(3) || m["extra"] != "odd" {
		t.Fatalf("fields = %v", m)
	}
}
