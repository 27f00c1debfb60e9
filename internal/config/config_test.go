package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestParseJSONKeepsDefaultsForMissingSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, `{"settings":{"driver":"file","path":"/tmp/s.json"},"executor":{"wait_delay":"500ms"}}`)

	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Settings.Driver != "file" || cfg.Executor.WaitDelay != "500ms" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Logging.Level != "info" || !cfg.Output.Dedup || cfg.OutputFormat() != FormatText {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestParseYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
logging:
  level: debug
  console: false
settings:
  driver: sqlite
  path: ./settings.db
  poll_interval: 1s
output:
  format: json
  dedup: false
`)
	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Console {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if cfg.Settings.PollInterval != "1s" || cfg.OutputFormat() != FormatJSON || cfg.Output.Dedup {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"unknown field":  `{"logging":{"level":"info","colour":true}}`,
		"trailing data":  `{"logging":{}} {"output":{}}`,
		"bad driver":     `{"settings":{"driver":"redis"}}`,
		"bad format":     `{"output":{"format":"xml"}}`,
		"bad duration":   `{"executor":{"wait_delay":"soon"}}`,
		"negative delay": `{"executor":{"warn_every":"-1s"}}`,
	}
	dir := t.TempDir()
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(name, " ", "_")+".json")
			writeFile(t, path, body)
			if _, err := NewManager(path).Parse(); err == nil {
				t.Fatalf("expected error for %s", body)
			}
		})
	}
}

func TestValidateWrapsErrInvalid(t *testing.T) {
	cfg := Default()
	cfg.Output.Format = "html"
	if err := Validate(cfg); !errors.Is(err, ErrInvalid) {
		t.Fatalf("Validate = %v, want ErrInvalid", err)
	}
	if err := Validate(Default()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestNoPathUsesDefaults(t *testing.T) {
	cfg, err := NewManager("").Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Settings.Driver != "file" || cfg.Settings.Path != "" {
		t.Fatalf("driver = %q", cfg.Settings.Driver)
	}
}

func TestDurationHelpers(t *testing.T) {
	if d, err := ParseDurationOrDefault("x", "", 2*time.Second); err != nil || d != 2*time.Second {
		t.Fatalf("default: %v %v", d, err)
	}
	if d, err := ParseDurationOrDefault("x", "250ms", time.Second); err != nil || d != 250*time.Millisecond {
		t.Fatalf("explicit: %v %v", d, err)
	}
	if _, err := ParseDurationField("x", "-1s"); err == nil {
		t.Fatalf("negative accepted")
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	a := Default()
	b := Default()
	b.Logging.Level = "debug"
	changed, attrs := SummarizeConfigChange(a, b)
	if len(changed) != 1 || changed[0] != "logging" || len(attrs) == 0 {
		t.Fatalf("changed = %v", changed)
	}
	if RequiresRestart(changed) {
		t.Fatalf("logging-only change should apply live")
	}

	b.Output.Format = FormatJSON
	changed, _ = SummarizeConfigChange(a, b)
	if strings.Join(changed, ",") != "logging,output" || !RequiresRestart(changed) {
		t.Fatalf("changed = %v", changed)
	}
}

func TestWatchPublishesOnlyRealChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, `{"logging":{"level":"info","console":true}}`)

	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}
	ch := m.Subscribe(4)
	defer m.Unsubscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Watch(ctx) }()
	time.Sleep(200 * time.Millisecond)

	// Same content, different whitespace: no publish.
	writeFile(t, path, `{ "logging": { "level": "info", "console": true } }`)
	select {
	case cfg := <-ch:
		t.Fatalf("unexpected publish: %+v", cfg)
	case <-time.After(700 * time.Millisecond):
	}

	// Broken file: no publish, previous config kept.
	writeFile(t, path, `{"logging":`)
	select {
	case cfg := <-ch:
		t.Fatalf("published broken config: %+v", cfg)
	case <-time.After(700 * time.Millisecond):
	}

	writeFile(t, path, `{"logging":{"level":"debug","console":true}}`)
	select {
	case cfg := <-ch:
		if cfg.Logging.Level != "debug" {
			t.Fatalf("level = %q", cfg.Logging.Level)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("no publish after change")
	}
	if m.Get().Logging.Level != "debug" {
		t.Fatalf("Get not updated")
	}
}
