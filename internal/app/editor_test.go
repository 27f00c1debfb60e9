package app

import (
	"errors"
	"testing"

	"shellglance/internal/command"
	"shellglance/internal/settings"
	logx "shellglance/pkg/logx"
)

func TestEditorAddListRemove(t *testing.T) {
	st := settings.NewMemory(logx.Nop())
	ed := NewEditor(st)

	a, err := ed.Add(command.Spec{Name: "Uptime", Command: "uptime -p", Enabled: true})
	if err != nil {
		t.Fatal(err)
	}
	if a.ID == "" || a.Interval != command.DefaultInterval || a.Timeout != command.DefaultTimeout {
		t.Fatalf("added = %+v", a)
	}
	b, err := ed.Add(command.Spec{ID: "disk", Command: "df -h /", Interval: 9000, Timeout: 1, Enabled: true})
	if err != nil {
		t.Fatal(err)
	}
	if b.Interval != command.MaxInterval {
		t.Fatalf("interval not clamped: %d", b.Interval)
	}
	if _, err := ed.Add(command.Spec{ID: "disk", Command: "true"}); err == nil {
		t.Fatalf("duplicate id accepted")
	}
	if _, err := ed.Add(command.Spec{Command: "  "}); !errors.Is(err, ErrEmpty) {
		t.Fatalf("empty command: %v", err)
	}

	list, err := ed.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != a.ID || list[1].ID != "disk" {
		t.Fatalf("list = %+v", list)
	}

	if _, err := ed.Remove(a.ID[:8]); err != nil {
		t.Fatalf("remove by prefix: %v", err)
	}
	list, _ = ed.List()
	if len(list) != 1 || list[0].ID != "disk" {
		t.Fatalf("list after remove = %+v", list)
	}
	if _, err := ed.Remove("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("remove missing: %v", err)
	}
}

func TestEditorEnableAndUpdate(t *testing.T) {
	st := settings.NewMemory(logx.Nop())
	ed := NewEditor(st)
	if _, err := ed.Add(command.Spec{ID: "load-1", Command: "cat /proc/loadavg", Enabled: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := ed.Add(command.Spec{ID: "load-2", Command: "uptime", Enabled: true}); err != nil {
		t.Fatal(err)
	}

	if _, err := ed.SetEnabled("load", false); !errors.Is(err, ErrAmbiguous) {
		t.Fatalf("ambiguous prefix: %v", err)
	}
	s, err := ed.SetEnabled("load-2", false)
	if err != nil || s.Enabled {
		t.Fatalf("disable: %+v %v", s, err)
	}

	s, err = ed.Update("load-1", func(s *command.Spec) {
		s.ID = "hijack"
		s.Name = "Load"
		s.Timeout = 0
	})
	if err != nil {
		t.Fatal(err)
	}
	if s.ID != "load-1" || s.Name != "Load" || s.Timeout != command.DefaultTimeout {
		t.Fatalf("updated = %+v", s)
	}

	// Every edit writes the full list.
	specs, err := command.Parse(st.GetString(settings.KeyCommands))
	if err != nil {
		t.Fatal(err)
	}
	if len(specs) != 2 || specs[1].Enabled {
		t.Fatalf("stored = %+v", specs)
	}
}

func TestEditorRefusesMalformedList(t *testing.T) {
	st := settings.NewMemory(logx.Nop())
	_ = st.SetString(settings.KeyCommands, `{"broken"`)
	if _, err := NewEditor(st).Add(command.Spec{Command: "true"}); !errors.Is(err, command.ErrMalformed) {
		t.Fatalf("Add over malformed list: %v", err)
	}
	if got := st.GetString(settings.KeyCommands); got != `{"broken"` {
		t.Fatalf("malformed list overwritten: %q", got)
	}
}

func TestEditorDisplaySettings(t *testing.T) {
	st := settings.NewMemory(logx.Nop())
	ed := NewEditor(st)
	if err := ed.SetMaxLength(3); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("SetMaxLength(3) = %v", err)
	}
	if err := ed.SetMaxLength(60); err != nil {
		t.Fatal(err)
	}
	if err := ed.SetSeparator(" / "); err != nil {
		t.Fatal(err)
	}
	if st.GetInt(settings.KeyMaxLength) != 60 || st.GetString(settings.KeySeparator) != " / " {
		t.Fatalf("settings not written")
	}
}
