// Package render turns the coordinator's snapshot into the compact label and
// the per-command breakdown, as plain text or waybar JSON.
package render

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"shellglance/internal/command"
	"shellglance/internal/settings"
)

const (
	// Placeholder is the label shown when no command is enabled.
	Placeholder = "ShellGlance"
	// NoCommands is the breakdown shown when no command is enabled.
	NoCommands = "No commands configured"

	MinMaxLength     = 5
	MaxMaxLength     = 200
	DefaultMaxLength = 40

	// MaxBreakdownLines caps the lines shown per command in the breakdown.
	MaxBreakdownLines = 10

	emptyLabel     = "..."
	emptyBreakdown = "(empty output)"
	errorLabel     = "Error"
)

// Source is the read side of the coordinator.
type Source interface {
	EnabledCommands() []command.Spec
	Result(id string) command.Result
}

type Options struct {
	Separator string
	MaxLength int
}

// OptionsFrom reads the display settings.
func OptionsFrom(st settings.Store) Options {
	return Options{
		Separator: st.GetString(settings.KeySeparator),
		MaxLength: st.GetInt(settings.KeyMaxLength),
	}
}

func (o Options) maxLength() int {
	switch {
	case o.MaxLength <= 0:
		return DefaultMaxLength
	case o.MaxLength < MinMaxLength:
		return MinMaxLength
	case o.MaxLength > MaxMaxLength:
		return MaxMaxLength
	}
	return o.MaxLength
}

// Entry is one command's block in the breakdown.
type Entry struct {
	ID      string
	Text    string
	Success bool
}

// Frame is one rendered snapshot.
type Frame struct {
	Label    string
	HasError bool
	Entries  []Entry
}

// Render snapshots src once and builds both views from the same results.
func Render(src Source, opt Options) Frame {
	cmds := src.EnabledCommands()
	results := make([]command.Result, len(cmds))
	for i, c := range cmds {
		results[i] = src.Result(c.ID)
	}

	f := Frame{}
	f.Label, f.HasError = label(cmds, results, opt)
	f.Entries = breakdown(cmds, results)
	return f
}

func label(cmds []command.Spec, results []command.Result, opt Options) (string, bool) {
	if len(cmds) == 0 {
		return Placeholder, false
	}
	limit := opt.maxLength()
	hasError := false
	parts := make([]string, 0, len(cmds))
	for i, c := range cmds {
		r := results[i]
		text := r.Output
		if !r.Success {
			hasError = true
			text = errorLabel
		}
		if text == "" {
			text = emptyLabel
		}
		text = TruncRunes(firstLine(text), limit)
		if c.Name != "" {
			text = c.Name + ": " + text
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, opt.Separator), hasError
}

func breakdown(cmds []command.Spec, results []command.Result) []Entry {
	if len(cmds) == 0 {
		return []Entry{{Text: NoCommands, Success: true}}
	}
	out := make([]Entry, 0, len(cmds))
	for i, c := range cmds {
		r := results[i]
		text := r.Output
		if !r.Success {
			text = "Error: " + r.Error
		}
		if text == "" {
			text = emptyBreakdown
		}
		lines := strings.Split(text, "\n")
		if len(lines) > MaxBreakdownLines {
			more := len(lines) - MaxBreakdownLines
			lines = append(lines[:MaxBreakdownLines:MaxBreakdownLines], fmt.Sprintf("... (%d more lines)", more))
		}
		lines[0] = c.DisplayName() + ": " + lines[0]
		out = append(out, Entry{ID: c.ID, Text: strings.Join(lines, "\n"), Success: r.Success})
	}
	return out
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// TruncRunes returns s cut to at most n runes, the last one being "…" when
// anything was cut. s is NFC-normalized first so combining sequences count once.
func TruncRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	s = norm.NFC.String(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n-1 {
			return s[:i] + "…"
		}
		count++
	}
	return s
}

// Text is the breakdown as plain text, one block per command separated by a blank line.
func (f Frame) Text() string {
	blocks := make([]string, 0, len(f.Entries))
	for _, e := range f.Entries {
		blocks = append(blocks, e.Text)
	}
	return strings.Join(blocks, "\n\n")
}

// Class is the waybar CSS class of the frame.
func (f Frame) Class() string {
	if f.HasError {
		return "error"
	}
	return "ok"
}

type waybar struct {
	Text    string `json:"text"`
	Tooltip string `json:"tooltip"`
	Class   string `json:"class"`
}

// JSON encodes the frame in waybar's custom module format.
func (f Frame) JSON() ([]byte, error) {
	return json.Marshal(waybar{Text: f.Label, Tooltip: f.Text(), Class: f.Class()})
}
