package app

import (
	"errors"
	"fmt"
	"strings"

	"shellglance/internal/command"
	"shellglance/internal/render"
	"shellglance/internal/settings"
)

var (
	ErrNotFound   = errors.New("command not found")
	ErrAmbiguous  = errors.New("command id prefix is ambiguous")
	ErrOutOfRange = errors.New("value out of range")
	ErrEmpty      = errors.New("command text is empty")
)

// Editor edits the settings the way the preferences dialog does: every
// change to a command rewrites the whole list.
type Editor struct {
	store settings.Store
}

func NewEditor(st settings.Store) *Editor { return &Editor{store: st} }

// List returns the stored command list. A malformed list is an error here,
// so an edit never silently replaces it with an empty one.
func (e *Editor) List() ([]command.Spec, error) {
	specs, err := command.Parse(e.store.GetString(settings.KeyCommands))
	if err != nil {
		return nil, err
	}
	specs, _ = command.Dedup(specs)
	return specs, nil
}

// Add appends s. A missing id gets a fresh one; cadence fields are
// normalized to their domain.
func (e *Editor) Add(s command.Spec) (command.Spec, error) {
	if strings.TrimSpace(s.Command) == "" {
		return command.Spec{}, ErrEmpty
	}
	specs, err := e.List()
	if err != nil {
		return command.Spec{}, err
	}
	if s.ID == "" {
		s.ID = command.NewID()
	}
	if command.Index(specs, s.ID) >= 0 {
		return command.Spec{}, fmt.Errorf("command id %q already exists", s.ID)
	}
	s = normalize(s)
	if err := e.save(append(specs, s)); err != nil {
		return command.Spec{}, err
	}
	return s, nil
}

// Update applies fn to the command matching ref (an id or a unique id prefix).
func (e *Editor) Update(ref string, fn func(*command.Spec)) (command.Spec, error) {
	specs, err := e.List()
	if err != nil {
		return command.Spec{}, err
	}
	i, err := find(specs, ref)
	if err != nil {
		return command.Spec{}, err
	}
	s := specs[i]
	fn(&s)
	if strings.TrimSpace(s.Command) == "" {
		return command.Spec{}, ErrEmpty
	}
	// The id is immutable.
	s.ID = specs[i].ID
	specs[i] = normalize(s)
	if err := e.save(specs); err != nil {
		return command.Spec{}, err
	}
	return specs[i], nil
}

func (e *Editor) SetEnabled(ref string, enabled bool) (command.Spec, error) {
	return e.Update(ref, func(s *command.Spec) { s.Enabled = enabled })
}

// Remove deletes the command matching ref.
func (e *Editor) Remove(ref string) (command.Spec, error) {
	specs, err := e.List()
	if err != nil {
		return command.Spec{}, err
	}
	i, err := find(specs, ref)
	if err != nil {
		return command.Spec{}, err
	}
	removed := specs[i]
	specs = append(specs[:i:i], specs[i+1:]...)
	if err := e.save(specs); err != nil {
		return command.Spec{}, err
	}
	return removed, nil
}

func (e *Editor) SetSeparator(sep string) error {
	return e.store.SetString(settings.KeySeparator, sep)
}

func (e *Editor) SetMaxLength(n int) error {
	if n < render.MinMaxLength || n > render.MaxMaxLength {
		return fmt.Errorf("%w: max-length must be %d-%d, got %d", ErrOutOfRange, render.MinMaxLength, render.MaxMaxLength, n)
	}
	return e.store.SetInt(settings.KeyMaxLength, n)
}

func (e *Editor) save(specs []command.Spec) error {
	raw, err := command.Encode(specs)
	if err != nil {
		return err
	}
	return e.store.SetString(settings.KeyCommands, raw)
}

func find(specs []command.Spec, ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return -1, ErrNotFound
	}
	if i := command.Index(specs, ref); i >= 0 {
		return i, nil
	}
	match := -1
	for i, s := range specs {
		if strings.HasPrefix(s.ID, ref) {
			if match >= 0 {
				return -1, fmt.Errorf("%w: %s", ErrAmbiguous, ref)
			}
			match = i
		}
	}
	if match < 0 {
		return -1, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return match, nil
}

func normalize(s command.Spec) command.Spec {
	s.Interval = int(s.IntervalDuration().Seconds())
	s.Timeout = int(s.TimeoutDuration().Seconds())
	return s
}
