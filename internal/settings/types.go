package settings

import (
	"context"
	"errors"
	"time"
)

// Well-known keys.
const (
	KeyCommands  = "commands"
	KeySeparator = "separator"
	KeyMaxLength = "max-length"
)

// Defaults returned for keys that were never written.
var defaults = map[string]string{
	KeyCommands:  "[]",
	KeySeparator: " | ",
	KeyMaxLength: "40",
}

var (
	ErrClosed        = errors.New("settings store closed")
	ErrUnknownDriver = errors.New("unknown settings driver")
)

// HandlerID identifies a change handler registered with Connect.
type HandlerID uint64

// Store is a small key-value settings store with change notification.
//
// Getters never fail: a missing or unreadable key yields its default.
// Change handlers run synchronously on the goroutine that observed the change
// (the Set caller, or the Watch loop for external edits), once per changed key.
type Store interface {
	GetString(key string) string
	GetInt(key string) int
	SetString(key, value string) error
	SetInt(key string, value int) error

	// Connect registers fn for changes of key. An empty key matches every key.
	Connect(key string, fn func(key string)) HandlerID
	Disconnect(id HandlerID)

	// Watch picks up edits made outside this process until ctx is done.
	Watch(ctx context.Context) error
	Close() error
}

// Config selects and configures a settings driver.
//
// Driver values:
//   - "memory" (or empty): in-process only
//   - "file": JSON or YAML document (chosen by extension)
//   - "sqlite": SQLite database file
type Config struct {
	Driver string
	Path   string

	// PollInterval is how often the sqlite driver checks for external writes.
	PollInterval time.Duration
	// BusyTimeout is passed to sqlite as PRAGMA busy_timeout.
	BusyTimeout time.Duration
}
