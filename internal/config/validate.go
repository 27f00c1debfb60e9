package config

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalid = errors.New("invalid config")

// Validate checks values that the strict decoder cannot.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalid)
	}
	var errs []error

	switch strings.ToLower(strings.TrimSpace(cfg.Settings.Driver)) {
	case "", "memory", "file", "sqlite", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("settings.driver: unknown driver %q", cfg.Settings.Driver))
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Output.Format)) {
	case "", FormatText, FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("output.format: must be %q or %q, got %q", FormatText, FormatJSON, cfg.Output.Format))
	}

	durations := []struct{ path, raw string }{
		{"settings.poll_interval", cfg.Settings.PollInterval},
		{"settings.busy_timeout", cfg.Settings.BusyTimeout},
		{"executor.wait_delay", cfg.Executor.WaitDelay},
		{"executor.warn_every", cfg.Executor.WarnEvery},
	}
	for _, d := range durations {
		if _, err := ParseDurationField(d.path, d.raw); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}
