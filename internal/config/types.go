package config

import "strings"

// Config is the application config file. Every section is optional.
//
// Example (YAML):
//
//	logging:
//	  level: info
//	  console: true
//	settings:
//	  driver: file
//	  path: ~/.config/shellglance/settings.yaml
//	executor:
//	  shell: /bin/sh
//	  wait_delay: 2s
//	output:
//	  format: json
//	  dedup: true
type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	Settings SettingsConfig `json:"settings"`
	Executor ExecutorConfig `json:"executor"`
	Output   OutputConfig   `json:"output"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SettingsConfig selects the settings store driver.
//
// Durations are Go duration strings (e.g. "500ms", "2s").
type SettingsConfig struct {
	Driver       string `json:"driver"` // memory | file | sqlite
	// Path defaults to settings.json (file) or settings.db (sqlite) under
	// the user config directory.
	Path         string `json:"path,omitempty"`
	PollInterval string `json:"poll_interval,omitempty"` // sqlite only
	BusyTimeout  string `json:"busy_timeout,omitempty"`  // sqlite only
}

// ExecutorConfig controls how commands are spawned.
type ExecutorConfig struct {
	Shell     string `json:"shell,omitempty"`
	WaitDelay string `json:"wait_delay,omitempty"`
	// WarnEvery throttles repeated failure warnings per command.
	WarnEvery string `json:"warn_every,omitempty"`
}

// OutputConfig controls what `run` prints on every update.
type OutputConfig struct {
	Format string `json:"format"` // text | json
	// Dedup suppresses a line identical to the previous one.
	Dedup bool `json:"dedup"`
}

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Default returns the config used when no file is given.
func Default() *Config {
	return &Config{
		Logging:  LoggingConfig{Level: "info", Console: true},
		Settings: SettingsConfig{Driver: "file"},
		Output:   OutputConfig{Format: FormatText, Dedup: true},
	}
}

// OutputFormat returns the normalized output format.
func (c *Config) OutputFormat() string {
	if strings.EqualFold(strings.TrimSpace(c.Output.Format), FormatJSON) {
		return FormatJSON
	}
	return FormatText
}
