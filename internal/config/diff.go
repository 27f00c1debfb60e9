package config

import (
	"sort"
	"strings"

	logx "shellglance/pkg/logx"
)

// SummarizeConfigChange returns the changed sections and compact attrs for a
// reload log line. Only logging is applied live; the other sections take
// effect on the next start.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 4)
	attrs := make([]logx.Field, 0, 12)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	oS, nS := oldCfg.Settings, newCfg.Settings
	if strings.TrimSpace(oS.Driver) != strings.TrimSpace(nS.Driver) ||
		strings.TrimSpace(oS.Path) != strings.TrimSpace(nS.Path) ||
		strings.TrimSpace(oS.PollInterval) != strings.TrimSpace(nS.PollInterval) ||
		strings.TrimSpace(oS.BusyTimeout) != strings.TrimSpace(nS.BusyTimeout) {
		changed = append(changed, "settings")
		attrs = append(attrs,
			logx.String("settings.driver", strings.TrimSpace(nS.Driver)),
			logx.Bool("settings.path_set", strings.TrimSpace(nS.Path) != ""),
		)
	}

	if oldCfg.Executor != newCfg.Executor {
		changed = append(changed, "executor")
		attrs = append(attrs,
			logx.String("executor.shell", strings.TrimSpace(newCfg.Executor.Shell)),
			logx.String("executor.wait_delay", strings.TrimSpace(newCfg.Executor.WaitDelay)),
		)
	}

	if oldCfg.Output != newCfg.Output {
		changed = append(changed, "output")
		attrs = append(attrs,
			logx.String("output.format", newCfg.OutputFormat()),
			logx.Bool("output.dedup", newCfg.Output.Dedup),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

// RequiresRestart reports whether any section other than logging changed.
func RequiresRestart(changed []string) bool {
	for _, s := range changed {
		if s != "logging" {
			return true
		}
	}
	return false
}
