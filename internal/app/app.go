// Package app wires the config, logging, settings store, executor, timer
// scheduler and coordinator into the `run` and `once` modes, and hosts the
// settings editor used by the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"shellglance/internal/config"
	"shellglance/internal/eventbus"
	"shellglance/internal/settings"
	"shellglance/internal/task/coordinator"
	"shellglance/internal/task/executor"
	"shellglance/internal/task/timer"
	logx "shellglance/pkg/logx"
)

// Options are the command line overrides on top of the config file.
type Options struct {
	ConfigPath string

	// SettingsDriver and SettingsPath override the settings section when set.
	SettingsDriver string
	SettingsPath   string

	// Out receives rendered output. Default: stdout.
	Out io.Writer
}

type App struct {
	cfgm *config.Manager
	cfg  *config.Config

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store settings.Store
	exec  *executor.Executor
	cron  *timer.Cron
	coord *coordinator.Coordinator

	// kill cancels the parent context of every run. It is used only once the
	// runs outlive stopGrace at shutdown.
	kill      context.CancelFunc
	stopGrace time.Duration

	out io.Writer
}

// New loads the config, opens the settings store and builds the coordinator.
// Timers are not started until Run.
func New(opts Options) (*App, error) {
	cfgm := config.NewManager(opts.ConfigPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logConfig(cfg))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	sc, err := settingsConfig(cfg, opts)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	store, err := settings.Open(sc, log.With(logx.String("comp", "settings")))
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("open settings: %w", err)
	}
	log.Debug("settings opened", logx.String("driver", sc.Driver), logx.String("path", sc.Path))

	waitDelay, err := config.ParseDurationOrDefault("executor.wait_delay", cfg.Executor.WaitDelay, executor.DefaultWaitDelay)
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}
	warnEvery, err := config.ParseDurationOrDefault("executor.warn_every", cfg.Executor.WarnEvery, coordinator.DefaultWarnEvery)
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}

	bus := eventbus.New()
	exec := executor.New(executor.Config{
		Shell:     cfg.Executor.Shell,
		WaitDelay: waitDelay,
	}, log.With(logx.String("comp", "executor")))
	cron := timer.NewCron(log.With(logx.String("comp", "timer")))
	runCtx, kill := context.WithCancel(context.Background())
	coord := coordinator.New(store, exec, cron, log,
		coordinator.WithRunContext(runCtx),
		coordinator.WithBus(bus),
		coordinator.WithWarnEvery(warnEvery),
	)

	out := opts.Out
	if out == nil {
		out = logx.Stdout()
	}

	return &App{
		cfgm:  cfgm,
		cfg:   cfg,
		log:   log.With(logx.String("comp", "app")),
		logs:  logSvc,
		bus:   bus,
		store: store,
		exec:  exec,
		cron:  cron,
		coord: coord,
		kill:  kill,
		out:   out,

		stopGrace: shutdownTimeout,
	}, nil
}

// OpenStore loads the config and opens only the settings store. The editor
// commands use it so an edit never spawns any command.
func OpenStore(opts Options) (settings.Store, error) {
	cfg, err := config.NewManager(opts.ConfigPath).Load()
	if err != nil {
		return nil, err
	}
	sc, err := settingsConfig(cfg, opts)
	if err != nil {
		return nil, err
	}
	log := logx.NewConsole(cfg.Logging.Level).With(logx.String("comp", "settings"))
	st, err := settings.Open(sc, log)
	if err != nil {
		return nil, fmt.Errorf("open settings: %w", err)
	}
	return st, nil
}

func (a *App) Store() settings.Store                { return a.store }
func (a *App) Coordinator() *coordinator.Coordinator { return a.coord }
func (a *App) Logger() logx.Logger                  { return a.log }

// Close tears down the coordinator and releases the store and log sinks.
func (a *App) Close() error {
	a.stop()
	a.kill()
	err := a.store.Close()
	return errors.Join(err, a.logs.Close())
}

// stop destroys the coordinator and gives in-flight runs stopGrace to finish.
// Runs still going after that are killed.
func (a *App) stop() {
	a.coord.Destroy()

	ctx, cancel := context.WithTimeout(context.Background(), a.stopGrace)
	defer cancel()
	a.cron.Stop(ctx)
	if err := a.coord.Wait(ctx); err == nil {
		return
	}

	a.log.Warn("killing runs still outstanding at shutdown", logx.Duration("grace", a.stopGrace))
	a.kill()
	killCtx, cancelKill := context.WithTimeout(context.Background(), killWait)
	defer cancelKill()
	if err := a.coord.Wait(killCtx); err != nil {
		a.log.Warn("runs did not exit after kill", logx.Err(err))
	}
}

func logConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func settingsConfig(cfg *config.Config, opts Options) (settings.Config, error) {
	sc := cfg.Settings
	if d := strings.TrimSpace(opts.SettingsDriver); d != "" {
		sc.Driver = d
	}
	if p := strings.TrimSpace(opts.SettingsPath); p != "" {
		sc.Path = p
	}

	poll, err := config.ParseDurationField("settings.poll_interval", sc.PollInterval)
	if err != nil {
		return settings.Config{}, err
	}
	busy, err := config.ParseDurationField("settings.busy_timeout", sc.BusyTimeout)
	if err != nil {
		return settings.Config{}, err
	}

	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path, err := settingsPath(driver, sc.Path)
	if err != nil {
		return settings.Config{}, err
	}
	return settings.Config{Driver: driver, Path: path, PollInterval: poll, BusyTimeout: busy}, nil
}

// settingsPath expands "~/" and fills the per-driver default location.
func settingsPath(driver, path string) (string, error) {
	path = strings.TrimSpace(path)
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("settings.path: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	if path != "" {
		return path, nil
	}

	var name string
	switch driver {
	case "file":
		name = "settings.json"
	case "sqlite", "sqlite3":
		name = "settings.db"
	default:
		return "", nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("settings.path: %w", err)
	}
	dir = filepath.Join(dir, "shellglance")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("settings.path: %w", err)
	}
	return filepath.Join(dir, name), nil
}
