package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"shellglance/internal/config"
	"shellglance/internal/render"
	"shellglance/internal/runtime/supervisor"
	"shellglance/internal/task/coordinator"
	logx "shellglance/pkg/logx"
)

const (
	shutdownTimeout = 5 * time.Second
	killWait        = 2 * time.Second
)

// Run starts every timer and prints a line after every update until ctx is
// done. SIGUSR1 refreshes every command immediately.
func (a *App) Run(ctx context.Context) error {
	sup := supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	p := newPrinter(a.out, a.cfg, a.log)
	emit := func() { p.print(render.Render(a.coord, render.OptionsFrom(a.store))) }
	unsub := a.coord.Subscribe(emit)
	defer unsub()

	emit()
	a.cron.Start()
	a.coord.StartAll()
	a.log.Info("running", logx.Int("commands", len(a.coord.EnabledCommands())))

	sup.GoRestart("settings.watch", a.store.Watch)
	sup.GoRestart("config.watch", a.cfgm.Watch)
	sup.Go0("config.reload", a.configReloadLoop)
	sup.Go0("eventbus.log", a.eventLogLoop)
	if len(refreshSignals) > 0 {
		sup.Go0("signals.refresh", a.refreshLoop)
	}

	a.sdNotify(daemon.SdNotifyReady)
	<-sup.Context().Done()
	a.sdNotify(daemon.SdNotifyStopping)
	a.log.Info("shutting down")

	a.stop()
	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := sup.Stop(stopCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// Once runs every enabled command once and prints the breakdown (text) or
// the waybar object (json).
func (a *App) Once(ctx context.Context) error {
	if err := a.coord.RefreshAll(ctx); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	f := render.Render(a.coord, render.OptionsFrom(a.store))
	if a.cfg.OutputFormat() == config.FormatJSON {
		b, err := f.JSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(a.out, string(b))
		return err
	}
	_, err := fmt.Fprintln(a.out, f.Text())
	return err
}

func (a *App) refreshLoop(ctx context.Context) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, refreshSignals...)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-ch:
			a.log.Info("refresh requested", logx.String("signal", sig.String()))
			if err := a.coord.RefreshAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.log.Warn("refresh failed", logx.Err(err))
			}
		}
	}
}

func (a *App) configReloadLoop(ctx context.Context) {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)

	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}

			sections, attrs := config.SummarizeConfigChange(lastApplied, newCfg)
			if len(sections) == 0 {
				a.log.Debug("config reload received, but no effective changes detected")
				continue
			}
			fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
			a.log.Info("config reloaded", fields...)
			if config.RequiresRestart(sections) {
				a.log.Warn("config change needs a restart to take full effect")
			}
			a.logs.Apply(logConfig(newCfg))
			lastApplied = newCfg
		}
	}
}

func (a *App) eventLogLoop(ctx context.Context) {
	events, unsub := a.bus.Subscribe(128)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			fields := []logx.Field{logx.String("type", e.Type), logx.Time("time", e.Time)}
			switch d := e.Data.(type) {
			case coordinator.RunEvent:
				fields = append(fields, logx.String("id", d.ID))
			case int:
				fields = append(fields, logx.Int("count", d))
			}
			// Trace level: ticks fire every few seconds.
			a.log.Trace("event", fields...)
		}
	}
}

func (a *App) sdNotify(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		a.log.Debug("systemd notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		a.log.Debug("systemd notified", logx.String("state", state))
	}
}
