package executor

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"shellglance/internal/command"
	logx "shellglance/pkg/logx"
)

const (
	DefaultShell     = "/bin/sh"
	DefaultWaitDelay = 2 * time.Second
)

// Config controls how commands are spawned.
type Config struct {
	// Shell is invoked as `<Shell> -c <command>`. Default: /bin/sh.
	Shell string

	// WaitDelay bounds how long Execute keeps reading output after the shell
	// exited (or was killed) while background children still hold the pipes.
	// Default: 2s.
	WaitDelay time.Duration
}

// Executor runs one shell command at a time per call. Calls are independent
// and may overlap freely; it keeps no per-run state.
type Executor struct {
	cfg Config
	log logx.Logger
}

func New(cfg Config, log logx.Logger) *Executor {
	if strings.TrimSpace(cfg.Shell) == "" {
		cfg.Shell = DefaultShell
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = DefaultWaitDelay
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Executor{cfg: cfg, log: log}
}

// Execute runs cmdText through the shell and blocks until it finished, timed
// out, or ctx was cancelled. It never fails: every failure mode is expressed
// as an unsuccessful command.Result.
//
// A non-positive timeout means command.DefaultTimeout seconds.
func (e *Executor) Execute(ctx context.Context, cmdText string, timeout time.Duration) (res command.Result) {
	if timeout <= 0 {
		timeout = time.Duration(command.DefaultTimeout) * time.Second
	}
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("executor panic", logx.Any("panic", r))
			res = command.Failed("executor panic")
		}
	}()

	// The deadline context is the timeout watch; cancel() disarms it as soon as
	// Run returns, so a late expiry can never touch a finished process.
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.cfg.Shell, "-c", cmdText)
	configureProcess(cmd)
	cmd.WaitDelay = e.cfg.WaitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	took := time.Since(start)

	switch {
	case err == nil:
		return command.Result{
			Success: true,
			Output:  strings.TrimSpace(stdout.String()),
			Error:   strings.TrimSpace(stderr.String()),
		}

	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		e.log.Debug("command timed out", logx.Duration("timeout", timeout), logx.Duration("took", took))
		return command.TimedOut()

	case ctx.Err() != nil:
		return command.Failed(command.CancelMessage)

	case errors.Is(err, exec.ErrWaitDelay):
		// The shell exited but something it started kept the pipes open.
		// The shell's exit status is still authoritative.
		ok := cmd.ProcessState != nil && cmd.ProcessState.Success()
		return command.Result{
			Success: ok,
			Output:  strings.TrimSpace(stdout.String()),
			Error:   strings.TrimSpace(stderr.String()),
		}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return command.Result{
			Success: false,
			Output:  strings.TrimSpace(stdout.String()),
			Error:   strings.TrimSpace(stderr.String()),
		}
	}

	// Spawn failure (missing shell, fork limits, ...).
	e.log.Debug("command spawn failed", logx.Err(err), logx.String("shell", e.cfg.Shell))
	return command.Failed(err.Error())
}
