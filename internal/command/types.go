package command

import "time"

const (
	DefaultInterval = 5
	MinInterval     = 1
	MaxInterval     = 3600

	DefaultTimeout = 10
	MinTimeout     = 1
	MaxTimeout     = 300
)

// TimeoutMessage is the error text of a run that was aborted by its timeout.
const TimeoutMessage = "Command timed out"

// CancelMessage is the error text of a run that was aborted because its owner shut down.
const CancelMessage = "Command cancelled"

// Spec is one user-configured command.
//
// Interval and Timeout are whole seconds. Specs produced by Parse are already
// normalized (defaults applied, values clamped to their domain).
type Spec struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Command  string `json:"command"`
	Interval int    `json:"interval"`
	Timeout  int    `json:"timeout"`
	Enabled  bool   `json:"enabled"`
}

// IntervalDuration returns the effective tick period.
func (s Spec) IntervalDuration() time.Duration {
	return time.Duration(clampSeconds(s.Interval, DefaultInterval, MinInterval, MaxInterval)) * time.Second
}

// TimeoutDuration returns the effective run timeout.
func (s Spec) TimeoutDuration() time.Duration {
	return time.Duration(clampSeconds(s.Timeout, DefaultTimeout, MinTimeout, MaxTimeout)) * time.Second
}

// DisplayName returns Name, or "Unnamed" when no name is set.
func (s Spec) DisplayName() string {
	if s.Name == "" {
		return "Unnamed"
	}
	return s.Name
}

// Result is the outcome of one run of one command.
type Result struct {
	Success bool   `json:"success"`
	Output  string `json:"output"`
	Error   string `json:"error"`
}

// Pending is the placeholder returned for a command that has not completed a run yet.
// It is deliberately successful so unexecuted commands never show as errors.
func Pending() Result { return Result{Success: true} }

// TimedOut is the result of a run aborted by its timeout.
func TimedOut() Result { return Result{Success: false, Error: TimeoutMessage} }

// Failed is a result carrying only a diagnostic message.
func Failed(msg string) Result { return Result{Success: false, Error: msg} }

func clampSeconds(v, def, lo, hi int) int {
	if v <= 0 {
		return def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
