// Package logx is shellglance's structured logging on top of zerolog.
//
// Console output goes to stderr with a short timestamp and file:line caller,
// since stdout carries the rendered status lines. The optional file sink is
// JSON. robfig/cron's logger is routed through the same sinks (see Cron).
package logx
