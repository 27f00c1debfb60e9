package logx

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// Cron adapts l to cron.Logger so scheduler internals (recovered job panics,
// schedule bookkeeping) land in the same sinks as everything else.
//
// cron's Info output is very chatty (one line per wake-up), so it is demoted to Trace.
func Cron(l Logger) cron.Logger {
	if l.IsZero() {
		l = Nop()
	}
	return cronLogger{log: l}
}

type cronLogger struct{ log Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	if !c.log.Enabled(LevelTrace) {
		return
	}
	c.log.Trace(msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := append([]Field{Err(err)}, kvFields(keysAndValues)...)
	c.log.Error(msg, fields...)
}

func kvFields(kv []interface{}) []Field {
	out := make([]Field, 0, len(kv)/2+1)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	if len(kv)%2 == 1 {
		out = append(out, Any("extra", kv[len(kv)-1]))
	}
	return out
}
