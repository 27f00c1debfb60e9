package app

import (
	"fmt"
	"io"
	"sync"

	"shellglance/internal/config"
	"shellglance/internal/render"
	logx "shellglance/pkg/logx"
)

// printer writes one line per frame: the label (text) or the waybar object (json).
type printer struct {
	mu     sync.Mutex
	w      io.Writer
	format string
	dedup  bool
	last   string
	log    logx.Logger
}

func newPrinter(w io.Writer, cfg *config.Config, log logx.Logger) *printer {
	return &printer{w: w, format: cfg.OutputFormat(), dedup: cfg.Output.Dedup, log: log}
}

// print reports whether a line was written.
func (p *printer) print(f render.Frame) bool {
	line, err := p.line(f)
	if err != nil {
		p.log.Warn("render failed", logx.Err(err))
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dedup && line == p.last {
		return false
	}
	p.last = line
	if _, err := fmt.Fprintln(p.w, line); err != nil {
		p.log.Warn("write output failed", logx.Err(err))
		return false
	}
	return true
}

func (p *printer) line(f render.Frame) (string, error) {
	if p.format == config.FormatJSON {
		b, err := f.JSON()
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return f.Label, nil
}
