// ABOUTME: Logger construction for interview-gateway: level parsing and a colorized console handler
// ABOUTME: The console handler leads each line with the component tag so interleaved reactors stay readable

package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Options select the level and output format.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

// ParseLevel maps a config level name to a slog level. Unknown names are info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns a logger writing to w.
func New(opts Options, w io.Writer) *slog.Logger {
	level := ParseLevel(opts.Level)
	if strings.EqualFold(opts.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(&consoleHandler{w: w, mu: &sync.Mutex{}, level: level})
}

func levelTag(l slog.Level) string {
	switch l {
	case slog.LevelDebug:
		return color.MagentaString("DBG")
	case slog.LevelInfo:
		return color.CyanString("INF")
	case slog.LevelWarn:
		return color.YellowString("WRN")
	case slog.LevelError:
		return color.New(color.FgRed, color.Bold).Sprint("ERR")
	}
	return l.String()
}

// consoleHandler writes one colorized line per record.
type consoleHandler struct {
	w         io.Writer
	mu        *sync.Mutex
	level     slog.Level
	component string
	attrs     []slog.Attr
	prefix    string // group path, dot-terminated
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	b.WriteString(color.HiBlackString(r.Time.Format("15:04:05.000")))
	b.WriteByte(' ')
	b.WriteString(levelTag(r.Level))
	if h.component != "" {
		b.WriteString(color.GreenString(" [" + h.component + "]"))
	}
	b.WriteByte(' ')
	b.WriteString(r.Message)

	for _, a := range h.attrs {
		writeAttr(&b, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.prefix, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	b.WriteString(color.HiBlackString(" " + prefix + a.Key + "="))
	b.WriteString(a.Value.Resolve().String())
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		if a.Key == "component" && h.prefix == "" {
			next.component = a.Value.String()
			continue
		}
		a.Key = h.prefix + a.Key
		next.attrs = append(next.attrs, a)
	}
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}
