package logger

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

const colorReset = "\033[0m"

// ColorTextHandler is a slog.TextHandler whose lines start with the level
// name in color. The level is written ahead of the text record because
// TextHandler quotes any value that contains escape sequences.
type ColorTextHandler struct {
	inner slog.Handler
	out   *levelWriter
}

// levelWriter prepends the pending level prefix to the next line written.
// mu is held from prefix selection until the inner handler has written.
type levelWriter struct {
	mu     sync.Mutex
	w      io.Writer
	prefix []byte
}

func (lw *levelWriter) Write(p []byte) (int, error) {
	line := make([]byte, 0, len(lw.prefix)+len(p))
	line = append(line, lw.prefix...)
	line = append(line, p...)
	if _, err := lw.w.Write(line); err != nil {
		return 0, err
	}
	return len(p), nil
}

// NewColorTextHandler creates a ColorTextHandler writing to w. The level
// attribute is removed from the text record and rendered as the prefix.
func NewColorTextHandler(w io.Writer, opts *slog.HandlerOptions) *ColorTextHandler {
	o := slog.HandlerOptions{}
	if opts != nil {
		o = *opts
	}
	next := o.ReplaceAttr
	o.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) == 0 && a.Key == slog.LevelKey {
			return slog.Attr{}
		}
		if next != nil {
			return next(groups, a)
		}
		return a
	}
	lw := &levelWriter{w: w}
	return &ColorTextHandler{inner: slog.NewTextHandler(lw, &o), out: lw}
}

func levelColor(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "\033[31m" // red
	case l >= slog.LevelWarn:
		return "\033[33m" // yellow
	case l >= slog.LevelInfo:
		return "\033[32m" // green
	}
	return "\033[36m" // cyan
}

func (h *ColorTextHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.inner.Enabled(ctx, l)
}

func (h *ColorTextHandler) Handle(ctx context.Context, r slog.Record) error {
	h.out.mu.Lock()
	defer h.out.mu.Unlock()
	h.out.prefix = append(h.out.prefix[:0], levelColor(r.Level)+r.Level.String()+colorReset+" "...)
	return h.inner.Handle(ctx, r)
}

func (h *ColorTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ColorTextHandler{inner: h.inner.WithAttrs(attrs), out: h.out}
}

func (h *ColorTextHandler) WithGroup(name string) slog.Handler {
	return &ColorTextHandler{inner: h.inner.WithGroup(name), out: h.out}
}
