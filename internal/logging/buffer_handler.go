package logging

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// bufferHandler tees every record into the in-memory application log
// buffer before delegating to the formatting handler, so the log API sees
// entries regardless of the configured output format.
type bufferHandler struct {
	inner slog.Handler
	attrs []slog.Attr
}

func newBufferHandler(inner slog.Handler) *bufferHandler {
	return &bufferHandler{inner: inner}
}

func (h *bufferHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *bufferHandler) Handle(ctx context.Context, r slog.Record) error {
	t := r.Time
	if t.IsZero() {
		t = time.Now()
	}

	component := ""
	extra := make(map[string]string)
	for _, a := range h.attrs {
		if a.Key == "component" {
			component = strings.ToLower(a.Value.String())
		} else {
			extra[a.Key] = a.Value.String()
		}
	}
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" {
			component = strings.ToLower(a.Value.String())
		} else {
			extra[a.Key] = a.Value.String()
		}
		return true
	})

	source := "system"
	if component != "" {
		source = component
	}

	GetAppLogBuffer().Add(AppLogEntry{
		Timestamp: t,
		Level:     LevelFromSlog(r.Level),
		Source:    source,
		Message:   r.Message,
		Extra:     extra,
	})

	return h.inner.Handle(ctx, r)
}

func (h *bufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := append(h.attrs[:len(h.attrs):len(h.attrs)], attrs...)
	return &bufferHandler{inner: h.inner.WithAttrs(attrs), attrs: merged}
}

func (h *bufferHandler) WithGroup(name string) slog.Handler {
	return &bufferHandler{inner: h.inner.WithGroup(name), attrs: h.attrs}
}
