// Package logging builds the slog loggers used across the module.
//
// Every logger writes to two places: the process handler installed with
// [Setup] (stderr by default) and the OpenTelemetry log bridge for its
// instrumentation scope. The bridge is a no-op until a logger provider is
// registered, so records are never lost to an unconfigured exporter.
package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/contrib/bridges/otelslog"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

var process atomic.Pointer[slog.Handler]

func init() {
	var h slog.Handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	process.Store(&h)
}

// Setup installs the process handler and makes it the slog default.
func Setup(w io.Writer, format Format, level slog.Level) {
	options := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch format {
	case FormatJSON:
		h = slog.NewJSONHandler(w, options)
	default:
		h = slog.NewTextHandler(w, options)
	}

	process.Store(&h)
	slog.SetDefault(slog.New(h))
}

// ParseLevel accepts the usual level names, case insensitive.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}

// NewLogger returns a logger for an instrumentation scope. It may be called
// from package level variable initializers, the process handler is resolved
// when records are handled.
func NewLogger(scope string) *slog.Logger {
	return slog.New(&fanout{
		bridge: otelslog.NewHandler(scope),
	})
}

type fanout struct {
	bridge slog.Handler
	// scoped replays WithAttrs and WithGroup calls on the process handler,
	// in call order.
	scoped []func(slog.Handler) slog.Handler
}

func (f *fanout) processHandler() slog.Handler {
	h := *process.Load()
	for _, apply := range f.scoped {
		h = apply(h)
	}
	return h
}

func (f *fanout) Enabled(ctx context.Context, level slog.Level) bool {
	return f.processHandler().Enabled(ctx, level) || f.bridge.Enabled(ctx, level)
}

func (f *fanout) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	if h := f.processHandler(); h.Enabled(ctx, record.Level) {
		errs = append(errs, h.Handle(ctx, record.Clone()))
	}
	if f.bridge.Enabled(ctx, record.Level) {
		errs = append(errs, f.bridge.Handle(ctx, record))
	}
	return errors.Join(errs...)
}

func (f *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.with(f.bridge.WithAttrs(attrs), func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f *fanout) WithGroup(name string) slog.Handler {
	return f.with(f.bridge.WithGroup(name), func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f *fanout) with(bridge slog.Handler, apply func(slog.Handler) slog.Handler) *fanout {
	return &fanout{
		bridge: bridge,
		scoped: append(append([]func(slog.Handler) slog.Handler{}, f.scoped...), apply),
	}
}
