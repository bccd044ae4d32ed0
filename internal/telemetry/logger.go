// Package telemetry sets up the structured logger shared by the CLI and the
// measurement packages.
package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// NewLogger builds a logger writing human-readable records to w and, when
// logFile is set, JSON records to that file as well. The returned function
// closes the log file; it is a no-op without one.
func NewLogger(w io.Writer, debug bool, logFile string) (*slog.Logger, func() error) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	handlers := []slog.Handler{slog.NewTextHandler(w, opts)}
	closeLog := func() error { return nil }

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err == nil {
			handlers = append(handlers, slog.NewJSONHandler(f, opts))
			closeLog = f.Close
		} else {
			slog.New(handlers[0]).Error("failed to open log file", "path", logFile, "error", err)
		}
	}

	if len(handlers) == 1 {
		return slog.New(handlers[0]), closeLog
	}

	return slog.New(&multiHandler{handlers: handlers}), closeLog
}

// InitLogger installs a stderr logger as the slog default and returns it
// together with the function that closes its log file.
func InitLogger(debug bool, logFile string) (*slog.Logger, func() error) {
	logger, closeLog := NewLogger(os.Stderr, debug, logFile)
	slog.SetDefault(logger)

	return logger, closeLog
}

type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}

	return false
}

func (m *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, h := range m.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}

		if err := h.Handle(ctx, record.Clone()); err != nil {
			return err
		}
	}

	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithAttrs(attrs)
	}

	return &multiHandler{handlers: newHandlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithGroup(name)
	}

	return &multiHandler{handlers: newHandlers}
}
