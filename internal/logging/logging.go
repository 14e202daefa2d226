// Package logging sets up the process logger: colored levels on the console
// and, when asked, a plain copy in a timestamped log file.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
)

const fileTimestampFmt = "20060102_150405"

type Options struct {
	Level slog.Level
	// ToFile also writes every record to log_<timestamp>.txt in Dir.
	ToFile bool
	Dir    string
	// Console defaults to os.Stderr.
	Console io.Writer
}

// ParseLevel accepts debug, info, warn(ing) and error.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Setup builds the logger, installs it as slog.Default and returns a close
// func for the log file (a no-op when not logging to file).
func Setup(opts Options) (*slog.Logger, func() error, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	handler := slog.Handler(slog.NewTextHandler(console, &slog.HandlerOptions{
		Level:       opts.Level,
		ReplaceAttr: colorLevel,
	}))

	closeFn := func() error { return nil }
	if opts.ToFile {
		name := filepath.Join(opts.Dir, "log_"+time.Now().Format(fileTimestampFmt)+".txt")
		f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		fileHandler := slog.NewTextHandler(f, &slog.HandlerOptions{Level: opts.Level})
		handler = teeHandler{handler, fileHandler}
		closeFn = f.Close
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, closeFn, nil
}

var levelColors = map[slog.Level]*color.Color{
	slog.LevelDebug: color.New(color.FgCyan),
	slog.LevelInfo:  color.New(color.FgGreen),
	slog.LevelWarn:  color.New(color.FgYellow),
	slog.LevelError: color.New(color.FgRed, color.Bold),
}

func colorLevel(groups []string, a slog.Attr) slog.Attr {
	if len(groups) != 0 || a.Key != slog.LevelKey {
		return a
	}
	lvl, ok := a.Value.Any().(slog.Level)
	if !ok {
		return a
	}
	if c, ok := levelColors[lvl]; ok {
		a.Value = slog.StringValue(c.Sprint(lvl.String()))
	}
	return a
}

// teeHandler hands each record to every handler that accepts its level.
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, lvl) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
