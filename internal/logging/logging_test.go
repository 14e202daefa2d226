package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q)=%v,%v want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestSetup_ConsoleOnly(t *testing.T) {
	defer func(prev *slog.Logger) { slog.SetDefault(prev) }(slog.Default())
	color.NoColor = true

	var buf bytes.Buffer
	logger, closeFn, err := Setup(Options{Level: slog.LevelInfo, Console: &buf})
	if err != nil {
		t.Fatalf("Setup() error: %v", err)
	}
	defer closeFn()

	logger.Debug("hidden")
	logger.Info("shown", "component", "test")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug record leaked at info level: %q", out)
	}
	if !strings.Contains(out, "level=INFO") || !strings.Contains(out, "component=test") {
		t.Fatalf("unexpected output %q", out)
	}
	if slog.Default() != logger {
		t.Fatalf("Setup did not install the default logger")
	}
}

func TestSetup_ToFile(t *testing.T) {
	defer func(prev *slog.Logger) { slog.SetDefault(prev) }(slog.Default())

	dir := t.TempDir()
	var buf bytes.Buffer
	logger, closeFn, err := Setup(Options{Level: slog.LevelDebug, ToFile: true, Dir: dir, Console: &buf})
	if err != nil {
		t.Fatalf("Setup() error: %v", err)
	}
	logger.With("component", "listener").Debug("sentence", "raw", "$GPGGA")
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "log_*.txt"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("log files=%v err=%v", matches, err)
	}
	b, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), "component=listener") || !strings.Contains(string(b), "level=DEBUG") {
		t.Fatalf("log file missing record: %q", b)
	}
	if !strings.Contains(buf.String(), "sentence") {
		t.Fatalf("console missing record: %q", buf.String())
	}
}
