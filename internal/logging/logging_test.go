package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewManager_Defaults(t *testing.T) {
	var buf bytes.Buffer
	mgr, logger := newManager(DefaultConfig(), &buf)
	defer mgr.Close() //nolint:errcheck

	logger.Info("classified", slog.String("artist", "sza"))
	logger.Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, "msg=classified") || !strings.Contains(out, "artist=sza") {
		t.Errorf("text output = %q, want msg and artist attrs", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("debug record written at info level: %q", out)
	}
}

func TestNewManager_JSON(t *testing.T) {
	var buf bytes.Buffer
	mgr, logger := newManager(Config{Level: "info", Format: "json"}, &buf)
	defer mgr.Close() //nolint:errcheck

	logger.Warn("breaker open", slog.String("provider", "spotify"))
	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"provider":"spotify"`) {
		t.Errorf("json output = %q", buf.String())
	}
}

func TestManager_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	mgr, logger := newManager(Config{Level: "warn"}, &buf)
	defer mgr.Close() //nolint:errcheck

	ctx := context.Background()
	if logger.Enabled(ctx, slog.LevelInfo) {
		t.Error("info enabled at warn level")
	}

	derived := logger.With(slog.String("component", "batch"))
	mgr.SetLevel("debug")
	if !derived.Enabled(ctx, slog.LevelDebug) {
		t.Error("derived logger did not follow level change")
	}
	if mgr.Level() != slog.LevelDebug {
		t.Errorf("Level() = %v, want debug", mgr.Level())
	}
	if mgr.Config().Level != "debug" {
		t.Errorf("Config().Level = %q, want %q", mgr.Config().Level, "debug")
	}
}

func TestManager_FileOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "muindb.log")
	var console bytes.Buffer
	mgr, logger := newManager(Config{Level: "info", Format: "json", File: logFile, MaxSizeMB: 1}, &console)

	logger.Info("checkpoint written", slog.Int("processed", 10))
	if err := mgr.Close(); err != nil {
		t.Fatalf("closing manager: %v", err)
	}

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !bytes.Contains(data, []byte("checkpoint written")) {
		t.Errorf("log file = %q, want record", data)
	}
	if console.Len() == 0 {
		t.Error("console received nothing while file logging was on")
	}
}

func TestManager_CloseIdempotent(t *testing.T) {
	mgr, _ := newManager(Config{File: filepath.Join(t.TempDir(), "x.log")}, &bytes.Buffer{})
	if err := mgr.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := mgr.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestValidLevelAndFormat(t *testing.T) {
	for _, l := range []string{"debug", "info", "warn", "error"} {
		if !ValidLevel(l) {
			t.Errorf("ValidLevel(%q) = false", l)
		}
	}
	for _, l := range []string{"", "trace", "DEBUG"} {
		if ValidLevel(l) {
			t.Errorf("ValidLevel(%q) = true", l)
		}
	}
	if !ValidFormat("text") || !ValidFormat("json") || ValidFormat("xml") {
		t.Error("ValidFormat accepted or rejected the wrong values")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestConfig_String(t *testing.T) {
	cfg := Config{Level: "info", Format: "text"}
	if got := cfg.String(); got != "level=info format=text" {
		t.Errorf("String() = %q", got)
	}
	cfg.File = "/var/log/muindb.log"
	cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays = 50, 3, 14
	want := "level=info format=text file=/var/log/muindb.log max_size=50MB backups=3 max_age=14d"
	if got := cfg.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
