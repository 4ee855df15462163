package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config describes where log records go and how they are rendered.
type Config struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// DefaultConfig logs text at info level to stderr only.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "text",
		MaxSizeMB:  50,
		MaxBackups: 3,
		MaxAgeDays: 14,
	}
}

// String returns a compact summary suitable for a startup log line.
func (c Config) String() string {
	s := fmt.Sprintf("level=%s format=%s", c.Level, c.Format)
	if c.File != "" {
		s += fmt.Sprintf(" file=%s max_size=%dMB backups=%d max_age=%dd",
			c.File, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
	}
	return s
}

// Manager owns the root handler and the optional rotating log file.
// Standard output is left to command results; records always go to stderr.
type Manager struct {
	level  *slog.LevelVar
	config Config

	mu   sync.Mutex
	file *lumberjack.Logger
}

// NewManager builds a Manager and the root logger for cfg.
func NewManager(cfg Config) (*Manager, *slog.Logger) {
	return newManager(cfg, os.Stderr)
}

func newManager(cfg Config, console io.Writer) (*Manager, *slog.Logger) {
	m := &Manager{level: &slog.LevelVar{}, config: cfg}
	m.level.Set(ParseLevel(cfg.Level))

	w := console
	if cfg.File != "" {
		m.file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 50),
			MaxBackups: orDefault(cfg.MaxBackups, 3),
			MaxAge:     orDefault(cfg.MaxAgeDays, 14),
		}
		w = io.MultiWriter(console, m.file)
	}

	opts := &slog.HandlerOptions{Level: m.level}
	var h slog.Handler
	if cfg.Format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return m, slog.New(h)
}

// SetLevel changes the minimum level of every logger derived from the root.
func (m *Manager) SetLevel(level string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.level.Set(ParseLevel(level))
	m.config.Level = level
}

// Level reports the current minimum level.
func (m *Manager) Level() slog.Level {
	return m.level.Level()
}

// Config returns the configuration the manager was built with, including
// any later level change.
func (m *Manager) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Close closes the rotating file, if any. Safe to call twice.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.file == nil {
		return nil
	}
	err := m.file.Close()
	m.file = nil
	return err
}

// ParseLevel maps a level name to slog.Level. Unknown names mean info.
func ParseLevel(s string) slog.Level {
	switch s {
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

// ValidLevel reports whether s is one of debug, info, warn or error.
func ValidLevel(s string) bool {
	switch s {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

// ValidFormat reports whether s is text or json.
func ValidFormat(s string) bool {
	return s == "text" || s == "json"
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
