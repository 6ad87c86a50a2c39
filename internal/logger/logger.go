package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation parameters for the supervisor's own log.
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Config describes logging destinations.
//
// ChildPath receives the supervised child's stdout/stderr. It must be a plain
// append-mode file because the descriptor is inherited by the detached child
// and has to keep working after the supervisor exits. If ChildPath is empty
// and Dir is set, the child logs to Dir/<name>.log.
//
// The supervisor's own structured log goes to Dir/<name>.supervisor.log with
// lumberjack rotation when Dir is set; otherwise only to stderr.
type Config struct {
	Dir        string `toml:"dir" mapstructure:"dir"`
	ChildPath  string `toml:"child_path" mapstructure:"child_path"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
	Level      string `toml:"level" mapstructure:"level"`
}

// ChildLogPath resolves the destination for child stdout/stderr.
func (c Config) ChildLogPath(name string) string {
	if c.ChildPath != "" {
		return c.ChildPath
	}
	if c.Dir != "" {
		return filepath.Join(c.Dir, fmt.Sprintf("%s.log", name))
	}
	return ""
}

// OpenChildLog opens (creating directories as needed) the child log file in
// append mode. The returned *os.File is handed to the spawned process as
// stdout and stderr. Returns nil without error when no destination is
// configured; the caller falls back to /dev/null.
func (c Config) OpenChildLog(name string) (*os.File, error) {
	path := c.ChildLogPath(name)
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open child log: %w", err)
	}
	return f, nil
}

// SupervisorWriter returns the rotating writer for the supervisor's own log,
// or nil when Dir is unset.
func (c Config) SupervisorWriter(name string) io.WriteCloser {
	if c.Dir == "" {
		return nil
	}
	return &lj.Logger{
		Filename:   filepath.Join(c.Dir, fmt.Sprintf("%s.supervisor.log", name)),
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
}

// NewLogger builds the slog logger for a supervisor invocation: colored text
// on stderr plus, when Dir is configured, a plain text handler on the
// rotating file. The returned closer flushes the file writer.
func (c Config) NewLogger(name string) (*slog.Logger, func()) {
	level := parseLevel(c.Level)
	opts := &slog.HandlerOptions{Level: level}
	console := NewColorTextHandler(os.Stderr, opts, false)

	fileW := c.SupervisorWriter(name)
	if fileW == nil {
		return slog.New(console), func() {}
	}
	file := slog.NewTextHandler(fileW, opts)
	return slog.New(newTeeHandler(console, file)), func() { _ = fileW.Close() }
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
