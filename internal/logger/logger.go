package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default logging configuration constants
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
	DefaultFileName   = "prokill.log"
)

// Level names accepted by SlogConfig.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Output formats accepted by SlogConfig.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// SlogConfig controls the structured logger.
type SlogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Color      bool   `mapstructure:"color"`
	TimeStamps bool   `mapstructure:"timestamps"`
	Source     bool   `mapstructure:"source"`
}

// FileConfig describes the optional rotating log file.
// Path wins over Dir; with only Dir set the file is Dir/prokill.log.
// Rotation parameters follow lumberjack semantics.
type FileConfig struct {
	Dir        string `mapstructure:"dir"`
	Path       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Config combines console formatting and file output.
type Config struct {
	Slog SlogConfig `mapstructure:",squash"`
	File FileConfig `mapstructure:",squash"`
}

// FilePath returns the log file path, or "" when file logging is off.
func (c FileConfig) FilePath() string {
	if c.Path != "" {
		return c.Path
	}
	if c.Dir != "" {
		return filepath.Join(c.Dir, DefaultFileName)
	}
	return ""
}

// Writer returns the rotating file writer, or nil when file logging is off.
func (c FileConfig) Writer() io.WriteCloser {
	p := c.FilePath()
	if p == "" {
		return nil
	}
	return &lj.Logger{
		Filename:   p,
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
}

// NewSlogger logs to stderr and, when configured, to the log file.
func (c Config) NewSlogger() *slog.Logger {
	return c.newSlogger(os.Stderr)
}

// NewFileSlogger logs to the log file only, discarding output when no file
// is configured. Full-screen front-ends use it to keep the terminal clean.
func (c Config) NewFileSlogger() *slog.Logger {
	return c.newSlogger(nil)
}

// NewSloggerTo logs to w only. Used by tests and embedders.
func (c Config) NewSloggerTo(w io.Writer) *slog.Logger {
	return slog.New(c.handler(w, c.Slog.Color))
}

func (c Config) newSlogger(console io.Writer) *slog.Logger {
	var handlers []slog.Handler
	if console != nil {
		handlers = append(handlers, c.handler(console, c.Slog.Color))
	}
	if fw := c.File.Writer(); fw != nil {
		// never write ANSI codes into files
		handlers = append(handlers, c.handler(fw, false))
	}
	switch len(handlers) {
	case 0:
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	case 1:
		return slog.New(handlers[0])
	}
	return slog.New(fanout(handlers))
}

func (c Config) handler(w io.Writer, color bool) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(c.Slog.Level),
		AddSource: c.Slog.Source,
	}
	if !c.Slog.TimeStamps {
		opts.ReplaceAttr = dropTime
	}
	if strings.EqualFold(c.Slog.Format, FormatJSON) {
		return slog.NewJSONHandler(w, opts)
	}
	if color {
		return NewColorTextHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// ParseLevel maps a level name to slog.Level; unknown names mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn, "warning":
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

func dropTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
