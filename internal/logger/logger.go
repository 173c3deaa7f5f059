package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Rotation defaults for resource output logs.
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 7
)

// Config describes logging destinations for managed resources and the
// daemon itself. Rotation parameters follow lumberjack semantics.
type Config struct {
	Dir        string `toml:"dir" mapstructure:"dir"`                   // base directory for resource output logs
	Level      string `toml:"level" mapstructure:"level"`               // debug|info|warn|error (daemon log level)
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`   // megabytes before rotation
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`   // rotated files to keep
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"` // days to keep
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

// Writer returns a rotating io.WriteCloser for the named resource's combined
// stdout/stderr, at Dir/<id>.log. Returns nil when Dir is empty.
func (c Config) Writer(id string) io.WriteCloser {
	if c.Dir == "" {
		return nil
	}
	return &lj.Logger{
		Filename:   filepath.Join(c.Dir, fmt.Sprintf("%s.log", id)),
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
}

const colorReset = "\033[0m"

var levelColors = map[slog.Level]string{
	slog.LevelDebug: "\033[36m", // cyan
	slog.LevelInfo:  "\033[32m", // green
	slog.LevelWarn:  "\033[33m", // yellow
	slog.LevelError: "\033[31m", // red
}

// colorHandler prefixes each record's message with its colored level name;
// formatting beyond that is plain slog.TextHandler.
type colorHandler struct {
	*slog.TextHandler
}

func (h colorHandler) Handle(ctx context.Context, r slog.Record) error {
	color, ok := levelColors[r.Level]
	if !ok {
		color = colorReset
	}
	r.Message = color + r.Level.String() + colorReset + "  " + r.Message
	return h.TextHandler.Handle(ctx, r)
}

// New builds the daemon slog.Logger writing colored text to w.
func New(w io.Writer, cfg Config) *slog.Logger {
	h := colorHandler{slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.SlogLevel()})}
	return slog.New(h)
}

// Default returns a stderr logger at the configured level.
func Default(cfg Config) *slog.Logger { return New(os.Stderr, cfg) }

func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
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

func valOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
