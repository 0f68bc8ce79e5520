// Package logging builds the process slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/seagrayinc/u3stream/internal/config"
)

// ParseLevel maps a configured level name to a slog level. Unknown names map
// to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

// New builds a JSON or text logger writing to stdout and, when a filename is
// configured, to a rolling file. The returned closer releases the file.
func New(cfg config.LoggingConfig) (*slog.Logger, io.Closer) {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter is New with the console output replaced by w.
func NewWithWriter(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, io.Closer) {
	var closer io.Closer = nopCloser{}
	if cfg.File.Filename != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File.Filename,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		}
		w = io.MultiWriter(w, lj)
		closer = lj
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var h slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
