// Package logging builds the slog logger used by the testable command.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/joeycumines/testable/internal/config"
)

// Settings is the resolved logging configuration.
type Settings struct {
	Level  slog.Level
	Format string
	// File, if set, receives the log instead of the fallback writer.
	File      string
	MaxSizeMB int
	MaxFiles  int
}

// ParseLevel parses debug, info, warn or error. An empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", s)
	}
}

// Resolve reads the log.* options. Non-empty flag values take precedence over
// the configuration; cfg may be nil.
func Resolve(cfg *config.Config, flagLevel, flagFile string) (Settings, error) {
	schema := config.DefaultSchema()
	var s Settings

	level := flagLevel
	if level == "" {
		level = schema.Resolve(cfg, "log.level")
	}
	var err error
	if s.Level, err = ParseLevel(level); err != nil {
		return s, err
	}

	s.Format = strings.ToLower(schema.Resolve(cfg, "log.format"))
	switch s.Format {
	case "", "text":
		s.Format = "text"
	case "json":
	default:
		return s, fmt.Errorf("invalid log format: %s", s.Format)
	}

	s.File = flagFile
	if s.File == "" {
		s.File = schema.Resolve(cfg, "log.file")
	}
	if s.MaxSizeMB, err = schema.ResolveInt(cfg, "log.max-size-mb"); err != nil {
		return s, err
	}
	if s.MaxFiles, err = schema.ResolveInt(cfg, "log.max-files"); err != nil {
		return s, err
	}
	return s, nil
}

// New builds a logger from s. Records go to s.File, rotated by size, or to
// fallback when no file is configured. The returned closer must be closed
// when logging is done.
func New(s Settings, fallback io.Writer) (*slog.Logger, io.Closer, error) {
	w := fallback
	var closer io.Closer = nopCloser{}
	if s.File != "" {
		f, err := OpenRotating(s.File, s.MaxSizeMB, s.MaxFiles)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", s.File, err)
		}
		w, closer = f, f
	}
	opts := &slog.HandlerOptions{Level: s.Level}
	var h slog.Handler
	if s.Format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
