package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configure the root logger.
type Options struct {
	// Level is one of trace, debug, info, warn, error.
	Level string
	// Dir is where rotated log files live. Created if missing.
	Dir string
	// File is the log file name inside Dir. Empty disables file logging.
	File string
	// MaxSizeMB and MaxBackups bound the rotated files.
	MaxSizeMB  int
	MaxBackups int
}

// New builds the root logger: human-readable console output on stderr plus,
// when a file is configured, JSON lines into a size-rotated file.
func New(opts Options) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	writers := []io.Writer{console}

	if opts.File != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return zerolog.Nop(), fmt.Errorf("failed to create log directory: %w", err)
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, opts.File),
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		})
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
	return logger, nil
}
