// ABOUTME: Logrus setup shared by the bustap binaries
// ABOUTME: Level, text or json format, and file or console output
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Options selects how the logger writes
type Options struct {
	Level   string // debug, info, warn, error
	Format  string // text or json
	File    string // optional log file, appended to
	Console bool   // also write to stderr
}

// F is a short-form wrapper around logrus.Fields
type F = logrus.Fields

// Setup configures l and returns a function that closes the log file.
// With no file and no console output, logs are discarded.
func Setup(l *logrus.Logger, opts Options) (func() error, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	l.SetLevel(level)

	switch strings.ToLower(opts.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	closer := func() error { return nil }
	var writers []io.Writer

	if opts.Console {
		writers = append(writers, os.Stderr)
	}
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("error opening log file: %w", err)
		}
		writers = append(writers, f)
		closer = f.Close
	}

	switch len(writers) {
	case 0:
		l.SetOutput(io.Discard)
	case 1:
		l.SetOutput(writers[0])
	default:
		l.SetOutput(io.MultiWriter(writers...))
	}

	return closer, nil
}

// ParseLevel accepts the level names used in config files; "" is info
func ParseLevel(level string) (logrus.Level, error) {
	if level == "" {
		return logrus.InfoLevel, nil
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel, fmt.Errorf("invalid log level %q", level)
	}
	return lvl, nil
}
