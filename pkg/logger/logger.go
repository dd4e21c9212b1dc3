// Package logger holds the process-wide logrus logger. Output goes to
// stdout and to a size-rotated file in the configured directory.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var std = logrus.New()

// Init configures the shared logger. With an empty dir only stdout is used.
func Init(dir, level string, json bool) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}
	std.SetLevel(lvl)

	if json {
		std.SetFormatter(&logrus.JSONFormatter{})
	} else {
		std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if dir == "" {
		std.SetOutput(os.Stdout)
		return nil
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		absDir = dir
	}
	if err := os.MkdirAll(absDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory %s: %w", absDir, err)
	}

	file := &lumberjack.Logger{
		Filename:   filepath.Join(absDir, "app.log"),
		MaxSize:    10, // MB
		MaxBackups: 30,
		MaxAge:     30, // days
		Compress:   true,
		LocalTime:  true,
	}
	std.SetOutput(io.MultiWriter(os.Stdout, file))

	std.WithField("dir", absDir).Info("logger initialized")
	return nil
}

// Get returns the shared logger.
func Get() *logrus.Logger {
	return std
}

// WithFields starts an entry on the shared logger.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return std.WithFields(fields)
}

// SetOutput redirects the shared logger, e.g. to io.Discard in tests.
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}
