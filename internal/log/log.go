// Package log holds the logrus logger shared by the taskstatus packages.
//
// Everything logs through entries derived from Logger(), so SetLevel, SetFormat and SetOutput take
// effect for tasks that already exist.
package log

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

var logger = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// Logger returns the shared logger.
func Logger() *logrus.Logger {
	return logger
}

// SetLevel parses and sets the log level, e.g. "debug" or "warn".
func SetLevel(str string) error {
	level, err := logrus.ParseLevel(str)
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	return nil
}

// SetFormat switches between the text and json formatters.
func SetFormat(format string) error {
	switch strings.ToLower(format) {
	case "", FormatText:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case FormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}

// SetOutput redirects the shared logger.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// WithTask returns an entry tagged with a task's identity.
func WithTask(id, name string) *logrus.Entry {
	entry := logger.WithField("task", id)
	if name != "" {
		entry = entry.WithField("name", name)
	}
	return entry
}
