// Package logging configures the structured logger shared by the EcoVision client.
// The terminal belongs to the UI, so log output goes to a file or is discarded.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is the process-wide logger
var Logger = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	return l
}

// ParseLevel maps LOG_LEVEL values to logrus levels, defaulting to info
func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Setup points the logger at path (append mode) and sets its level.
// An empty path keeps logs discarded. The returned closer releases the file.
func Setup(path, level string) (io.Closer, error) {
	Logger.SetLevel(ParseLevel(level))

	if path == "" {
		Logger.SetOutput(io.Discard)
		return io.NopCloser(nil), nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	Logger.SetOutput(f)
	return f, nil
}

// SetupFromEnv reads ECOVISION_LOG_FILE and LOG_LEVEL.
// ECOVISION_DEBUG forces debug level.
func SetupFromEnv() (io.Closer, error) {
	level := os.Getenv("LOG_LEVEL")
	if os.Getenv("ECOVISION_DEBUG") != "" {
		level = "debug"
	}
	return Setup(os.Getenv("ECOVISION_LOG_FILE"), level)
}

// WithField creates a new entry with a single field
func WithField(key string, value interface{}) *logrus.Entry {
	return Logger.WithField(key, value)
}

// WithFields creates a new entry with the given fields
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Logger.WithFields(fields)
}

// WithError creates a new entry with an error field
func WithError(err error) *logrus.Entry {
	return Logger.WithError(err)
}
