// Package logger provides the leveled logging functions used throughout the batch engine.
// Messages are written through a shared logrus logger so output format and destination can be
// configured in one place.
package logger

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogLevel is a type representing the logging level.
type LogLevel int

const (
	// LevelDebug is used for detailed debugging information.
	LevelDebug LogLevel = iota
	// LevelInfo is used for general informational messages.
	LevelInfo
	// LevelWarn is used for potential issues.
	LevelWarn
	// LevelError is used for error messages.
	LevelError
	// LevelFatal is used for errors that terminate the application.
	LevelFatal
)

var base = newBaseLogger()

func newBaseLogger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLogLevel sets the global log level.
// Valid values are "DEBUG", "INFO", "WARN", "ERROR", "FATAL" (case-insensitive); "TRACE" is treated as
// DEBUG and "SILENT" suppresses everything below FATAL. Unknown values fall back to INFO.
func SetLogLevel(level string) {
	switch strings.ToUpper(level) {
	case "TRACE", "DEBUG":
		base.SetLevel(logrus.DebugLevel)
	case "INFO":
		base.SetLevel(logrus.InfoLevel)
	case "WARN":
		base.SetLevel(logrus.WarnLevel)
	case "ERROR":
		base.SetLevel(logrus.ErrorLevel)
	case "FATAL", "SILENT":
		base.SetLevel(logrus.FatalLevel)
	default:
		base.SetLevel(logrus.InfoLevel)
		base.Warnf("Unknown log level '%s' specified. Defaulting to INFO level.", level)
	}
}

// GetLogLevel returns the current level.
func GetLogLevel() LogLevel {
	switch base.GetLevel() {
	case logrus.DebugLevel, logrus.TraceLevel:
		return LevelDebug
	case logrus.InfoLevel:
		return LevelInfo
	case logrus.WarnLevel:
		return LevelWarn
	case logrus.ErrorLevel:
		return LevelError
	default:
		return LevelFatal
	}
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	base.SetOutput(w)
}

// WithField returns an entry carrying a structured field, for callers that want one.
func WithField(key string, value interface{}) *logrus.Entry {
	return base.WithField(key, value)
}

// Debugf formats and outputs a DEBUG level log message.
func Debugf(format string, v ...interface{}) {
	base.Debugf(format, v...)
}

// Infof formats and outputs an INFO level log message.
func Infof(format string, v ...interface{}) {
	base.Infof(format, v...)
}

// Warnf formats and outputs a WARN level log message.
func Warnf(format string, v ...interface{}) {
	base.Warnf(format, v...)
}

// Errorf formats and outputs an ERROR level log message.
func Errorf(format string, v ...interface{}) {
	base.Errorf(format, v...)
}

// Fatalf formats and outputs a FATAL level log message, then terminates the program.
func Fatalf(format string, v ...interface{}) {
	base.Fatalf(format, v...)
}
