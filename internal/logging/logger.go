// Package logging provides structured logging for MemoStream.
//
// It is a thin facade over logrus that fixes the call shape used across the
// codebase: a message, an optional error, and an optional context map.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	global *logrus.Logger
	once   sync.Once
)

// Init initializes the global logger. Subsequent calls are no-ops.
func Init(out io.Writer, level string) {
	once.Do(func() {
		l := logrus.New()
		l.SetOutput(out)
		l.SetFormatter(&logrus.JSONFormatter{})

		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			parsed = logrus.InfoLevel
		}
		l.SetLevel(parsed)

		global = l
	})
}

// Get returns the global logger, initializing it with defaults if needed.
func Get() *logrus.Logger {
	if global == nil {
		Init(os.Stdout, "info")
	}
	return global
}

func entry(context ...map[string]interface{}) *logrus.Entry {
	fields := logrus.Fields{}
	for _, c := range context {
		for k, v := range c {
			fields[k] = v
		}
	}
	return Get().WithFields(fields)
}

// Debug logs a debug message with optional structured context.
func Debug(message string, context ...map[string]interface{}) {
	entry(context...).Debug(message)
}

// Info logs an info message with optional structured context.
func Info(message string, context ...map[string]interface{}) {
	entry(context...).Info(message)
}

// Warn logs a warning message with optional structured context.
func Warn(message string, context ...map[string]interface{}) {
	entry(context...).Warn(message)
}

// Error logs an error message with optional structured context.
func Error(message string, err error, context ...map[string]interface{}) {
	e := entry(context...)
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(message)
}

// ErrorWithCode logs an error message tagged with a stable error code.
func ErrorWithCode(message string, code string, err error, context ...map[string]interface{}) {
	e := entry(context...).WithField("code", code)
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(message)
}
