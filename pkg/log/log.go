package log

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger defines the logging interface used throughout the server.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	WithField(key string, value interface{}) Logger
}

// Options configures a logrus-backed logger.
type Options struct {
	// Level is a logrus level name; unknown names fall back to info.
	Level string
	// Format is "text" (default) or "json".
	Format string
	// Output defaults to stderr.
	Output io.Writer
}

// entryLogger adapts a logrus entry to Logger.
type entryLogger struct {
	entry *logrus.Entry
}

// New creates a logger from opts.
func New(opts Options) Logger {
	logger := logrus.New()

	if opts.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	lvl, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	if opts.Output != nil {
		logger.SetOutput(opts.Output)
	} else {
		logger.SetOutput(os.Stderr)
	}

	return FromLogrus(logger)
}

// NewDefault creates a text logger at info level.
func NewDefault() Logger {
	return New(Options{})
}

// Discard returns a logger that drops everything.
func Discard() Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return FromLogrus(logger)
}

// FromLogrus wraps an existing logrus logger.
func FromLogrus(logger *logrus.Logger) Logger {
	return &entryLogger{entry: logrus.NewEntry(logger)}
}

func (l *entryLogger) Debugf(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

func (l *entryLogger) Infof(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

func (l *entryLogger) Warnf(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

func (l *entryLogger) Errorf(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

// WithField returns a logger that attaches key=value to every entry.
func (l *entryLogger) WithField(key string, value interface{}) Logger {
	return &entryLogger{entry: l.entry.WithField(key, value)}
}
