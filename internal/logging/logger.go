package logging

import (
	"fmt"
	"io"
	"log/syslog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	lsyslog "github.com/sirupsen/logrus/hooks/syslog"
)

// LogLevel represents different logging levels
type LogLevel = logrus.Level

const (
	// LevelError only logs errors
	LevelError = logrus.ErrorLevel
	// LevelWarn logs warnings and errors
	LevelWarn = logrus.WarnLevel
	// LevelInfo logs general information, warnings and errors
	LevelInfo = logrus.InfoLevel
	// LevelDebug logs detailed debug information and all above
	LevelDebug = logrus.DebugLevel
	// LevelTrace logs very detailed trace information and all above
	LevelTrace = logrus.TraceLevel
)

const syslogTag = "archivefs"

// Options configures a new Logger.
type Options struct {
	// Level is a logrus level name ("info", "debug", ...). Empty means info.
	Level string
	// Output defaults to stderr.
	Output io.Writer
	// Syslog additionally sends every entry to the local syslog daemon.
	Syslog bool
}

// Logger is a leveled logger scoped to one mounted filesystem. It is passed
// to every component explicitly; there is no process-wide instance.
type Logger struct {
	entry *logrus.Entry
}

// New creates a logger from opts.
func New(opts Options) (*Logger, error) {
	base := logrus.New()

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	base.SetOutput(out)

	level := LevelInfo
	if opts.Level != "" {
		parsed, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid log level %q", opts.Level)
		}
		level = parsed
	}
	base.SetLevel(level)

	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000000",
		DisableColors:   !isTerminal(out),
	})

	if opts.Syslog {
		hook, err := lsyslog.NewSyslogHook("", "", syslog.LOG_INFO|syslog.LOG_USER, syslogTag)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect to syslog")
		}
		base.AddHook(hook)
	}

	return &Logger{entry: logrus.NewEntry(base)}, nil
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *Logger {
	base := logrus.New()
	base.SetOutput(io.Discard)
	base.SetLevel(logrus.PanicLevel)
	return &Logger{entry: logrus.NewEntry(base)}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level LogLevel) {
	l.entry.Logger.SetLevel(level)
}

// Level returns the current logging level.
func (l *Logger) Level() LogLevel {
	return l.entry.Logger.GetLevel()
}

// Enabled reports whether messages at level would be written.
func (l *Logger) Enabled(level LogLevel) bool {
	return l.entry.Logger.IsLevelEnabled(level)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

// Trace logs a trace message
func (l *Logger) Trace(format string, args ...interface{}) {
	l.entry.Tracef(format, args...)
}

// WithPrefix returns a child logger tagged with a component name. Nested
// prefixes are joined with a dot.
func (l *Logger) WithPrefix(prefix string) *Logger {
	if current, ok := l.entry.Data["component"].(string); ok && current != "" {
		prefix = current + "." + prefix
	}
	return &Logger{entry: l.entry.WithField("component", prefix)}
}

// WithField returns a child logger carrying an extra key/value pair.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// FuseDebug adapts the logger to the bazil.org/fuse Debug hook.
func (l *Logger) FuseDebug() func(msg interface{}) {
	return func(msg interface{}) {
		l.entry.Debug(strings.TrimSpace(fmt.Sprint(msg)))
	}
}
