package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

type Logger struct {
	*logrus.Entry
}

// Options controls logger construction. Zero values fall back to the
// APAI_LOG_LEVEL and APAI_LOG_FORMAT environment variables.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // text, json, or empty to pick by terminal
	Output io.Writer
}

func New(opts Options) *Logger {
	base := logrus.New()

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	base.SetOutput(out)

	format := opts.Format
	if format == "" {
		format = os.Getenv("APAI_LOG_FORMAT")
	}
	if format == "" {
		format = "json"
		if isTerminal(out) {
			format = "text"
		}
	}

	// Terminal = pretty console; pipes and files = JSON
	if format == "text" {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
			ForceColors:     isTerminal(out),
		})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	}

	level := opts.Level
	if level == "" {
		level = os.Getenv("APAI_LOG_LEVEL")
	}
	base.SetLevel(ParseLevel(level))

	return &Logger{Entry: logrus.NewEntry(base)}
}

// ParseLevel maps a level name to a logrus level, defaulting to info.
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

// Discard returns an entry that drops everything.
func Discard() *logrus.Entry {
	base := logrus.New()
	base.SetOutput(io.Discard)
	base.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(base)
}

// WithError standardizes error logging
func (l *Logger) WithError(err error) *logrus.Entry {
	if err == nil {
		return l.Entry
	}
	return l.Entry.WithField("error", err.Error())
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
