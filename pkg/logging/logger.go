// Package logging wraps logrus with the configuration and field
// conventions the engine uses everywhere it logs: loader attempts, cache
// hits/misses, permission decisions, runner dispatch and driver step
// transitions.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps *logrus.Logger so the engine depends on a narrow type rather
// than the logrus package directly at call sites.
type Logger struct {
	*logrus.Logger
}

// Config controls level, format and destination of engine logs.
type Config struct {
	Level      string `yaml:"level" env:"SLIPWAY_LOG_LEVEL"`
	Format     string `yaml:"format" env:"SLIPWAY_LOG_FORMAT"`
	Output     string `yaml:"output" env:"SLIPWAY_LOG_OUTPUT"`
	FilePrefix string `yaml:"file_prefix" env:"SLIPWAY_LOG_FILE_PREFIX"`
}

// New builds a Logger from cfg, falling back to sane defaults (info level,
// text format, stdout) for any unset or unrecognized field.
func New(cfg Config) *Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	switch strings.ToLower(cfg.Output) {
	case "file":
		prefix := cfg.FilePrefix
		if prefix == "" {
			prefix = "slipway"
		}
		if err := os.MkdirAll("logs", 0o755); err != nil {
			l.Errorf("failed to create logs directory: %v", err)
			break
		}
		path := filepath.Join("logs", prefix+".log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			l.Errorf("failed to open log file: %v", err)
			break
		}
		l.SetOutput(io.MultiWriter(os.Stdout, f))
	default:
		l.SetOutput(os.Stdout)
	}

	return &Logger{Logger: l}
}

// NewDefault returns a Logger with info-level text logging to stdout.
// The component argument is not attached to log lines: WithField builds
// an entry, and only that entry's base logger is kept.
func NewDefault(component string) *Logger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetOutput(os.Stdout)
	return &Logger{Logger: l.WithField("component", component).Logger}
}

// ComponentLevel is one of the five levels the host capability surface
// exposes to sandboxed code (§4.8 of the rig spec): TRACE, DEBUG, INFO,
// WARN, ERROR.
type ComponentLevel string

const (
	LevelTrace ComponentLevel = "trace"
	LevelDebug ComponentLevel = "debug"
	LevelInfo  ComponentLevel = "info"
	LevelWarn  ComponentLevel = "warn"
	LevelError ComponentLevel = "error"
)

// LogFromComponent records a log line emitted by a sandboxed component via
// the host log() capability, tagged with the originating handle.
func (l *Logger) LogFromComponent(handle string, level ComponentLevel, message string) {
	entry := l.WithFields(logrus.Fields{"handle": handle, "source": "component"})
	switch level {
	case LevelTrace:
		entry.Trace(message)
	case LevelDebug:
		entry.Debug(message)
	case LevelWarn:
		entry.Warn(message)
	case LevelError:
		entry.Error(message)
	default:
		entry.Info(message)
	}
}
