// Package logger provides the daemon's global structured logger, built on
// logrus with optional lumberjack-backed file rotation.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Log is the global logger instance
	Log *logrus.Logger
)

// FileConfig describes rotation behaviour when Output is "file".
type FileConfig struct {
	Path       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// Config describes how the global logger should be initialized. It mirrors
// the daemon YAML config's logging section rather than depending on the
// config package directly, avoiding an import cycle with callers that need
// both.
type Config struct {
	Level  string
	Format string
	Output string
	File   FileConfig
}

// init initializes the logger with a basic configuration
// This ensures the logger is always usable, even before Initialize() is called
func init() {
	Log = logrus.New()
	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	Log.SetOutput(os.Stdout)
	Log.SetLevel(logrus.InfoLevel)
}

// Initialize sets up the logger based on configuration. ROJO_LOG_LEVEL, if
// set, overrides cfg.Level the same way the daemon config layers its own
// environment overrides on top of the YAML file.
func Initialize(cfg Config) error {
	Log = logrus.New()

	level := cfg.Level
	if envLevel := os.Getenv("ROJO_LOG_LEVEL"); envLevel != "" {
		level = envLevel
	}

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
		Log.Warnf("Invalid log level '%s', defaulting to 'info'", level)
	}
	Log.SetLevel(parsed)

	// Set log format
	switch strings.ToLower(cfg.Format) {
	case "json":
		Log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	case "text":
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	default:
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	// Set output destination
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	case "file":
		if cfg.File.Path == "" {
			return fmt.Errorf("log file path is required when output is 'file'")
		}

		// Use lumberjack for log rotation
		output = &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSize,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAge,
			Compress:   cfg.File.Compress,
		}

		Log.Infof("Logging to file: %s (max_size: %dMB, max_backups: %d, max_age: %dd, compress: %v)",
			cfg.File.Path, cfg.File.MaxSize, cfg.File.MaxBackups, cfg.File.MaxAge, cfg.File.Compress)
	default:
		output = os.Stdout
	}

	Log.SetOutput(output)

	Log.WithFields(logrus.Fields{
		"level":  level,
		"format": cfg.Format,
		"output": cfg.Output,
	}).Info("Logger initialized")

	return nil
}

// WithField creates an entry with a single field
func WithField(key string, value interface{}) *logrus.Entry {
	return Log.WithField(key, value)
}

// WithFields creates an entry with multiple fields
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Log.WithFields(fields)
}

// WithError creates an entry with an error field
func WithError(err error) *logrus.Entry {
	return Log.WithError(err)
}

func Debug(args ...interface{})                 { Log.Debug(args...) }
func Debugf(format string, args ...interface{}) { Log.Debugf(format, args...) }
func Info(args ...interface{})                  { Log.Info(args...) }
func Infof(format string, args ...interface{})  { Log.Infof(format, args...) }
func Warn(args ...interface{})                  { Log.Warn(args...) }
func Warnf(format string, args ...interface{})  { Log.Warnf(format, args...) }
func Error(args ...interface{})                 { Log.Error(args...) }
func Errorf(format string, args ...interface{}) { Log.Errorf(format, args...) }
func Fatal(args ...interface{})                 { Log.Fatal(args...) }
func Fatalf(format string, args ...interface{}) { Log.Fatalf(format, args...) }
func Panic(args ...interface{})                 { Log.Panic(args...) }
func Panicf(format string, args ...interface{}) { Log.Panicf(format, args...) }
