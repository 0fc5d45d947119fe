package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	slogmulti "github.com/samber/slog-multi"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	mu       sync.RWMutex
	logger   *slog.Logger
	minLevel = new(slog.LevelVar)
	logFile  io.Closer
)

func init() {
	minLevel.Set(slog.LevelInfo)
	logger = slog.New(newTextHandler(os.Stderr))
}

func newTextHandler(w io.Writer) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: minLevel})
}

// ParseLevel converts a config string ("debug", "info", ...) into a Level.
// Unknown values fall back to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func SetLevel(l Level) {
	switch l {
	case LevelDebug:
		minLevel.Set(slog.LevelDebug)
	case LevelWarn:
		minLevel.Set(slog.LevelWarn)
	case LevelError:
		minLevel.Set(slog.LevelError)
	default:
		minLevel.Set(slog.LevelInfo)
	}
}

// SetOutput redirects the console handler to w. Mostly useful in tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = slog.New(newTextHandler(w))
}

// OpenFile adds a JSON log file next to the stderr output. The file is
// appended to and created with 0600 permissions if missing.
func OpenFile(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = f
	logger = slog.New(slogmulti.Fanout(
		newTextHandler(os.Stderr),
		slog.NewJSONHandler(f, &slog.HandlerOptions{Level: minLevel}),
	))
	return nil
}

// Close releases the log file opened by OpenFile, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	logger = slog.New(newTextHandler(os.Stderr))
	return err
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Debug(msg string, kv ...any) {
	current().Debug(msg, kv...)
}

func Info(msg string, kv ...any) {
	current().Info(msg, kv...)
}

func Warn(msg string, kv ...any) {
	current().Warn(msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	current().Error(msg, extended...)
}

// CronAdapter satisfies robfig/cron's Logger interface.
type CronAdapter struct{}

// CronLogger returns an adapter that routes cron's internal logging here.
// cron's Info messages are chatty (one per schedule/wake) so they go to DEBUG.
func CronLogger() CronAdapter {
	return CronAdapter{}
}

func (CronAdapter) Info(msg string, keysAndValues ...any) {
	Debug("cron: "+msg, keysAndValues...)
}

func (CronAdapter) Error(err error, msg string, keysAndValues ...any) {
	Error("cron: "+msg, err, keysAndValues...)
}
