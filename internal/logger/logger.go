// Package logger wraps log/slog with the severity vocabulary and dual
// text/JSON rendering used throughout this codebase, in the style of
// gcsfuse's internal/logger: TRACE/DEBUG/INFO/WARNING/ERROR records tagged
// with a "severity" field rather than slog's built-in Level names, rotated
// through gopkg.in/natefinch/lumberjack.v2 when writing to a file.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Severity orders the same way slog.Level does, but prints its own names.
type Severity int

const (
	LevelTrace Severity = iota - 8
	LevelDebug
	LevelInfo
	LevelWarning
	LevelError
)

func (s Severity) String() string {
	switch {
	case s < LevelDebug:
		return "TRACE"
	case s < LevelInfo:
		return "DEBUG"
	case s < LevelWarning:
		return "INFO"
	case s < LevelError:
		return "WARNING"
	default:
		return "ERROR"
	}
}

// Config selects the destination, format, and minimum severity for the
// package-level logger.
type Config struct {
	File     string // empty = stderr
	Format   string // "text" (default) or "json"
	Severity Severity
	MaxSizeMB int
	MaxBackups int
}

var (
	mu  sync.Mutex
	std = slog.New(newHandler(os.Stderr, "text", LevelInfo))
)

// Init reconfigures the package-level logger. Safe to call from cmd/imfsd
// and from tests.
func Init(cfg Config) error {
	var w io.Writer = os.Stderr
	if cfg.File != "" {
		maxSize := cfg.MaxSizeMB
		if maxSize == 0 {
			maxSize = 100
		}
		w = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    maxSize,
			MaxBackups: cfg.MaxBackups,
		}
	}

	format := cfg.Format
	if format == "" {
		format = "text"
	}

	mu.Lock()
	std = slog.New(newHandler(w, format, cfg.Severity))
	mu.Unlock()
	return nil
}

func logger() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return std
}

func Tracef(format string, args ...any) { logf(LevelTrace, format, args...) }
func Debugf(format string, args ...any) { logf(LevelDebug, format, args...) }
func Infof(format string, args ...any)  { logf(LevelInfo, format, args...) }
func Warnf(format string, args ...any)  { logf(LevelWarning, format, args...) }
func Errorf(format string, args ...any) { logf(LevelError, format, args...) }

func logf(sev Severity, format string, args ...any) {
	l := logger()
	l.Log(context.Background(), slog.Level(sev), sprintf(format, args...))
}

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// handler renders either "time=... severity=LEVEL message=..." text lines
// or {"timestamp":{...},"severity":"LEVEL","message":"..."} JSON lines,
// matching the two formats gcsfuse's logger package supports.
type handler struct {
	out    io.Writer
	format string
	min    Severity
	mu     *sync.Mutex
}

func newHandler(w io.Writer, format string, min Severity) *handler {
	return &handler{out: w, format: format, min: min, mu: &sync.Mutex{}}
}

func (h *handler) Enabled(_ context.Context, level slog.Level) bool {
	return Severity(level) >= h.min
}

func (h *handler) Handle(_ context.Context, r slog.Record) error {
	sev := Severity(r.Level)
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.format == "json" {
		_, err := h.out.Write([]byte(jsonLine(r.Time, sev, r.Message)))
		return err
	}
	_, err := h.out.Write([]byte(textLine(r.Time, sev, r.Message)))
	return err
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }
func (h *handler) WithGroup(name string) slog.Handler       { return h }

func textLine(t time.Time, sev Severity, msg string) string {
	return "time=\"" + t.Format("02/01/2006 15:04:05.000000") + "\" severity=" + sev.String() + " message=\"" + msg + "\"\n"
}

func jsonLine(t time.Time, sev Severity, msg string) string {
	return `{"timestamp":{"seconds":` + strconv.FormatInt(t.Unix(), 10) + `,"nanos":` + strconv.FormatInt(int64(t.Nanosecond()), 10) + `},"severity":"` + sev.String() + `","message":"` + msg + `"}` + "\n"
}
