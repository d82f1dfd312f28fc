// Package logger configures the process-wide slog logger and carries a
// per-tick trace ID through context so related records can be grouped.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

type traceKey struct{}

// FileOptions configures the rotating log file. An empty Path disables it.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Init installs a JSON logger on stdout tagged with service.
func Init(service string, level slog.Level) *slog.Logger {
	return New(service, level, os.Stdout)
}

// InitWithFile also tees records into a lumberjack-rotated file. Close the
// returned io.Closer on shutdown.
func InitWithFile(service string, level slog.Level, file FileOptions) (*slog.Logger, io.Closer) {
	if file.Path == "" {
		return Init(service, level), io.NopCloser(nil)
	}
	rotator := &lumberjack.Logger{
		Filename:   file.Path,
		MaxSize:    positive(file.MaxSizeMB, 50),
		MaxBackups: positive(file.MaxBackups, 5),
		MaxAge:     positive(file.MaxAgeDays, 14),
		Compress:   true,
	}
	return New(service, level, io.MultiWriter(os.Stdout, rotator)), rotator
}

// New builds a JSON logger on w and makes it the slog default, which also
// routes the standard log package through it.
func New(service string, level slog.Level, w io.Writer) *slog.Logger {
	l := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})).
		With("service", service)
	slog.SetDefault(l)
	return l
}

// ParseLevel accepts debug, info, warn(ing) and error in any case.
// Unknown values fall back to info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func positive(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// NewTraceID returns "<prefix>-<base36 unix nanos>".
func NewTraceID(prefix string, at time.Time) string {
	return prefix + "-" + strconv.FormatInt(at.UnixNano(), 36)
}

// WithTrace attaches id to ctx.
func WithTrace(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

// Trace returns the ID attached by WithTrace, or "".
func Trace(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}

// From returns the default logger, tagged with the context's trace ID when
// there is one.
func From(ctx context.Context) *slog.Logger {
	if id := Trace(ctx); id != "" {
		return slog.Default().With("trace_id", id)
	}
	return slog.Default()
}
