package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Logger is the logging surface used across the pipeline.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	// WithContext binds ctx to every record, so values carried by the
	// context (the operation ID) reach the output.
	WithContext(ctx context.Context) Logger
}

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// Format is the output format (json, text).
	Format string
	// Output defaults to os.Stderr.
	Output io.Writer
}

// level is shared by every logger built with New, so a config reload
// retunes loggers already handed out to the catalog and orchestrator.
var level = new(slog.LevelVar)

type slogLogger struct {
	logger *slog.Logger
	ctx    context.Context
}

// New builds a logger writing to cfg.Output. An unknown level is an error.
func New(cfg Config) (Logger, error) {
	lvl, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	level.Set(lvl)

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			return expandError(a)
		},
	}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text", "console":
		h = slog.NewTextHandler(out, opts)
	case "", "json":
		h = slog.NewJSONHandler(out, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return newSlogLogger(contextHandler{h}), nil
}

func newSlogLogger(h slog.Handler) *slogLogger {
	return &slogLogger{logger: slog.New(h), ctx: context.Background()}
}

// SetLevel changes the level of every logger built with New.
func SetLevel(s string) error {
	lvl, err := parseLevel(s)
	if err != nil {
		return err
	}
	level.Set(lvl)
	return nil
}

func (l *slogLogger) Debug(msg string, args ...any) { l.logger.DebugContext(l.ctx, msg, args...) }
func (l *slogLogger) Info(msg string, args ...any)  { l.logger.InfoContext(l.ctx, msg, args...) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.logger.WarnContext(l.ctx, msg, args...) }
func (l *slogLogger) Error(msg string, args ...any) { l.logger.ErrorContext(l.ctx, msg, args...) }

func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{logger: l.logger.With(args...), ctx: l.ctx}
}

func (l *slogLogger) WithContext(ctx context.Context) Logger {
	if ctx == nil {
		ctx = context.Background()
	}
	return &slogLogger{logger: l.logger, ctx: ctx}
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// NewNop returns a logger that discards everything.
func NewNop() Logger {
	return newSlogLogger(slog.NewTextHandler(io.Discard, nil))
}

// OrDefault returns l, or the process logger when l is nil.
func OrDefault(l Logger) Logger {
	if l == nil {
		return Default()
	}
	return l
}

var defaultLogger atomic.Pointer[slogLogger]

func init() {
	l, _ := New(Config{})
	defaultLogger.Store(l.(*slogLogger))
}

// SetDefault replaces the process logger returned by Default.
func SetDefault(l Logger) {
	if sl, ok := l.(*slogLogger); ok {
		defaultLogger.Store(sl)
	}
}

// Default returns the process logger.
func Default() Logger {
	return defaultLogger.Load()
}
