// Package logging provides the structured logger used across the server.
// It keeps a small field-based interface on top of log/slog, rendering
// through tint for humans or slog's JSON handler for collectors.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	mcperrors "github.com/ajitpratap0/blockscout-mcp-go/pkg/errors"
)

// Level represents the severity of a log message
type Level int

const (
	DebugLevel Level = iota - 1
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel, FatalLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel maps a configuration string onto a Level
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "", "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// Field is a key-value pair for structured logging
type Field struct {
	Key   string
	Value interface{}
}

func String(key, value string) Field { return Field{Key: key, Value: value} }

func Int(key string, value int) Field { return Field{Key: key, Value: value} }

func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// ErrorField attaches err under the "error" key
func ErrorField(err error) Field { return Field{Key: "error", Value: err} }

func Duration(key string, value time.Duration) Field { return Field{Key: key, Value: value} }

func Any(key string, value interface{}) Field { return Field{Key: key, Value: value} }

// Logger is the interface for structured logging
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// Fatal logs and exits the process
	Fatal(msg string, fields ...Field)

	WithFields(fields ...Field) Logger
	// WithContext adds the request id carried by ctx, if any
	WithContext(ctx context.Context) Logger
	// WithError adds err and, for MCP errors, its code and category
	WithError(err error) Logger

	SetLevel(level Level)
	GetLevel() Level

	// Slog exposes the underlying slog.Logger
	Slog() *slog.Logger
}

// Options configures New
type Options struct {
	Level      Level
	Format     string // "text" (default) or "json"
	Writer     io.Writer
	TimeFormat string
	NoColor    bool
}

type slogLogger struct {
	logger *slog.Logger
	level  *slog.LevelVar
	lvl    *Level
}

// New creates a Logger. Text output goes through tint, json through
// slog.NewJSONHandler. Writer defaults to stderr so stdout stays free for
// the stdio transport.
func New(opts Options) Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	levelVar := new(slog.LevelVar)
	levelVar.Set(opts.Level.slogLevel())

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: levelVar})
	} else {
		timeFormat := opts.TimeFormat
		if timeFormat == "" {
			timeFormat = time.RFC3339
		}
		handler = tint.NewHandler(w, &tint.Options{
			Level:      levelVar,
			TimeFormat: timeFormat,
			NoColor:    opts.NoColor,
		})
	}

	lvl := opts.Level
	return &slogLogger{logger: slog.New(handler), level: levelVar, lvl: &lvl}
}

// FromSlog wraps an existing slog.Logger
func FromSlog(l *slog.Logger) Logger {
	levelVar := new(slog.LevelVar)
	lvl := InfoLevel
	return &slogLogger{logger: l, level: levelVar, lvl: &lvl}
}

func (l *slogLogger) Debug(msg string, fields ...Field) { l.log(slog.LevelDebug, msg, fields) }
func (l *slogLogger) Info(msg string, fields ...Field)  { l.log(slog.LevelInfo, msg, fields) }
func (l *slogLogger) Warn(msg string, fields ...Field)  { l.log(slog.LevelWarn, msg, fields) }
func (l *slogLogger) Error(msg string, fields ...Field) { l.log(slog.LevelError, msg, fields) }

func (l *slogLogger) Fatal(msg string, fields ...Field) {
	l.log(slog.LevelError, msg, fields)
	os.Exit(1)
}

func (l *slogLogger) log(level slog.Level, msg string, fields []Field) {
	ctx := context.Background()
	if !l.logger.Enabled(ctx, level) {
		return
	}
	l.logger.LogAttrs(ctx, level, msg, toAttrs(fields)...)
}

func (l *slogLogger) WithFields(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	args := make([]interface{}, 0, len(fields))
	for _, a := range toAttrs(fields) {
		args = append(args, a)
	}
	return &slogLogger{logger: l.logger.With(args...), level: l.level, lvl: l.lvl}
}

func (l *slogLogger) WithContext(ctx context.Context) Logger {
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		return l.WithFields(String("request_id", requestID))
	}
	return l
}

func (l *slogLogger) WithError(err error) Logger {
	fields := []Field{ErrorField(err)}
	if mcpErr, ok := mcperrors.AsMCPError(err); ok {
		fields = append(fields,
			Int("error_code", mcpErr.Code()),
			String("error_category", string(mcpErr.Category())),
		)
	}
	return l.WithFields(fields...)
}

// SetLevel changes the level of this logger and every logger derived
// from it
func (l *slogLogger) SetLevel(level Level) {
	l.level.Set(level.slogLevel())
	*l.lvl = level
}

func (l *slogLogger) GetLevel() Level { return *l.lvl }

func (l *slogLogger) Slog() *slog.Logger { return l.logger }

func toAttrs(fields []Field) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(fields))
	for _, f := range fields {
		if err, ok := f.Value.(error); ok && err != nil {
			attrs = append(attrs, slog.String(f.Key, err.Error()))
			continue
		}
		attrs = append(attrs, slog.Any(f.Key, f.Value))
	}
	return attrs
}

type contextKey string

const requestIDKey contextKey = "request_id"

// ContextWithRequestID returns a context carrying requestID
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the request ID from ctx
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}
