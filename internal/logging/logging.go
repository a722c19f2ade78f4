// Package logging is the structured logger shared by the orrery binaries.
// It wraps log/slog behind a small interface so packages can take a
// Logger without caring whether it writes JSON, text or nothing at all.
package logging

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Environment variables read by ConfigFromEnv and NewFileFromEnv.
const (
	EnvLevel  = "LOG_LEVEL"
	EnvFormat = "LOG_FORMAT"
	EnvFile   = "LOG_FILE"
)

// Field is one key/value pair attached to a log record.
type Field struct {
	Key   string
	Value any
}

func (f Field) attr() slog.Attr { return slog.Any(f.Key, f.Value) }

func String(key, value string) Field                 { return Field{key, value} }
func Int(key string, value int) Field                { return Field{key, value} }
func Float(key string, value float64) Field          { return Field{key, value} }
func Bool(key string, value bool) Field              { return Field{key, value} }
func Duration(key string, value time.Duration) Field { return Field{key, value} }
func Any(key string, value any) Field                { return Field{key, value} }

// Component names the subsystem emitting a record, e.g. "engine" or "api".
func Component(name string) Field { return Field{"component", name} }

// Err stores the error text under "error"; nil becomes "".
func Err(err error) Field {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Field{"error", msg}
}

// Logger is implemented by the slog-backed logger returned from New and by
// the silent logger returned from Noop.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Config selects the level, encoding and destination of a logger.
// Level is one of debug, info, warn or error; Format is json or text.
// A nil Output means stderr, leaving stdout to command output and the
// terminal viewer.
type Config struct {
	Level     string
	Format    string
	AddSource bool
	Output    io.Writer
}

func (c Config) handler() slog.Handler {
	out := c.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: levelOf(c.Level), AddSource: c.AddSource}
	if strings.EqualFold(c.Format, "json") {
		return slog.NewJSONHandler(out, opts)
	}
	return slog.NewTextHandler(out, opts)
}

// levelOf maps a level name to a slog level. Unknown names log at info.
func levelOf(name string) slog.Level {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "warning" {
		name = "warn"
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// New builds a logger from cfg.
func New(cfg Config) Logger {
	return &slogLogger{base: slog.New(cfg.handler())}
}

// ConfigFromEnv reads LOG_LEVEL and LOG_FORMAT and turns on source
// locations. Output is left for the caller.
func ConfigFromEnv() Config {
	return Config{
		Level:     os.Getenv(EnvLevel),
		Format:    os.Getenv(EnvFormat),
		AddSource: true,
	}
}

// NewFromEnv is New(ConfigFromEnv()).
func NewFromEnv() Logger { return New(ConfigFromEnv()) }

// NewFileFromEnv appends to the file named by LOG_FILE, or logs nowhere
// when it is unset. The terminal viewer uses it because anything written to
// the terminal would tear the screen. The close func is never nil.
func NewFileFromEnv() (Logger, func() error, error) {
	nop := func() error { return nil }
	path := os.Getenv(EnvFile)
	if path == "" {
		return Noop(), nop, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return Noop(), nop, err
	}
	cfg := ConfigFromEnv()
	cfg.Output = f
	return New(cfg), f.Close, nil
}

type slogLogger struct {
	base *slog.Logger
}

func (l *slogLogger) emit(ctx context.Context, lvl slog.Level, msg string, fields []Field) {
	if !l.base.Enabled(ctx, lvl) {
		return
	}
	attrs := make([]slog.Attr, len(fields))
	for i, f := range fields {
		attrs[i] = f.attr()
	}
	l.base.LogAttrs(ctx, lvl, msg, attrs...)
}

func (l *slogLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.emit(ctx, slog.LevelDebug, msg, fields)
}

func (l *slogLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.emit(ctx, slog.LevelInfo, msg, fields)
}

func (l *slogLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.emit(ctx, slog.LevelWarn, msg, fields)
}

func (l *slogLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.emit(ctx, slog.LevelError, msg, fields)
}

func (l *slogLogger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	args := make([]any, len(fields))
	for i, f := range fields {
		args[i] = f.attr()
	}
	return &slogLogger{base: l.base.With(args...)}
}

// Noop returns a logger that discards everything.
func Noop() Logger { return silent{} }

type silent struct{}

func (silent) Debug(context.Context, string, ...Field) {}
func (silent) Info(context.Context, string, ...Field)  {}
func (silent) Warn(context.Context, string, ...Field)  {}
func (silent) Error(context.Context, string, ...Field) {}
func (s silent) With(...Field) Logger                  { return s }

type (
	requestIDKey struct{}
	loggerKey    struct{}
)

// ContextWithRequestID returns ctx carrying id as the request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request ID on ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// EnsureRequestID returns ctx unchanged when it already carries a request
// ID. Otherwise it mints one and attaches it.
func EnsureRequestID(ctx context.Context) (context.Context, string) {
	if ctx == nil {
		ctx = context.Background()
	}
	if id := RequestIDFromContext(ctx); id != "" {
		return ctx, id
	}
	id := mintRequestID()
	return ContextWithRequestID(ctx, id), id
}

// WithRequestLogger pairs EnsureRequestID with a child of base tagged by
// the request ID.
func WithRequestLogger(ctx context.Context, base Logger) (context.Context, Logger) {
	if base == nil {
		base = Noop()
	}
	ctx, id := EnsureRequestID(ctx)
	return ctx, base.With(String("request_id", id))
}

// ContextWithLogger returns ctx carrying l. A nil l stores Noop.
func ContextWithLogger(ctx context.Context, l Logger) context.Context {
	if l == nil {
		l = Noop()
	}
	return context.WithValue(ctx, loggerKey{}, l)
}

// LoggerFromContext returns the logger stored by ContextWithLogger, or nil.
func LoggerFromContext(ctx context.Context) Logger {
	if ctx == nil {
		return nil
	}
	l, _ := ctx.Value(loggerKey{}).(Logger)
	return l
}

// mintRequestID returns 12 random bytes in hex, or a time-based fallback
// when the system random source fails.
func mintRequestID() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "t" + time.Now().UTC().Format("20060102150405.000000000")
	}
	return hex.EncodeToString(b)
}
