package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a production-friendly structured logger writing JSON to stdout.
// No business logic should depend on logging implementation details.
func New(appEnv string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, handlerOptions(appEnv)))
}

// NewWithFile is New plus a rotated copy of the stream in path. The returned
// closer releases the file; it is a no-op when path is empty.
func NewWithFile(appEnv, path string) (*slog.Logger, io.Closer) {
	if path == "" {
		return New(appEnv), nopCloser{}
	}
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    100, // megabytes
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	}
	w := io.MultiWriter(os.Stdout, file)
	return slog.New(slog.NewJSONHandler(w, handlerOptions(appEnv))), file
}

func handlerOptions(appEnv string) *slog.HandlerOptions {
	level := slog.LevelInfo
	if appEnv == "local" || appEnv == "dev" {
		level = slog.LevelDebug
	}
	return &slog.HandlerOptions{Level: level}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type ctxKey struct{}

// With stores a logger in context.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From gets a logger from context, falling back to slog.Default().
func From(ctx context.Context) *slog.Logger {
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}
