package logger

import (
	"context"
	"errors"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a JSON structured logger.
// No business logic should depend on logging implementation details.
func New(appEnv string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if appEnv == "local" || appEnv == "dev" {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

// Must panics when the logger cannot be built.
func Must(l *zap.Logger, err error) *zap.Logger {
	if err != nil {
		panic(err)
	}
	return l
}

// Named returns a child logger for a component; nil base yields a no-op logger.
func Named(base *zap.Logger, component string) *zap.Logger {
	if base == nil {
		return zap.NewNop()
	}
	return base.Named(component)
}

type ctxKey struct{}

// With stores a logger in context.
func With(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From gets a logger from context, falling back to zap.L().
func From(ctx context.Context) *zap.Logger {
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return zap.L()
}

// ShutdownFlush syncs buffered entries, bounded by timeout.
func ShutdownFlush(l *zap.Logger, timeout time.Duration) error {
	if l == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- l.Sync() }()
	select {
	case err := <-done:
		// stdout/stderr return EINVAL or ENOTTY on Sync for terminals and pipes.
		if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) {
			return nil
		}
		return err
	case <-time.After(timeout):
		return errors.New("logger flush timed out")
	}
}
