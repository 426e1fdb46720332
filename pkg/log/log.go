// Package log is the structured logger shared by the trade client packages and
// the tradectl command. It wraps zap, optionally rotates files through
// lumberjack, and can pull request-scoped fields out of a context.
package log

import (
	"context"
	"os"
	"sync"
	"time"

	krlog "github.com/go-kratos/kratos/v2/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger defines the logging interface used across the project.
type Logger interface {
	Debugf(format string, args ...any)
	Debugw(msg string, kvs ...any)
	Infof(format string, args ...any)
	Infow(msg string, kvs ...any)
	Warnf(format string, args ...any)
	Warnw(msg string, kvs ...any)
	Errorf(format string, args ...any)
	Errorw(err error, msg string, kvs ...any)
	Panicf(format string, args ...any)
	Panicw(msg string, kvs ...any)
	Fatalf(format string, args ...any)
	Fatalw(msg string, kvs ...any)

	// W returns a logger carrying the fields extracted from ctx.
	W(ctx context.Context) Logger
	// AddCallerSkip increases the number of callers skipped by caller annotation.
	AddCallerSkip(skip int) Logger
	// Zap exposes the underlying logger for libraries that take a *zap.Logger.
	Zap() *zap.Logger
	Sync()

	krlog.Logger
}

// ContextExtractors maps a log field name to a function that reads its value
// from a context.
type ContextExtractors map[string]func(context.Context) string

// Option customizes a logger built by NewLogger.
type Option func(*zapLogger)

// WithContextExtractor registers extractors used by W.
func WithContextExtractor(extractors ContextExtractors) Option {
	return func(l *zapLogger) {
		if l.extractors == nil {
			l.extractors = make(ContextExtractors, len(extractors))
		}
		for k, fn := range extractors {
			l.extractors[k] = fn
		}
	}
}

type zapLogger struct {
	z          *zap.Logger
	extractors ContextExtractors
}

var _ Logger = (*zapLogger)(nil)

var (
	mu  sync.Mutex
	std = NewLogger(NewOptions())
)

// Init replaces the package level logger.
func Init(opts *Options, options ...Option) {
	l := NewLogger(opts, options...)
	mu.Lock()
	std = l
	mu.Unlock()
}

// Default returns the package level logger.
func Default() Logger {
	mu.Lock()
	defer mu.Unlock()
	return std
}

// NewLogger builds a logger from opts. Invalid values fall back to defaults.
func NewLogger(opts *Options, options ...Option) Logger {
	if opts == nil {
		opts = NewOptions()
	}

	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.MessageKey = "message"
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
	}
	encoderConfig.EncodeDuration = func(d time.Duration, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendFloat64(float64(d) / float64(time.Millisecond))
	}

	var encoder zapcore.Encoder
	if opts.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		if opts.EnableColor {
			encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	syncers := make([]zapcore.WriteSyncer, 0, len(opts.OutputPaths)+1)
	if len(opts.OutputPaths) > 0 {
		if sink, _, err := zap.Open(opts.OutputPaths...); err == nil {
			syncers = append(syncers, sink)
		}
	}
	if opts.EnableFileStorage && opts.FileConfig != nil && opts.FileConfig.Filename != "" {
		syncers = append(syncers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.FileConfig.Filename,
			MaxSize:    opts.FileConfig.MaxSize,
			MaxBackups: opts.FileConfig.MaxBackups,
			MaxAge:     opts.FileConfig.MaxAge,
			Compress:   opts.FileConfig.Compress,
			LocalTime:  opts.FileConfig.LocalTime,
		}))
	}
	if len(syncers) == 0 {
		syncers = append(syncers, zapcore.Lock(os.Stderr))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(syncers...), zap.NewAtomicLevelAt(level))

	zopts := []zap.Option{zap.AddCallerSkip(1)}
	if !opts.DisableCaller {
		zopts = append(zopts, zap.AddCaller())
	}
	if !opts.DisableStacktrace {
		zopts = append(zopts, zap.AddStacktrace(zapcore.PanicLevel))
	}

	l := &zapLogger{z: zap.New(core, zopts...)}
	for _, opt := range options {
		opt(l)
	}
	return l
}

// Sync flushes any buffered log entries. Applications should take care to call Sync before exiting.
func Sync() { Default().Sync() }

func (l *zapLogger) Sync() {
	_ = l.z.Sync()
}

// Z returns the *zap.Logger behind the package level logger.
func Z() *zap.Logger { return Default().Zap() }

func (l *zapLogger) Zap() *zap.Logger {
	return l.z.WithOptions(zap.AddCallerSkip(-1))
}

// AddCallerSkip returns the package level logger with additional skipped callers.
func AddCallerSkip(skip int) Logger {
	return Default().AddCallerSkip(skip)
}

func (l *zapLogger) AddCallerSkip(skip int) Logger {
	lc := l.clone()
	lc.z = lc.z.WithOptions(zap.AddCallerSkip(skip))
	return lc
}

// W returns the package level logger with fields extracted from ctx.
func W(ctx context.Context) Logger {
	return Default().W(ctx)
}

func (l *zapLogger) W(ctx context.Context) Logger {
	if ctx == nil || len(l.extractors) == 0 {
		return l
	}

	fields := make([]zap.Field, 0, len(l.extractors))
	for key, extract := range l.extractors {
		if v := extract(ctx); v != "" {
			fields = append(fields, zap.String(key, v))
		}
	}
	if len(fields) == 0 {
		return l
	}

	lc := l.clone()
	lc.z = lc.z.With(fields...)
	return lc
}

func (l *zapLogger) clone() *zapLogger {
	copied := *l
	return &copied
}

func Debugf(format string, args ...any) { pkgLogger().Debugf(format, args...) }
func (l *zapLogger) Debugf(format string, args ...any) {
	l.z.Sugar().Debugf(format, args...)
}

func Debugw(msg string, kvs ...any) { pkgLogger().Debugw(msg, kvs...) }
func (l *zapLogger) Debugw(msg string, kvs ...any) {
	l.z.Sugar().Debugw(msg, kvs...)
}

func Infof(format string, args ...any) { pkgLogger().Infof(format, args...) }
func (l *zapLogger) Infof(format string, args ...any) {
	l.z.Sugar().Infof(format, args...)
}

func Infow(msg string, kvs ...any) { pkgLogger().Infow(msg, kvs...) }
func (l *zapLogger) Infow(msg string, kvs ...any) {
	l.z.Sugar().Infow(msg, kvs...)
}

func Warnf(format string, args ...any) { pkgLogger().Warnf(format, args...) }
func (l *zapLogger) Warnf(format string, args ...any) {
	l.z.Sugar().Warnf(format, args...)
}

func Warnw(msg string, kvs ...any) { pkgLogger().Warnw(msg, kvs...) }
func (l *zapLogger) Warnw(msg string, kvs ...any) {
	l.z.Sugar().Warnw(msg, kvs...)
}

func Errorf(format string, args ...any) { pkgLogger().Errorf(format, args...) }
func (l *zapLogger) Errorf(format string, args ...any) {
	l.z.Sugar().Errorf(format, args...)
}

func Errorw(err error, msg string, kvs ...any) { pkgLogger().Errorw(err, msg, kvs...) }
func (l *zapLogger) Errorw(err error, msg string, kvs ...any) {
	l.z.Sugar().Errorw(msg, append(kvs[:len(kvs):len(kvs)], "err", err)...)
}

func Panicf(format string, args ...any) { pkgLogger().Panicf(format, args...) }
func (l *zapLogger) Panicf(format string, args ...any) {
	l.z.Sugar().Panicf(format, args...)
}

func Panicw(msg string, kvs ...any) { pkgLogger().Panicw(msg, kvs...) }
func (l *zapLogger) Panicw(msg string, kvs ...any) {
	l.z.Sugar().Panicw(msg, kvs...)
}

func Fatalf(format string, args ...any) { pkgLogger().Fatalf(format, args...) }
func (l *zapLogger) Fatalf(format string, args ...any) {
	l.z.Sugar().Fatalf(format, args...)
}

func Fatalw(msg string, kvs ...any) { pkgLogger().Fatalw(msg, kvs...) }
func (l *zapLogger) Fatalw(msg string, kvs ...any) {
	l.z.Sugar().Fatalw(msg, kvs...)
}

// pkgLogger skips the package level wrapper frame.
func pkgLogger() Logger {
	return Default().AddCallerSkip(1)
}
