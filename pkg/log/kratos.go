package log

import (
	"fmt"

	krlog "github.com/go-kratos/kratos/v2/log"
	"go.uber.org/zap"
)

// Log implements the kratos log.Logger interface so components built on
// kratos helpers can share this logger.
func (l *zapLogger) Log(level krlog.Level, keyvals ...any) error {
	if len(keyvals) == 0 {
		l.z.Warn("keyvals must not be empty")
		return nil
	}
	if len(keyvals)%2 != 0 {
		l.z.Warn("keyvals must appear in pairs", zap.Any("keyvals", keyvals))
		keyvals = append(keyvals[:len(keyvals):len(keyvals)], "")
	}

	fields := make([]zap.Field, 0, len(keyvals)/2)
	for i := 0; i < len(keyvals); i += 2 {
		fields = append(fields, zap.Any(fmt.Sprint(keyvals[i]), keyvals[i+1]))
	}

	switch level {
	case krlog.LevelDebug:
		l.z.Debug("", fields...)
	case krlog.LevelInfo:
		l.z.Info("", fields...)
	case krlog.LevelWarn:
		l.z.Warn("", fields...)
	case krlog.LevelError:
		l.z.Error("", fields...)
	case krlog.LevelFatal:
		l.z.Fatal("", fields...)
	}
	return nil
}
