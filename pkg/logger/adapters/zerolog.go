// Package adapters provides logger adapters for integrating external
// logging libraries with Tattler's Logger interface.
package adapters

import (
	"github.com/rs/zerolog"

	"github.com/tattler-io/tattler/pkg/logger"
)

// ZerologAdapter adapts a zerolog.Logger to the tattler Logger interface.
type ZerologAdapter struct {
	zl    zerolog.Logger
	level logger.LogLevel
}

// NewZerologAdapter creates a new adapter around an existing zerolog logger.
func NewZerologAdapter(zl zerolog.Logger, level logger.LogLevel) logger.Logger {
	return &ZerologAdapter{zl: zl, level: level}
}

// LogMode sets the log level and returns a new logger instance.
func (z *ZerologAdapter) LogMode(level logger.LogLevel) logger.Logger {
	return &ZerologAdapter{zl: z.zl, level: level}
}

// Info logs an informational message.
func (z *ZerologAdapter) Info(msg string, args ...any) {
	if z.level >= logger.Info {
		z.emit(z.zl.Info(), msg, args)
	}
}

// Warn logs a warning message.
func (z *ZerologAdapter) Warn(msg string, args ...any) {
	if z.level >= logger.Warn {
		z.emit(z.zl.Warn(), msg, args)
	}
}

// Error logs an error message.
func (z *ZerologAdapter) Error(msg string, args ...any) {
	if z.level >= logger.Error {
		z.emit(z.zl.Error(), msg, args)
	}
}

// Debug logs a debug message.
func (z *ZerologAdapter) Debug(msg string, args ...any) {
	if z.level >= logger.Debug {
		z.emit(z.zl.Debug(), msg, args)
	}
}

func (z *ZerologAdapter) emit(ev *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, args[i+1])
	}
	ev.Msg(msg)
}
