// Package zap adapts a zap SugaredLogger to the engine's Logger interface.
//
// Usage:
//
//	base, _ := uberzap.NewProduction()
//	client, _ := opcda.NewClient(connector,
//	    opcda.WithLogger(zap.New(base.Sugar())),
//	)
package zap

import (
	uberzap "go.uber.org/zap"

	"github.com/wends155/opc-cli-sub000/types"
)

// Logger wraps a *zap.SugaredLogger.
type Logger struct {
	sugar *uberzap.SugaredLogger
}

// Compile-time assertion that Logger implements types.Logger.
var _ types.Logger = (*Logger)(nil)

// New creates a Logger over the given sugared logger.
//
// Parameters:
//   - sugar: The zap sugared logger to delegate to
//
// Returns:
//   - *Logger: The adapted logger
func New(sugar *uberzap.SugaredLogger) *Logger {
	return &Logger{sugar: sugar}
}

// Debug logs at debug level with key/value pairs.
func (l *Logger) Debug(msg string, keysAndValues ...any) {
	l.sugar.Debugw(msg, keysAndValues...)
}

// Info logs at info level with key/value pairs.
func (l *Logger) Info(msg string, keysAndValues ...any) {
	l.sugar.Infow(msg, keysAndValues...)
}

// Warn logs at warn level with key/value pairs.
func (l *Logger) Warn(msg string, keysAndValues ...any) {
	l.sugar.Warnw(msg, keysAndValues...)
}

// Error logs at error level with key/value pairs.
func (l *Logger) Error(msg string, keysAndValues ...any) {
	l.sugar.Errorw(msg, keysAndValues...)
}
