// Package log is the structured logger shared by the receive loop and the
// CLI. Every entry carries the session identity.
package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/justapithecus/camrelay/types"
)

// Level selects the minimum level written.
type Level = zapcore.Level

// Levels accepted by NewLogger.
const (
	DebugLevel = zapcore.DebugLevel
	InfoLevel  = zapcore.InfoLevel
	WarnLevel  = zapcore.WarnLevel
	ErrorLevel = zapcore.ErrorLevel
)

// Logger writes JSON lines tagged with the session identity. Call
// fields go under a nested "fields" object so they never collide with
// the session keys.
type Logger struct {
	zap   *zap.Logger
	meta  *types.SessionMeta
	level Level
}

// NewLogger writes to os.Stderr; stdout may carry image bytes.
func NewLogger(meta *types.SessionMeta, level Level) *Logger {
	return newLoggerWithWriter(meta, os.Stderr, level)
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *Logger {
	return &Logger{zap: zap.NewNop(), meta: &types.SessionMeta{}}
}

// ParseLevel accepts debug, info, warn and error.
func ParseLevel(s string) (Level, error) {
	return zapcore.ParseLevel(s)
}

// WithOutput returns a copy of l that writes to w.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	return newLoggerWithWriter(l.meta, w, l.level)
}

func newLoggerWithWriter(meta *types.SessionMeta, w io.Writer, level Level) *Logger {
	enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	})

	session := []zap.Field{zap.String("session_id", meta.SessionID)}
	for _, kv := range [...]struct{ key, val string }{
		{"source", meta.Source},
		{"input", meta.Input},
	} {
		if kv.val != "" {
			session = append(session, zap.String(kv.key, kv.val))
		}
	}

	z := zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), level)).With(session...)
	return &Logger{zap: z, meta: meta, level: level}
}

func (l *Logger) write(lvl Level, msg string, fields map[string]any) {
	if ce := l.zap.Check(lvl, msg); ce != nil {
		ce.Write(zap.Any("fields", fields))
	}
}

// Debug logs a debug message with optional fields.
func (l *Logger) Debug(msg string, fields map[string]any) { l.write(DebugLevel, msg, fields) }

// Info logs an info message with optional fields.
func (l *Logger) Info(msg string, fields map[string]any) { l.write(InfoLevel, msg, fields) }

// Warn logs a warning message with optional fields.
func (l *Logger) Warn(msg string, fields map[string]any) { l.write(WarnLevel, msg, fields) }

// Error logs an error message with optional fields.
func (l *Logger) Error(msg string, fields map[string]any) { l.write(ErrorLevel, msg, fields) }

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}
