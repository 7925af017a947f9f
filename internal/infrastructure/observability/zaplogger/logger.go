package zaplogger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/namprobe/NekoViBE-sub001/internal/observability"
)

type logger struct{ l *zap.Logger }

// New builds a JSON logger writing to stdout, and additionally to LOG_FILE
// when that variable is set. LOG_LEVEL picks the minimum level (defaults to
// info). Fixed fields are stamped on every entry.
func New(fixed ...observability.Field) observability.Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.MessageKey = "msg"
	enc.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	enc.EncodeLevel = zapcore.LowercaseLevelEncoder

	level := zapcore.InfoLevel
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		parsed, err := zapcore.ParseLevel(raw)
		if err != nil {
			panic(fmt.Errorf("parse LOG_LEVEL %q: %w", raw, err))
		}
		level = parsed
	}

	sinks := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if path := os.Getenv("LOG_FILE"); path != "" {
		f, err := openLogFile(path)
		if err != nil {
			panic(fmt.Errorf("open log file: %w", err))
		}
		sinks = append(sinks, zapcore.AddSync(f))
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(enc),
		zap.CombineWriteSyncers(sinks...),
		level,
	)
	l := zap.New(core)
	if len(fixed) > 0 {
		l = l.With(toZapFields(fixed)...)
	}
	return &logger{l: l}
}

func (z *logger) With(fields ...observability.Field) observability.Logger {
	if len(fields) == 0 {
		return &logger{l: z.l}
	}
	return &logger{l: z.l.With(toZapFields(fields)...)}
}

func (z *logger) Debug(msg string, fields ...observability.Field) {
	z.l.Debug(msg, toZapFields(fields)...)
}
func (z *logger) Info(msg string, fields ...observability.Field) {
	z.l.Info(msg, toZapFields(fields)...)
}
func (z *logger) Warn(msg string, fields ...observability.Field) {
	z.l.Warn(msg, toZapFields(fields)...)
}
func (z *logger) Error(msg string, fields ...observability.Field) {
	z.l.Error(msg, toZapFields(fields)...)
}

// Sync flushes any buffered log entries. Safe to call on shutdown.
func (z *logger) Sync() error {
	return z.l.Sync()
}

func toZapFields(fs []observability.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fs))
	for _, f := range fs {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

// openLogFile opens path for appending, creating parent directories as
// needed. Appending keeps earlier entries across restarts.
func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}
