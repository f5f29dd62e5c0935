package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the device logger. format is "json" or "console"; level is a
// zap level name ("debug", "info", ...).
func New(level, format string) (*zap.Logger, error) {
	return NewTo(os.Stdout, level, format)
}

// NewTo is New writing to w instead of stdout.
func NewTo(w io.Writer, level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")
	cfg.LevelKey = "level"
	cfg.MessageKey = "message"
	cfg.CallerKey = "caller"
	cfg.StacktraceKey = "stacktrace"

	var enc zapcore.Encoder
	switch format {
	case "", "json":
		enc = zapcore.NewJSONEncoder(cfg)
	case "console":
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(cfg)
	default:
		return nil, &formatError{format}
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(w), zap.NewAtomicLevelAt(lvl))
	return zap.New(core, zap.AddCaller()), nil
}

type formatError struct{ f string }

func (e *formatError) Error() string { return "log: unknown format " + e.f }

// Redacted returns a field describing a secret without logging its value.
func Redacted(key, secret string) zap.Field {
	return zap.Int(key+"_len", len(secret))
}
