package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process-wide zap logger. The level string comes from
// LOG_LEVEL; the atomic level is returned so the config watcher can adjust it
// at runtime without rebuilding the logger.
func NewLogger(level string, development bool) (*zap.Logger, zap.AtomicLevel, error) {
	atomicLevel, err := ParseLevel(level)
	if err != nil {
		return nil, atomicLevel, err
	}

	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.Level = atomicLevel

	logger, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, atomicLevel, fmt.Errorf("build logger: %w", err)
	}
	return logger, atomicLevel, nil
}

// ParseLevel converts a LOG_LEVEL string into a zap atomic level.
func ParseLevel(level string) (zap.AtomicLevel, error) {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return zap.NewAtomicLevel(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return zap.NewAtomicLevelAt(parsed), nil
}
