// Package logging provides the leveled, named loggers used across the indexing engine.
package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

// Logger is the interface every component in this module accepts at construction time.
// Nothing in the core reaches for the global "log" package or fmt.Println directly.
type Logger interface {
	Named(name string) Logger

	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})

	Sync() error
}

type sugarLogger struct {
	*zap.SugaredLogger
}

func (l *sugarLogger) Named(name string) Logger {
	return &sugarLogger{l.SugaredLogger.Named(name)}
}

// consoleEncoderConfig is the console encoder: colored levels, ISO8601
// timestamps, short caller, no stacktrace on info-level logs.
func consoleEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalColorLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

func newLogger(name string, level zapcore.Level) Logger {
	cfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Encoding:          "console",
		EncoderConfig:     consoleEncoderConfig(),
		DisableStacktrace: true,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}
	zl, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Config as built above cannot fail; fall back to a no-op logger rather than
		// panic on a logging path.
		zl = zap.NewNop()
	}
	return &sugarLogger{zl.Named(name).Sugar()}
}

// NewLogger returns a logger that emits Info+ logs to stdout.
func NewLogger(name string) Logger {
	return newLogger(name, zapcore.InfoLevel)
}

// NewDebugLogger returns a logger that emits Debug+ logs to stdout.
func NewDebugLogger(name string) Logger {
	return newLogger(name, zapcore.DebugLevel)
}

// NewTestLogger returns a logger that writes through the test's own T.Log, so failed
// tests show their build's log output without polluting passing test output.
func NewTestLogger(tb testing.TB) Logger {
	zl := zaptest.NewLogger(tb, zaptest.Level(zapcore.DebugLevel))
	return &sugarLogger{zl.Sugar()}
}
