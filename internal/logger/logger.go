// internal/logger/logger.go
package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/lasersell/lasersell/internal/config"
	"github.com/lasersell/lasersell/internal/events"
)

// Options select the outputs of New.
type Options struct {
	// Console writes pretty output to stdout. Off while the dashboard owns the terminal.
	Console bool
	// Sink receives LogLine notifications. Nil disables forwarding.
	Sink events.Sink
	// Secrets are scrubbed from every entry before it is written.
	Secrets []string
}

// New builds the application logger: pretty console, rotated JSON file and
// dashboard forwarding, all behind secret redaction.
func New(cfg config.LoggingConfig, opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Debug {
		level = zapcore.DebugLevel
	}

	var cores []zapcore.Core

	if opts.Console {
		cores = append(cores, zapcore.NewCore(PrettyEncoder(), zapcore.Lock(os.Stdout), level))
	}

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderConfig.EncodeDuration = zapcore.StringDurationEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(rotator), level))
	}

	if opts.Sink != nil {
		cores = append(cores, NewForwardCore(opts.Sink, level))
	}

	if len(cores) == 0 {
		return nil, fmt.Errorf("logger has no outputs")
	}

	core := NewRedactingCore(zapcore.NewTee(cores...), opts.Secrets)
	return zap.New(core, zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// Sync flushes the logger, ignoring the errors terminals return for stdout.
func Sync(logger *zap.Logger) error {
	err := logger.Sync()
	if err != nil && !os.IsNotExist(err) &&
		err.Error() != "sync /dev/stdout: invalid argument" &&
		err.Error() != "sync /dev/stderr: inappropriate ioctl for device" {
		return err
	}
	return nil
}
