// Package logutils builds the zap loggers used by the commands.
package logutils

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileOptions are all options supported by the rotating file sink.
type FileOptions struct {
	// Base name for the log file.
	Filename string
	// Size in megabytes.
	MaxSize int
	// Number of rotated log files kept.
	MaxBackups int
	// If true rotated log files will be gzipped.
	Compress bool
}

// ZapSyncerWithRotation creates a zap write syncer with a configured
// rotation.
func ZapSyncerWithRotation(opts FileOptions) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   opts.Filename,
		MaxSize:    opts.MaxSize,
		MaxBackups: opts.MaxBackups,
		Compress:   opts.Compress,
	})
}

// NewLogger builds a console logger at the given level, or a rotated JSON
// file logger when file names a target.
func NewLogger(level string, file *FileOptions) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, errors.WithMessagef(err, "logutils: invalid log level %q", level)
	}
	if file == nil || file.Filename == "" {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(lvl)
		logger, err := cfg.Build()
		if err != nil {
			return nil, errors.WithMessage(err, "logutils: failed to build logger")
		}
		return logger, nil
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		ZapSyncerWithRotation(*file),
		lvl,
	)
	return zap.New(core), nil
}
