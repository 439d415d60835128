// Package logging builds the zap logger used by the qsolog binaries.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"qsolog/config"
)

// New builds a logger writing to console in the configured format and, when
// cfg.Dir is set, JSON lines to a daily rotated file. The returned close
// function flushes the logger and closes the file.
func New(cfg config.LoggingConfig, console io.Writer) (*zap.Logger, func() error, error) {
	return newLogger(cfg, console, time.Now)
}

func newLogger(cfg config.LoggingConfig, console io.Writer, now func() time.Time) (*zap.Logger, func() error, error) {
	level := zapcore.InfoLevel
	if strings.TrimSpace(cfg.Level) != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("logging: level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var cores []zapcore.Core
	if console != nil {
		var enc zapcore.Encoder
		if strings.EqualFold(cfg.Format, "json") {
			enc = zapcore.NewJSONEncoder(encCfg)
		} else {
			consoleCfg := encCfg
			consoleCfg.EncodeLevel = zapcore.CapitalLevelEncoder
			enc = zapcore.NewConsoleEncoder(consoleCfg)
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(console)), level))
	}

	var sink *dailyFileSink
	if strings.TrimSpace(cfg.Dir) != "" {
		var err error
		sink, err = newDailyFileSink(cfg.Dir, cfg.RetentionDays, now)
		if err != nil {
			return nil, nil, err
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), sink, level))
	}

	if len(cores) == 0 {
		return zap.NewNop(), func() error { return nil }, nil
	}
	logger := zap.New(zapcore.NewTee(cores...))
	closer := func() error {
		_ = logger.Sync()
		if sink != nil {
			return sink.Close()
		}
		return nil
	}
	return logger, closer, nil
}
