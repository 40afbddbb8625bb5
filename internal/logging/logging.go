// Package logging builds the zap logger used across the CLI. Diagnostics go
// to stderr so command output on stdout stays clean.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects level and encoding.
type Config struct {
	Level   string // debug, info, warn, error
	JSON    bool
	Outputs []string
}

// New returns a console logger at warn level, or debug when verbose.
func New(verbose bool) (*zap.Logger, error) {
	cfg := Config{Level: "warn"}
	if verbose {
		cfg.Level = "debug"
	}
	return Build(cfg)
}

// Build constructs a logger from cfg.
func Build(cfg Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var zc zap.Config
	if cfg.JSON {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zc.EncoderConfig.TimeKey = ""
		zc.DisableCaller = true
	}
	zc.DisableStacktrace = true
	zc.Level = level
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	if len(cfg.Outputs) > 0 {
		zc.OutputPaths = cfg.Outputs
	}
	if !isTerminal(os.Stderr) {
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger.With(zap.String("service", "academy")), nil
}

// Must is New that falls back to a no-op logger.
func Must(verbose bool) *zap.Logger {
	l, err := New(verbose)
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
