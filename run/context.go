// Package run holds the per-run ambient state: the seeded random source
// every stochastic component draws from and the run's logger.
package run

import (
	"math/rand"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Context scopes a single training or evaluation run.
type Context struct {
	Seed int64
	RNG  *rand.Rand
	Log  *zap.SugaredLogger

	logger *zap.Logger
}

// New creates a run context. The RNG is seeded with the given seed so every
// consumer (splits, weight init, shuffling, dropout) is reproducible. Log
// output goes to stdout and, if logFile is non-empty, to that file as well.
func New(seed int64, logFile string) (*Context, error) {
	outputs := []string{"stdout"}
	if logFile != "" {
		if dir := filepath.Dir(logFile); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.Wrapf(err, "failed to create log directory for %s", logFile)
			}
		}
		outputs = append(outputs, logFile)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapcore.InfoLevel),
		Encoding:         "console",
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build logger")
	}

	return &Context{
		Seed:   seed,
		RNG:    rand.New(rand.NewSource(seed)),
		Log:    logger.Sugar(),
		logger: logger,
	}, nil
}

// Close flushes buffered log entries
func (c *Context) Close() {
	// Sync on stdout fails on some platforms; the flush still happens.
	_ = c.logger.Sync()
}
