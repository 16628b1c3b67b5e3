// Package logutil sets up the console logger shared by the commands.
package logutil

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"os"
)

// New returns a sugared logger writing to stderr, debug enables debug level messages.
func New(debug bool) *zap.SugaredLogger {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(config), zapcore.Lock(os.Stderr), level)
	return zap.New(core).Sugar()
}
