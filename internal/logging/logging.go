// Package logging provides the structured logger every component in this
// module accepts as an explicit dependency. There is no package-level
// default logger: callers that want one construct it and pass it down,
// matching the no-global-mutable-state rule the engine follows for session
// state (see the engine package).
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the interface every component depends on. It is satisfied by
// *zap.SugaredLogger, which is what New and Nop return; tests can supply
// any other implementation (e.g. an observer built with zap/zaptest).
type Logger interface {
	Debugw(msg string, kv ...any)
	Infow(msg string, kv ...any)
	Warnw(msg string, kv ...any)
	Errorw(msg string, kv ...any)
	With(kv ...any) *zap.SugaredLogger
}

// Config controls the constructed logger's verbosity and destination.
type Config struct {
	Debug bool
	// Output receives encoded log lines. Defaults to os.Stderr when nil,
	// consistent with a debugger proxy never writing diagnostics to the
	// stdout stream the wire protocol or adapter JSON occupies.
	Output zapcore.WriteSyncer
}

// New builds a *zap.SugaredLogger writing console-encoded lines to the
// configured output. Levels below Info are discarded unless Config.Debug
// is set.
func New(cfg Config) *zap.SugaredLogger {
	level := zapcore.InfoLevel
	if cfg.Debug {
		level = zapcore.DebugLevel
	}
	out := cfg.Output
	if out == nil {
		out = zapcore.AddSync(os.Stderr)
	}
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), out, level)
	return zap.New(core).Sugar()
}

// Nop returns a logger that discards everything, for callers (tests,
// library embedders) that don't want diagnostics.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
