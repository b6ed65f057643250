// Package logging defines the pluggable logging facility boundary the
// engine talks to, and a zap-backed sink that satisfies it.
//
// The engine itself only ever depends on the Logger interface: every
// component that wants to log asks the engine for a scoped logger via
// getLogger(typeTag) and calls one of the level methods below. Swapping the
// sink (e.g. for a test spy, or a different backend) never touches engine
// code.
package logging

import (
	"strings"

	"go.uber.org/zap"
)

// Level is the severity of a single log line. It mirrors the small,
// closed set of levels most task engines expose instead of a stdlib-style
// open string.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// ParseLevel accepts the CLI's --loglevel value, defaulting to info on an
// unrecognized name rather than failing the whole process over a typo.
func ParseLevel(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error", "err":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is the sink contract: a consumer of level, scope, and message plus
// structured key/value fields. "Scope" is the component/type tag the
// message originated from (a task name, "engine", a queue name, ...).
type Logger interface {
	Log(level Level, scope string, msg string, kv ...any)
	Debug(scope, msg string, kv ...any)
	Info(scope, msg string, kv ...any)
	Warn(scope, msg string, kv ...any)
	Error(scope, msg string, kv ...any)
	// WithLevel returns a logger that drops messages below the given level.
	WithLevel(level Level) Logger
}

// zapLogger adapts *zap.SugaredLogger to the Logger contract.
type zapLogger struct {
	sugar *zap.SugaredLogger
	min   Level
}

// New builds a Logger over zap's production/development configs depending
// on mode, matching the split the rest of the stack uses for its own
// service logger.
func New(mode string) (Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &zapLogger{sugar: base.Sugar(), min: LevelDebug}, nil
}

// NewNop returns a Logger that discards everything; tests use it, and
// components constructed without a logger fall back to it.
func NewNop() Logger {
	return &zapLogger{sugar: zap.NewNop().Sugar(), min: LevelDebug}
}

func (l *zapLogger) WithLevel(level Level) Logger {
	return &zapLogger{sugar: l.sugar, min: level}
}

func (l *zapLogger) Log(level Level, scope string, msg string, kv ...any) {
	if level < l.min {
		return
	}
	fields := append([]any{"scope", scope}, kv...)
	switch level {
	case LevelDebug:
		l.sugar.Debugw(msg, fields...)
	case LevelWarn:
		l.sugar.Warnw(msg, fields...)
	case LevelError:
		l.sugar.Errorw(msg, fields...)
	default:
		l.sugar.Infow(msg, fields...)
	}
}

func (l *zapLogger) Debug(scope, msg string, kv ...any) { l.Log(LevelDebug, scope, msg, kv...) }
func (l *zapLogger) Info(scope, msg string, kv ...any)  { l.Log(LevelInfo, scope, msg, kv...) }
func (l *zapLogger) Warn(scope, msg string, kv ...any)  { l.Log(LevelWarn, scope, msg, kv...) }
func (l *zapLogger) Error(scope, msg string, kv ...any) { l.Log(LevelError, scope, msg, kv...) }
