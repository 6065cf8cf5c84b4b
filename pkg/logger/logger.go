package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var sugar *zap.SugaredLogger

func init() {
	sugar = build("production")
}

// Init rebuilds the process logger for the given environment. Development
// enables debug output and human-readable encoding.
func Init(environment string) {
	next := build(environment)
	old := sugar
	sugar = next
	_ = old.Sync()
}

func build(environment string) *zap.SugaredLogger {
	var cfg zap.Config
	if environment == "development" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "time"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

func Info(format string, v ...interface{}) {
	sugar.Infof(format, v...)
}

func Error(format string, v ...interface{}) {
	sugar.Errorf(format, v...)
}

func Debug(format string, v ...interface{}) {
	sugar.Debugf(format, v...)
}

func Warn(format string, v ...interface{}) {
	sugar.Warnf(format, v...)
}

// With returns a child logger carrying structured fields, for call sites that
// log several lines about the same entity.
func With(keysAndValues ...interface{}) *zap.SugaredLogger {
	return sugar.Desugar().WithOptions(zap.AddCallerSkip(-1)).Sugar().With(keysAndValues...)
}

// Replace swaps the process logger and returns a func restoring the previous
// one. Tests use it to capture output.
func Replace(l *zap.Logger) func() {
	old := sugar
	sugar = l.WithOptions(zap.AddCallerSkip(1)).Sugar()
	return func() { sugar = old }
}

func Sync() {
	_ = sugar.Sync()
}

// LogTransitionError records a side-effect failure that happened after a
// state transition already committed.
func LogTransitionError(entityType, entityID, action string, err error) {
	sugar.Warnw("post-transition step failed",
		"entity_type", entityType,
		"entity_id", entityID,
		"action", action,
		"error", err,
	)
}
