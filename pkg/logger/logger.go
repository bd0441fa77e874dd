package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger interface {
	Info(msg string, values ...any)
	Warn(msg string, values ...any)
	Error(msg string, values ...any)
	Debug(msg string, values ...any)
	Panic(message string, values ...any)
	Fatal(error error, values ...any)
	Printf(format string, args ...interface{})
}

func init() {
	_, err := NewLogger(buildConfig(os.Getenv("LOG_ENV"), os.Getenv("LOG_LEVEL")))
	if err != nil {
		panic(err)
	}
}

func buildConfig(env, level string) zap.Config {
	var config zap.Config
	if env == "production" || env == "prod" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "time"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
	}
	if lvl, ok := parseLevel(level); ok {
		config.Level = zap.NewAtomicLevelAt(lvl)
	}
	return config
}

func parseLevel(raw string) (zapcore.Level, bool) {
	if raw == "" {
		return zapcore.InfoLevel, false
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(raw))); err != nil {
		return zapcore.InfoLevel, false
	}
	return level, true
}

// Configure rebuilds the global logger once the application config is
// loaded. LOG_LEVEL still wins over debug.
func Configure(appName, env string, debug bool) error {
	config := buildConfig(env, os.Getenv("LOG_LEVEL"))
	if _, ok := parseLevel(os.Getenv("LOG_LEVEL")); !ok && debug {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	config.InitialFields = map[string]any{"app": appName, "env": env}
	_, err := NewLogger(config)
	return err
}

// Named returns a child of the global logger for one component.
func Named(component string, values ...any) *ZapLogger {
	return GetLogger().With(component, values...)
}

func Info(msg string, values ...any) {
	GetLogger().Info(msg, values...)
}

func Warn(msg string, values ...any) {
	GetLogger().Warn(msg, values...)
}

func Error(msg string, values ...any) {
	GetLogger().Error(msg, values...)
}

func Debug(msg string, values ...any) {
	GetLogger().Debug(msg, values...)
}

func Panic(msg string, values ...any) {
	GetLogger().Panic(msg, values...)
}

func Fatal(error error, values ...any) {
	GetLogger().Fatal(error, values...)
}

// Sync flushes buffered entries; call it before the process exits.
func Sync() {
	if zapLogger != nil {
		_ = zapLogger.log.Sync()
	}
}
