// Package hwlog configures the library-wide logger.
//
// The log level is taken from the SECURITYKEY_LOG_LEVEL environment
// variable (debug, info, warn, error); it defaults to info. Transports
// hex-dump frames at debug level only.
package hwlog

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.SugaredLogger

func init() {
	initLogger()
}

func initLogger() {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	switch getLogLevel() {
	case "debug":
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		config.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	logger, _ := config.Build()
	log = logger.Sugar()
}

func getLogLevel() string {
	level := os.Getenv("SECURITYKEY_LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	return strings.ToLower(level)
}

// Logger returns the shared sugared logger.
func Logger() *zap.SugaredLogger {
	return log
}

// EnableDebug lowers the level to debug at runtime, e.g. when the
// config file asks for frame dumps.
func EnableDebug() {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	logger, _ := config.Build()
	log = logger.Sugar()
}

// Named returns a child logger scoped to a subsystem (e.g. "ccid").
func Named(name string) *zap.SugaredLogger {
	return log.Named(name)
}
