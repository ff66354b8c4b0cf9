package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.Logger

func init() {
	InitLogger(false)
}

func InitLogger(debug bool) {
	enccoderConfig := zap.NewProductionEncoderConfig()
	enccoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	enccoderConfig.StacktraceKey = "" // to hide stacktrace info
	consoleEncoder := zapcore.NewJSONEncoder(enccoderConfig)
	writer := zapcore.AddSync(os.Stdout)
	defaultLogLevel := zapcore.InfoLevel
	if debug {
		defaultLogLevel = zapcore.DebugLevel
	}
	core := zapcore.NewTee(zapcore.NewCore(consoleEncoder, writer, defaultLogLevel))
	log = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))
}

func Info(message string, fields ...zap.Field) {
	log.Info(message, fields...)
}

func Debug(message string, fields ...zap.Field) {
	log.Debug(message, fields...)
}

func Warn(message string, fields ...zap.Field) {
	log.Warn(message, fields...)
}

func Error(message string, fields ...zap.Field) {
	log.Error(message, fields...)
}
