package logger

import (
	"context"
	"os"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

type ServiceEnv struct {
	Platform string
	Service  string
	Env      string
}

type LogConfig struct {
	Path       string
	LogLevel   string
	ServiceEnv ServiceEnv
}

var log *otelzap.Logger

func Init(conf *LogConfig) {
	level := zapcore.InfoLevel
	if err := level.Set(conf.LogLevel); err != nil {
		level = zapcore.InfoLevel
	}

	fileWriter := zapcore.AddSync(&lumberjack.Logger{
		Filename:   conf.Path,
		MaxSize:    100, // MB
		MaxBackups: 10,
		MaxAge:     7, // days
		Compress:   true,
	})

	encoderConf := zap.NewProductionEncoderConfig()
	encoderConf.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderConf)

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, fileWriter, level),
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level),
	)

	zapLogger := zap.New(core,
		zap.AddCaller(),
		zap.AddCallerSkip(2),
		zap.Fields(
			zap.String("platform", conf.ServiceEnv.Platform),
			zap.String("service", conf.ServiceEnv.Service),
			zap.String("env", conf.ServiceEnv.Env),
		))

	log = otelzap.New(zapLogger,
		otelzap.WithMinLevel(level),
		otelzap.WithCaller(true))
}

func Close() {
	if log != nil {
		_ = log.Sync()
	}
}

func ins() *otelzap.Logger {
	if log == nil {
		// tests and tools run without Init
		log = otelzap.New(zap.NewNop())
	}
	return log
}

func Debugf(ctx context.Context, format string, args ...any) {
	ins().Sugar().Ctx(ctx).Debugf(format, args...)
}

func Infof(ctx context.Context, format string, args ...any) {
	ins().Sugar().Ctx(ctx).Infof(format, args...)
}

func Warnf(ctx context.Context, format string, args ...any) {
	ins().Sugar().Ctx(ctx).Warnf(format, args...)
}

func Errorf(ctx context.Context, format string, args ...any) {
	ins().Sugar().Ctx(ctx).Errorf(format, args...)
}

func Fatalf(ctx context.Context, format string, args ...any) {
	ins().Sugar().Ctx(ctx).Fatalf(format, args...)
}
