package main

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Guliveer/vitalis/cpumon/internal/config"
	"github.com/Guliveer/vitalis/cpumon/internal/logqueue"
)

type loggers struct {
	// main writes to the console and, through the log queue, to the log
	// file. It waits for room in the queue.
	main *zap.Logger

	// watchdog is like main but drops entries the queue cannot take at once.
	watchdog *zap.Logger

	// console never touches the queue. The queue consumer and everything
	// logged after the pipeline stopped use it.
	console *zap.Logger
}

// initLoggers creates the zap loggers based on the configuration. Every
// logger outputs human-readable text to stderr, leaving stdout to the usage
// view; main and watchdog also feed the log file.
func initLoggers(ctx context.Context, cfg *config.Config, q *logqueue.Queue) loggers {
	var level zapcore.Level
	switch cfg.Logging.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.Lock(os.Stderr),
		level,
	)

	fileEncoder := func() zapcore.Encoder {
		if cfg.Logging.Format == "json" {
			return zapcore.NewJSONEncoder(encoderConfig)
		}
		return zapcore.NewConsoleEncoder(encoderConfig)
	}
	fileCore := func(mode logqueue.Admission) zapcore.Core {
		return zapcore.NewCore(fileEncoder(), q.Writer(ctx, mode), level)
	}

	return loggers{
		main:     zap.New(zapcore.NewTee(consoleCore, fileCore(logqueue.Blocking))),
		watchdog: zap.New(zapcore.NewTee(consoleCore, fileCore(logqueue.BestEffort))).Named("watchdog"),
		console:  zap.New(consoleCore),
	}
}
