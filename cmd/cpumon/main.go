// Package main is the entry point for cpumon, a live per-core CPU usage
// monitor. It loads the layered configuration, sets up logging through the
// log queue, and runs the worker pipeline until a signal, a hung worker or a
// fatal error stops it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Guliveer/vitalis/cpumon/internal/collector"
	"github.com/Guliveer/vitalis/cpumon/internal/config"
	"github.com/Guliveer/vitalis/cpumon/internal/logqueue"
	"github.com/Guliveer/vitalis/cpumon/internal/models"
	"github.com/Guliveer/vitalis/cpumon/internal/pipeline"
	"github.com/Guliveer/vitalis/cpumon/internal/render"
	"github.com/Guliveer/vitalis/cpumon/internal/status"
	"github.com/Guliveer/vitalis/cpumon/internal/watchdog"
)

var (
	// version is set at build time via -ldflags.
	version = "dev"

	configPath  = flag.String("config", "", "Path to configuration file (default: search standard locations)")
	logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error")
	source      = flag.String("source", "", "Counter source: auto, procstat, gopsutil")
	statusAddr  = flag.String("status", "", "Serve the status API on this address")
	noWatchdog  = flag.Bool("no-watchdog", false, "Disable the liveness watchdog")
	showVersion = flag.Bool("version", false, "Show version and exit")
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	if *showVersion {
		fmt.Printf("cpumon %s\n", version)
		return 0
	}

	cli := config.CLIOverrides{
		LogLevel:   *logLevel,
		Source:     *source,
		Status:     *statusAddr,
		NoWatchdog: *noWatchdog,
	}
	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadLayered(cli, embeddedConfig, *configPath)
	} else {
		cfg, err = config.LoadLayered(cli, embeddedConfig)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	ctx := context.Background()
	queue := logqueue.New(cfg.Logging.QueueSlots, cfg.Logging.InlineBytes)
	loggers := initLoggers(ctx, cfg, queue)
	defer loggers.main.Sync()

	prep, err := prepare(ctx, cfg, loggers.console)
	if err != nil {
		loggers.console.Error("No usable counter source", zap.Error(err))
		return 1
	}

	store := render.NewStore()
	terminal := render.NewTerminal(os.Stdout, os.Stdin, cfg.Render.Columns, cfg.Render.Terminal)
	defer terminal.Close()

	// With the watchdog enabled, signals are observed only by its scan loop.
	var wd *watchdog.Watchdog
	runCtx := ctx
	if cfg.Watchdog.Enabled {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		wd = watchdog.New(watchdog.Options{
			Interval:   cfg.Watchdog.Interval.Duration,
			Threshold:  cfg.Watchdog.Threshold.Duration,
			MaxThreads: cfg.Watchdog.MaxThreads,
			Signals:    sigCh,
			Logger:     loggers.watchdog,
		})
	} else {
		var stop context.CancelFunc
		runCtx, stop = signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
	}

	p := pipeline.New(pipeline.Options{
		Config:        cfg,
		Source:        prep.source,
		MaxEntries:    prep.maxEntries,
		Sinks:         []render.Sink{terminal, store},
		Queue:         queue,
		Watchdog:      wd,
		Logger:        loggers.main,
		ConsoleLogger: loggers.console,
	})

	if cfg.Status.Enabled {
		opts := status.Options{
			Version: version,
			Host:    prep.host,
			Frames:  store,
			Stats:   p.Stats,
		}
		if wd != nil {
			opts.Threads = wd
		}
		srv := status.NewServer(opts)
		go func() {
			if err := srv.Start(cfg.Status.Listen); err != nil {
				loggers.console.Error("Status API stopped", zap.Error(err))
			}
		}()
		defer srv.Shutdown()
		loggers.console.Info("Status API listening", zap.String("address", cfg.Status.Listen))
	}

	err = p.Run(runCtx)

	// Leave the alternate screen before reporting how the run ended.
	terminal.Close()
	return exitCode(loggers.console, err)
}

// startup is what run needs before the pipeline starts.
type startup struct {
	host       models.HostInfo
	source     collector.Source
	maxEntries int
}

// prepare logs the banner and picks the counter source. The log queue is not
// open until the pipeline runs, so everything here goes to logger, which must
// not write through the queue.
func prepare(ctx context.Context, cfg *config.Config, logger *zap.Logger) (startup, error) {
	host, err := collector.CollectHost(ctx)
	if err != nil {
		logger.Warn("Failed to collect host info", zap.Error(err))
	}
	logger.Info("Starting cpumon",
		zap.String("version", version),
		zap.String("hostname", host.Hostname),
		zap.String("platform", host.Platform),
		zap.String("kernel", host.KernelVersion),
		zap.Uint64("uptime_seconds", host.UptimeSeconds))

	registry := collector.NewRegistry(logger)
	registry.Register(collector.NewProcStatSource(cfg.Sampling.ProcStatPath))
	registry.Register(collector.NewCPUTimesSource())
	src, err := registry.Select(cfg.Sampling.Source)
	if err != nil {
		return startup{host: host}, err
	}

	maxEntries := cfg.Sampling.MaxEntries
	if maxEntries == 0 {
		maxEntries = collector.HostEntries(ctx)
	}
	return startup{host: host, source: src, maxEntries: maxEntries}, nil
}

// exitCode reports how the pipeline stopped and maps it to the process exit
// status: 0 for a requested stop, 1 for a hung worker or a fatal error.
func exitCode(logger *zap.Logger, err error) int {
	var (
		sigErr     *watchdog.SignalError
		timeoutErr *watchdog.TimeoutError
	)
	switch {
	case err == nil:
		logger.Info("Monitor stopped")
		return 0
	case errors.As(err, &sigErr):
		logger.Info("Monitor stopped", zap.String("signal", sigErr.Signal.String()))
		return 0
	case errors.As(err, &timeoutErr):
		logger.Error("Worker hung, monitor stopped",
			zap.String("thread", timeoutErr.Thread),
			zap.Duration("silence", timeoutErr.Silence))
		return 1
	default:
		logger.Error("Monitor failed", zap.Error(err))
		return 1
	}
}
