package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/aaronlmathis/mesos-stats/internal/api"
	"github.com/aaronlmathis/mesos-stats/internal/carbon"
	"github.com/aaronlmathis/mesos-stats/internal/collector"
	"github.com/aaronlmathis/mesos-stats/internal/config"
	"github.com/aaronlmathis/mesos-stats/internal/fetch"
	"github.com/aaronlmathis/mesos-stats/internal/logging"
	"github.com/aaronlmathis/mesos-stats/internal/mapper"
	"github.com/aaronlmathis/mesos-stats/internal/mesos"
	"github.com/aaronlmathis/mesos-stats/internal/singularity"
	"github.com/aaronlmathis/mesos-stats/internal/timeseries"
	"github.com/aaronlmathis/mesos-stats/internal/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath, logLevel string
	var dryRun, showVersion bool
	var period time.Duration

	flagSet := pflag.NewFlagSet("mesos-stats", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	flagSet.BoolVar(&dryRun, "dry-run", false, "collect and map but do not send to carbon")
	flagSet.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flagSet.DurationVar(&period, "period", 0, "collection period (default 60s)")
	flagSet.BoolVar(&showVersion, "version", false, "print version and exit")
	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: mesos-stats [flags] [period-seconds]\n\n")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		fmt.Println(version.Get().String())
		return nil
	}

	// Load configuration
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if args := flagSet.Args(); len(args) > 0 {
		secs, err := strconv.Atoi(args[0])
		if err != nil || secs <= 0 {
			return fmt.Errorf("period must be a positive number of seconds, got %q", args[0])
		}
		cfg.Collector.Period = time.Duration(secs) * time.Second
	}
	if flagSet.Changed("period") {
		cfg.Collector.Period = period
	}
	if flagSet.Changed("dry-run") {
		cfg.Carbon.DryRun = dryRun
	}
	if flagSet.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Initialize logger
	logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	info := version.Get()
	logger.Info("Starting mesos-stats",
		zap.String("version", info.Version),
		zap.String("gitCommit", info.GitCommit),
		zap.String("buildDate", info.BuildDate),
		zap.String("goVersion", info.GoVersion),
		zap.Any("config", cfg.Summary()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loop, queue, err := buildCollector(logger, cfg)
	if err != nil {
		return err
	}

	startedAt := time.Now()
	var admin *api.Server
	if cfg.Admin.Addr != "" {
		admin = api.NewServer(logger.Named("admin"), cfg.Admin.Addr, api.Options{
			Ready: func() error { return loop.Healthy(startedAt) },
			Status: func() api.Status {
				last, outcome := loop.LastCycle()
				return api.Status{LastCycle: last, LastOutcome: outcome, Queue: queue.GetHealthSnapshot()}
			},
		})
		if err := admin.Start(); err != nil {
			return fmt.Errorf("failed to start admin server: %w", err)
		}
	}

	if err := loop.Start(ctx); err != nil {
		return fmt.Errorf("failed to start collection loop: %w", err)
	}

	<-ctx.Done()
	logger.Info("Shutting down")
	loop.Stop()

	if admin != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := admin.Stop(shutdownCtx); err != nil {
			logger.Error("Admin server forced to shutdown", zap.Error(err))
		}
	}

	logger.Info("Bye")
	return nil
}

// buildCollector wires the upstream clients, mapper, queue and carbon sender
// into a collection loop
func buildCollector(logger *zap.Logger, cfg *config.Config) (*collector.Collector, *timeseries.MemQueue, error) {
	fetcher := fetch.New(logger.Named("fetch"), cfg.Fetch)

	newCluster := func(ctx context.Context) (collector.ClusterSource, error) {
		client, err := mesos.NewClient(ctx, logger.Named("mesos"), fetcher, cfg.Mesos)
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	var scheduler collector.SchedulerSource
	if cfg.Singularity.Host != "" {
		client, err := singularity.NewClient(logger.Named("singularity"), fetcher, cfg.Singularity)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create singularity client: %w", err)
		}
		scheduler = client
	}

	queue := timeseries.NewMemQueue(cfg.Queue)
	sender := carbon.NewSender(logger.Named("carbon"), cfg.Carbon)

	return collector.New(
		logger.Named("collector"),
		cfg.Collector,
		newCluster,
		scheduler,
		mapper.New(logger.Named("mapper"), cfg.Mapper),
		queue,
		sender,
	), queue, nil
}
