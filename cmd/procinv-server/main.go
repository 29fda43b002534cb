// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/procinv/lib/config"
	"github.com/bureau-foundation/procinv/lib/process"
	"github.com/bureau-foundation/procinv/lib/service"
	"github.com/bureau-foundation/procinv/lib/version"
)

const binaryName = "procinv-server"

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

// options holds the command-line overrides of the loaded config.
type options struct {
	configPath     string
	listenAddress  string
	metricsAddress string
	showVersion    bool
}

func parseFlags(args []string) (*options, *pflag.FlagSet, error) {
	var opts options
	flagSet := pflag.NewFlagSet(binaryName, pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "path to YAML config file (default: $"+config.EnvConfig+")")
	flagSet.StringVar(&opts.listenAddress, "listen", "", "loopback host:port to accept inventory connections on")
	flagSet.StringVar(&opts.metricsAddress, "metrics-address", "", "loopback host:port of the Prometheus endpoint (empty: disabled)")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(args); err != nil {
		return nil, flagSet, err
	}
	if flagSet.NArg() > 0 {
		return nil, flagSet, fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}
	return &opts, flagSet, nil
}

// loadConfig resolves the configuration: file and environment first,
// then explicitly set flags.
func loadConfig(opts *options, flagSet *pflag.FlagSet) (*config.Config, error) {
	path := opts.configPath
	if path == "" {
		path = os.Getenv(config.EnvConfig)
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if flagSet.Changed("listen") {
		cfg.Server.ListenAddress = opts.listenAddress
	}
	if flagSet.Changed("metrics-address") {
		cfg.Server.MetricsAddress = opts.metricsAddress
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig, level slog.Level, output io.Writer) *slog.Logger {
	handlerOptions := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(output, handlerOptions))
	}
	return slog.New(slog.NewTextHandler(output, handlerOptions))
}

func run(args []string) error {
	opts, flagSet, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return &process.ExitError{Code: 2, Err: err}
	}
	if opts.showVersion {
		version.Print(binaryName)
		return nil
	}

	cfg, err := loadConfig(opts, flagSet)
	if err != nil {
		return err
	}
	// Validate has already checked the level.
	level, _ := cfg.SlogLevel()
	logger := newLogger(cfg.Log, level, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logger, nil)
}

// serve runs the inventory server, and the metrics endpoint when one
// is configured, until ctx is cancelled or either of them fails.
// ready, if non-nil, receives the bound inventory address.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, ready chan<- string) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	server, err := service.NewServer(service.Config{
		ServerDescription: version.Description(cfg.Server.Description, binaryName),
		IdleEvictionDelay: cfg.Server.IdleEvictionDelay,
		Logger:            logger,
		Registerer:        registry,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	group, groupContext := errgroup.WithContext(ctx)

	instance, err := server.Listen(groupContext, cfg.Server.ListenAddress)
	if err != nil {
		return err
	}
	defer instance.Close()

	logger.Info("starting "+binaryName,
		"version", version.Info(),
		"environment", cfg.Environment,
		"address", instance.Addr().String(),
		"idle_eviction_delay", cfg.Server.IdleEvictionDelay,
	)
	if ready != nil {
		ready <- instance.Addr().String()
	}

	group.Go(instance.Wait)

	if cfg.Server.MetricsAddress != "" {
		metrics := service.NewMetricsServer(cfg.Server.MetricsAddress, registry, logger)
		group.Go(func() error {
			return metrics.Serve(groupContext)
		})
	}

	err = group.Wait()
	instance.Close()
	if err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
