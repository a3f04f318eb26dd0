// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/aclsync/lib/aclsync"
	"github.com/bureau-foundation/aclsync/lib/clock"
	"github.com/bureau-foundation/aclsync/lib/config"
	"github.com/bureau-foundation/aclsync/lib/metrics"
	"github.com/bureau-foundation/aclsync/lib/process"
	"github.com/bureau-foundation/aclsync/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

func run(args []string) error {
	flagSet := pflag.NewFlagSet("aclsync-node", pflag.ContinueOnError)
	configPath := flagSet.String("config", "", "path to aclsync.yaml (default: $"+config.EnvVar+")")
	logLevel := flagSet.String("log-level", "info", "log level: trace, debug, info, warn, or error")
	showVersion := flagSet.Bool("version", false, "print version information and exit")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Printf("aclsync-node %s\n", version.Info())
		return nil
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	logger, err := process.NewLogger(os.Stderr, *logLevel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	node := aclsync.NewNode(aclsync.NodeConfig{
		ID:         cfg.Node.ID,
		SocketPath: cfg.Node.SocketPath,
		Superusers: cfg.Node.Superusers,
		Groups:     cfg.Node.Groups,
		Peers:      cfg.Cluster.Peers,
		Clock:      clock.Real(),
		Logger:     logger,
	})

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return node.Run(ctx) })
	if cfg.Metrics.Listen != "" {
		group.Go(func() error { return serveMetrics(ctx, cfg.Metrics.Listen, logger) })
	}

	logger.Info("aclsync node running",
		"node", cfg.Node.ID,
		"socket", cfg.Node.SocketPath,
		"environment", cfg.Environment,
		"peers", len(cfg.Cluster.Peers),
		"metrics", cfg.Metrics.Listen,
		"version", version.Info(),
	)

	err = group.Wait()
	logger.Info("aclsync node stopped", "node", cfg.Node.ID)
	return err
}

func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// serveMetrics exposes the aclsync collectors on a dedicated registry
// until ctx is cancelled.
func serveMetrics(ctx context.Context, listen string, logger *slog.Logger) error {
	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", "error", err)
		}
	}()

	logger.Info("serving metrics", "listen", listen)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
