// Package main provides the entry point for the cluster monitor dashboard.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mohi-m/postgres-cluster-monitor/internal/client"
	"github.com/mohi-m/postgres-cluster-monitor/internal/config"
	"github.com/mohi-m/postgres-cluster-monitor/internal/metrics"
	"github.com/mohi-m/postgres-cluster-monitor/internal/server"
	"github.com/mohi-m/postgres-cluster-monitor/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	envPath := flag.String("env-file", ".env", "optional env file loaded before the environment is read")
	flag.Parse()

	// .env values never override variables already set in the environment
	envErr := godotenv.Load(*envPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)
	defer logger.Sync()

	if envErr != nil {
		if errors.Is(envErr, fs.ErrNotExist) {
			logger.Debug("no env file found", zap.String("path", *envPath))
		} else {
			logger.Warn("failed to load env file", zap.String("path", *envPath), zap.Error(envErr))
		}
	}

	logger.Info("starting cluster monitor dashboard",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("cluster_base_url", cfg.Cluster.BaseURL),
		zap.Duration("request_timeout", cfg.Cluster.RequestTimeout),
		zap.Int("nodes", len(cfg.Cluster.Nodes)),
	)

	clusterClient, err := client.NewClusterClient(cfg.Cluster, logger)
	if err != nil {
		logger.Fatal("failed to create cluster client", zap.Error(err))
	}

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	dashboard := service.NewDashboardService(clusterClient, m, logger)
	dashboard.Start()

	httpServer := server.NewServer(cfg, dashboard, m, logger)
	httpServer.SetupRoutes()

	var metricsServer *metrics.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, prometheus.DefaultGatherer, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(httpServer.Start)
	if metricsServer != nil {
		g.Go(metricsServer.Start)
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")
		m.SetHealthStatus(false)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown HTTP server", zap.Error(err))
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to shutdown metrics server", zap.Error(err))
			}
		}

		if err := dashboard.Shutdown(shutdownCtx); err != nil {
			logger.Warn("health polls still in flight at shutdown", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	logger.Info("cluster monitor dashboard shutdown complete")
}

// initLogger builds the zap logger described by the logging config.
func initLogger(cfg config.LoggingConfig) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.OutputPaths = []string{"stdout"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := zapCfg.Build()
	if err != nil {
		// Fallback to basic logger
		logger, _ = zap.NewProduction()
	}

	return logger
}
