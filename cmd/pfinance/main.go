package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"pfinance/internal/backend"
	"pfinance/internal/cache"
	"pfinance/internal/cli"
	"pfinance/internal/events"
	apphttp "pfinance/internal/http"
	"pfinance/internal/log"
	"pfinance/internal/services"
)

const (
	shutdownTimeout      = 30 * time.Second
	cacheCleanupInterval = time.Minute
)

func main() {
	cli.LoadEnvFile(nil)

	cfg, err := cli.LoadConfig()
	if err != nil {
		bootLogger := cli.SetupLogger("info")
		bootLogger.Error("Invalid configuration", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg.LogLevel)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err.Error())
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err.Error(), "backend", cfg.DataBackend)
		os.Exit(1)
	}

	charts := services.NewChartService(res.Backend, cfg.ChartConfig(), cfg.ChartCacheSize, cfg.ChartCacheTTL, logger)

	cacheManager := cache.NewManager(logger)
	cacheManager.Register(charts)
	cacheManager.StartCleanup(cacheCleanupInterval)

	var opts []services.TransactionServiceOption
	if res.Accounts != nil {
		opts = append(opts, services.WithAccountWriter(res.Accounts))
	}

	var eventsClient *events.Client
	if cfg.AMQPURL != "" {
		eventsClient, err = events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, uuid.NewString(), logger)
		if err != nil {
			logger.Warn("AMQP unavailable, running without cross-instance invalidation", log.FieldError, err.Error())
		} else {
			opts = append(opts, services.WithPublisher(eventsClient, eventsClient.InstanceID()))
		}
	}

	ledger := services.NewTransactionService(res.Backend, charts, logger, opts...)

	var ready func(ctx context.Context) error
	if p, ok := res.Backend.(backend.Pinger); ok {
		ready = p.Ping
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Charts:             charts,
		Ledger:             ledger,
		Taxonomy:           res.Backend,
		Ready:              ready,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	})

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
		cacheManager.Stop()
		if eventsClient != nil {
			if err := eventsClient.Close(); err != nil {
				logger.Warn("Failed to close AMQP client", log.FieldError, err.Error())
			}
		}
		if err := res.Close(); err != nil {
			logger.Warn("Failed to close backend", log.FieldError, err.Error())
		}
	})

	if eventsClient != nil {
		eventsClient.OnSubscribe(charts.Invalidate)
		go func() {
			if err := eventsClient.ConsumeInvalidations(ctx, charts.HandleInvalidation); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Invalidation consumer stopped", log.FieldError, err.Error())
			}
		}()
	}

	logger.Info("Starting pfinance server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		log.FieldOperation, log.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
