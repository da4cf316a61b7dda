package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exam-allocation/internal/allocation"
	"exam-allocation/internal/config"
	applog "exam-allocation/internal/logger"
	"exam-allocation/internal/metrics"
	"exam-allocation/internal/progress"
	"exam-allocation/internal/store"
	"exam-allocation/internal/strategy"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := applog.New(cfg.Log.Level, cfg.Log.Format, "exam-allocation-api")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, closeStore := store.Open(ctx, cfg, logger)
	defer closeStore()

	var (
		tracker     progress.Tracker
		redisClient *redis.Client
	)
	if cfg.Redis.Enabled {
		redisClient = progress.NewRedisClient(&cfg.Redis)
		tracker = progress.NewRedisTracker(redisClient, cfg.Allocation.ProgressTTL, logger)
		logger.Info("progress stored in redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		tracker = progress.NewMemoryTracker(cfg.Allocation.ProgressTTL)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	registry := strategy.NewRegistry(backend, logger)
	engine := allocation.NewEngine(backend, registry,
		allocation.WithLogger(logger),
		allocation.WithProgress(progress.Multi{tracker, progress.NewLogReporter(logger)}),
		allocation.WithMetrics(metrics.NewPrometheus(reg, "")),
		allocation.WithRosterLimit(cfg.Allocation.RosterLimit),
		allocation.WithCourseLabels(cfg.Allocation.CourseLabels...),
		allocation.WithAutoEnrollLimit(cfg.Allocation.AutoEnrollLimit),
	)

	// Seed the built-in strategies up front so the first request does not.
	if _, err := registry.GetActive(ctx); err != nil {
		logger.Warn("failed to load active strategy", zap.Error(err))
	}

	handler := newHandler(engine, registry, tracker, cfg.Allocation.AutoEnroll, reg, logger)
	srv := NewServer(cfg.HTTP.Addr, handler, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", zap.Error(err))
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}
