package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/microagenda/platform/internal/appointments"
	appconfig "github.com/microagenda/platform/internal/config"
	"github.com/microagenda/platform/internal/observability/metrics"
	"github.com/microagenda/platform/internal/schedule"
	"github.com/microagenda/platform/internal/worker/reconcile"
	"github.com/microagenda/platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting microagenda reconciler",
		"env", cfg.Env,
		"interval", cfg.ReconcileInterval.String(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create db pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to reach database", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer func() { _ = redisClient.Close() }()

	registry := prometheus.NewRegistry()
	reconcileMetrics := metrics.NewReconcileMetrics(registry)

	reconciler := appointments.NewReconciler(
		appointments.NewRepository(pool),
		schedule.Thresholds{
			ConfirmAfter:           time.Duration(cfg.ConfirmThresholdHours) * time.Hour,
			ArchiveAfterDays:       cfg.ArchiveThresholdDays,
			DefaultServiceDuration: cfg.DefaultServiceDuration,
		},
		logger,
	)

	worker := reconcile.NewWorker(reconciler, redisClient, logger).
		WithInterval(cfg.ReconcileInterval).
		WithLockTTL(cfg.ReconcileLockTTL).
		WithMetrics(reconcileMetrics)

	// Expose sweep metrics and a liveness endpoint on a small side server.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down reconciler...")
	cancel()
	<-done

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	logger.Info("reconciler stopped")
}
