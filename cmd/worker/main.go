package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Turnstyle/ria-hunter-sub009/internal/bootstrap"
	"github.com/Turnstyle/ria-hunter-sub009/internal/config"
	"github.com/Turnstyle/ria-hunter-sub009/internal/core/domain"
	"github.com/Turnstyle/ria-hunter-sub009/internal/observability/logging"
	"github.com/Turnstyle/ria-hunter-sub009/internal/observability/metrics"
)

const reindexTimeout = 2 * time.Minute

func main() {
	cfg := config.Load()
	log := logging.NewJSONLogger("ria-hunter-worker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("ria-hunter-worker")
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("worker metrics server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	log.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeReindex(ctx, func(handlerCtx context.Context, job domain.ReindexJob) error {
		jobCtx, cancel := context.WithTimeout(handlerCtx, reindexTimeout)
		defer cancel()

		workerMetrics.StartReindex()
		start := time.Now()
		err := app.ReindexUC.ProcessCRD(jobCtx, job.CRD)
		workerMetrics.FinishReindex("ria-hunter-worker", time.Since(start), err)
		return err
	})
	if err != nil {
		log.Error("worker subscribe failed", "error", err)
		os.Exit(1)
	}
}
