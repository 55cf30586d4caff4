package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	httpadapter "github.com/Turnstyle/ria-hunter-sub009/internal/adapters/http"
	"github.com/Turnstyle/ria-hunter-sub009/internal/bootstrap"
	"github.com/Turnstyle/ria-hunter-sub009/internal/config"
	"github.com/Turnstyle/ria-hunter-sub009/internal/observability/logging"
	"github.com/Turnstyle/ria-hunter-sub009/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	log := logging.NewJSONLogger("ria-hunter-api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	serverMetrics := metrics.NewHTTPServerMetrics("ria-hunter")
	router := httpadapter.NewRouter(
		app.SearchUC,
		app.AnswerUC,
		app.StreamUC,
		app.QuotaUC,
		app.ReindexUC,
		serverMetrics,
		httpadapter.Options{
			CookieName:     cfg.AnonymousCookieName,
			CookieDays:     cfg.AnonymousCookieDays,
			AdminToken:     cfg.AdminReindexToken,
			AllowedOrigins: strings.Split(cfg.CORSAllowedOrigins, ","),
			PreviewPrefix:  cfg.CORSPreviewPrefix,
			PreviewSuffix:  cfg.CORSPreviewSuffix,
			RateLimitRPS:   int(cfg.APIRateLimitRPS),
			RateLimitBurst: cfg.APIRateLimitBurst,
			MaxInFlight:    cfg.APIMaxInFlight,
		},
		log,
	)

	server := &http.Server{
		Addr:        ":" + cfg.APIPort,
		Handler:     router.Handler(),
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: /ask-stream holds the connection open for as long
		// as generation runs.
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		log.Info("api listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("api server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("api shutdown failed", "error", err)
	}
}
