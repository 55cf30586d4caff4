package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/Turnstyle/ria-hunter-sub009/internal/bootstrap"
	"github.com/Turnstyle/ria-hunter-sub009/internal/config"
	"github.com/Turnstyle/ria-hunter-sub009/internal/observability/logging"
)

func main() {
	csvPath := flag.String("csv", "ria_profiles.csv", "path to the Form ADV profile extract")
	flag.Parse()

	cfg := config.Load()
	log := logging.NewJSONLogger("ria-hunter-seed", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	file, err := os.Open(*csvPath)
	if err != nil {
		log.Error("open extract failed", "path", *csvPath, "error", err)
		os.Exit(1)
	}
	defer file.Close()

	report, err := app.IngestUC.LoadProfiles(ctx, file)
	if err != nil {
		log.Error("profile load failed", "error", err)
		os.Exit(1)
	}
	log.Info("seed finished",
		"path", *csvPath,
		"loaded", report.Loaded,
		"skipped", report.Skipped,
		"enqueued", report.Enqueued,
	)
}
