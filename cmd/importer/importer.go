package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/abelzeko/qreview-importer/internal/config"
	"github.com/abelzeko/qreview-importer/internal/integration"
	"github.com/abelzeko/qreview-importer/internal/metrics"
	"github.com/abelzeko/qreview-importer/internal/repository"
	"github.com/abelzeko/qreview-importer/internal/usecases"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	envPath := flag.String("env", ".env", "path to the dotenv file")
	once := flag.Bool("once", false, "sweep the inbox once and exit")
	flag.Parse()

	// Configure logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("Starting QReview Importer...")

	if err := run(*configPath, *envPath, *once, logger); err != nil {
		logger.Error("Importer failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, envPath string, once bool, logger *slog.Logger) error {
	cfg, err := config.Load(configPath, envPath)
	if err != nil {
		return err
	}

	// Initialize repository
	repo, err := repository.NewSQLiteVisitRepository(cfg.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	registry := metrics.NewRegistry()
	importMetrics, err := metrics.NewImportMetrics(registry)
	if err != nil {
		return err
	}

	var publisher integration.EventPublisher
	if cfg.NATSURL != "" {
		natsPublisher, err := integration.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject, logger)
		if err != nil {
			return err
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
	}

	useCase, err := usecases.NewImportUseCase(cfg, repo, publisher, importMetrics, logger)
	if err != nil {
		return err
	}
	inbox := integration.NewInbox(cfg.InboxDir, cfg.ArchiveDir, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Run a sweep immediately on startup
	if err := useCase.SweepInbox(ctx, inbox); err != nil {
		logger.Error("Initial inbox sweep failed", "error", err)
	}
	if once {
		return nil
	}

	server := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Serving metrics", "addr", cfg.MetricsAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "error", err)
		}
	}()

	c := cron.New()
	_, err = c.AddFunc(cfg.Schedule, func() {
		if err := useCase.SweepInbox(ctx, inbox); err != nil {
			logger.Error("Scheduled inbox sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	logger.Info("Inbox sweep has been scheduled", "schedule", cfg.Schedule, "inbox", cfg.InboxDir)
	c.Start()

	<-ctx.Done()
	logger.Info("Shutting down")

	// Wait for a running sweep before closing the repository
	<-c.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
