package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/abelzeko/qreview-importer/internal/api"
	"github.com/abelzeko/qreview-importer/internal/config"
	"github.com/abelzeko/qreview-importer/internal/integration"
	"github.com/abelzeko/qreview-importer/internal/integration/openai"
	"github.com/abelzeko/qreview-importer/internal/repository"
	"github.com/abelzeko/qreview-importer/internal/usecases"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	envPath := flag.String("env", ".env", "path to the dotenv file")
	flag.Parse()

	// Configure logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("Starting QReview Bot...")

	cfg, err := config.Load(*configPath, *envPath)
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	if cfg.TelegramBotToken == "" {
		logger.Error("TELEGRAM_BOT_TOKEN environment variable is not set")
		os.Exit(1)
	}

	// Free text questions are only answered when an OpenAI key is configured
	var openAIService openai.OpenAIService
	if cfg.OpenAIAPIKey != "" {
		openAIService, err = openai.NewOpenAIService(cfg.OpenAIAPIKey)
		if err != nil {
			logger.Error("Failed to initialize OpenAI service", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("OPENAI_API_KEY is not set, free text questions are disabled")
	}

	// Initialize repository
	repo, err := repository.NewSQLiteVisitRepository(cfg.DatabasePath, logger)
	if err != nil {
		logger.Error("Failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	var publisher integration.EventPublisher
	if cfg.NATSURL != "" {
		natsPublisher, err := integration.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject, logger)
		if err != nil {
			logger.Error("Failed to initialize NATS publisher", "error", err)
			os.Exit(1)
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
	}

	importUseCase, err := usecases.NewImportUseCase(cfg, repo, publisher, nil, logger)
	if err != nil {
		logger.Error("Failed to initialize import use case", "error", err)
		os.Exit(1)
	}
	stationUseCase := usecases.NewStationUseCase(repo, openAIService, logger)

	// Initialize Telegram bot
	telegramBot, err := api.NewTelegramBot(cfg.TelegramBotToken, importUseCase, stationUseCase, logger)
	if err != nil {
		logger.Error("Failed to initialize Telegram bot", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start the bot
	telegramBot.Start(ctx)
	logger.Info("QReview Bot stopped")
}
