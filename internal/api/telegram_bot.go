// Package api provides handlers for external APIs and interfaces
package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/abelzeko/qreview-importer/internal/usecases"
)

// Telegram bots cannot download larger files
const maxDocumentSize = 20 << 20

const downloadTimeout = time.Minute

// TelegramBot handles interactions with the Telegram API
type TelegramBot struct {
	bot        *tgbotapi.BotAPI
	imports    *usecases.ImportUseCase
	stations   *usecases.StationUseCase
	logger     *slog.Logger
	httpClient *http.Client
	download   func(fileID string) (io.ReadCloser, error)
}

// NewTelegramBot creates a new Telegram bot handler
func NewTelegramBot(botToken string, imports *usecases.ImportUseCase, stations *usecases.StationUseCase, logger *slog.Logger) (*TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	t := &TelegramBot{
		bot:        bot,
		imports:    imports,
		stations:   stations,
		logger:     logger,
		httpClient: &http.Client{Timeout: downloadTimeout},
	}
	t.download = t.downloadFile
	return t, nil
}

// Start begins listening for and handling Telegram messages until ctx is done
func (t *TelegramBot) Start(ctx context.Context) {
	t.logger.Info("Authorized on Telegram", "account", t.bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := t.bot.GetUpdatesChan(u)
	t.logger.Info("Bot is now listening for messages")

	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}

			t.logger.Info("Received message",
				"user", userName(update.Message),
				"text", update.Message.Text,
				"document", update.Message.Document != nil)

			t.handleMessage(ctx, update)
		}
	}
}

func userName(message *tgbotapi.Message) string {
	if message.From == nil {
		return ""
	}
	return message.From.UserName
}

// handleMessage processes a Telegram message update
func (t *TelegramBot) handleMessage(ctx context.Context, update tgbotapi.Update) {
	msg := tgbotapi.NewMessage(update.Message.Chat.ID, "")
	t.respond(ctx, update.Message, &msg)

	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Error("Error sending message", "user", userName(update.Message), "error", err)
	}
}

func (t *TelegramBot) respond(ctx context.Context, message *tgbotapi.Message, msg *tgbotapi.MessageConfig) {
	switch {
	case message.Document != nil:
		t.handleDocument(ctx, message, msg)
	case message.IsCommand():
		t.handleCommand(message, msg)
	default:
		t.handleNonCommand(ctx, message, msg)
	}
}

// handleCommand processes commands like /start, /help, etc.
func (t *TelegramBot) handleCommand(message *tgbotapi.Message, msg *tgbotapi.MessageConfig) {
	t.logger.Debug("Handling command", "command", message.Command(), "user", userName(message))

	switch message.Command() {
	case "start":
		msg.Text = "Welcome to the QReview importer! Send me a QReview export (.tsv) to import it, " +
			"use /stations to see the gauged stations or /help for more information."

	case "help":
		msg.Text = "Available commands:\n" +
			"/start - Start the bot\n" +
			"/stations - Show the stations with imported measurements\n" +
			"/station [id] - Show the latest measurements of a station\n" +
			"/visit [key] - Show one field visit with its verticals\n" +
			"/help - Show this help message\n\n" +
			"Send a QReview export as a file to import it. Put a station identifier in the caption " +
			"to import it for that station instead of the one named in the export."

	case "stations":
		t.handleStationsCommand(msg)

	case "station":
		t.handleStationCommand(strings.TrimSpace(message.CommandArguments()), msg)

	case "visit":
		t.handleVisitCommand(strings.TrimSpace(message.CommandArguments()), msg)

	default:
		t.logger.Info("Received unknown command", "command", message.Command(), "user", userName(message))
		msg.Text = "Unknown command. Use /help to see available commands."
	}
}

// handleStationsCommand processes the /stations command
func (t *TelegramBot) handleStationsCommand(msg *tgbotapi.MessageConfig) {
	stations, err := t.stations.GetStations()
	if err != nil {
		msg.Text = "Error fetching stations. Please try again later."
		t.logger.Error("Error fetching stations", "error", err)
		return
	}

	if len(stations) == 0 {
		msg.Text = "No measurements have been imported yet. Send me a QReview export to get started."
		return
	}

	lastImport, _ := t.stations.GetLastImportTime()

	var sb strings.Builder
	sb.WriteString("Stations:\n\n")
	for _, station := range stations {
		sb.WriteString("• " + station + "\n")
	}
	sb.WriteString("\nUse /station [id] to see the latest measurements.")
	sb.WriteString(fmt.Sprintf("\n\n🕒 Last import: %s", lastImport.Format("2006-01-02 15:04:05")))
	msg.Text = sb.String()
}

// handleStationCommand processes the /station [id] command
func (t *TelegramBot) handleStationCommand(identifier string, msg *tgbotapi.MessageConfig) {
	if identifier == "" {
		msg.Text = "Please specify a station identifier. Example: /station 0123"
		return
	}

	visits, err := t.stations.GetStationVisits(identifier)
	if err != nil {
		msg.Text = "Error fetching visits. Please try again later."
		t.logger.Error("Error fetching visits", "station", identifier, "error", err)
		return
	}

	if len(visits) == 0 {
		msg.Text = fmt.Sprintf("No visits found for station '%s'. Use /stations to see the available stations.", identifier)
		return
	}

	msg.Text = t.stations.FormatStationVisits(identifier, visits)
}

// handleVisitCommand processes the /visit [key] command
func (t *TelegramBot) handleVisitCommand(key string, msg *tgbotapi.MessageConfig) {
	if key == "" {
		msg.Text = "Please specify a visit key. Example: /visit 0123-20230501t080000z"
		return
	}

	visit, verticals, err := t.stations.GetVisit(key)
	if err != nil {
		msg.Text = "Error fetching the visit. Please try again later."
		t.logger.Error("Error fetching visit", "key", key, "error", err)
		return
	}

	if visit == nil {
		msg.Text = fmt.Sprintf("No visit found with key '%s'.", key)
		return
	}

	msg.Text = t.stations.FormatVisit(visit, verticals)
}

// handleDocument imports an uploaded export
func (t *TelegramBot) handleDocument(ctx context.Context, message *tgbotapi.Message, msg *tgbotapi.MessageConfig) {
	doc := message.Document
	if doc.FileSize > maxDocumentSize {
		msg.Text = "This file is too large to download."
		return
	}

	body, err := t.download(doc.FileID)
	if err != nil {
		msg.Text = "Sorry, I couldn't download that file. Please try again."
		t.logger.Error("Error downloading document", "file", doc.FileName, "error", err)
		return
	}
	defer body.Close()

	name := doc.FileName
	if name == "" {
		name = doc.FileID
	}

	var result usecases.ImportResult
	if station := strings.TrimSpace(message.Caption); station != "" {
		result = t.imports.Import(ctx, name, body, t.imports.TargetLocation(station))
	} else {
		result = t.imports.Import(ctx, name, body, nil)
	}

	t.logger.Info("Imported document", "file", name, "user", userName(message), "status", result.Status)
	msg.Text = usecases.FormatImportResult(result)
}

func (t *TelegramBot) downloadFile(fileID string) (io.ReadCloser, error) {
	url, err := t.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file URL: %w", err)
	}
	return t.fetch(url)
}

// fetch downloads url, giving up after the client timeout so a stalled
// transfer cannot block the update loop.
func (t *TelegramBot) fetch(url string) (io.ReadCloser, error) {
	res, err := t.httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch file: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		res.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d %s", res.StatusCode, res.Status)
	}
	return res.Body, nil
}

// handleNonCommand processes regular messages
func (t *TelegramBot) handleNonCommand(ctx context.Context, message *tgbotapi.Message, msg *tgbotapi.MessageConfig) {
	if strings.HasPrefix(message.Text, "/station ") {
		t.handleStationCommand(strings.TrimSpace(strings.TrimPrefix(message.Text, "/station ")), msg)
		return
	}

	reply, err := t.stations.HandleNaturalLanguageQuery(ctx, message.Text)
	if err != nil {
		msg.Text = "I don't understand. Use /help to see available commands."
		t.logger.Error("Error handling query", "error", err)
		return
	}
	msg.Text = reply
}
