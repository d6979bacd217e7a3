// Package usecases contains the application's business logic
package usecases

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/abelzeko/qreview-importer/internal/config"
	"github.com/abelzeko/qreview-importer/internal/entities"
	"github.com/abelzeko/qreview-importer/internal/integration"
	"github.com/abelzeko/qreview-importer/internal/mapping"
	"github.com/abelzeko/qreview-importer/internal/metrics"
	"github.com/abelzeko/qreview-importer/internal/qreview"
	"github.com/abelzeko/qreview-importer/internal/repository"
)

// ImportStatus is the outcome of importing one file
type ImportStatus string

const (
	// CannotParse means the file is not a QReview export
	CannotParse ImportStatus = "CannotParse"
	// ParsedButInvalid means the file is a QReview export whose data could not be imported
	ParsedButInvalid ImportStatus = "ParsedButInvalid"
	// ParsedAndValid means the visit was stored
	ParsedAndValid ImportStatus = "ParsedAndValid"
)

// ImportResult describes what happened to one file
type ImportResult struct {
	Status  ImportStatus
	Message string
	Visit   *entities.FieldVisit
}

// ImportUseCase parses, maps and stores QReview exports
type ImportUseCase struct {
	parser    *qreview.Parser
	mapper    *mapping.Mapper
	repo      repository.VisitRepository
	publisher integration.EventPublisher
	metrics   *metrics.ImportMetrics
	logger    *slog.Logger
	offset    time.Duration
	now       func() time.Time
}

// NewImportUseCase creates a new import use case. publisher and importMetrics may be nil.
func NewImportUseCase(cfg *config.Config, repo repository.VisitRepository, publisher integration.EventPublisher, importMetrics *metrics.ImportMetrics, logger *slog.Logger) (*ImportUseCase, error) {
	offset, err := cfg.Offset()
	if err != nil {
		return nil, err
	}

	return &ImportUseCase{
		parser: qreview.NewParser(qreview.Options{
			DateTimeFormats: cfg.DateTimeFormats,
			TimeFormats:     cfg.TimeFormats,
		}),
		mapper:    mapping.NewMapper(cfg),
		repo:      repo,
		publisher: publisher,
		metrics:   importMetrics,
		logger:    logger,
		offset:    offset,
		now:       time.Now,
	}, nil
}

// TargetLocation returns the location with the given identifier in the configured UTC offset
func (uc *ImportUseCase) TargetLocation(identifier string) *entities.LocationInfo {
	return &entities.LocationInfo{Identifier: identifier, UTCOffset: uc.offset}
}

// Import reads one export from r. When location is nil it is derived from
// the station name recorded in the export.
func (uc *ImportUseCase) Import(ctx context.Context, name string, r io.Reader, location *entities.LocationInfo) ImportResult {
	started := time.Now()
	result := uc.importExport(ctx, name, r, location)

	verticals := 0
	if result.Status == ParsedAndValid {
		verticals = verticalCount(result.Visit)
	}
	uc.metrics.RecordImport(string(result.Status), verticals, time.Since(started))
	uc.publish(ctx, name, result)

	return result
}

// ImportFile imports one inbox file and returns its archive folder
func (uc *ImportUseCase) ImportFile(ctx context.Context, name string, r io.Reader) string {
	return string(uc.Import(ctx, name, r, nil).Status)
}

// SweepInbox imports every export waiting in inbox
func (uc *ImportUseCase) SweepInbox(ctx context.Context, inbox *integration.Inbox) error {
	uc.logger.Info("Starting inbox sweep")

	counts, err := inbox.Sweep(ctx, uc.ImportFile)
	if err != nil {
		return fmt.Errorf("failed to sweep inbox: %w", err)
	}

	uc.logger.Info("Inbox sweep finished",
		"valid", counts[string(ParsedAndValid)],
		"invalid", counts[string(ParsedButInvalid)],
		"not_recognized", counts[string(CannotParse)])
	return nil
}

func (uc *ImportUseCase) importExport(ctx context.Context, name string, r io.Reader, location *entities.LocationInfo) ImportResult {
	summary, err := uc.parser.Parse(r)
	if err != nil {
		uc.logger.Error("Failed to parse export", "source", name, "error", err)
		return ImportResult{Status: CannotParse, Message: err.Error()}
	}
	if summary == nil {
		uc.logger.Info("Not a QReview export", "source", name)
		return ImportResult{Status: CannotParse, Message: "not a QReview export"}
	}

	if err := ctx.Err(); err != nil {
		return invalid(name, err, uc.logger)
	}

	if location == nil {
		if summary.StationName == "" {
			return invalid(name, mapping.ErrMissingStationName, uc.logger)
		}
		loc, err := uc.mapper.Location(summary)
		if err != nil {
			return invalid(name, err, uc.logger)
		}
		location = &loc
	}

	visit, err := uc.mapper.Map(summary, *location, name)
	if err != nil {
		return invalid(name, err, uc.logger)
	}
	visit.ImportedAt = uc.now()

	if err := uc.repo.SaveVisit(visit); err != nil {
		return invalid(name, fmt.Errorf("failed to save visit: %w", err), uc.logger)
	}

	uc.logger.Info("Successfully parsed one visit",
		"source", name,
		"location", location.Identifier,
		"start", visit.Start.Format(time.RFC3339),
		"end", visit.End.Format(time.RFC3339),
		"verticals", verticalCount(visit))

	return ImportResult{Status: ParsedAndValid, Visit: visit}
}

func invalid(name string, err error, logger *slog.Logger) ImportResult {
	message := err.Error()
	if errors.Is(err, mapping.ErrMissingStationName) {
		message = "Missing station name"
	}

	logger.Warn("Export data is invalid", "source", name, "error", err)
	return ImportResult{Status: ParsedButInvalid, Message: message}
}

func (uc *ImportUseCase) publish(ctx context.Context, name string, result ImportResult) {
	if uc.publisher == nil {
		return
	}

	event := integration.ImportEvent{
		Source:     name,
		Status:     string(result.Status),
		Message:    result.Message,
		ImportedAt: uc.now(),
	}
	if v := result.Visit; v != nil {
		start, end := v.Start, v.End
		event.VisitKey = v.Key
		event.Location = v.Location.Identifier
		event.Start, event.End = &start, &end
		event.ImportedAt = v.ImportedAt
		event.Verticals = verticalCount(v)
		if v.Activity != nil {
			discharge := v.Activity.Discharge
			event.Discharge = &discharge
			event.Unit = v.Activity.DischargeUnitID
		}
	}

	if err := uc.publisher.PublishImport(ctx, event); err != nil {
		uc.logger.Warn("Failed to publish import event", "source", name, "error", err)
	}
}

func verticalCount(visit *entities.FieldVisit) int {
	if visit == nil || visit.Activity == nil || visit.Activity.Section == nil {
		return 0
	}
	return len(visit.Activity.Section.Verticals)
}

// FormatImportResult formats an import outcome for display
func FormatImportResult(result ImportResult) string {
	switch result.Status {
	case CannotParse:
		return "This file is not a QReview export."
	case ParsedButInvalid:
		return fmt.Sprintf("This QReview export could not be imported: %s", result.Message)
	}

	v := result.Visit
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Imported visit %s\n\n", v.Key))
	sb.WriteString(fmt.Sprintf("📍 Station: %s\n", v.Location.Identifier))
	sb.WriteString(fmt.Sprintf("🕒 %s - %s\n", v.Start.Format("2006-01-02 15:04"), v.End.Format("15:04")))
	if a := v.Activity; a != nil {
		sb.WriteString(fmt.Sprintf("💧 Discharge: %s %s\n", formatNumber(a.Discharge), a.DischargeUnitID))
		if a.QuantitativeUncertainty != nil {
			sb.WriteString(fmt.Sprintf("± Uncertainty: %s %%\n", formatNumber(*a.QuantitativeUncertainty)))
		}
		if a.Party != "" {
			sb.WriteString(fmt.Sprintf("👤 Party: %s\n", a.Party))
		}
	}
	sb.WriteString(fmt.Sprintf("📏 Verticals: %d", verticalCount(v)))
	for _, r := range v.Readings {
		sb.WriteString(fmt.Sprintf("\n🌡️ %s: %s %s", r.Parameter, formatNumber(r.Value), r.UnitID))
	}
	return sb.String()
}
