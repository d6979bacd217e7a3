package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/abelzeko/qreview-importer/internal/entities"
	"github.com/abelzeko/qreview-importer/internal/integration/openai"
	"github.com/abelzeko/qreview-importer/internal/repository"
)

// Number of visits listed per station
const recentVisitsLimit = 5

// StationUseCase answers questions about imported visits
type StationUseCase struct {
	repo          repository.VisitRepository
	openAIService openai.OpenAIService
	logger        *slog.Logger
}

// NewStationUseCase creates a new station use case. openAIService may be nil.
func NewStationUseCase(repo repository.VisitRepository, openAIService openai.OpenAIService, logger *slog.Logger) *StationUseCase {
	return &StationUseCase{
		repo:          repo,
		openAIService: openAIService,
		logger:        logger,
	}
}

// GetStations returns the identifiers of all stations with imported visits
func (uc *StationUseCase) GetStations() ([]string, error) {
	uc.logger.Debug("Retrieving list of stations")
	return uc.repo.GetLocations()
}

// GetStationVisits returns the most recent visits of a station
func (uc *StationUseCase) GetStationVisits(identifier string) ([]entities.VisitSummary, error) {
	uc.logger.Debug("Retrieving visits", "station", identifier)
	return uc.repo.GetVisitsByLocation(identifier, recentVisitsLimit)
}

// GetVisit returns a visit and its verticals. The visit is nil when no visit has the key.
func (uc *StationUseCase) GetVisit(key string) (*entities.VisitSummary, []entities.VerticalObservation, error) {
	visit, err := uc.repo.GetVisitByKey(key)
	if errors.Is(err, repository.ErrVisitNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	verticals, err := uc.repo.GetVerticals(key)
	if err != nil {
		return nil, nil, err
	}
	return visit, verticals, nil
}

// GetLastImportTime returns when the last visit was imported
func (uc *StationUseCase) GetLastImportTime() (time.Time, error) {
	return uc.repo.GetLastImportTime()
}

// HandleNaturalLanguageQuery interprets a user's free-text query using the AI service
// and returns an appropriate response string.
func (uc *StationUseCase) HandleNaturalLanguageQuery(ctx context.Context, query string) (string, error) {
	if uc.openAIService == nil {
		return "I don't understand. Use /help to see available commands.", nil
	}

	uc.logger.Info("Interpreting natural language query", "query", query)

	stations, err := uc.GetStations()
	if err != nil {
		uc.logger.Error("Error fetching stations", "error", err)
		return "Sorry, I couldn't fetch the list of stations right now.", nil
	}

	agentResp, err := uc.openAIService.InterpretUserQuery(ctx, query, stations)
	if err != nil {
		uc.logger.Error("Error interpreting user query via OpenAI", "error", err)
		return "Sorry, I'm having trouble understanding right now. Please try again later or use /help.", nil
	}

	uc.logger.Info("Agent response",
		"command", agentResp.CommandName,
		"station", agentResp.StationIdentifier,
		"visit", agentResp.VisitKey)

	switch agentResp.CommandName {
	case openai.CommandGetStationVisits:
		if agentResp.StationIdentifier == "" {
			return agentResp.UserMessage, nil
		}
		visits, err := uc.GetStationVisits(agentResp.StationIdentifier)
		if err != nil {
			uc.logger.Error("Error fetching visits after agent interpretation", "error", err)
			return "Sorry, I couldn't fetch the visits for that station right now.", nil
		}
		if len(visits) == 0 {
			return withPreamble(agentResp.UserMessage,
				fmt.Sprintf("However, I couldn't find any visits for station '%s'. Use /stations to see available ones.", agentResp.StationIdentifier)), nil
		}
		return withPreamble(agentResp.UserMessage, uc.FormatStationVisits(agentResp.StationIdentifier, visits)), nil

	case openai.CommandGetVisitDetails:
		if agentResp.VisitKey == "" {
			return agentResp.UserMessage, nil
		}
		visit, verticals, err := uc.GetVisit(agentResp.VisitKey)
		if err != nil {
			uc.logger.Error("Error fetching visit after agent interpretation", "error", err)
			return "Sorry, I couldn't fetch that visit right now.", nil
		}
		if visit == nil {
			return withPreamble(agentResp.UserMessage,
				fmt.Sprintf("However, I couldn't find visit '%s'.", agentResp.VisitKey)), nil
		}
		return withPreamble(agentResp.UserMessage, uc.FormatVisit(visit, verticals)), nil

	case openai.CommandGeneralQuery:
		return agentResp.UserMessage, nil

	default:
		uc.logger.Warn("Agent returned unexpected command", "command", agentResp.CommandName)
		return "I'm not sure how to respond to that. You can use /help for commands.", nil
	}
}

func withPreamble(preamble, body string) string {
	if preamble == "" {
		return body
	}
	return preamble + "\n\n" + body
}

// FormatStationVisits formats the recent visits of a station for display
func (uc *StationUseCase) FormatStationVisits(identifier string, visits []entities.VisitSummary) string {
	if len(visits) == 0 {
		return "No visits available for this station."
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Recent visits for station %s:\n\n", identifier))

	for _, v := range visits {
		result.WriteString(fmt.Sprintf("🕒 %s - %s\n", v.Start.Format("2006-01-02 15:04"), v.End.Format("15:04")))
		result.WriteString(fmt.Sprintf("💧 Discharge: %s %s\n", formatNumber(v.Discharge), v.DischargeUnitID))
		if v.Grade != "" {
			result.WriteString(fmt.Sprintf("🏷️ Grade: %s\n", v.Grade))
		}
		result.WriteString(fmt.Sprintf("📏 Verticals: %d\n", v.VerticalCount))
		result.WriteString(fmt.Sprintf("🔑 /visit %s", v.Key))
		result.WriteString("\n\n")
	}

	return strings.TrimRight(result.String(), "\n")
}

// FormatVisit formats one visit and its verticals for display
func (uc *StationUseCase) FormatVisit(visit *entities.VisitSummary, verticals []entities.VerticalObservation) string {
	var result strings.Builder
	result.WriteString(fmt.Sprintf("Visit %s\n\n", visit.Key))
	result.WriteString(fmt.Sprintf("📍 Station: %s\n", visit.LocationIdentifier))
	result.WriteString(fmt.Sprintf("🕒 %s - %s\n", visit.Start.Format("2006-01-02 15:04"), visit.End.Format("2006-01-02 15:04")))
	result.WriteString(fmt.Sprintf("💧 Discharge: %s %s\n", formatNumber(visit.Discharge), visit.DischargeUnitID))
	if visit.Party != "" {
		result.WriteString(fmt.Sprintf("👤 Party: %s\n", visit.Party))
	}
	if visit.Grade != "" {
		result.WriteString(fmt.Sprintf("🏷️ Grade: %s\n", visit.Grade))
	}
	if m := visit.Meter; m.Model != "" || m.SerialNumber != "" {
		result.WriteString(fmt.Sprintf("🔧 Meter: %s\n", strings.Join(nonEmpty(m.Manufacturer, m.Model, m.SerialNumber), " ")))
	}
	if visit.NumberOfVerticals != nil && visit.VerticalCount == 0 {
		result.WriteString(fmt.Sprintf("📏 Declared verticals: %d\n", *visit.NumberOfVerticals))
	}
	for _, h := range visit.GageHeights {
		result.WriteString(fmt.Sprintf("📐 Gage height: %s %s at %s\n", formatNumber(h.Value), h.UnitID, h.Time.Format("15:04")))
	}
	result.WriteString(fmt.Sprintf("📄 Source: %s, imported %s", visit.SourceName, visit.ImportedAt.Format("2006-01-02 15:04:05 MST")))

	if len(verticals) > 0 {
		result.WriteString("\n\nVerticals:")
		for _, v := range verticals {
			position := "-"
			if v.TaglinePosition != nil {
				position = formatNumber(*v.TaglinePosition)
			}
			result.WriteString(fmt.Sprintf("\n#%d at %s: depth %s, velocity %s, Q %s (%s%%)",
				v.SequenceNumber,
				position,
				formatNumber(v.EffectiveDepth),
				formatNumber(v.Velocity.MeanVelocity),
				formatNumber(v.Segment.Discharge),
				formatNumber(v.Segment.TotalDischargePortion)))
		}
	}

	return result.String()
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func nonEmpty(values ...string) []string {
	var result []string
	for _, v := range values {
		if v != "" {
			result = append(result, v)
		}
	}
	return result
}
