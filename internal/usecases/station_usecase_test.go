package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelzeko/qreview-importer/internal/entities"
	"github.com/abelzeko/qreview-importer/internal/integration/openai"
)

func testStationRepo() *fakeRepo {
	start := time.Date(2023, 6, 1, 8, 0, 0, 0, time.UTC)
	visit := entities.VisitSummary{
		Key:                "1234-20230601t080000z",
		LocationIdentifier: "1234",
		Start:              start,
		End:                start.Add(75 * time.Minute),
		Discharge:          12.3,
		DischargeUnitID:    "m^3/s",
		Party:              "J. Doe",
		Grade:              "10",
		VerticalCount:      2,
		SourceName:         "sava.tsv",
		ImportedAt:         importedAt,
	}
	position := 0.5

	return &fakeRepo{
		locations: []string{"1234", "5678"},
		visits:    map[string][]entities.VisitSummary{"1234": {visit}},
		byKey:     map[string]*entities.VisitSummary{visit.Key: &visit},
		verticals: map[string][]entities.VerticalObservation{visit.Key: {
			{
				SequenceNumber:  1,
				TaglinePosition: &position,
				EffectiveDepth:  1.2,
				Segment:         entities.Segment{Discharge: 0.21, TotalDischargePortion: 1.7},
				Velocity:        entities.VelocityObservation{MeanVelocity: 0.35},
			},
			{SequenceNumber: 2, EffectiveDepth: 1.4},
		}},
	}
}

func TestGetVisit(t *testing.T) {
	uc := NewStationUseCase(testStationRepo(), nil, discardLogger())

	visit, verticals, err := uc.GetVisit("1234-20230601t080000z")
	require.NoError(t, err)
	require.NotNil(t, visit)
	assert.Len(t, verticals, 2)

	visit, verticals, err = uc.GetVisit("missing")
	require.NoError(t, err)
	assert.Nil(t, visit)
	assert.Nil(t, verticals)
}

func TestFormatStationVisits(t *testing.T) {
	repo := testStationRepo()
	uc := NewStationUseCase(repo, nil, discardLogger())

	text := uc.FormatStationVisits("1234", repo.visits["1234"])
	assert.Equal(t, "Recent visits for station 1234:\n\n"+
		"🕒 2023-06-01 08:00 - 09:15\n"+
		"💧 Discharge: 12.3 m^3/s\n"+
		"🏷️ Grade: 10\n"+
		"📏 Verticals: 2\n"+
		"🔑 /visit 1234-20230601t080000z", text)

	assert.Equal(t, "No visits available for this station.", uc.FormatStationVisits("1234", nil))
}

func TestFormatVisit(t *testing.T) {
	repo := testStationRepo()
	uc := NewStationUseCase(repo, nil, discardLogger())

	visit, verticals, err := uc.GetVisit("1234-20230601t080000z")
	require.NoError(t, err)

	text := uc.FormatVisit(visit, verticals)
	assert.Contains(t, text, "Visit 1234-20230601t080000z")
	assert.Contains(t, text, "👤 Party: J. Doe")
	assert.Contains(t, text, "📄 Source: sava.tsv")
	assert.Contains(t, text, "#1 at 0.5: depth 1.2, velocity 0.35, Q 0.21 (1.7%)")
	assert.Contains(t, text, "#2 at -: depth 1.4, velocity 0, Q 0 (0%)")
}

func TestFormatVisitInstrumentAndGageHeights(t *testing.T) {
	uc := NewStationUseCase(&fakeRepo{}, nil, discardLogger())
	start := time.Date(2023, 6, 1, 8, 0, 0, 0, time.UTC)

	visit := &entities.VisitSummary{
		Key:               "1234-20230601t080000z",
		Start:             start,
		End:               start.Add(time.Hour),
		NumberOfVerticals: ptr(18),
		Meter:             entities.MeterCalibration{Manufacturer: "SonTek", Model: "FlowTracker2", SerialNumber: "FT2-0042"},
		GageHeights:       []entities.GageHeightMeasurement{{Value: 1.3, UnitID: "m", Time: start.Add(15 * time.Minute)}},
	}

	text := uc.FormatVisit(visit, nil)
	assert.Contains(t, text, "🔧 Meter: SonTek FlowTracker2 FT2-0042\n")
	assert.Contains(t, text, "📏 Declared verticals: 18\n")
	assert.Contains(t, text, "📐 Gage height: 1.3 m at 08:15\n")

	visit.VerticalCount = 18
	assert.NotContains(t, uc.FormatVisit(visit, nil), "Declared verticals")
}

func TestHandleNaturalLanguageQuery(t *testing.T) {
	tests := []struct {
		name     string
		resp     *openai.AgentResponse
		err      error
		contains []string
		equals   string
	}{
		{
			name: "station visits",
			resp: &openai.AgentResponse{CommandName: openai.CommandGetStationVisits, StationIdentifier: "1234", UserMessage: "Here you go"},
			contains: []string{
				"Here you go\n\nRecent visits for station 1234:",
				"💧 Discharge: 12.3 m^3/s",
			},
		},
		{
			name:     "station without visits",
			resp:     &openai.AgentResponse{CommandName: openai.CommandGetStationVisits, StationIdentifier: "5678"},
			contains: []string{"couldn't find any visits for station '5678'"},
		},
		{
			name:   "station not identified",
			resp:   &openai.AgentResponse{CommandName: openai.CommandGetStationVisits, UserMessage: "Which station?"},
			equals: "Which station?",
		},
		{
			name:     "visit details",
			resp:     &openai.AgentResponse{CommandName: openai.CommandGetVisitDetails, VisitKey: "1234-20230601t080000z"},
			contains: []string{"Visit 1234-20230601t080000z", "Verticals:"},
		},
		{
			name:     "unknown visit",
			resp:     &openai.AgentResponse{CommandName: openai.CommandGetVisitDetails, VisitKey: "nope", UserMessage: "Looking"},
			contains: []string{"Looking\n\nHowever, I couldn't find visit 'nope'."},
		},
		{
			name:   "general query",
			resp:   &openai.AgentResponse{CommandName: openai.CommandGeneralQuery, UserMessage: "Hello!"},
			equals: "Hello!",
		},
		{
			name:   "unexpected command",
			resp:   &openai.AgentResponse{CommandName: "Dance"},
			equals: "I'm not sure how to respond to that. You can use /help for commands.",
		},
		{
			name:   "service failure",
			err:    errBoom,
			equals: "Sorry, I'm having trouble understanding right now. Please try again later or use /help.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ai := &fakeOpenAI{resp: tt.resp, err: tt.err}
			uc := NewStationUseCase(testStationRepo(), ai, discardLogger())

			reply, err := uc.HandleNaturalLanguageQuery(context.Background(), "what's up at 1234?")
			require.NoError(t, err)

			assert.Equal(t, []string{"1234", "5678"}, ai.stations)
			if tt.equals != "" {
				assert.Equal(t, tt.equals, reply)
			}
			for _, s := range tt.contains {
				assert.Contains(t, reply, s)
			}
		})
	}
}

func TestHandleNaturalLanguageQueryWithoutService(t *testing.T) {
	uc := NewStationUseCase(testStationRepo(), nil, discardLogger())

	reply, err := uc.HandleNaturalLanguageQuery(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "I don't understand. Use /help to see available commands.", reply)
}
