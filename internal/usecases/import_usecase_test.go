package usecases

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelzeko/qreview-importer/internal/config"
	"github.com/abelzeko/qreview-importer/internal/entities"
	"github.com/abelzeko/qreview-importer/internal/integration"
	"github.com/abelzeko/qreview-importer/internal/metrics"
)

var importedAt = time.Date(2023, 6, 2, 12, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.DateTimeFormats = []string{"2006-01-02 15:04:05"}
	cfg.TimeFormats = []string{"15:04:05"}
	cfg.UTCOffset = "+01:00"
	return cfg
}

func newTestImportUseCase(t *testing.T, repo *fakeRepo, publisher integration.EventPublisher) (*ImportUseCase, *prometheus.Registry) {
	t.Helper()
	registry := prometheus.NewRegistry()
	m, err := metrics.NewImportMetrics(registry)
	require.NoError(t, err)

	uc, err := NewImportUseCase(testConfig(), repo, publisher, m, discardLogger())
	require.NoError(t, err)
	uc.now = func() time.Time { return importedAt }
	return uc, registry
}

// importMetricsText renders the expected import counters in exposition format.
func importMetricsText(status string, verticals int) string {
	return fmt.Sprintf(`
# HELP qreview_imports_total Total number of QReview exports processed, by outcome
# TYPE qreview_imports_total counter
qreview_imports_total{status="%s"} 1
# HELP qreview_verticals_imported_total Total number of verticals stored from valid exports
# TYPE qreview_verticals_imported_total counter
qreview_verticals_imported_total %d
`, status, verticals)
}

func TestImportValidExport(t *testing.T) {
	repo := &fakeRepo{}
	publisher := &fakePublisher{}
	uc, registry := newTestImportUseCase(t, repo, publisher)

	result := uc.Import(context.Background(), "sava.tsv", validExport("1234_Sava at Zagreb"), nil)

	require.Equal(t, ParsedAndValid, result.Status, result.Message)
	require.Len(t, repo.saved, 1)

	visit := repo.saved[0]
	assert.Same(t, visit, result.Visit)
	assert.Equal(t, "1234", visit.Location.Identifier)
	assert.Equal(t, time.Hour, visit.Location.UTCOffset)
	assert.Equal(t, "sava.tsv", visit.SourceName)
	assert.Equal(t, importedAt, visit.ImportedAt)
	assert.Equal(t, 12.3, visit.Activity.Discharge)
	assert.Len(t, visit.Activity.Section.Verticals, 2)
	assert.Len(t, visit.Readings, 1)

	require.Len(t, publisher.events, 1)
	event := publisher.events[0]
	assert.Equal(t, "ParsedAndValid", event.Status)
	assert.Equal(t, visit.Key, event.VisitKey)
	assert.Equal(t, "1234", event.Location)
	assert.Equal(t, 2, event.Verticals)
	assert.Equal(t, "m^3/s", event.Unit)

	assert.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(importMetricsText("ParsedAndValid", 2)),
		"qreview_imports_total", "qreview_verticals_imported_total"))
}

func TestNewImportUseCaseRejectsBadOffset(t *testing.T) {
	cfg := testConfig()
	cfg.UTCOffset = "CET"

	uc, err := NewImportUseCase(cfg, &fakeRepo{}, nil, nil, discardLogger())
	assert.ErrorContains(t, err, "invalid utc_offset")
	assert.Nil(t, uc)
}

func TestImportWithTargetLocation(t *testing.T) {
	repo := &fakeRepo{}
	uc, _ := newTestImportUseCase(t, repo, nil)

	target := &entities.LocationInfo{Identifier: "TARGET"}
	result := uc.Import(context.Background(), "x.tsv", validExport(""), target)

	require.Equal(t, ParsedAndValid, result.Status, result.Message)
	assert.Equal(t, "TARGET", repo.saved[0].Location.Identifier)
}

func TestImportOutcomes(t *testing.T) {
	tests := []struct {
		name        string
		input       io.Reader
		saveErr     error
		wantStatus  ImportStatus
		wantMessage string
	}{
		{
			name:       "not a QReview export",
			input:      exportText("hello", tsv("a", "b")),
			wantStatus: CannotParse,
		},
		{
			name: "malformed export",
			input: exportText(
				"Discharge Measurement Summary",
				tsv("Date/Time", "yesterday > 09:00:00"),
			),
			wantStatus:  CannotParse,
			wantMessage: "line 2: 'yesterday' is not a valid datetime.",
		},
		{
			name:        "missing station name",
			input:       validExport(""),
			wantStatus:  ParsedButInvalid,
			wantMessage: "Missing station name",
		},
		{
			name: "no discharge",
			input: exportText(
				"Discharge Measurement Summary",
				"1234_Sava",
				tsv("Station Nr.", "1234", "Measurement Nr", "7"),
				tsv("Date/Time", "2023-06-01 08:00:00 > 09:15:00"),
				tsv("Operator:", "J. Doe", "Units", "Metric"),
				"Notes",
				"Nothing to add",
			),
			wantStatus:  ParsedButInvalid,
			wantMessage: "no total discharge amount provided",
		},
		{
			name:        "storage failure",
			input:       validExport("1234_Sava"),
			saveErr:     errBoom,
			wantStatus:  ParsedButInvalid,
			wantMessage: "failed to save visit: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRepo{saveErr: tt.saveErr}
			publisher := &fakePublisher{}
			uc, registry := newTestImportUseCase(t, repo, publisher)

			result := uc.Import(context.Background(), "in.tsv", tt.input, nil)

			assert.Equal(t, tt.wantStatus, result.Status)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, result.Message)
			}
			assert.Nil(t, result.Visit)
			assert.Empty(t, repo.saved)

			require.Len(t, publisher.events, 1)
			assert.Equal(t, string(tt.wantStatus), publisher.events[0].Status)
			assert.Empty(t, publisher.events[0].VisitKey)
			assert.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(importMetricsText(string(tt.wantStatus), 0)),
				"qreview_imports_total", "qreview_verticals_imported_total"))
		})
	}
}

func TestImportPublishFailureIsNotFatal(t *testing.T) {
	repo := &fakeRepo{}
	uc, _ := newTestImportUseCase(t, repo, &fakePublisher{err: errBoom})

	result := uc.Import(context.Background(), "sava.tsv", validExport("1234_Sava"), nil)
	assert.Equal(t, ParsedAndValid, result.Status)
}

func TestSweepInbox(t *testing.T) {
	root := t.TempDir()
	inboxDir := filepath.Join(root, "inbox")
	archiveDir := filepath.Join(root, "archive")
	require.NoError(t, os.MkdirAll(inboxDir, 0755))

	data, err := io.ReadAll(validExport("1234_Sava"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(inboxDir, "a.tsv"), data, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(inboxDir, "b.txt"), []byte("not an export\r\n"), 0644))

	repo := &fakeRepo{}
	uc, _ := newTestImportUseCase(t, repo, nil)

	require.NoError(t, uc.SweepInbox(context.Background(), integration.NewInbox(inboxDir, archiveDir, discardLogger())))

	assert.Len(t, repo.saved, 1)
	assert.FileExists(t, filepath.Join(archiveDir, "ParsedAndValid", "a.tsv"))
	assert.FileExists(t, filepath.Join(archiveDir, "CannotParse", "b.txt"))
}

func TestFormatImportResult(t *testing.T) {
	assert.Equal(t, "This file is not a QReview export.", FormatImportResult(ImportResult{Status: CannotParse}))
	assert.Equal(t, "This QReview export could not be imported: Missing station name",
		FormatImportResult(ImportResult{Status: ParsedButInvalid, Message: "Missing station name"}))

	repo := &fakeRepo{}
	uc, _ := newTestImportUseCase(t, repo, nil)
	result := uc.Import(context.Background(), "sava.tsv", validExport("1234_Sava"), nil)
	require.Equal(t, ParsedAndValid, result.Status)

	text := FormatImportResult(result)
	assert.Contains(t, text, "Imported visit "+result.Visit.Key)
	assert.Contains(t, text, "📍 Station: 1234")
	assert.Contains(t, text, "💧 Discharge: 12.3 m^3/s")
	assert.Contains(t, text, "👤 Party: J. Doe")
	assert.Contains(t, text, "📏 Verticals: 2")
	assert.Contains(t, text, "🌡️ WaterTemp: 11.5 degC")
}
