package usecases

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"

	"github.com/abelzeko/qreview-importer/internal/entities"
	"github.com/abelzeko/qreview-importer/internal/integration"
	"github.com/abelzeko/qreview-importer/internal/integration/openai"
	"github.com/abelzeko/qreview-importer/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

func tsv(fields ...string) string {
	return strings.Join(fields, "\t")
}

// exportText encodes lines the way QReview writes them: Windows-1252, CRLF.
func exportText(lines ...string) io.Reader {
	encoded, err := charmap.Windows1252.NewEncoder().String(strings.Join(lines, "\r\n") + "\r\n")
	if err != nil {
		panic(err)
	}
	return strings.NewReader(encoded)
}

// validExport is a complete export with two verticals.
func validExport(stationName string) io.Reader {
	return exportText(
		"Discharge Measurement Summary",
		stationName,
		tsv("Station Nr.", "1234", "Measurement Nr", "7"),
		tsv("Date/Time", "2023-06-01 08:00:00 > 09:15:00"),
		tsv("Operator:", "J. Doe", "Instrument", "MF pro", "Serial Nr.", "SN42"),
		tsv("Units", "Metric", "Quality", "Good"),
		tsv("Discharge(m³/s)", "12.3 +/- 0.5", "Mean Temp. (°C)", "11.5"),
		"Time Series",
		tsv("Time", "Vertical", "Points", "Position(m)", "Depth(m)", "Velocity(m/s)", "Area(m²)", "Q(m³/s)", "%Q"),
		tsv("08:05:00", "1", "1", "0.50", "1.20", "0.35", "0.60", "0.21", "1.7"),
		tsv("08:15:00", "2", "2", "1.50", "1.40", "0.45", "0.70", "0.32", "2.6"),
	)
}

type fakeRepo struct {
	saved      []*entities.FieldVisit
	saveErr    error
	locations  []string
	visits     map[string][]entities.VisitSummary
	byKey      map[string]*entities.VisitSummary
	verticals  map[string][]entities.VerticalObservation
	lastImport time.Time
}

var _ repository.VisitRepository = (*fakeRepo)(nil)

func (r *fakeRepo) SaveVisit(visit *entities.FieldVisit) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saved = append(r.saved, visit)
	return nil
}

func (r *fakeRepo) GetLocations() ([]string, error) { return r.locations, nil }

func (r *fakeRepo) GetVisitsByLocation(identifier string, _ int) ([]entities.VisitSummary, error) {
	return r.visits[identifier], nil
}

func (r *fakeRepo) GetVisitByKey(key string) (*entities.VisitSummary, error) {
	if v, ok := r.byKey[key]; ok {
		return v, nil
	}
	return nil, repository.ErrVisitNotFound
}

func (r *fakeRepo) GetVerticals(key string) ([]entities.VerticalObservation, error) {
	return r.verticals[key], nil
}

func (r *fakeRepo) GetLastImportTime() (time.Time, error) { return r.lastImport, nil }

func (r *fakeRepo) Close() error { return nil }

type fakePublisher struct {
	events []integration.ImportEvent
	err    error
}

func (p *fakePublisher) PublishImport(_ context.Context, event integration.ImportEvent) error {
	p.events = append(p.events, event)
	return p.err
}

func (p *fakePublisher) Close() error { return nil }

type fakeOpenAI struct {
	resp     *openai.AgentResponse
	err      error
	stations []string
}

func (f *fakeOpenAI) InterpretUserQuery(_ context.Context, _ string, knownStations []string) (*openai.AgentResponse, error) {
	f.stations = knownStations
	return f.resp, f.err
}

var errBoom = errors.New("boom")
