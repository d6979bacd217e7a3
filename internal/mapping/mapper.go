// Package mapping turns a parsed QReview measurement summary into a field
// visit: the visit period, the discharge activity with its manual gauging
// section and verticals, and the readings taken during the visit.
package mapping

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/gosimple/slug"

	"github.com/abelzeko/qreview-importer/internal/config"
	"github.com/abelzeko/qreview-importer/internal/entities"
)

var (
	ErrMissingStationName    = errors.New("missing station name")
	ErrNoTimestamps          = errors.New("can't parse any timestamps")
	ErrNoDischarge           = errors.New("no total discharge amount provided")
	ErrUnsupportedPointCount = errors.New("unsupported point count")
)

// Parameter identifiers of the readings a summary can produce
const (
	ParameterWaterTemp = "WaterTemp"
)

// Mapper maps measurement summaries using the importer configuration
type Mapper struct {
	cfg *config.Config
}

// NewMapper creates a new mapper
func NewMapper(cfg *config.Config) *Mapper {
	return &Mapper{cfg: cfg}
}

// Map builds the field visit recorded by summary at location.
func (m *Mapper) Map(summary *entities.MeasurementSummary, location entities.LocationInfo, sourceName string) (*entities.FieldVisit, error) {
	start, end, err := visitPeriod(summary, location.Zone())
	if err != nil {
		return nil, err
	}

	visit := &entities.FieldVisit{
		Key:        VisitKey(location.Identifier, start),
		Location:   location,
		Start:      start,
		End:        end,
		SourceName: sourceName,
	}

	activity, err := m.dischargeActivity(summary, visit)
	if err != nil {
		return nil, err
	}
	visit.Activity = activity

	visit.Readings = readings(summary, visit)
	visit.Calibrations = calibrations(summary, visit)

	return visit, nil
}

// VisitKey builds the stable key of the visit starting at start.
func VisitKey(locationIdentifier string, start time.Time) string {
	return slug.Make(fmt.Sprintf("%s %s", locationIdentifier, start.UTC().Format("20060102T150405Z")))
}

// visitPeriod spans the summary times and every vertical time.
func visitPeriod(summary *entities.MeasurementSummary, zone *time.Location) (time.Time, time.Time, error) {
	var times []time.Time
	if summary.StartTime != nil {
		times = append(times, inZone(*summary.StartTime, zone))
	}
	if summary.EndTime != nil {
		times = append(times, inZone(*summary.EndTime, zone))
	}
	for _, v := range summary.Verticals {
		times = append(times, inZone(v.Time, zone))
	}

	if len(times) == 0 {
		return time.Time{}, time.Time{}, ErrNoTimestamps
	}

	slices.SortFunc(times, func(a, b time.Time) int { return a.Compare(b) })
	return times[0], times[len(times)-1], nil
}

// inZone reads the wall clock of t as a time in zone.
func inZone(t time.Time, zone *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), zone)
}

func readings(summary *entities.MeasurementSummary, visit *entities.FieldVisit) []entities.Reading {
	if summary.MeanTemp == nil {
		return nil
	}
	return []entities.Reading{{
		Parameter: ParameterWaterTemp,
		UnitID:    CelsiusUnitID,
		Value:     *summary.MeanTemp,
		Time:      visit.Start,
	}}
}

func calibrations(summary *entities.MeasurementSummary, visit *entities.FieldVisit) []entities.Calibration {
	if summary.MeanTemp == nil {
		return nil
	}
	return []entities.Calibration{{
		Parameter: ParameterWaterTemp,
		UnitID:    CelsiusUnitID,
		Value:     *summary.MeanTemp,
		Time:      visit.Start,
	}}
}
