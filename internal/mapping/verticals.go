package mapping

import (
	"fmt"
	"strings"
	"time"

	"github.com/abelzeko/qreview-importer/internal/entities"
)

const (
	defaultObservationSeconds = 20.0
	verticalTypeMidRiver      = "MidRiver"
	flowDirectionNormal       = "Normal"
)

type observationType struct {
	method           entities.PointVelocityObservationType
	percentageDepths []float64
}

// Sampling depths, as a percentage of the vertical depth, by point count
var observationTypes = map[int]observationType{
	1: {entities.OneAtPointSix, []float64{60}},
	2: {entities.OneAtPointTwoAndPointEight, []float64{20, 80}},
	3: {entities.OneAtPointTwoPointSixAndPointEight, []float64{20, 60, 80}},
}

func mapVerticals(summary *entities.MeasurementSummary, zone *time.Location) ([]entities.VerticalObservation, error) {
	if len(summary.Verticals) == 0 {
		return nil, nil
	}

	seconds := defaultObservationSeconds
	if summary.AveragingTime != nil {
		seconds = *summary.AveragingTime
	}

	observations := make([]entities.VerticalObservation, 0, len(summary.Verticals))
	for _, v := range summary.Verticals {
		observation, err := mapVertical(v, zone, seconds)
		if err != nil {
			return nil, err
		}
		observations = append(observations, observation)
	}
	return observations, nil
}

func mapVertical(v *entities.Vertical, zone *time.Location, observationSeconds float64) (entities.VerticalObservation, error) {
	kind, ok := observationTypes[v.Points]
	if !ok {
		return entities.VerticalObservation{}, fmt.Errorf("%w: a point count of %d is not supported", ErrUnsupportedPointCount, v.Points)
	}

	velocity := valueOrZero(v.MeanVelocity)

	observation := entities.VerticalObservation{
		SequenceNumber:  v.Number,
		TaglinePosition: v.Position,
		MeasurementTime: inZone(v.Time, zone),
		VerticalType:    verticalTypeMidRiver,
		EffectiveDepth:  v.Depth,
		FlowDirection:   flowDirectionNormal,
		Comments:        strings.Join(v.Warnings, "\n"),
		Segment: entities.Segment{
			Area:                  valueOrZero(v.Area),
			Discharge:             valueOrZero(v.Discharge),
			Velocity:              velocity,
			TotalDischargePortion: valueOrZero(v.DischargePortion),
		},
		Velocity: entities.VelocityObservation{
			Method:           kind.method,
			MeanVelocity:     velocity,
			DeploymentMethod: deploymentUnspecified,
		},
	}

	if v.Area != nil && v.Depth != 0 {
		observation.Segment.Width = *v.Area / v.Depth
	}

	for _, pct := range kind.percentageDepths {
		interval := observationSeconds
		observation.Velocity.Observations = append(observation.Velocity.Observations, entities.VelocityDepthObservation{
			Depth:               v.Depth * pct / 100,
			ObservationInterval: &interval,
			Velocity:            velocity,
		})
	}

	return observation, nil
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
