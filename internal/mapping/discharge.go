package mapping

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/abelzeko/qreview-importer/internal/entities"
)

const (
	meterManufacturer         = "OTT"
	meterTypeADCP             = "Adcp"
	deploymentUnspecified     = "Unspecified"
	dischargeMethodMidSection = "MID"
	startEdgeRight            = "RIGHT"
)

func (m *Mapper) dischargeActivity(summary *entities.MeasurementSummary, visit *entities.FieldVisit) (*entities.DischargeActivity, error) {
	if summary.Discharge == nil {
		return nil, ErrNoDischarge
	}

	units := UnitsFor(summary)

	activity := &entities.DischargeActivity{
		Start:                   visit.Start,
		End:                     visit.End,
		Discharge:               *summary.Discharge,
		DischargeUnitID:         units.DischargeUnitID,
		Comments:                summary.Notes,
		Party:                   summary.Operator,
		QuantitativeUncertainty: summary.UncertaintyPercentage,
		ActiveUncertaintyType:   entities.UncertaintyNone,
	}
	if !m.cfg.IgnoreMeasurementID {
		activity.MeasurementID = summary.MeasurementNumber
	}
	if activity.QuantitativeUncertainty != nil {
		activity.ActiveUncertaintyType = entities.UncertaintyQuantitative
	}

	activity.QualityAssuranceComments = qualityAssuranceComments(summary, units)
	activity.Grade = m.grade(summary.Quality)

	if summary.GageStart != nil {
		activity.GageHeights = append(activity.GageHeights, entities.GageHeightMeasurement{
			Value: *summary.GageStart, UnitID: units.DistanceUnitID, Time: visit.Start,
		})
	}
	if summary.GageEnd != nil {
		activity.GageHeights = append(activity.GageHeights, entities.GageHeightMeasurement{
			Value: *summary.GageEnd, UnitID: units.DistanceUnitID, Time: visit.End,
		})
	}

	section, err := dischargeSection(summary, activity, units)
	if err != nil {
		return nil, err
	}
	activity.Section = section

	return activity, nil
}

func qualityAssuranceComments(summary *entities.MeasurementSummary, units entities.UnitSystem) string {
	var comments []string
	for _, v := range summary.Verticals {
		for _, issue := range v.QualityIssues {
			comments = append(comments, fmt.Sprintf("Vertical %d at %s %s: %s", v.Number, formatPosition(v.Position), units.DistanceUnitID, issue))
		}
	}
	return strings.Join(comments, "\n")
}

func formatPosition(position *float64) string {
	if position == nil {
		return ""
	}
	return strconv.FormatFloat(*position, 'f', -1, 64)
}

// grade is only assigned when a grade table is configured. Unknown quality
// texts are used as they are.
func (m *Mapper) grade(quality string) *entities.Grade {
	if quality == "" || len(m.cfg.Grades) == 0 {
		return nil
	}

	text, ok := m.cfg.Grade(quality)
	if !ok {
		text = quality
	}

	if code, err := strconv.Atoi(strings.TrimSpace(text)); err == nil {
		return &entities.Grade{Code: &code}
	}
	return &entities.Grade{DisplayName: text}
}

func dischargeSection(summary *entities.MeasurementSummary, activity *entities.DischargeActivity, units entities.UnitSystem) (*entities.DischargeSection, error) {
	section := &entities.DischargeSection{
		Discharge:        activity.Discharge,
		DischargeUnitID:  units.DischargeUnitID,
		Party:            activity.Party,
		Comments:         activity.Comments,
		DischargeMethod:  entities.MeanSection,
		StartPoint:       entities.LeftEdgeOfWater,
		DeploymentMethod: deploymentUnspecified,
		AreaUnitID:       units.AreaUnitID,
		Area:             summary.Area,
		Width:            summary.Width,
		VelocityUnitID:   units.VelocityUnitID,
		MeanVelocity:     summary.MeanVelocity,
		MeterCalibration: meterCalibration(summary),
	}
	if strings.EqualFold(summary.DischargeMeasurementMethod, dischargeMethodMidSection) {
		section.DischargeMethod = entities.MidSection
	}
	if strings.EqualFold(summary.StartEdge, startEdgeRight) {
		section.StartPoint = entities.RightEdgeOfWater
	}

	// The declared count is only kept when no vertical detail was exported.
	if len(summary.Verticals) == 0 {
		section.NumberOfVerticals = summary.NumberOfVerticals
	}

	verticals, err := mapVerticals(summary, activity.Start.Location())
	if err != nil {
		return nil, err
	}
	section.Verticals = verticals
	section.VelocityObservationMethod = mostCommonMethod(verticals)

	return section, nil
}

func meterCalibration(summary *entities.MeasurementSummary) entities.MeterCalibration {
	return entities.MeterCalibration{
		Manufacturer:    meterManufacturer,
		Model:           summary.Instrument,
		SerialNumber:    summary.SerialNumber,
		FirmwareVersion: summary.SoftwareVersion,
		SoftwareVersion: summary.SoftwareVersion,
		MeterType:       meterTypeADCP,
		Configuration:   fmt.Sprintf("%s/%s/%s", meterManufacturer, summary.Instrument, summary.SerialNumber),
	}
}

// mostCommonMethod breaks ties in favour of the method seen first.
func mostCommonMethod(verticals []entities.VerticalObservation) entities.PointVelocityObservationType {
	counts := make(map[entities.PointVelocityObservationType]int)
	var order []entities.PointVelocityObservationType

	for _, v := range verticals {
		method := v.Velocity.Method
		if method == "" {
			continue
		}
		if counts[method] == 0 {
			order = append(order, method)
		}
		counts[method]++
	}

	var best entities.PointVelocityObservationType
	for _, method := range order {
		if counts[method] > counts[best] {
			best = method
		}
	}
	return best
}
