// Package entities contains the core domain objects for the QReview importer
package entities

import (
	"strings"
	"time"
)

// MeasurementSummary is everything read from a single QReview export.
// Optional values stay nil when the export left them blank.
type MeasurementSummary struct {
	StationName                string
	StationNumber              string
	MeasurementNumber          string
	StartTime                  *time.Time
	EndTime                    *time.Time
	Operator                   string
	Instrument                 string
	SerialNumber               string
	SoftwareVersion            string
	Units                      string // Raw "Units" field, e.g. "Metric" or "Imperial"
	MeasurementMethod          string
	DischargeMeasurementMethod string
	AveragingTime              *float64 // Seconds
	StartEdge                  string
	MeanDepth                  *float64
	RatedDischarge             *float64
	NumberOfVerticals          *int
	MeanVelocity               *float64
	GageStart                  *float64
	Width                      *float64
	MeanSNR                    *float64 // dB
	GageEnd                    *float64
	Area                       *float64
	Discharge                  *float64
	MeanTemp                   *float64 // Always °C, whatever the unit system
	Quality                    string
	UncertaintyPercentage      *float64
	Notes                      string
	Verticals                  []*Vertical
}

// IsMetric reports whether the export declared metric units.
func (s *MeasurementSummary) IsMetric() bool {
	return strings.EqualFold(s.Units, "Metric")
}

// Vertical is one sampling station across the channel, keyed by Number.
type Vertical struct {
	Number           int
	Time             time.Time
	Points           int
	Position         *float64
	Depth            float64
	MeanVelocity     *float64
	Area             *float64
	Discharge        *float64
	DischargePortion *float64
	QualityIssues    []string
	Warnings         []string
}

// AddWarning appends the warning unless the vertical already carries it.
func (v *Vertical) AddWarning(warning string) bool {
	return addUnique(&v.Warnings, warning)
}

// AddQualityIssue appends the issue unless the vertical already carries it.
func (v *Vertical) AddQualityIssue(issue string) bool {
	return addUnique(&v.QualityIssues, issue)
}

func addUnique(list *[]string, value string) bool {
	for _, existing := range *list {
		if existing == value {
			return false
		}
	}
	*list = append(*list, value)
	return true
}
