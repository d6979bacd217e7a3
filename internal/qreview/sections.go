package qreview

import "strings"

// Section identifies the part of an export that governs how lines are read.
type Section int

const (
	SectionUnknown Section = iota
	SectionSummary
	SectionUncertainty
	SectionDepthSensor
	SectionQualitySettings
	SectionFieldQualityCheck
	SectionNotes
	SectionInstrumentWarnings
	SectionQualityIssues
	SectionTimeSeries
)

var sectionNames = map[Section]string{
	SectionUnknown:            "Unknown",
	SectionSummary:            "Summary",
	SectionUncertainty:        "Uncertainty",
	SectionDepthSensor:        "DepthSensor",
	SectionQualitySettings:    "QualitySettings",
	SectionFieldQualityCheck:  "FieldQualityCheck",
	SectionNotes:              "Notes",
	SectionInstrumentWarnings: "InstrumentWarnings",
	SectionQualityIssues:      "QualityIssues",
	SectionTimeSeries:         "TimeSeries",
}

func (s Section) String() string {
	if name, ok := sectionNames[s]; ok {
		return name
	}
	return "Unknown"
}

// Header lines, matched case-insensitively against a lone field.
var sectionHeaders = foldKeys(map[string]Section{
	"Discharge Measurement Summary":    SectionSummary,
	"Uncertainty According to ISO 748": SectionUncertainty,
	"Depth Sensor":                     SectionDepthSensor,
	"Quality Threshold Settings":       SectionQualitySettings,
	"Field Quality Check":              SectionFieldQualityCheck,
	"Notes":                            SectionNotes,
	"ADC Warnings":                     SectionInstrumentWarnings,
	"Quality Issues":                   SectionQualityIssues,
	"Time Series":                      SectionTimeSeries,
})

func lookupSection(text string) (Section, bool) {
	section, ok := sectionHeaders[strings.ToLower(text)]
	return section, ok
}

func foldKeys[V any](m map[string]V) map[string]V {
	folded := make(map[string]V, len(m))
	for k, v := range m {
		folded[strings.ToLower(k)] = v
	}
	return folded
}
