package qreview

import (
	"strings"
)

// fieldWriter stores the raw value that follows a recognized label.
type fieldWriter func(st *parseState, value string) error

// fieldTable maps lower-cased labels to their writers.
type fieldTable map[string]fieldWriter

type sectionHandler struct {
	fields fieldTable
	parse  func(st *parseState) error
}

// Depth sensor, threshold and field check sections carry nothing we keep,
// but still count as parsed.
var sectionHandlers = map[Section]sectionHandler{
	SectionSummary:            {fields: summaryFields, parse: (*parseState).parseSummary},
	SectionUncertainty:        {fields: uncertaintyFields},
	SectionDepthSensor:        {},
	SectionQualitySettings:    {},
	SectionFieldQualityCheck:  {},
	SectionNotes:              {parse: (*parseState).parseNotes},
	SectionInstrumentWarnings: {parse: (*parseState).parseInstrumentWarnings},
	SectionQualityIssues:      {parse: (*parseState).parseQualityIssues},
	SectionTimeSeries:         {parse: (*parseState).parseTimeSeries},
}

func setText(set func(st *parseState, value string)) fieldWriter {
	return func(st *parseState, value string) error {
		set(st, value)
		return nil
	}
}

func setNumber(extract func(string, int) (*float64, error), set func(st *parseState, value *float64)) fieldWriter {
	return func(st *parseState, value string) error {
		v, err := extract(value, st.line)
		if err != nil {
			return err
		}
		set(st, v)
		return nil
	}
}

var summaryFields = fieldTable(foldKeys(map[string]fieldWriter{
	"Station Nr.":    setText(func(st *parseState, s string) { st.summary.StationNumber = s }),
	"Measurement Nr": setText(func(st *parseState, s string) { st.summary.MeasurementNumber = s }),
	"Date/Time": func(st *parseState, s string) error {
		start, end, err := st.times.parseStartEndTime(s, st.line)
		if err != nil {
			return err
		}
		st.summary.StartTime = start
		st.summary.EndTime = end
		return nil
	},
	"Operator:":                     setText(func(st *parseState, s string) { st.summary.Operator = s }),
	"Instrument":                    setText(func(st *parseState, s string) { st.summary.Instrument = s }),
	"Serial Nr.":                    setText(func(st *parseState, s string) { st.summary.SerialNumber = s }),
	"Software version:":             setText(func(st *parseState, s string) { st.summary.SoftwareVersion = s }),
	"Units":                         setText(func(st *parseState, s string) { st.summary.Units = s }),
	"Measurement method:":           setText(func(st *parseState, s string) { st.summary.MeasurementMethod = s }),
	"Discharge measurement method:": setText(func(st *parseState, s string) { st.summary.DischargeMeasurementMethod = s }),
	"Averaging time:":               setNumber(parseAveragingTime, func(st *parseState, v *float64) { st.summary.AveragingTime = v }),
	"Start edge":                    setText(func(st *parseState, s string) { st.summary.StartEdge = s }),
	"Mean depth(m)":                 setNumber(parseNullableFloat, func(st *parseState, v *float64) { st.summary.MeanDepth = v }),
	"Mean depth(ft)":                setNumber(parseNullableFloat, func(st *parseState, v *float64) { st.summary.MeanDepth = v }),
	"Rated Q(m³/s)":                 setNumber(parseNullableFloat, func(st *parseState, v *float64) { st.summary.RatedDischarge = v }),
	"Rated Q(ft³/s)":                setNumber(parseNullableFloat, func(st *parseState, v *float64) { st.summary.RatedDischarge = v }),
	"Nr. of verticals": func(st *parseState, s string) error {
		n, err := parseNullableInt(s, st.line)
		if err != nil {
			return err
		}
		st.summary.NumberOfVerticals = n
		return nil
	},
	"Mean Velocity(m/s)":  setNumber(parseNullableFloat, func(st *parseState, v *float64) { st.summary.MeanVelocity = v }),
	"Mean Velocity(ft/s)": setNumber(parseNullableFloat, func(st *parseState, v *float64) { st.summary.MeanVelocity = v }),
	"Gage Start:":         setNumber(parseNullableFloat, func(st *parseState, v *float64) { st.summary.GageStart = v }),
	"Width(m)":            setNumber(parseNullableFloat, func(st *parseState, v *float64) { st.summary.Width = v }),
	"Width(ft)":           setNumber(parseNullableFloat, func(st *parseState, v *float64) { st.summary.Width = v }),
	"Mean SNR (dB)":       setNumber(parseNullableFloat, func(st *parseState, v *float64) { st.summary.MeanSNR = v }),
	"Gage End:":           setNumber(parseNullableFloat, func(st *parseState, v *float64) { st.summary.GageEnd = v }),
	"Area(m²)":            setNumber(parseNullableFloat, func(st *parseState, v *float64) { st.summary.Area = v }),
	"Area(ft²)":           setNumber(parseNullableFloat, func(st *parseState, v *float64) { st.summary.Area = v }),
	"Discharge(m³/s)":     setNumber(parseDischarge, func(st *parseState, v *float64) { st.summary.Discharge = v }),
	"Discharge(ft³/s)":    setNumber(parseDischarge, func(st *parseState, v *float64) { st.summary.Discharge = v }),
	"Mean Temp. (°C)":     setNumber(parseNullableFloat, func(st *parseState, v *float64) { st.summary.MeanTemp = v }),
	"Quality":             setText(func(st *parseState, s string) { st.summary.Quality = s }),
}))

var uncertaintyFields = fieldTable(foldKeys(map[string]fieldWriter{
	"Overall": setNumber(parsePercentage, func(st *parseState, v *float64) { st.summary.UncertaintyPercentage = v }),
}))

// parseSummary takes the first lone field of the summary as the station name.
func (st *parseState) parseSummary() error {
	if len(st.fields) == 1 && st.summary.StationName == "" {
		st.summary.StationName = st.fields[0]
	}
	return nil
}

// Sub-headings inside the notes section.
var skipNoteMarkers = foldKeys(map[string]struct{}{
	"_ General _":   {},
	"_ Verticals _": {},
})

func (st *parseState) parseNotes() error {
	note := strings.TrimSpace(strings.Join(st.fields, " "))
	if note == "" {
		return nil
	}
	if _, skip := skipNoteMarkers[strings.ToLower(note)]; skip {
		return nil
	}

	if st.summary.Notes == "" {
		st.summary.Notes = note
	} else {
		st.summary.Notes += "\n" + note
	}
	return nil
}

var (
	verticalHeaderRegex = vendorPattern(`^\s*Vertical (\d+) at [0-9\.\-\+]+\s*:\s*$`)
	qualityIssueRegex   = vendorPattern(`^\s*Vertical (\d+) at [0-9\.\-\+]+\s*:\s*(.*)$`)
)

// parseInstrumentWarnings reads "Vertical N at <pos>:" headings followed by
// one warning per line.
func (st *parseState) parseInstrumentWarnings() error {
	if match := verticalHeaderRegex.FindStringSubmatch(st.fields[0]); match != nil {
		n, err := parseInt(match[1], st.line)
		if err != nil {
			return err
		}
		st.currentVertical = n
		return nil
	}

	// Every other line is a warning, even when its first field is empty.
	st.verticals.FetchOrCreate(st.currentVertical).AddWarning(strings.TrimSpace(st.fields[0]))
	return nil
}

// parseQualityIssues reads "Vertical N at <pos>: <issue>" lines.
func (st *parseState) parseQualityIssues() error {
	match := qualityIssueRegex.FindStringSubmatch(st.fields[0])
	if match == nil {
		return nil
	}

	n, err := parseInt(match[1], st.line)
	if err != nil {
		return err
	}

	st.verticals.FetchOrCreate(n).AddQualityIssue(strings.TrimSpace(match[2]))
	return nil
}

// Columns of a time series row.
const (
	colTime = iota
	colVertical
	colPoints
	colPosition
	colDepth
	colMeanVelocity
	colArea
	colDischarge
	colDischargePortion
	timeSeriesColumns
)

func (st *parseState) parseTimeSeries() error {
	f := st.fields
	if f[colTime] == "" || strings.HasPrefix(f[colTime], "Time") {
		return nil
	}
	if len(f) < timeSeriesColumns {
		return nil
	}

	if st.summary.StartTime == nil {
		return malformed(st.line, f[colTime], "no start time context available for '%s'", f[colTime])
	}

	line := st.line
	t, err := st.times.parseTime(*st.summary.StartTime, f[colTime], line)
	if err != nil {
		return err
	}
	num, err := parseInt(f[colVertical], line)
	if err != nil {
		return err
	}
	points, err := parseInt(f[colPoints], line)
	if err != nil {
		return err
	}
	position, err := parseFloat(f[colPosition], line)
	if err != nil {
		return err
	}
	depth, err := parseFloat(f[colDepth], line)
	if err != nil {
		return err
	}
	meanVelocity, err := parseNullableFloat(f[colMeanVelocity], line)
	if err != nil {
		return err
	}
	area, err := parseNullableFloat(f[colArea], line)
	if err != nil {
		return err
	}
	discharge, err := parseNullableFloat(f[colDischarge], line)
	if err != nil {
		return err
	}
	// A trailing "*" footnotes estimated portions.
	portion, err := parseNullableFloat(strings.ReplaceAll(f[colDischargePortion], "*", ""), line)
	if err != nil {
		return err
	}

	v := st.verticals.FetchOrCreate(num)
	v.Time = t
	v.Points = points
	v.Position = &position
	v.Depth = depth
	v.MeanVelocity = meanVelocity
	v.Area = area
	v.Discharge = discharge
	v.DischargePortion = portion
	return nil
}
