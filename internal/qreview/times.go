package qreview

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Time-of-day layouts tried when no time formats are configured, before
// falling back to free-form parsing.
var invariantTimeLayouts = []string{
	"15:04:05",
	"15:04:05.999999999",
	"15:04",
	"3:04:05 PM",
	"3:04 PM",
}

// timeParser reads the date/time values of an export. Empty layout lists
// select free-form parsing.
type timeParser struct {
	dateTimeFormats []string
	timeFormats     []string
}

func (p timeParser) parseDateTime(text string) (time.Time, bool) {
	if len(p.dateTimeFormats) == 0 {
		t, err := dateparse.ParseIn(text, time.UTC)
		return t, err == nil
	}

	return parseExact(text, p.dateTimeFormats)
}

func (p timeParser) parseTimeOfDay(text string) (time.Duration, bool) {
	if len(p.timeFormats) > 0 {
		t, ok := parseExact(text, p.timeFormats)
		return timeOfDay(t), ok
	}

	if t, ok := parseExact(text, invariantTimeLayouts); ok {
		return timeOfDay(t), true
	}

	t, err := dateparse.ParseIn(text, time.UTC)
	if err != nil {
		return 0, false
	}
	return timeOfDay(t), true
}

func parseExact(text string, layouts []string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, text, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func timeOfDay(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
}

// onDayOf places the time of day on the start's date, moving to the next day
// when it falls before the start's own time of day.
func onDayOf(start time.Time, tod time.Duration) time.Time {
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	if tod < timeOfDay(start) {
		day = day.AddDate(0, 0, 1)
	}
	return day.Add(tod)
}

// parseTime reads a bare time of day relative to the session start.
func (p timeParser) parseTime(start time.Time, text string, line int) (time.Time, error) {
	tod, ok := p.parseTimeOfDay(text)
	if !ok {
		return time.Time{}, malformed(line, text, "'%s' is not a valid time.", text)
	}
	return onDayOf(start, tod), nil
}

// parseStartEndTime reads "<date-time> > <end-time>". Blank text yields
// neither timestamp.
func (p timeParser) parseStartEndTime(text string, line int) (*time.Time, *time.Time, error) {
	if isBlank(text) {
		return nil, nil, nil
	}

	var parts []string
	for _, part := range strings.Split(text, ">") {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}

	if len(parts) != 2 {
		return nil, nil, malformed(line, text, "'%s' is not a valid start & end time", text)
	}

	start, ok := p.parseDateTime(parts[0])
	if !ok {
		return nil, nil, malformed(line, parts[0], "'%s' is not a valid datetime.", parts[0])
	}

	end, err := p.parseTime(start, parts[1], line)
	if err != nil {
		return nil, nil, err
	}

	return &start, &end, nil
}
