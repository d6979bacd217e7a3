package qreview

import (
	"regexp"
	"strconv"
	"strings"
)

// The vendor writes .NET-style whitespace (NBSP, NEL, ...) around numbers, so
// \s and \S in the micro-grammars cover the Unicode separators as well.
var whitespaceClasses = strings.NewReplacer(
	`\s`, `[\s\v\x{85}\p{Z}]`,
	`\S`, `[^\s\v\x{85}\p{Z}]`,
)

func vendorPattern(expr string) *regexp.Regexp {
	return regexp.MustCompile(whitespaceClasses.Replace(expr))
}

var (
	percentageRegex    = vendorPattern(`\s*([\+\-\.0-9]+)\s*%`)
	dischargeRegex     = vendorPattern(`^\s*(\S+)\s+\+/-\s*\S+\s*$`)
	averagingTimeRegex = vendorPattern(`^\s*(\S+)\s+Seconds$`)

	// Plain invariant decimals only: no hex, inf, nan or digit separators.
	decimalRegex = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)
)

func isBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}

// parseNullableFloat returns nil for blank text.
func parseNullableFloat(text string, line int) (*float64, error) {
	if isBlank(text) {
		return nil, nil
	}

	trimmed := strings.TrimSpace(text)
	if !decimalRegex.MatchString(trimmed) {
		return nil, malformed(line, text, "'%s' is not a valid number", text)
	}

	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return nil, malformed(line, text, "'%s' is not a valid number", text)
	}

	return &value, nil
}

func parseFloat(text string, line int) (float64, error) {
	value, err := parseNullableFloat(text, line)
	if err != nil {
		return 0, err
	}
	if value == nil {
		return 0, malformed(line, text, "'%s' is not a valid number", text)
	}
	return *value, nil
}

// parseNullableInt returns nil for blank text.
func parseNullableInt(text string, line int) (*int, error) {
	if isBlank(text) {
		return nil, nil
	}

	value, err := strconv.ParseInt(strings.TrimSpace(text), 10, 32)
	if err != nil {
		return nil, malformed(line, text, "'%s' is not a valid integer", text)
	}

	n := int(value)
	return &n, nil
}

func parseInt(text string, line int) (int, error) {
	value, err := parseNullableInt(text, line)
	if err != nil {
		return 0, err
	}
	if value == nil {
		return 0, malformed(line, text, "'%s' is not a valid integer", text)
	}
	return *value, nil
}

// parsePercentage extracts "7.25" from text like "  7.25 %". Text without a
// percentage is absent.
func parsePercentage(text string, line int) (*float64, error) {
	match := percentageRegex.FindStringSubmatch(text)
	if match == nil {
		return nil, nil
	}

	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return nil, malformed(line, text, "'%s' is not a valid percentage", text)
	}

	return &value, nil
}

// parseDischarge keeps the value of "<value> +/- <uncertainty>".
func parseDischarge(text string, line int) (*float64, error) {
	match := dischargeRegex.FindStringSubmatch(text)
	if match == nil {
		return nil, nil
	}

	return parseNullableFloat(match[1], line)
}

// parseAveragingTime reads "<n> Seconds".
func parseAveragingTime(text string, line int) (*float64, error) {
	match := averagingTimeRegex.FindStringSubmatch(text)
	if match == nil {
		return nil, nil
	}

	return parseNullableFloat(match[1], line)
}
