package mapping

import (
	"strings"
	"unicode"

	"github.com/abelzeko/qreview-importer/internal/entities"
)

// Location resolves the location a summary belongs to from its station name.
func (m *Mapper) Location(summary *entities.MeasurementSummary) (entities.LocationInfo, error) {
	identifier := LocationIdentifier(summary.StationName, m.cfg.LocationIdentifierSeparator, m.cfg.LocationIdentifierZeroPaddedDigits)
	if identifier == "" {
		return entities.LocationInfo{}, ErrMissingStationName
	}

	offset, err := m.cfg.Offset()
	if err != nil {
		return entities.LocationInfo{}, err
	}

	return entities.LocationInfo{Identifier: identifier, UTCOffset: offset}, nil
}

// LocationIdentifier derives a location identifier from a station name.
// The identifier is the text before the first separator; purely numeric
// identifiers are left-padded with zeros to the given width.
func LocationIdentifier(stationName, separator string, zeroPaddedDigits int) string {
	identifier := stationName
	if separator != "" {
		identifier, _, _ = strings.Cut(identifier, separator)
	}
	identifier = strings.TrimSpace(identifier)

	if zeroPaddedDigits > 0 && isDigits(identifier) && len(identifier) < zeroPaddedDigits {
		identifier = strings.Repeat("0", zeroPaddedDigits-len(identifier)) + identifier
	}
	return identifier
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
