// Package qreview reads the tab-delimited discharge measurement summaries
// exported by OTT QReview.
//
// An export is a sequence of sections, each introduced by a single-field
// header line ("Discharge Measurement Summary", "Time Series", ...). Summary
// and uncertainty sections hold label/value pairs, the notes section free
// text, and the warnings, quality issues and time series sections describe
// verticals by number. Parse merges those fragments into one
// entities.MeasurementSummary.
//
// Parse distinguishes two kinds of failure. A document that does not look
// like an export at all yields a nil summary and a nil error. A document
// that looks like one but carries a malformed value yields a *ParseError
// naming the line and the offending text.
package qreview

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/abelzeko/qreview-importer/internal/entities"
)

// An export must fill at least this many labelled fields across at least
// this many sections to be recognized.
const (
	minFieldsParsed   = 5
	minSectionsParsed = 2
)

// Options configure date and time parsing. Layouts use Go reference time
// notation; empty lists select free-form parsing.
type Options struct {
	DateTimeFormats []string
	TimeFormats     []string
}

// Parser reads QReview exports. It holds configuration only and may be
// reused; every Parse call works on its own state.
type Parser struct {
	times timeParser
}

// NewParser creates a new export parser
func NewParser(opts Options) *Parser {
	return &Parser{
		times: timeParser{
			dateTimeFormats: opts.DateTimeFormats,
			timeFormats:     opts.TimeFormats,
		},
	}
}

// ParseFile opens and parses the export at path, closing it on return.
func (p *Parser) ParseFile(path string) (*entities.MeasurementSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open export: %w", err)
	}
	defer f.Close()

	return p.Parse(f)
}

// Parse reads a whole export from r. It returns nil, nil when r does not
// hold a QReview export.
func (p *Parser) Parse(r io.Reader) (*entities.MeasurementSummary, error) {
	st := &parseState{
		times:          p.times,
		summary:        &entities.MeasurementSummary{},
		verticals:      newVerticalSet(),
		sectionsParsed: make(map[Section]int),
	}

	lines := newLineReader(r)
	for lines.Next() {
		st.line = lines.Line()
		st.fields = lines.Fields()

		if err := st.consume(); err != nil {
			return nil, err
		}
	}

	if err := lines.Err(); err != nil {
		return nil, fmt.Errorf("failed to read export: %w", err)
	}

	st.summary.Verticals = st.verticals.Finalize()

	if st.fieldsParsed < minFieldsParsed || len(st.sectionsParsed) < minSectionsParsed {
		return nil, nil
	}

	return st.summary, nil
}

// parseState is the mutable state of a single Parse call.
type parseState struct {
	times     timeParser
	summary   *entities.MeasurementSummary
	verticals *verticalSet

	section         Section
	line            int
	fields          []string
	currentVertical int

	sectionsParsed map[Section]int
	fieldsParsed   int
}

func (st *parseState) consume() error {
	if len(st.fields) == 0 {
		return nil
	}

	if len(st.fields) == 1 {
		if section, ok := lookupSection(st.fields[0]); ok {
			st.section = section
			return nil
		}
	}

	handler, ok := sectionHandlers[st.section]
	if !ok {
		// Free text ahead of the first header, such as a report title.
		if st.section == SectionUnknown && len(st.fields) == 1 {
			return nil
		}
		raw := strings.Join(st.fields, ",")
		return malformed(st.line, raw, "don't know how to parse line (%s): %s", st.section, raw)
	}

	st.sectionsParsed[st.section]++

	if handler.fields != nil {
		if err := st.applyFields(handler.fields); err != nil {
			return err
		}
	}

	if handler.parse != nil {
		return handler.parse(st)
	}
	return nil
}

// applyFields scans label/value pairs left to right, skipping labels the
// table does not know.
func (st *parseState) applyFields(table fieldTable) error {
	if st.fields[0] == "" {
		return nil
	}

	for i := 0; i < len(st.fields)-1; i++ {
		write, ok := table[strings.ToLower(st.fields[i])]
		if !ok {
			continue
		}

		if err := write(st, st.fields[i+1]); err != nil {
			return err
		}
		i++
		st.fieldsParsed++
	}
	return nil
}
