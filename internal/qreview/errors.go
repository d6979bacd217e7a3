package qreview

import (
	"errors"
	"fmt"
)

// ErrMalformed matches every hard parse failure returned by the parser.
var ErrMalformed = errors.New("malformed QReview export")

// ParseError reports a malformed line of an export.
type ParseError struct {
	Line int    // 1-based physical line number
	Text string // Offending raw text
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Is makes errors.Is(err, ErrMalformed) hold for any *ParseError.
func (e *ParseError) Is(target error) bool {
	return target == ErrMalformed
}

func malformed(line int, text, format string, args ...any) *ParseError {
	return &ParseError{
		Line: line,
		Text: text,
		Msg:  fmt.Sprintf(format, args...),
	}
}
