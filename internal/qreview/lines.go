package qreview

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Exports hold one vertical per time-series row, but free-text notes can run long.
const maxLineSize = 1024 * 1024

// lineReader splits a Windows-1252 export into tab-separated fields, one
// physical line at a time.
type lineReader struct {
	scanner *bufio.Scanner
	line    int
	fields  []string
}

func newLineReader(r io.Reader) *lineReader {
	scanner := bufio.NewScanner(transform.NewReader(r, windows1252Decoder{}))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	scanner.Split(scanLines)
	return &lineReader{scanner: scanner}
}

// windows1252Decoder decodes Windows-1252 like the vendor does: the five
// bytes the code page leaves undefined (0x81, 0x8D, 0x8F, 0x90, 0x9D) become
// the C1 control with the same value instead of U+FFFD.
type windows1252Decoder struct{ transform.NopResetter }

func (windows1252Decoder) Transform(dst, src []byte, _ bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		b := src[nSrc]
		r := charmap.Windows1252.DecodeByte(b)
		if r == utf8.RuneError {
			r = rune(b)
		}

		if nDst+utf8.RuneLen(r) > len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		nDst += utf8.EncodeRune(dst[nDst:], r)
		nSrc++
	}
	return nDst, nSrc, nil
}

// Next advances to the next physical line, blank ones included.
func (lr *lineReader) Next() bool {
	if !lr.scanner.Scan() {
		return false
	}
	lr.line++
	lr.fields = splitFields(lr.scanner.Text())
	return true
}

// Line is the 1-based number of the current line.
func (lr *lineReader) Line() int { return lr.line }

// Fields are the trimmed fields of the current line, trailing blanks removed.
func (lr *lineReader) Fields() []string { return lr.fields }

func (lr *lineReader) Err() error { return lr.scanner.Err() }

func splitFields(text string) []string {
	fields := strings.Split(text, "\t")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	n := len(fields)
	for n > 0 && fields[n-1] == "" {
		n--
	}
	return fields[:n]
}

// scanLines ends lines at "\r\n", "\n" or a lone "\r".
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		if !atEOF {
			// Need another byte to tell "\r" from "\r\n".
			return 0, nil, nil
		}
		return i + 1, data[:i], nil
	}

	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
