// Package adif reads and writes ADIF-style tag/length/value contact logs.
package adif

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"

	"qsolog/strutil"
)

const (
	readBufferSize  = 64 * 1024
	maxHeaderBytes  = 64 * 1024
	maxSegmentBytes = 1024 * 1024
	// markerTail is enough trailing bytes to find a marker split across reads.
	markerTail = len("<eoh>") - 1
)

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

var (
	eohPattern   = regexp.MustCompile(`(?i)<eoh>`)
	eorPattern   = regexp.MustCompile(`(?i)<eor>`)
	callOpener   = regexp.MustCompile(`(?i)<call:`)
	fieldPattern = regexp.MustCompile(`(?i)<([a-z0-9_]+):(\d+)(?::[a-z])?>([^<]*)`)
)

// Field is one tag/value pair. Tag is always lower case.
type Field struct {
	Tag   string
	Value string
}

// Record is the ordered list of fields scanned between two end-of-record
// markers. An empty Record means the segment had text but no usable fields.
type Record []Field

// Map returns the fields keyed by tag. Repeated tags keep the last value.
func (r Record) Map() map[string]string {
	out := make(map[string]string, len(r))
	for _, f := range r {
		out[f.Tag] = f.Value
	}
	return out
}

// Get returns the last value recorded for tag.
func (r Record) Get(tag string) (string, bool) {
	tag = strings.ToLower(tag)
	for i := len(r) - 1; i >= 0; i-- {
		if r[i].Tag == tag {
			return r[i].Value, true
		}
	}
	return "", false
}

// Scanner splits ADIF text into records in a single forward pass.
//
// Key aspects:
//   - A leading UTF-8 BOM is dropped. Declared lengths are counted in raw
//     input bytes; invalid byte sequences in a value become U+FFFD after it
//     has been cut to length.
//   - The header ends at <EOH>. Without one, data starts at the first line
//     holding a <CALL: opener.
//   - Physical lines inside a record are joined with single spaces. Lines of
//     any length are accepted; a record growing past maxSegmentBytes without
//     <EOR> is yielded as an empty record and the rest of it is dropped.
type Scanner struct {
	in       *bufio.Reader
	started  bool
	inHeader bool
	header   []byte
	line     []byte
	headerRs Record
	segment  []byte
	// searched is how much of segment is known to hold no <EOR>.
	searched   int
	discarding bool
	ready      []Record
	current    Record
	err        error
	done       bool
}

// NewScanner returns a Scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{in: bufio.NewReaderSize(r, readBufferSize), inHeader: true}
}

// Scan advances to the next record. It returns false at end of input or on a
// read error; Err distinguishes the two.
func (s *Scanner) Scan() bool {
	if !s.started {
		s.started = true
		if head, err := s.in.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
			_, _ = s.in.Discard(len(utf8BOM))
		}
	}
	for len(s.ready) == 0 {
		if s.done {
			s.current = nil
			return false
		}
		chunk, err := s.in.ReadSlice('\n')
		switch {
		case err == nil:
			s.consume(chunk, true)
		case errors.Is(err, bufio.ErrBufferFull):
			s.consume(chunk, false)
		case errors.Is(err, io.EOF):
			s.consume(chunk, false)
			s.done = true
			s.finish()
		default:
			s.done = true
			s.err = err
			s.segment = nil
			s.ready = nil
			s.current = nil
			return false
		}
	}
	s.current = s.ready[0]
	s.ready = s.ready[1:]
	return true
}

// Record returns the record produced by the last successful Scan.
func (s *Scanner) Record() Record {
	return s.current
}

// Err returns the first read error encountered, if any.
func (s *Scanner) Err() error {
	return s.err
}

// Header returns the fields found in the header section. It is complete once
// the first record has been scanned.
func (s *Scanner) Header() Record {
	return s.headerRs
}

// consume handles one read. chunk is only valid until the next read, so
// anything kept is copied. eol reports that chunk ends a physical line.
func (s *Scanner) consume(chunk []byte, eol bool) {
	text := chunk
	if eol {
		text = bytes.TrimRight(chunk, "\r\n")
	}
	if !s.inHeader {
		s.data(text, eol)
		return
	}

	searchFrom := max(len(s.line)-markerTail, 0)
	s.line = append(s.line, text...)
	if loc := eohPattern.FindIndex(s.line[searchFrom:]); loc != nil {
		start, end := searchFrom+loc[0], searchFrom+loc[1]
		s.appendHeader(s.line[:start])
		rest := s.line[end:]
		s.line = nil
		s.finishHeader()
		s.data(rest, eol)
		return
	}
	if callOpener.Match(s.line) {
		line := s.line
		s.line = nil
		s.finishHeader()
		s.data(line, eol)
		return
	}
	if eol {
		s.appendHeader(s.line)
		s.line = s.line[:0]
		return
	}
	if len(s.line) > maxHeaderBytes {
		// An endless header line: keep only what a marker search needs.
		s.appendHeader(s.line[:len(s.line)-markerTail])
		s.line = append(s.line[:0], s.line[len(s.line)-markerTail:]...)
	}
}

func (s *Scanner) appendHeader(text []byte) {
	if len(s.header)+len(text) > maxHeaderBytes {
		return
	}
	s.header = append(s.header, text...)
	s.header = append(s.header, ' ')
}

func (s *Scanner) finishHeader() {
	if !s.inHeader {
		return
	}
	s.inHeader = false
	s.headerRs = extractFields(string(s.header))
	s.header = nil
}

// data feeds text that belongs to the record section.
func (s *Scanner) data(text []byte, eol bool) {
	s.segment = append(s.segment, text...)
	if eol {
		s.segment = append(s.segment, ' ')
	}
	base, pos := 0, s.searched
	for {
		loc := eorPattern.FindIndex(s.segment[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if s.discarding {
			s.discarding = false
		} else {
			s.emit(s.segment[base:start])
		}
		base, pos = end, end
	}
	if base > 0 {
		s.segment = append(s.segment[:0], s.segment[base:]...)
	}
	s.searched = max(len(s.segment)-markerTail, 0)
	if len(s.segment) <= maxSegmentBytes {
		return
	}
	if !s.discarding {
		s.ready = append(s.ready, Record{})
		s.discarding = true
	}
	s.segment = append(s.segment[:0], s.segment[len(s.segment)-markerTail:]...)
	s.searched = 0
}

// finish runs at end of input: a header without <EOH> or <CALL: stays header,
// and a trailing segment without <EOR> is still a record.
func (s *Scanner) finish() {
	if s.inHeader {
		s.appendHeader(s.line)
		s.line = nil
		s.finishHeader()
		return
	}
	if !s.discarding {
		s.emit(s.segment)
	}
	s.segment = nil
}

// emit turns one segment into a record. Whitespace-only segments are not
// records.
func (s *Scanner) emit(raw []byte) {
	segment := strings.TrimSpace(strutil.SqueezeSpaces(string(raw)))
	if segment == "" {
		return
	}
	rec := extractFields(segment)
	if rec == nil {
		rec = Record{}
	}
	s.ready = append(s.ready, rec)
}

func extractFields(text string) Record {
	matches := fieldPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make(Record, 0, len(matches))
	for _, m := range matches {
		value := m[3]
		if n, err := strconv.Atoi(m[2]); err == nil {
			value = truncateBytes(value, n)
		}
		out = append(out, Field{Tag: strings.ToLower(m[1]), Value: strings.TrimSpace(repairUTF8(value))})
	}
	return out
}

// truncateBytes cuts value to at most n bytes without splitting a rune.
func truncateBytes(value string, n int) string {
	if n < 0 || len(value) <= n {
		return value
	}
	for n > 0 && !utf8.RuneStart(value[n]) {
		n--
	}
	return value[:n]
}

// repairUTF8 replaces invalid byte sequences with U+FFFD.
func repairUTF8(value string) string {
	if utf8.ValidString(value) {
		return value
	}
	out, err := unicode.UTF8.NewDecoder().String(value)
	if err != nil {
		return strings.ToValidUTF8(value, "\uFFFD")
	}
	return out
}
