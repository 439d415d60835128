package cty

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const datHeaderFields = 8

// LoadDat reads a cty.dat file from disk.
func LoadDat(path string, opts ...Option) (*Database, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cty: open dat: %w", err)
	}
	defer f.Close()
	return ParseDat(f, opts...)
}

// ParseDat parses the cty.dat text format into a Database.
// Purpose: Build the country/zone prefix table used to geolocate callsigns.
// Key aspects: Each entity is a header line
//
//	Country:  CQ:  ITU:  Cont:  Lat:  Lon:  UTC:  Primary:
//
// followed by indented, comma-separated prefix lines ending in ';'. Prefixes
// may carry decorations: '=' marks an exact callsign, (n) and [n] override the
// CQ and ITU zone, {XX} the continent; <lat/lon> and ~tz~ are ignored. A prefix
// containing '/' is also indexed by its part before the slash. An entity whose
// header does not parse is skipped with its prefix lines and counted in
// SkippedEntities; parsing fails only when no entity survives.
// Upstream: LoadDat, fetch validation of a fresh download.
// Downstream: newDatabase (trie and lookup cache).
func ParseDat(r io.Reader, opts ...Option) (*Database, error) {
	p := datParser{data: make(map[string]PrefixInfo)}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		if !isContinuation(text) {
			if err := p.header(text); err != nil {
				p.skip(fmt.Errorf("dat line %d: %w", line, err))
			}
			continue
		}
		if p.current == nil {
			if len(p.entries) == 0 && p.skipped == 0 {
				return nil, fmt.Errorf("cty: dat line %d: prefix list before any entity header", line)
			}
			continue
		}
		p.prefixes(text)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("cty: read dat: %w", err)
	}
	p.commit()
	if len(p.entries) == 0 {
		if p.firstErr != nil {
			return nil, fmt.Errorf("cty: dat contains no valid entities: %w", p.firstErr)
		}
		return nil, fmt.Errorf("cty: dat contains no entities")
	}
	db := newDatabase(p.data, p.entries, opts)
	db.skippedEntities = p.skipped
	return db, nil
}

func isContinuation(text string) bool {
	return text[0] == ' ' || text[0] == '\t'
}

type datParser struct {
	data    map[string]PrefixInfo
	entries []Entry
	current *Entry
	tokens  []string

	skipped  int
	firstErr error
}

func (p *datParser) skip(err error) {
	p.skipped++
	if p.firstErr == nil {
		p.firstErr = err
	}
}

func (p *datParser) header(text string) error {
	p.commit()
	parts := strings.Split(text, ":")
	if len(parts) < datHeaderFields+1 {
		return fmt.Errorf("entity header has %d fields, want %d", len(parts)-1, datHeaderFields)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	cq, err := strconv.Atoi(parts[1])
	if err != nil {
		return fmt.Errorf("cq zone %q: %w", parts[1], err)
	}
	itu, err := strconv.Atoi(parts[2])
	if err != nil {
		return fmt.Errorf("itu zone %q: %w", parts[2], err)
	}
	lat, err := strconv.ParseFloat(parts[4], 64)
	if err != nil {
		return fmt.Errorf("latitude %q: %w", parts[4], err)
	}
	lon, err := strconv.ParseFloat(parts[5], 64)
	if err != nil {
		return fmt.Errorf("longitude %q: %w", parts[5], err)
	}
	utc, err := strconv.ParseFloat(parts[6], 64)
	if err != nil {
		return fmt.Errorf("utc offset %q: %w", parts[6], err)
	}
	p.current = &Entry{
		Country:       parts[0],
		CQZone:        cq,
		ITUZone:       itu,
		Continent:     strings.ToUpper(parts[3]),
		Latitude:      lat,
		Longitude:     -lon,
		UTCOffset:     -utc,
		PrimaryPrefix: strings.ToUpper(strings.TrimPrefix(parts[7], "*")),
	}
	if len(parts) > datHeaderFields {
		p.prefixes(strings.Join(parts[datHeaderFields:], ":"))
	}
	return nil
}

// prefixes accumulates the comma-separated tokens of one line. The entity is
// committed once a line ends in ';'.
func (p *datParser) prefixes(text string) {
	text = strings.TrimSpace(text)
	end := strings.HasSuffix(text, ";")
	text = strings.TrimSuffix(text, ";")
	for _, tok := range strings.Split(text, ",") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			p.tokens = append(p.tokens, tok)
		}
	}
	if end {
		p.commit()
	}
}

func (p *datParser) commit() {
	if p.current == nil {
		return
	}
	entry := *p.current
	for _, tok := range p.tokens {
		pref, info := decodePrefix(tok, entry)
		if pref == "" {
			continue
		}
		entry.Prefixes = append(entry.Prefixes, pref)
		p.data[pref] = info
		if slash := strings.IndexByte(pref, '/'); slash > 0 {
			if _, exists := p.data[pref[:slash]]; !exists {
				p.data[pref[:slash]] = info
			}
		}
	}
	p.entries = append(p.entries, entry)
	p.current = nil
	p.tokens = p.tokens[:0]
}

// decodePrefix strips decorations from tok and applies any per-prefix
// overrides on top of the entity defaults.
func decodePrefix(tok string, entry Entry) (string, PrefixInfo) {
	info := PrefixInfo{
		Country:   entry.Country,
		Prefix:    entry.PrimaryPrefix,
		CQZone:    entry.CQZone,
		ITUZone:   entry.ITUZone,
		Continent: entry.Continent,
		Latitude:  entry.Latitude,
		Longitude: entry.Longitude,
		GMTOffset: entry.UTCOffset,
	}
	if strings.HasPrefix(tok, "=") {
		info.ExactCallsign = true
		tok = tok[1:]
	}
	var b strings.Builder
	b.Grow(len(tok))
	for i := 0; i < len(tok); i++ {
		ch := tok[i]
		var closer byte
		switch ch {
		case '(':
			closer = ')'
		case '[':
			closer = ']'
		case '{':
			closer = '}'
		case '<':
			closer = '>'
		case '~':
			closer = '~'
		default:
			if ch != '*' && ch != '=' {
				b.WriteByte(ch)
			}
			continue
		}
		end := strings.IndexByte(tok[i+1:], closer)
		if end < 0 {
			break
		}
		body := tok[i+1 : i+1+end]
		switch ch {
		case '(':
			if n, err := strconv.Atoi(body); err == nil {
				info.CQZone = n
			}
		case '[':
			if n, err := strconv.Atoi(body); err == nil {
				info.ITUZone = n
			}
		case '{':
			info.Continent = strings.ToUpper(body)
		}
		i += end + 1
	}
	return strings.ToUpper(strings.TrimSpace(b.String())), info
}
