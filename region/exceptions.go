// Package region resolves Russian oblast codes for callsigns, using an
// exceptions file first and the call-area digit/letter table second.
package region

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"qsolog/strutil"
)

// Exceptions maps individual callsigns to a region code. It is read-only
// once loaded.
type Exceptions map[string]string

// ParseStats describes what ParseExceptions saw.
type ParseStats struct {
	Lines     int
	Loaded    int
	Malformed int
}

// LoadExceptions reads an exceptions file from disk.
func LoadExceptions(path string) (Exceptions, ParseStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ParseStats{}, fmt.Errorf("region: open exceptions: %w", err)
	}
	defer f.Close()
	return ParseExceptions(f)
}

// ParseExceptions reads CALLSIGN:REGION lines. Blank lines and lines starting
// with '#' are ignored; lines without both parts are counted as malformed and
// skipped.
func ParseExceptions(r io.Reader) (Exceptions, ParseStats, error) {
	out := make(Exceptions)
	var stats ParseStats
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		stats.Lines++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		call, code, ok := strings.Cut(line, ":")
		call = strutil.NormalizeUpper(call)
		code = strutil.NormalizeUpper(code)
		if !ok || call == "" || code == "" {
			stats.Malformed++
			continue
		}
		out[call] = code
		stats.Loaded++
	}
	if err := sc.Err(); err != nil {
		return nil, stats, fmt.Errorf("region: read exceptions: %w", err)
	}
	return out, stats, nil
}
