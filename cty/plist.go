package cty

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"howett.net/plist"
)

// LoadPlist reads a cty.plist file from disk.
func LoadPlist(path string, opts ...Option) (*Database, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cty: open plist: %w", err)
	}
	defer f.Close()
	return ParsePlist(f, opts...)
}

// ParsePlist decodes the cty.plist dictionary (key → PrefixInfo). Keys are
// normalized to upper case. Entities are rebuilt by grouping keys on their
// primary prefix.
func ParsePlist(r io.ReadSeeker, opts ...Option) (*Database, error) {
	var raw map[string]PrefixInfo
	if err := plist.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("cty: decode plist: %w", err)
	}
	data := make(map[string]PrefixInfo, len(raw))
	for k, v := range raw {
		norm := strings.ToUpper(strings.TrimSpace(k))
		if norm == "" {
			continue
		}
		v.Prefix = strings.ToUpper(strings.TrimSpace(v.Prefix))
		data[norm] = v
	}
	return newDatabase(data, groupEntries(data), opts), nil
}

func groupEntries(data map[string]PrefixInfo) []Entry {
	byPrimary := make(map[string]*Entry)
	for key, info := range data {
		primary := info.Prefix
		if primary == "" {
			primary = key
		}
		entry, ok := byPrimary[primary]
		if !ok {
			entry = &Entry{
				Country:       info.Country,
				CQZone:        info.CQZone,
				ITUZone:       info.ITUZone,
				Continent:     info.Continent,
				Latitude:      info.Latitude,
				Longitude:     info.Longitude,
				UTCOffset:     info.GMTOffset,
				PrimaryPrefix: primary,
				ADIF:          info.ADIF,
			}
			byPrimary[primary] = entry
		}
		entry.Prefixes = append(entry.Prefixes, key)
	}
	out := make([]Entry, 0, len(byPrimary))
	for _, entry := range byPrimary {
		sort.Strings(entry.Prefixes)
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PrimaryPrefix < out[j].PrimaryPrefix })
	return out
}
