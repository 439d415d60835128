package cty

import (
	"strings"
	"testing"
)

func TestParseDatEntities(t *testing.T) {
	db := loadSampleDat(t)
	entries := db.Entries()
	if len(entries) != 5 {
		t.Fatalf("expected 5 entities, got %d", len(entries))
	}
	gm := entries[0]
	if gm.PrimaryPrefix != "GM" {
		t.Fatalf("expected WAE marker stripped, got %q", gm.PrimaryPrefix)
	}
	if gm.Longitude != -4.18 {
		t.Fatalf("expected east-positive longitude -4.18, got %v", gm.Longitude)
	}
	if gm.Grid() != "IO76" {
		t.Fatalf("unexpected grid %q", gm.Grid())
	}
	ru := entries[1]
	if len(ru.Prefixes) != 7 {
		t.Fatalf("continuation lines not accumulated: %v", ru.Prefixes)
	}
}

func TestLookupLongestPrefix(t *testing.T) {
	db := loadSampleDat(t)
	info, ok := db.LookupCallsign("UA9XYZ")
	if !ok {
		t.Fatalf("expected UA9XYZ to resolve")
	}
	if info.Matched != "UA9" || info.Country != "Asiatic Russia" {
		t.Fatalf("expected UA9 entry, got %+v", info)
	}
	info, ok = db.LookupCallsign("UA3AAA")
	if !ok || info.Matched != "UA" || info.Prefix != "UA" {
		t.Fatalf("expected UA entry, got %+v ok=%v", info, ok)
	}
}

func TestLookupAppliesPrefixOverrides(t *testing.T) {
	db := loadSampleDat(t)
	info, ok := db.LookupCallsign("UA0ABC")
	if !ok {
		t.Fatalf("expected UA0ABC to resolve")
	}
	if info.CQZone != 19 || info.ITUZone != 34 {
		t.Fatalf("expected zone overrides 19/34, got %d/%d", info.CQZone, info.ITUZone)
	}
	info, ok = db.LookupCallsign("R1FJA")
	if !ok || info.Continent != "AS" || info.Country != "European Russia" {
		t.Fatalf("expected continent override, got %+v", info)
	}
	info, ok = db.LookupCallsign("UA9ABC")
	if !ok || info.CQZone != 17 {
		t.Fatalf("expected entity default zone, got %+v", info)
	}
}

func TestLookupExactCallsign(t *testing.T) {
	db := loadSampleDat(t)
	info, ok := db.LookupCallsign("GB0ANT")
	if !ok || info.Country != "Scotland" || !info.ExactCallsign {
		t.Fatalf("expected exact Scotland match, got %+v", info)
	}
	if _, ok := db.LookupCallsign("GB0ANTX"); ok {
		t.Fatalf("exact callsign must not act as a prefix")
	}
}

func TestParseDatIndexesSlashStem(t *testing.T) {
	db := loadSampleDat(t)
	if _, ok := db.Data["RA3/P"]; !ok {
		t.Fatalf("expected full slash token to be indexed")
	}
	if info, ok := db.Data["RA3"]; !ok || info.Country != "European Russia" {
		t.Fatalf("expected stem RA3 to be indexed, got %+v", info)
	}
	if _, ok := db.Data["FO/"]; !ok {
		t.Fatalf("expected FO/ to be indexed")
	}
}

func TestParseDatInlinePrefixes(t *testing.T) {
	db := loadSampleDat(t)
	info, ok := db.LookupCallsign("UA2FZ")
	if !ok || info.Country != "European Russia" {
		t.Fatalf("expected UA2F override to stay with European Russia, got %+v", info)
	}
	info, ok = db.LookupCallsign("RA2A")
	if !ok || info.Country != "Kaliningrad" || info.Prefix != "UA2" {
		t.Fatalf("expected Kaliningrad via inline prefix, got %+v", info)
	}
}

func TestParseDatRejectsUnusableInput(t *testing.T) {
	if _, err := ParseDat(strings.NewReader("Broken:1:2:EU:\n    X;\n")); err == nil {
		t.Fatalf("expected error when the only header is malformed")
	}
	if _, err := ParseDat(strings.NewReader("    X,Y;\n")); err == nil {
		t.Fatalf("expected error for prefixes without header")
	}
	if _, err := ParseDat(strings.NewReader("")); err == nil {
		t.Fatalf("expected error for empty input")
	}
}

func TestParseDatSkipsMalformedEntity(t *testing.T) {
	const dat = `Broken:                   1:   2:  EU:
    XX,XY;
Scotland:                 14:  27:  EU:   56.82:     4.18:     0.0:  *GM:
    GM,MM;
Bad Zone:                 x:   2:  EU:   1.00:     1.00:     0.0:  BZ:
    BZ;
Germany:                  14:  28:  EU:   51.00:   -10.00:    -1.0:  DL:
    DL,DA;
`
	db, err := ParseDat(strings.NewReader(dat))
	if err != nil {
		t.Fatalf("ParseDat: %v", err)
	}
	if got := db.SkippedEntities(); got != 2 {
		t.Fatalf("expected 2 skipped entities, got %d", got)
	}
	if got := len(db.Entries()); got != 2 {
		t.Fatalf("expected 2 entities, got %d", got)
	}
	for _, key := range []string{"XX", "XY", "BZ"} {
		if _, ok := db.Data[key]; ok {
			t.Fatalf("prefix %s of a skipped entity must not be indexed", key)
		}
	}
	if info, ok := db.LookupCallsign("DA1AA"); !ok || info.Country != "Germany" {
		t.Fatalf("expected Germany after a skipped entity, got %+v", info)
	}
}

func TestLookupCachesHitsAndMisses(t *testing.T) {
	db := loadSampleDat(t)
	if _, ok := db.LookupCallsign("UA9XYZ"); !ok {
		t.Fatalf("expected match")
	}
	if _, ok := db.LookupCallsign("ua9xyz"); !ok {
		t.Fatalf("expected cached match")
	}
	if _, ok := db.LookupCallsign("QQ1QQ"); ok {
		t.Fatalf("did not expect QQ1QQ to resolve")
	}
	if _, ok := db.LookupCallsign("QQ1QQ"); ok {
		t.Fatalf("did not expect cached miss to resolve")
	}
	m := db.Metrics()
	if m.TotalLookups != 4 || m.CacheHits != 2 || m.Matched != 2 || m.CacheEntries != 2 {
		t.Fatalf("unexpected metrics %+v", m)
	}
}

func TestLookupCacheEvicts(t *testing.T) {
	db := loadSampleDat(t, WithCacheCapacity(1))
	db.LookupCallsign("UA9XYZ")
	db.LookupCallsign("GM0MUW")
	if _, ok := db.cacheGet("UA9XYZ"); ok {
		t.Fatalf("expected oldest entry to be evicted")
	}
	if m := db.Metrics(); m.CacheEntries != 1 {
		t.Fatalf("expected 1 cache entry, got %d", m.CacheEntries)
	}
}

func TestCachedResultsAreCopies(t *testing.T) {
	db := loadSampleDat(t)
	info, _ := db.LookupCallsign("GM0MUW")
	info.Country = "mutated"
	again, _ := db.LookupCallsign("GM0MUW")
	if again.Country != "Scotland" {
		t.Fatalf("cache entry was mutated through returned pointer")
	}
}

func TestNilDatabaseIsUnresolved(t *testing.T) {
	var db *Database
	if _, ok := db.LookupCallsign("UA9XYZ"); ok {
		t.Fatalf("nil database must not resolve")
	}
	if db.Len() != 0 || db.Entries() != nil {
		t.Fatalf("nil database should be empty")
	}
}
