package geo

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"qsolog/config"
	"qsolog/cty"
	"qsolog/qso"
	"qsolog/region"
)

const testDat = `Scotland:                 14:  27:  EU:   56.82:     4.18:     0.0:  *GM:
    GM,MM,GS;
European Russia:          16:  29:  EU:   53.65:   -41.37:    -4.0:  UA:
    R,U,UA;
Asiatic Russia:           17:  30:  AS:   55.88:   -84.08:    -7.0:  UA9:
    UA9,UA0(19)[34],R9;
Germany:                  14:  28:  EU:   51.00:   -10.00:    -1.0:  DL:
    DL,DA;
`

const testPlist = `<?xml version="1.0" encoding="UTF-8"?>
<plist version="1.0">
<dict>
<key>GM</key>
	<dict>
		<key>Country</key><string>Scotland</string>
		<key>Prefix</key><string>GM</string>
		<key>ADIF</key><integer>279</integer>
	</dict>
<key>UA</key>
	<dict>
		<key>Country</key><string>European Russia</string>
		<key>Prefix</key><string>UA</string>
		<key>ADIF</key><integer>54</integer>
	</dict>
<key>UA9</key>
	<dict>
		<key>Country</key><string>Asiatic Russia</string>
		<key>Prefix</key><string>UA9</string>
		<key>ADIF</key><integer>15</integer>
	</dict>
<key>VK</key>
	<dict>
		<key>Country</key><string>Australia</string>
		<key>Prefix</key><string>VK</string>
		<key>ADIF</key><integer>150</integer>
		<key>CQZone</key><integer>30</integer>
		<key>ITUZone</key><integer>59</integer>
		<key>Continent</key><string>OC</string>
	</dict>
</dict>
</plist>`

func testResolver(t *testing.T, ex region.Exceptions) *Resolver {
	t.Helper()
	dat, err := cty.ParseDat(strings.NewReader(testDat))
	if err != nil {
		t.Fatalf("parse dat: %v", err)
	}
	plist, err := cty.ParsePlist(strings.NewReader(testPlist))
	if err != nil {
		t.Fatalf("parse plist: %v", err)
	}
	return NewResolver(dat, plist, region.NewResolver(ex, nil))
}

func TestResolveCombinesDatabases(t *testing.T) {
	r := testResolver(t, nil)
	got := r.Resolve("gm0muw")
	want := qso.Geo{Country: "Scotland", DXCC: 279, CQZone: 14, ITUZone: 27, Continent: "EU", PrimaryPrefix: "GM"}
	if got != want {
		t.Fatalf("Resolve(GM0MUW) = %+v, want %+v", got, want)
	}
}

func TestResolveLongestPrefixAndRegion(t *testing.T) {
	r := testResolver(t, nil)
	got := r.Resolve("UA9XYZ")
	if got.Country != "Asiatic Russia" || got.PrimaryPrefix != "UA9" || got.DXCC != 15 {
		t.Fatalf("expected Asiatic Russia via UA9, got %+v", got)
	}
	if got.Region != "KO" {
		t.Fatalf("expected region KO, got %q", got.Region)
	}
	got = r.Resolve("UA3AAA/P")
	if got.Country != "European Russia" || got.Region != "MA" {
		t.Fatalf("expected European Russia MA, got %+v", got)
	}
}

func TestResolveExceptionWins(t *testing.T) {
	r := testResolver(t, region.Exceptions{"UA3AAA": "SM", "R3LO": "SM"})
	if got := r.Resolve("UA3AAA").Region; got != "SM" {
		t.Fatalf("expected exception region SM, got %q", got)
	}
	if got := r.Resolve("R3LO/P").Region; got != "SM" {
		t.Fatalf("expected exception region for portable call, got %q", got)
	}
}

func TestResolveNoRegionOutsideAllowList(t *testing.T) {
	r := testResolver(t, nil)
	got := r.Resolve("DL/UA3AAA")
	if got.Country != "Germany" || got.Region != "" {
		t.Fatalf("expected Germany without region, got %+v", got)
	}
}

func TestResolveFallsBackToPlist(t *testing.T) {
	r := testResolver(t, nil)
	got := r.Resolve("VK2ABC")
	if got.Country != "Australia" || got.CQZone != 30 || got.Continent != "OC" || got.DXCC != 150 {
		t.Fatalf("expected plist fallback, got %+v", got)
	}
}

func TestResolveUnmatched(t *testing.T) {
	r := testResolver(t, nil)
	if got := r.Resolve("QQ1QQ"); !got.IsZero() {
		t.Fatalf("expected zero Geo, got %+v", got)
	}
	if got := r.Resolve(""); !got.IsZero() {
		t.Fatalf("expected zero Geo for empty call, got %+v", got)
	}
	var nilResolver *Resolver
	if got := nilResolver.Resolve("GM0MUW"); !got.IsZero() {
		t.Fatalf("nil resolver must resolve nothing, got %+v", got)
	}
}

func TestLocation(t *testing.T) {
	r := testResolver(t, nil)
	lat, lon, grid, ok := r.Location("GM0MUW")
	if !ok {
		t.Fatalf("expected GM0MUW to locate")
	}
	if lat != 56.82 || lon != -4.18 || grid != "IO76" {
		t.Fatalf("unexpected location %v %v %q", lat, lon, grid)
	}
	if _, _, _, ok := r.Location("QQ1QQ"); ok {
		t.Fatalf("expected unmatched call not to locate")
	}
}

func TestEntities(t *testing.T) {
	r := testResolver(t, nil)
	entities := r.Entities()
	if len(entities) != 4 || entities[0].PrimaryPrefix != "GM" || entities[0].Grid() != "IO76" {
		t.Fatalf("unexpected cty.dat entities %+v", entities)
	}

	plist, err := cty.ParsePlist(strings.NewReader(testPlist))
	if err != nil {
		t.Fatalf("parse plist: %v", err)
	}
	plistOnly := NewResolver(nil, plist, nil)
	if got := len(plistOnly.Entities()); got != 4 {
		t.Fatalf("expected 4 plist entities, got %d", got)
	}
	var empty *Resolver
	if empty.Entities() != nil {
		t.Fatalf("nil resolver must list no entities")
	}
}

func TestRegisterMetrics(t *testing.T) {
	r := testResolver(t, nil)
	reg := prometheus.NewRegistry()
	if err := RegisterMetrics(reg, r); err != nil {
		t.Fatalf("register: %v", err)
	}
	r.Resolve("GM0MUW")
	r.Resolve("GM0MUW")

	dat, _ := r.Lookups()
	if dat.TotalLookups == 0 || dat.CacheHits == 0 {
		t.Fatalf("expected dat lookups and cache hits, got %+v", dat)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() != "qsolog_geo_lookups_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "db" && l.GetValue() == "dat" {
					found = true
					if got := m.GetCounter().GetValue(); got != float64(dat.TotalLookups) {
						t.Fatalf("dat lookups = %v, want %d", got, dat.TotalLookups)
					}
				}
			}
		}
	}
	if !found {
		t.Fatalf("qsolog_geo_lookups_total{db=\"dat\"} not gathered")
	}
	if err := RegisterMetrics(reg, r); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

func TestLoadDegradesAndLogs(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	dir := t.TempDir()
	r, report := Load(config.CTYConfig{
		DatPath:   filepath.Join(dir, "missing.dat"),
		PlistPath: filepath.Join(dir, "missing.plist"),
	}, config.RegionConfig{ExceptionsPath: filepath.Join(dir, "missing.txt")}, zap.New(core))
	if r.Ready() {
		t.Fatalf("resolver without databases must not be ready")
	}
	if got := r.Resolve("GM0MUW"); !got.IsZero() {
		t.Fatalf("expected unresolved, got %+v", got)
	}
	if report.DatKeys != 0 || report.PlistKeys != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if n := logs.FilterLevelExact(zapcore.WarnLevel).Len(); n != 3 {
		t.Fatalf("expected 3 warnings (dat, plist, none loaded), got %d", n)
	}
}

func TestLoadFromFiles(t *testing.T) {
	dir := t.TempDir()
	datPath := filepath.Join(dir, "cty.dat")
	plistPath := filepath.Join(dir, "cty.plist")
	exPath := filepath.Join(dir, "exceptions.txt")
	for path, body := range map[string]string{
		datPath:   testDat,
		plistPath: testPlist,
		exPath:    "# test\nUA3AAA:SM\nbroken\n",
	} {
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	r, report := Load(config.CTYConfig{DatPath: datPath, PlistPath: plistPath, CacheSize: 10},
		config.RegionConfig{ExceptionsPath: exPath}, nil)
	if !r.Ready() {
		t.Fatalf("expected resolver to be ready")
	}
	if report.Exceptions != 1 || report.MalformedLines != 1 || report.DatKeys == 0 || report.PlistKeys != 4 {
		t.Fatalf("unexpected report %+v", report)
	}
	if got := r.Resolve("UA3AAA").Region; got != "SM" {
		t.Fatalf("expected exception region, got %q", got)
	}
}

func TestLoadWarnsOnSkippedDatEntities(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	datPath := filepath.Join(t.TempDir(), "cty.dat")
	body := "Broken:  1:  2:  EU:\n    XX;\n" + testDat
	if err := os.WriteFile(datPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write dat: %v", err)
	}
	r, report := Load(config.CTYConfig{DatPath: datPath, CacheSize: 10}, config.RegionConfig{}, zap.New(core))
	if !r.Ready() {
		t.Fatalf("expected resolver to be ready despite one broken entity")
	}
	if report.DatSkipped != 1 {
		t.Fatalf("expected 1 skipped entity, got %+v", report)
	}
	warned := logs.FilterMessage("skipped malformed cty.dat entities").All()
	if len(warned) != 1 {
		t.Fatalf("expected one skipped-entities warning, got %d", len(warned))
	}
	if got := warned[0].ContextMap()["skipped"]; got != int64(1) {
		t.Fatalf("expected skipped=1 in log, got %v", got)
	}
}
