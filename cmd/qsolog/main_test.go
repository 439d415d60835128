package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qsolog/ingest"
)

const testDat = `Scotland:                 14:  27:  EU:   56.82:     4.18:     0.0:  *GM:
    GM,MM,GS;
Germany:                  14:  28:  EU:   51.00:   -10.00:    -1.0:  DL:
    DL,DA;
`

const testLog = `exported by a logger <EOH>
<CALL:6>GM0MUW <QSO_DATE:8>20260103 <TIME_ON:6>111949 <FREQ:12>10489.899880 <MODE:3>SSB <EOR>
<CALL:6>DL1ABC <QSO_DATE:8>20260104 <TIME_ON:4>0800 <BAND:3>40m <MODE:2>CW <EOR>
<CALL:6>DL1ABC <QSO_DATE:8>20260104 <TIME_ON:4>0800 <BAND:3>40m <MODE:2>CW <EOR>
`

type testEnv struct {
	dir       string
	configDir string
	logPath   string
}

func newTestEnv(t *testing.T, driver string) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{
		dir:       dir,
		configDir: filepath.Join(dir, "config"),
		logPath:   filepath.Join(dir, "log.adi"),
	}
	require.NoError(t, os.MkdirAll(env.configDir, 0o755))
	datPath := filepath.Join(dir, "cty.dat")
	require.NoError(t, os.WriteFile(datPath, []byte(testDat), 0o644))
	require.NoError(t, os.WriteFile(env.logPath, []byte(testLog), 0o644))

	cfg := fmt.Sprintf(`cty:
  dat_path: %q
  plist_path: ""
region:
  exceptions_path: ""
store:
  driver: %s
  path: %q
owner:
  id: 7
  callsign: R3LO
  locator: KO85ts
logging:
  level: error
`, datPath, driver, filepath.Join(dir, "store", "qsolog.db"))
	require.NoError(t, os.WriteFile(filepath.Join(env.configDir, "10-test.yaml"), []byte(cfg), 0o644))
	return env
}

func (e testEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	return e.runApp(t, newApp(strings.NewReader(""), &stdout, &stderr), args...)
}

func (e testEnv) runApp(t *testing.T, a *app, args ...string) (string, string, error) {
	t.Helper()
	stdout, stderr := a.stdout.(*bytes.Buffer), a.stderr.(*bytes.Buffer)
	cmd := newRootCmd(a)
	cmd.SetArgs(append([]string{"--config", e.configDir}, args...))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	a.close()
	return stdout.String(), stderr.String(), err
}

type importOutput struct {
	Files  []fileReport `json:"files"`
	Stored int          `json:"stored"`
}

func decodeImport(t *testing.T, out string) importOutput {
	t.Helper()
	var got importOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got), out)
	return got
}

func TestImportThenReimport(t *testing.T) {
	for _, driver := range []string{"sqlite", "pebble"} {
		t.Run(driver, func(t *testing.T) {
			env := newTestEnv(t, driver)

			out, _, err := env.run(t, "import", env.logPath)
			require.NoError(t, err)
			first := decodeImport(t, out)
			require.Len(t, first.Files, 1)
			assert.Equal(t, 2, first.Files[0].Inserted)
			assert.Equal(t, 1, first.Files[0].SkipReasons[ingest.ReasonDuplicate])
			assert.Equal(t, 2, first.Stored)

			out, _, err = env.run(t, "import", "--batch-size", "1", "--workers", "2", env.logPath)
			require.NoError(t, err)
			second := decodeImport(t, out)
			assert.Equal(t, 0, second.Files[0].Inserted)
			assert.Equal(t, 3, second.Files[0].Skipped)
			assert.Equal(t, 2, second.Stored)
		})
	}
}

func TestImportMissingFileReportsAndFails(t *testing.T) {
	env := newTestEnv(t, "sqlite")
	missing := filepath.Join(env.dir, "missing.adi")

	out, _, err := env.run(t, "import", missing, env.logPath)
	require.Error(t, err)
	got := decodeImport(t, out)
	require.Len(t, got.Files, 2)
	assert.Contains(t, got.Files[0].Error, "missing.adi")
	assert.Equal(t, 2, got.Files[1].Inserted)
}

func TestImportWritesMetricsFile(t *testing.T) {
	env := newTestEnv(t, "sqlite")
	metricsPath := filepath.Join(env.dir, "ingest.prom")

	_, _, err := env.run(t, "import", "--metrics-file", metricsPath, env.logPath)
	require.NoError(t, err)
	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `qsolog_ingest_records_total{outcome="inserted",reason="none"} 2`)
	assert.Contains(t, string(data), `qsolog_ingest_records_total{outcome="skipped",reason="duplicate"} 1`)
	assert.Contains(t, string(data), `qsolog_geo_lookups_total{db="dat"}`)
	assert.Contains(t, string(data), `qsolog_geo_lookups_total{db="plist"} 0`)
}

func TestImportHumanFormat(t *testing.T) {
	env := newTestEnv(t, "sqlite")

	out, _, err := env.run(t, "import", "--format", "human", env.logPath)
	require.NoError(t, err)
	assert.Contains(t, out, "2 inserted, 1 skipped, 0 errored")
	assert.Contains(t, out, "skipped duplicate")
	assert.Contains(t, out, "2 contacts stored for owner 7")
}

func TestImportRejectsUnknownFormat(t *testing.T) {
	env := newTestEnv(t, "sqlite")
	_, _, err := env.run(t, "import", "--format", "xml", env.logPath)
	require.Error(t, err)
}

func TestExportRoundTrip(t *testing.T) {
	env := newTestEnv(t, "sqlite")
	_, _, err := env.run(t, "import", env.logPath)
	require.NoError(t, err)

	out, _, err := env.run(t, "export")
	require.NoError(t, err)
	assert.Contains(t, out, "<PROGRAMID:6>qsolog")
	assert.Contains(t, out, "<CALL:6>GM0MUW")
	assert.Contains(t, out, "<BAND:3>3cm")
	assert.Contains(t, out, "<COUNTRY:8>Scotland")
	assert.Contains(t, out, "<STATION_CALLSIGN:4>R3LO")
	assert.Equal(t, 2, strings.Count(out, "<EOR>"))

	exported := filepath.Join(env.dir, "export.adi")
	_, _, err = env.run(t, "export", exported)
	require.NoError(t, err)
	data, err := os.ReadFile(exported)
	require.NoError(t, err)
	assert.Equal(t, out[strings.Index(out, "<EOH>"):], string(data)[strings.Index(string(data), "<EOH>"):])
}

func TestExportAndConvertStampHeaderWithAppClock(t *testing.T) {
	env := newTestEnv(t, "sqlite")
	at := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	newClockedApp := func() *app {
		a := newApp(strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{})
		a.clock = clockwork.NewFakeClockAt(at)
		return a
	}

	_, _, err := env.runApp(t, newClockedApp(), "import", env.logPath)
	require.NoError(t, err)
	out, _, err := env.runApp(t, newClockedApp(), "export")
	require.NoError(t, err)
	assert.Contains(t, out, "<CREATED_TIMESTAMP:15>20260201 093000")

	out, _, err = env.runApp(t, newClockedApp(), "convert", env.logPath)
	require.NoError(t, err)
	assert.Contains(t, out, "<CREATED_TIMESTAMP:15>20260201 093000")
}

func TestConvertWritesToStdout(t *testing.T) {
	env := newTestEnv(t, "sqlite")

	out, stderr, err := env.run(t, "convert", env.logPath)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "<EOR>"))
	assert.Contains(t, out, "<COUNTRY:7>Germany")
	assert.Contains(t, stderr, "2 inserted, 1 skipped")

	_, statErr := os.Stat(filepath.Join(env.dir, "store", "qsolog.db"))
	assert.True(t, os.IsNotExist(statErr), "convert must not open the store")
}

func TestAddSingleContact(t *testing.T) {
	env := newTestEnv(t, "sqlite")
	args := []string{"add", "call=DL1ABC", "qso_date=20260104", "time_on=0800", "band=40m", "mode=CW"}

	out, _, err := env.run(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, `"outcome": "inserted"`)

	out, _, err = env.run(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, `"outcome": "skipped"`)
	assert.Contains(t, out, `"reason": "duplicate"`)

	_, _, err = env.run(t, "add", "qso_date")
	require.Error(t, err)
}

func TestAddRejectsUnknownTag(t *testing.T) {
	env := newTestEnv(t, "sqlite")
	_, _, err := env.run(t, "add", "call=DL1ABC", "frq=14.074")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown field "frq"`)

	_, statErr := os.Stat(filepath.Join(env.dir, "store", "qsolog.db"))
	assert.True(t, os.IsNotExist(statErr), "a rejected add must not open the store")
}

func TestCheckFieldTags(t *testing.T) {
	require.NoError(t, checkFieldTags(map[string]string{"call": "X", "rst_rcvd": "59", "my_gridsquare": "IO76"}))
	require.Error(t, checkFieldTags(map[string]string{"callsign": "X"}))
}

func TestEntities(t *testing.T) {
	env := newTestEnv(t, "sqlite")

	out, _, err := env.run(t, "entities")
	require.NoError(t, err)
	var rows []entityRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows), out)
	require.Len(t, rows, 2)
	assert.Equal(t, "GM", rows[0].Prefix)
	assert.Equal(t, "Scotland", rows[0].Country)
	assert.Equal(t, "IO76", rows[0].Grid)
	assert.Equal(t, "DL", rows[1].Prefix)

	out, _, err = env.run(t, "entities", "--format", "human")
	require.NoError(t, err)
	assert.Contains(t, out, "PREFIX")
	assert.Contains(t, out, "Germany")
}

func TestLookup(t *testing.T) {
	env := newTestEnv(t, "sqlite")

	out, _, err := env.run(t, "lookup", "gm0muw", "QQ1QQ")
	require.NoError(t, err)
	var results []lookupResult
	require.NoError(t, json.Unmarshal([]byte(out), &results), out)
	require.Len(t, results, 2)
	assert.True(t, results[0].Found)
	assert.Equal(t, "GM0MUW", results[0].Call)
	assert.Equal(t, "Scotland", results[0].Geo.Country)
	assert.Equal(t, "IO76", results[0].Grid)
	assert.False(t, results[1].Found)

	out, _, err = env.run(t, "lookup", "--format", "human", "DL1ABC")
	require.NoError(t, err)
	assert.Contains(t, out, "COUNTRY")
	assert.Contains(t, out, "Germany")
}

func TestLookupReadsStdin(t *testing.T) {
	env := newTestEnv(t, "sqlite")
	var stdout bytes.Buffer
	a := newApp(strings.NewReader("gm0muw\n\nqq1qq\n"), &stdout, &bytes.Buffer{})
	cmd := newRootCmd(a)
	cmd.SetArgs([]string{"--config", env.configDir, "lookup"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	a.close()

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "GM0MUW -> prefix=GM, country=Scotland")
	assert.Contains(t, lines[0], "grid=IO76")
	assert.Equal(t, "QQ1QQ -> no matching prefix", lines[1])
}

func TestConfigDump(t *testing.T) {
	env := newTestEnv(t, "pebble")
	out, _, err := env.run(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "driver: pebble")
	assert.Contains(t, out, "callsign: R3LO")
}

func TestParseFieldArgs(t *testing.T) {
	fields, err := parseFieldArgs([]string{"CALL=GM0MUW", " comment =a=b", "name="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"call": "GM0MUW", "comment": "a=b", "name": ""}, fields)

	_, err = parseFieldArgs([]string{"=x"})
	assert.Error(t, err)
}
