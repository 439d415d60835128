package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadDirectoryMergesFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.yaml", `owner:
  id: 42
  callsign: "ua3aaa"
store:
  driver: pebble
  path: /tmp/qso
`)
	writeFile(t, dir, "region.yml", `region:
  prefixes: ["UA9"]
ingest:
  batch_size: 50
`)
	writeFile(t, dir, "notes.txt", "ignored: true\n")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got := filepath.Clean(cfg.LoadedFrom); got != filepath.Clean(dir) {
		t.Fatalf("expected LoadedFrom=%s, got %s", dir, got)
	}
	if cfg.Owner.ID != 42 || cfg.Owner.Callsign != "ua3aaa" {
		t.Fatalf("owner not merged from app.yaml: %+v", cfg.Owner)
	}
	if cfg.Store.Driver != DriverPebble || cfg.Store.Path != "/tmp/qso" {
		t.Fatalf("store not merged: %+v", cfg.Store)
	}
	if len(cfg.Region.Prefixes) != 1 || cfg.Region.Prefixes[0] != "UA9" {
		t.Fatalf("expected region.prefixes to be replaced, got %v", cfg.Region.Prefixes)
	}
	if cfg.Ingest.BatchSize != 50 || cfg.Ingest.Workers != 1 {
		t.Fatalf("expected batch_size override and default workers, got %+v", cfg.Ingest)
	}
	if cfg.CTY.CacheSize != 50000 {
		t.Fatalf("expected default cty.cache_size, got %d", cfg.CTY.CacheSize)
	}
}

func TestLoadLaterFilesWin(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "ingest:\n  workers: 2\n")
	writeFile(t, dir, "b.yaml", "ingest:\n  workers: 4\n")
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Ingest.Workers != 4 {
		t.Fatalf("expected lexically later file to win, got %d", cfg.Ingest.Workers)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.yaml", "store:\n  path: from-file.db\n")
	t.Setenv("QSOLOG_STORE__PATH", "from-env.db")
	t.Setenv("QSOLOG_INGEST__BATCH_SIZE", "7")
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Store.Path != "from-env.db" {
		t.Fatalf("expected env to win, got %q", cfg.Store.Path)
	}
	if cfg.Ingest.BatchSize != 7 {
		t.Fatalf("expected env batch size 7, got %d", cfg.Ingest.BatchSize)
	}
}

func TestLoadWithoutDirectoryUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.LoadedFrom != "" || cfg.Store.Driver != DriverSQLite {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadRejectsFilePath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.yaml", "ingest:\n  workers: 2\n")
	_, err := Load(filepath.Join(dir, "app.yaml"))
	if !errors.Is(err, ErrLoadConfig) {
		t.Fatalf("expected ErrLoadConfig for file path, got %v", err)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.yaml", "store:\n  driver: mysql\n")
	_, err := Load(dir)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestOwnerBuildValidatesAlternates(t *testing.T) {
	owner := OwnerConfig{
		ID:       1,
		Callsign: "ua3aaa",
		Alternates: []AlternateConfig{
			{Call: "R3LO", Since: "2025-01-01", Until: "2025-12-31"},
		},
	}
	built, err := owner.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := built.CallsignOn(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)); got != "R3LO" {
		t.Fatalf("expected alternate in window, got %q", got)
	}
	owner.Alternates[0].Until = "2024-01-01"
	if _, err := owner.Build(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for inverted window, got %v", err)
	}
	owner.Alternates[0] = AlternateConfig{Call: "R3LO", Since: "01/01/2025"}
	if _, err := owner.Build(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for bad date, got %v", err)
	}
}

func TestDumpRoundTripsKeys(t *testing.T) {
	cfg := Default()
	var buf strings.Builder
	if err := cfg.Dump(&buf); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"batch_size: 500", "driver: sqlite", "dat_url: https://www.country-files.com/cty/cty.dat"} {
		if !strings.Contains(out, want) {
			t.Fatalf("dump missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "loadedfrom") || strings.Contains(out, "LoadedFrom") {
		t.Fatalf("LoadedFrom must not be dumped:\n%s", out)
	}
}
