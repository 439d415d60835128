// Package logbook persists contacts to SQLite. The duplicate key is enforced
// by a unique index so concurrent imports for the same owner cannot store a
// contact twice.
package logbook

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"qsolog/ingest"
	"qsolog/qso"
	"qsolog/sqliteutil"
)

const defaultBusyTimeout = 5 * time.Second

// Options tunes Open.
type Options struct {
	BusyTimeout      time.Duration
	PreflightTimeout time.Duration
	Logger           *zap.Logger
	// Clock stamps inserted_at. Defaults to the real clock.
	Clock clockwork.Clock
}

// Store is a SQLite-backed ingest.Sink.
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
	clock  clockwork.Clock
}

var _ ingest.Sink = (*Store)(nil)

// Open runs a preflight check on an existing file, then opens (or creates) the
// database at path and ensures the schema exists.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("logbook: empty path")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = defaultBusyTimeout
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logbook: ensure dir: %w", err)
	}

	res, err := sqliteutil.Preflight(ctx, path, "logbook", opts.PreflightTimeout, opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("logbook: %w", err)
	}
	if res.Quarantined {
		opts.Logger.Warn("logbook was unhealthy and has been replaced with an empty one",
			zap.String("quarantine", res.QuarantinePath))
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)", path, opts.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("logbook: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", opts.BusyTimeout.Milliseconds()),
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("logbook: %s: %w", p, err)
		}
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	opts.Logger.Debug("logbook opened", zap.String("path", path), zap.Duration("preflight", res.Elapsed))
	return &Store{db: db, path: path, logger: opts.Logger, clock: opts.Clock}, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS qso (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_id INTEGER NOT NULL,
    operator_call TEXT NOT NULL,
    call TEXT NOT NULL,
    qso_date TEXT NOT NULL,
    time_on TEXT NOT NULL,
    band TEXT NOT NULL,
    mode TEXT NOT NULL,
    submode TEXT,
    freq_mhz REAL,
    rst_sent TEXT,
    rst_rcvd TEXT,
    my_gridsquare TEXT,
    gridsquare TEXT,
    prop_mode TEXT,
    sat_name TEXT,
    name TEXT,
    qth TEXT,
    comment TEXT,
    country TEXT,
    dxcc INTEGER,
    cq_zone INTEGER,
    itu_zone INTEGER,
    continent TEXT,
    primary_prefix TEXT,
    region TEXT,
    inserted_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_qso_dupkey
    ON qso(owner_id, operator_call, call, qso_date, time_on, band, mode);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("logbook: init schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether a contact with key is stored.
func (s *Store) Exists(ctx context.Context, key qso.DuplicateKey) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
SELECT 1 FROM qso
WHERE owner_id = ? AND operator_call = ? AND call = ? AND qso_date = ? AND time_on = ? AND band = ? AND mode = ?
LIMIT 1`,
		key.OwnerID, key.OperatorCall, key.Call, key.Date, key.Time, key.Band, key.Mode,
	).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("logbook: exists: %w", err)
	}
	return true, nil
}

// InsertBatch stores records in one transaction. Rows whose duplicate key is
// already present are left untouched; the return value counts new rows only.
// A unique-constraint failure that escapes the conflict clause is reported as
// ingest.ErrConflict.
func (s *Store) InsertBatch(ctx context.Context, records []qso.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("logbook: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO qso (
    owner_id, operator_call, call, qso_date, time_on, band, mode,
    submode, freq_mhz, rst_sent, rst_rcvd, my_gridsquare, gridsquare, prop_mode, sat_name,
    name, qth, comment,
    country, dxcc, cq_zone, itu_zone, continent, primary_prefix, region,
    inserted_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(owner_id, operator_call, call, qso_date, time_on, band, mode) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("logbook: prepare insert: %w", err)
	}
	defer stmt.Close()

	now := s.clock.Now().UTC().Unix()
	inserted := 0
	for _, rec := range records {
		key := rec.Key()
		res, err := stmt.ExecContext(ctx,
			key.OwnerID, key.OperatorCall, key.Call, key.Date, key.Time, key.Band, key.Mode,
			rec.Submode, rec.FrequencyMHz, rec.RSTSent, rec.RSTReceived, rec.OperatorLocator, rec.Locator,
			rec.PropMode, rec.SatName,
			rec.Name, rec.QTH, rec.Comment,
			rec.Geo.Country, rec.Geo.DXCC, rec.Geo.CQZone, rec.Geo.ITUZone, rec.Geo.Continent,
			rec.Geo.PrimaryPrefix, rec.Geo.Region,
			now,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return 0, fmt.Errorf("logbook: insert %s: %w", key, ingest.ErrConflict)
			}
			return 0, fmt.Errorf("logbook: insert %s: %w", key, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("logbook: commit: %w", err)
	}
	return inserted, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Count returns the number of contacts stored for ownerID.
func (s *Store) Count(ctx context.Context, ownerID int64) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM qso WHERE owner_id = ?`, ownerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("logbook: count: %w", err)
	}
	return n, nil
}

// Records returns every contact for ownerID in chronological order.
func (s *Store) Records(ctx context.Context, ownerID int64) ([]qso.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT owner_id, operator_call, call, qso_date, time_on, band, mode,
       submode, freq_mhz, rst_sent, rst_rcvd, my_gridsquare, gridsquare, prop_mode, sat_name,
       name, qth, comment,
       country, dxcc, cq_zone, itu_zone, continent, primary_prefix, region
FROM qso
WHERE owner_id = ?
ORDER BY qso_date, time_on, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("logbook: query records: %w", err)
	}
	defer rows.Close()

	var out []qso.Record
	for rows.Next() {
		var (
			rec          qso.Record
			date, timeOn string
		)
		if err := rows.Scan(
			&rec.OwnerID, &rec.OperatorCall, &rec.Call, &date, &timeOn, &rec.Band, &rec.Mode,
			&rec.Submode, &rec.FrequencyMHz, &rec.RSTSent, &rec.RSTReceived, &rec.OperatorLocator, &rec.Locator,
			&rec.PropMode, &rec.SatName,
			&rec.Name, &rec.QTH, &rec.Comment,
			&rec.Geo.Country, &rec.Geo.DXCC, &rec.Geo.CQZone, &rec.Geo.ITUZone, &rec.Geo.Continent,
			&rec.Geo.PrimaryPrefix, &rec.Geo.Region,
		); err != nil {
			return nil, fmt.Errorf("logbook: scan record: %w", err)
		}
		start, err := time.ParseInLocation(qso.DateLayout+" "+qso.TimeLayout, date+" "+timeOn, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("logbook: record %s %s: %w", rec.Call, date, err)
		}
		rec.Start = start
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("logbook: iterate records: %w", err)
	}
	return out, nil
}
