// Package sqliteutil holds SQLite maintenance helpers shared by the stores.
package sqliteutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const defaultPreflightTimeout = 2 * time.Second

// PreflightResult reports the outcome of a SQLite preflight check.
type PreflightResult struct {
	Healthy         bool   // No issues detected; safe to proceed.
	Skipped         bool   // No database file existed yet.
	Quarantined     bool   // The database was renamed out of the way.
	QuarantinePath  string // Path of the quarantined main file.
	Elapsed         time.Duration
	CheckpointError error
	CheckError      error
}

// Preflight checks an existing SQLite database before the main open.
// Purpose: Keep a corrupt logbook from failing every later run.
// Key aspects: Runs a bounded WAL checkpoint and quick_check. A file that fails
// either step is renamed, sidecars included, to a timestamped .bad- path so the
// caller can continue with a fresh file. A timeout is returned as an error and
// nothing is moved. A missing file is reported as Skipped.
// Upstream: logbook.Open.
// Downstream: modernc.org/sqlite, os.Rename.
func Preflight(ctx context.Context, path, role string, timeout time.Duration, logger *zap.Logger) (PreflightResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultPreflightTimeout
	}
	res := PreflightResult{}
	if strings.TrimSpace(path) == "" {
		return res, errors.New("sqliteutil: preflight: empty path")
	}
	existing := collectExisting(path)
	if !existing[0].have {
		res.Healthy = true
		res.Skipped = true
		return res, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return res, fmt.Errorf("sqliteutil: preflight: ensure dir: %w", err)
	}

	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return res, fmt.Errorf("sqliteutil: preflight: open %s db: %w", role, err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.ExecContext(checkCtx, fmt.Sprintf("pragma busy_timeout=%d", timeout.Milliseconds())); err != nil {
		return res, fmt.Errorf("sqliteutil: preflight: set busy_timeout %s: %w", role, err)
	}

	res.CheckpointError = runCheckpoint(checkCtx, db)
	res.CheckError = quickCheck(checkCtx, db)
	res.Elapsed = time.Since(start)
	if res.CheckpointError == nil && res.CheckError == nil {
		res.Healthy = true
		return res, nil
	}
	if errors.Is(checkCtx.Err(), context.DeadlineExceeded) {
		return res, fmt.Errorf("sqliteutil: preflight: %s db timed out after %s", role, timeout)
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	_ = db.Close()
	quarantinePath, err := quarantine(path, existing, time.Now().UTC(), logger)
	if err != nil {
		return res, fmt.Errorf("sqliteutil: preflight: %s db quarantine failed: %w (checkpoint=%v, quick_check=%v)", role, err, res.CheckpointError, res.CheckError)
	}
	res.Quarantined = true
	res.QuarantinePath = quarantinePath
	logger.Warn("sqlite preflight failed, database quarantined",
		zap.String("role", role),
		zap.String("quarantine_path", quarantinePath),
		zap.NamedError("checkpoint_error", res.CheckpointError),
		zap.NamedError("quick_check_error", res.CheckError),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

func runCheckpoint(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, "pragma wal_checkpoint(TRUNCATE)")
	return err
}

func quickCheck(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, "pragma quick_check")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return err
		}
		if strings.TrimSpace(status) != "ok" {
			return fmt.Errorf("quick_check reported %q", status)
		}
	}
	return rows.Err()
}

type fileState struct {
	path string
	have bool
}

// collectExisting records which of the database file and its sidecars exist.
// The main file is always first.
func collectExisting(path string) []fileState {
	targets := []string{path, path + "-wal", path + "-shm", path + "-journal"}
	out := make([]fileState, 0, len(targets))
	for _, t := range targets {
		_, err := os.Stat(t)
		out = append(out, fileState{path: t, have: err == nil})
	}
	return out
}

func quarantine(path string, existing []fileState, now time.Time, logger *zap.Logger) (string, error) {
	suffix := ".bad-" + now.Format("20060102T150405Z")
	for _, state := range existing {
		if !state.have {
			continue
		}
		if err := os.Rename(state.path, state.path+suffix); err != nil {
			if os.IsNotExist(err) {
				// Sidecars can vanish during the checkpoint attempt.
				logger.Debug("sqlite sidecar disappeared before quarantine", zap.String("path", state.path))
				continue
			}
			return "", err
		}
	}
	return path + suffix, nil
}
