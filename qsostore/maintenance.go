package qsostore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/pebble"

	"qsolog/qso"
)

// IntegrityStats reports the outcome of a full record scan.
type IntegrityStats struct {
	Records  int64
	Owners   int
	Duration time.Duration
}

// Checkpoint writes a consistent copy of the store to dest with a flushed WAL.
func (s *Store) Checkpoint(dest string) error {
	if s == nil || s.db == nil {
		return errNotOpen
	}
	if strings.TrimSpace(dest) == "" {
		return errors.New("qsostore: checkpoint destination is empty")
	}
	if err := s.db.Checkpoint(dest, pebble.WithFlushedWAL()); err != nil {
		return fmt.Errorf("qsostore: checkpoint %s: %w", dest, err)
	}
	return nil
}

// Verify decodes every stored record, stopping at the first bad value or when
// maxDuration elapses.
func (s *Store) Verify(ctx context.Context, maxDuration time.Duration) (IntegrityStats, error) {
	if s == nil || s.db == nil {
		return IntegrityStats{}, errNotOpen
	}
	return verifyDB(ctx, s.db, maxDuration)
}

// VerifyCheckpoint opens a checkpoint read-only and verifies it.
func VerifyCheckpoint(ctx context.Context, path string, maxDuration time.Duration) (IntegrityStats, error) {
	if strings.TrimSpace(path) == "" {
		return IntegrityStats{}, errors.New("qsostore: checkpoint path is empty")
	}
	info, err := os.Stat(path)
	if err != nil {
		return IntegrityStats{}, fmt.Errorf("qsostore: checkpoint stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return IntegrityStats{}, fmt.Errorf("qsostore: checkpoint %s is not a directory", path)
	}
	db, err := pebble.Open(path, &pebble.Options{ReadOnly: true})
	if err != nil {
		return IntegrityStats{}, fmt.Errorf("qsostore: checkpoint open %s: %w", path, err)
	}
	defer db.Close()
	return verifyDB(ctx, db, maxDuration)
}

func verifyDB(ctx context.Context, db *pebble.DB, maxDuration time.Duration) (IntegrityStats, error) {
	start := time.Now()
	var deadline time.Time
	if maxDuration > 0 {
		deadline = start.Add(maxDuration)
	}
	stats := IntegrityStats{}

	iter, err := db.NewIter(iterOptionsForPrefix(recordPrefix))
	if err != nil {
		return stats, fmt.Errorf("qsostore: verify iterator: %w", err)
	}
	defer iter.Close()

	owners := make(map[int64]struct{})
	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return stats, errors.New("qsostore: integrity scan timed out")
		}
		var rec qso.Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return stats, fmt.Errorf("qsostore: verify decode %q: %w", iter.Key(), err)
		}
		owners[rec.OwnerID] = struct{}{}
		stats.Records++
	}
	if err := iter.Error(); err != nil {
		return stats, fmt.Errorf("qsostore: verify iterate: %w", err)
	}
	stats.Owners = len(owners)
	stats.Duration = time.Since(start)
	return stats, nil
}
