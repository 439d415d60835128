// Package qsostore persists contacts in a Pebble key/value store. Keys embed
// the full duplicate key, so uniqueness is structural and per-owner scans come
// back in chronological order.
package qsostore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
	jsoniter "github.com/json-iterator/go"

	"qsolog/ingest"
	"qsolog/qso"
	"qsolog/strutil"
)

const (
	recordPrefix = "q|"
	countPrefix  = "meta|count|"
)

var (
	errStoreClosed  = errors.New("qsostore: store is closed")
	errInvalidCount = errors.New("qsostore: invalid count metadata")
	errNotOpen      = errors.New("qsostore: store is not initialized")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultCacheSizeBytes        = int64(32 << 20) // 32MB shared block cache
	defaultBloomFilterBits       = 10              // Bits per key for bloom filters on SSTables
	defaultMemTableSizeBytes     = uint64(16 << 20)
	defaultL0CompactionThreshold = 4
	defaultL0StopWritesThreshold = 16
	defaultWriteQueueDepth       = 16 // Buffered channel depth feeding the single writer
)

// Options controls Pebble tuning and writer buffering. Zero or negative fields
// are replaced with defaults by sanitizeOptions.
type Options struct {
	CacheSizeBytes        int64
	BloomFilterBitsPerKey int
	MemTableSizeBytes     uint64
	L0CompactionThreshold int
	L0StopWritesThreshold int
	WriteQueueDepth       int
}

// Store is a Pebble-backed ingest.Sink. All writes go through one goroutine so
// the existence check and the insert of a batch cannot interleave with another
// batch.
type Store struct {
	db     *pebble.DB
	writes chan writeRequest
	done   chan struct{}
	cache  *pebble.Cache

	mu     sync.Mutex
	closed bool
}

var _ ingest.Sink = (*Store)(nil)

type writeRequest struct {
	recs []qso.Record
	resp chan writeResult
}

type writeResult struct {
	inserted int
	err      error
}

func sanitizeOptions(opts Options) Options {
	if opts.CacheSizeBytes <= 0 {
		opts.CacheSizeBytes = defaultCacheSizeBytes
	}
	if opts.BloomFilterBitsPerKey <= 0 {
		opts.BloomFilterBitsPerKey = defaultBloomFilterBits
	}
	if opts.MemTableSizeBytes <= 0 {
		opts.MemTableSizeBytes = defaultMemTableSizeBytes
	}
	if opts.L0CompactionThreshold <= 0 {
		opts.L0CompactionThreshold = defaultL0CompactionThreshold
	}
	if opts.L0StopWritesThreshold <= opts.L0CompactionThreshold {
		opts.L0StopWritesThreshold = defaultL0StopWritesThreshold
		if opts.L0StopWritesThreshold <= opts.L0CompactionThreshold {
			opts.L0StopWritesThreshold = opts.L0CompactionThreshold + 4
		}
	}
	if opts.WriteQueueDepth <= 0 {
		opts.WriteQueueDepth = defaultWriteQueueDepth
	}
	return opts
}

// Open opens or creates the store directory at path and starts the writer.
func Open(path string, opts Options) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("qsostore: database path is empty")
	}
	opts = sanitizeOptions(opts)

	if info, err := os.Stat(path); err == nil {
		if !info.IsDir() {
			return nil, fmt.Errorf("qsostore: %s exists and is not a directory", path)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("qsostore: stat path: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("qsostore: ensure directory: %w", err)
	}

	pebbleOpts := &pebble.Options{
		Cache:                 pebble.NewCache(opts.CacheSizeBytes),
		MemTableSize:          opts.MemTableSizeBytes,
		L0CompactionThreshold: opts.L0CompactionThreshold,
		L0StopWritesThreshold: opts.L0StopWritesThreshold,
	}
	level := pebble.LevelOptions{
		FilterPolicy: bloom.FilterPolicy(opts.BloomFilterBitsPerKey),
		FilterType:   pebble.TableFilter,
	}
	pebbleOpts.Levels = make([]pebble.LevelOptions, 7)
	for i := range pebbleOpts.Levels {
		pebbleOpts.Levels[i] = level
	}

	db, err := pebble.Open(path, pebbleOpts)
	if err != nil {
		pebbleOpts.Cache.Unref()
		return nil, fmt.Errorf("qsostore: open: %w", err)
	}

	store := &Store{
		db:     db,
		writes: make(chan writeRequest, opts.WriteQueueDepth),
		done:   make(chan struct{}),
		cache:  pebbleOpts.Cache,
	}
	go store.writeLoop()
	return store, nil
}

// Close drains the writer and closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if s.closeWriter() {
		<-s.done
	}
	err := s.db.Close()
	if s.cache != nil {
		s.cache.Unref()
		s.cache = nil
	}
	return err
}

// Exists reports whether a contact with key is stored.
func (s *Store) Exists(ctx context.Context, key qso.DuplicateKey) (bool, error) {
	if s == nil || s.db == nil {
		return false, errNotOpen
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, closer, err := s.db.Get(recordKey(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("qsostore: get %s: %w", key, err)
	}
	closer.Close()
	return true, nil
}

// InsertBatch writes the records whose keys are not yet present in one synced
// Pebble batch and returns how many were written. Once queued, the write runs
// to completion even if ctx is cancelled, so a returned error always means
// nothing from this batch was stored.
func (s *Store) InsertBatch(ctx context.Context, records []qso.Record) (int, error) {
	if s == nil || s.db == nil {
		return 0, errNotOpen
	}
	if len(records) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	resp := make(chan writeResult, 1)
	if err := s.enqueue(writeRequest{recs: records, resp: resp}); err != nil {
		return 0, err
	}
	result := <-resp
	return result.inserted, result.err
}

// Count returns the number of contacts stored for ownerID.
func (s *Store) Count(ctx context.Context, ownerID int64) (int, error) {
	if s == nil || s.db == nil {
		return 0, errNotOpen
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	count, err := readCount(s.db, ownerID)
	if err == nil {
		return int(count), nil
	}
	if !errors.Is(err, pebble.ErrNotFound) && !errors.Is(err, errInvalidCount) {
		return 0, fmt.Errorf("qsostore: read count: %w", err)
	}
	count, err = computeCount(ctx, s.db, ownerID)
	return int(count), err
}

// Records returns every contact for ownerID in chronological order.
func (s *Store) Records(ctx context.Context, ownerID int64) ([]qso.Record, error) {
	if s == nil || s.db == nil {
		return nil, errNotOpen
	}
	iter, err := s.db.NewIter(iterOptionsForPrefix(ownerPrefix(ownerID)))
	if err != nil {
		return nil, fmt.Errorf("qsostore: records iterator: %w", err)
	}
	defer iter.Close()

	var out []qso.Record
	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var rec qso.Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("qsostore: decode %q: %w", iter.Key(), err)
		}
		out = append(out, rec)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("qsostore: iterate records: %w", err)
	}
	return out, nil
}

func (s *Store) enqueue(req writeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStoreClosed
	}
	s.writes <- req
	return nil
}

func (s *Store) closeWriter() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	close(s.writes)
	return true
}

func (s *Store) writeLoop() {
	defer close(s.done)
	for req := range s.writes {
		n, err := s.applyInsertBatch(req.recs)
		req.resp <- writeResult{inserted: n, err: err}
	}
}

// applyInsertBatch skips keys already stored or repeated within recs, then
// commits the rest together with the updated per-owner counts.
func (s *Store) applyInsertBatch(recs []qso.Record) (int, error) {
	batch := s.db.NewBatch()
	defer batch.Close()

	pending := make(map[string]struct{}, len(recs))
	deltas := make(map[int64]int64)
	for _, rec := range recs {
		key := rec.Key()
		k := recordKey(key)
		if _, dup := pending[string(k)]; dup {
			continue
		}
		found, err := s.has(k)
		if err != nil {
			return 0, err
		}
		if found {
			continue
		}
		value, err := json.Marshal(rec)
		if err != nil {
			return 0, fmt.Errorf("qsostore: encode %s: %w", key, err)
		}
		if err := batch.Set(k, value, nil); err != nil {
			return 0, fmt.Errorf("qsostore: batch set %s: %w", key, err)
		}
		pending[string(k)] = struct{}{}
		deltas[rec.OwnerID]++
	}
	if len(pending) == 0 {
		return 0, nil
	}

	for owner, delta := range deltas {
		count, err := readCount(s.db, owner)
		if err != nil {
			if !errors.Is(err, pebble.ErrNotFound) && !errors.Is(err, errInvalidCount) {
				return 0, fmt.Errorf("qsostore: read count: %w", err)
			}
			if count, err = computeCount(context.Background(), s.db, owner); err != nil {
				return 0, err
			}
		}
		if err := batch.Set(countKey(owner), encodeCount(count+delta), nil); err != nil {
			return 0, fmt.Errorf("qsostore: batch set count: %w", err)
		}
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return 0, fmt.Errorf("qsostore: batch commit: %w", err)
	}
	return len(pending), nil
}

func (s *Store) has(key []byte) (bool, error) {
	_, closer, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("qsostore: get %q: %w", key, err)
	}
	closer.Close()
	return true, nil
}

func ownerPrefix(ownerID int64) string {
	return fmt.Sprintf("%s%016x|", recordPrefix, uint64(ownerID))
}

// recordKey orders date and time ahead of the calls so a prefix scan is
// chronological. Parts are escaped so distinct keys stay distinct.
func recordKey(k qso.DuplicateKey) []byte {
	var b bytes.Buffer
	b.Grow(64)
	b.WriteString(ownerPrefix(k.OwnerID))
	for i, part := range [...]string{k.Date, k.Time, k.OperatorCall, k.Call, k.Band, k.Mode} {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(strutil.EscapeSeparator(part, '|'))
	}
	return b.Bytes()
}

func countKey(ownerID int64) []byte {
	return []byte(fmt.Sprintf("%s%016x", countPrefix, uint64(ownerID)))
}

func encodeCount(count int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(count))
	return buf
}

func readCount(db *pebble.DB, ownerID int64) (int64, error) {
	value, closer, err := db.Get(countKey(ownerID))
	if err != nil {
		return 0, err
	}
	defer closer.Close()
	if len(value) != 8 {
		return 0, errInvalidCount
	}
	return int64(binary.BigEndian.Uint64(value)), nil
}

func computeCount(ctx context.Context, db *pebble.DB, ownerID int64) (int64, error) {
	iter, err := db.NewIter(iterOptionsForPrefix(ownerPrefix(ownerID)))
	if err != nil {
		return 0, fmt.Errorf("qsostore: count iterator: %w", err)
	}
	defer iter.Close()
	count := int64(0)
	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		count++
	}
	if err := iter.Error(); err != nil {
		return 0, fmt.Errorf("qsostore: count iterate: %w", err)
	}
	return count, nil
}

func iterOptionsForPrefix(prefix string) *pebble.IterOptions {
	lower := []byte(prefix)
	return &pebble.IterOptions{LowerBound: lower, UpperBound: prefixUpperBound(lower)}
}

func prefixUpperBound(prefix []byte) []byte {
	if len(prefix) == 0 {
		return nil
	}
	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] != 0xFF {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil
}
