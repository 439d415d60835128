// Package ingest drives ADIF input through normalization, geolocation and
// duplicate detection into a record sink, counting one outcome per record.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"qsolog/adif"
	"qsolog/dedup"
	"qsolog/qso"
)

const (
	DefaultBatchSize = 500
	DefaultWorkers   = 1
)

// ErrConflict is wrapped by sinks that reject a batch on the duplicate-key
// constraint. The engine counts such a batch as skipped rather than errored.
var ErrConflict = errors.New("ingest: duplicate key conflict")

var errNoSink = errors.New("ingest: no sink configured")

// Sink persists normalized records. InsertBatch must be all-or-nothing and
// returns how many records were actually inserted; the rest are treated as
// duplicates that lost a race against another writer.
type Sink interface {
	Exists(ctx context.Context, key qso.DuplicateKey) (bool, error)
	InsertBatch(ctx context.Context, records []qso.Record) (int, error)
}

// Resolver fills in the geolocation block for a counterpart callsign.
type Resolver interface {
	Resolve(call string) qso.Geo
}

// Options tunes an Engine. Zero values select the defaults.
type Options struct {
	BatchSize int
	Workers   int
	Clock     clockwork.Clock
	Logger    *zap.Logger
	Metrics   *Metrics
}

// Engine runs ingests. It holds no per-run state and is safe for concurrent
// use; concurrent runs for the same owner rely on the sink's unique key.
type Engine struct {
	resolver   Resolver
	sink       Sink
	normalizer *qso.Normalizer
	batchSize  int
	workers    int
	clock      clockwork.Clock
	logger     *zap.Logger
	metrics    *Metrics
}

// New builds an Engine. resolver may be nil, in which case records carry no
// geolocation. sink may be nil for engines used only for Convert.
func New(resolver Resolver, sink Sink, opts Options) *Engine {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Engine{
		resolver:   resolver,
		sink:       sink,
		normalizer: qso.NewNormalizer(opts.Clock),
		batchSize:  opts.BatchSize,
		workers:    opts.Workers,
		clock:      opts.Clock,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
	}
}

// Ingest reads ADIF from r and commits every new record for owner.
// Purpose: Turn one ADIF stream into stored contacts plus a per-run Report.
// Key aspects: Records are normalized, geolocated and deduplicated against the
// input and the sink, then committed in batches by a bounded worker group with
// commits applied in input order. Per-record problems are counted in the
// report. The returned error is non-nil only when the input could not be read,
// the sink failed or ctx was cancelled; the report then covers what was
// processed up to that point.
// Upstream: IngestFile, the import command.
// Downstream: adif.Scanner, qso.Normalizer, geo.Resolver, dedup.Seen, Sink.
func (e *Engine) Ingest(ctx context.Context, r io.Reader, owner qso.Owner) (Report, error) {
	if e.sink == nil {
		return Report{}, errNoSink
	}
	ru := e.newRun(owner, e.sink.InsertBatch, true)
	return ru.execute(ctx, r)
}

// IngestFile opens path and ingests it. A failure to open the file is
// returned without a report.
func (e *Engine) IngestFile(ctx context.Context, path string, owner qso.Owner) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, fmt.Errorf("ingest: open %s: %w", path, err)
	}
	defer f.Close()
	return e.Ingest(ctx, f, owner)
}

// Convert reads ADIF from r and re-emits every accepted record to w with
// normalized fields and geolocation. Duplicates are detected within the input
// only. Records written are counted as inserted.
func (e *Engine) Convert(ctx context.Context, r io.Reader, w *adif.Writer, owner qso.Owner) (Report, error) {
	if err := w.WriteHeader(e.clock.Now()); err != nil {
		return Report{}, fmt.Errorf("ingest: convert: %w", err)
	}
	write := func(_ context.Context, records []qso.Record) (int, error) {
		for _, rec := range records {
			if err := w.WriteRecord(rec); err != nil {
				return 0, err
			}
		}
		return len(records), nil
	}
	ru := e.newRun(owner, write, false)
	report, err := ru.execute(ctx, r)
	if flushErr := w.Flush(); flushErr != nil && err == nil {
		err = fmt.Errorf("ingest: convert: %w", flushErr)
	}
	return report, err
}

// IngestFields ingests a single manually entered record. Tags are matched
// case-insensitively. The error is non-nil only when ctx was cancelled before
// an outcome was reached.
func (e *Engine) IngestFields(ctx context.Context, fields map[string]string, owner qso.Owner) (Outcome, error) {
	if e.sink == nil {
		return Outcome{}, errNoSink
	}
	raw := make(adif.Record, 0, len(fields))
	for tag, value := range fields {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		raw = append(raw, adif.Field{Tag: strings.ToLower(strings.TrimSpace(tag)), Value: value})
	}
	ru := e.newRun(owner, e.sink.InsertBatch, true)
	ru.process(ctx, []pending{{index: 1, raw: raw}}, closedChan())
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	return ru.last, nil
}

type commitFunc func(ctx context.Context, records []qso.Record) (int, error)

// pending is a scanned record waiting for normalization.
type pending struct {
	index int
	raw   adif.Record
}

// accepted is a normalized record that passed duplicate checks.
type accepted struct {
	index int
	rec   qso.Record
}

type run struct {
	*Engine
	owner     qso.Owner
	commit    commitFunc
	checkSink bool
	seen      *dedup.SeenSet
	logger    *zap.Logger

	mu     sync.Mutex
	report Report
	last   Outcome
}

func (e *Engine) newRun(owner qso.Owner, commit commitFunc, checkSink bool) *run {
	id := uuid.New()
	return &run{
		Engine:    e,
		owner:     owner,
		commit:    commit,
		checkSink: checkSink,
		seen:      dedup.NewSeenSet(),
		logger:    e.logger.With(zap.String("run_id", id.String()), zap.Int64("owner_id", owner.ID)),
		report:    Report{RunID: id, Started: e.clock.Now()},
	}
}

// execute scans r into raw batches and hands each to a worker. Workers
// normalize and check their batch concurrently; commits happen one at a time
// in input order, each batch waiting for its predecessor.
func (r *run) execute(ctx context.Context, in io.Reader) (Report, error) {
	r.logger.Info("ingest started", zap.Int("batch_size", r.batchSize), zap.Int("workers", r.workers))

	sc := adif.NewScanner(in)
	var g errgroup.Group
	g.SetLimit(r.workers)

	prev := closedChan()
	batch := make([]pending, 0, r.batchSize)
	dispatch := func() {
		if len(batch) == 0 {
			return
		}
		work, wait, done := batch, prev, make(chan struct{})
		prev = done
		batch = make([]pending, 0, r.batchSize)
		g.Go(func() error {
			defer close(done)
			r.process(ctx, work, wait)
			return nil
		})
	}

	var err error
	index := 0
	for sc.Scan() {
		if err = ctx.Err(); err != nil {
			break
		}
		index++
		batch = append(batch, pending{index: index, raw: sc.Record()})
		if len(batch) >= r.batchSize {
			dispatch()
		}
	}
	if err == nil {
		if scanErr := sc.Err(); scanErr != nil {
			err = fmt.Errorf("ingest: read input: %w", scanErr)
		}
		if ctx.Err() == nil {
			dispatch()
		}
	}
	_ = g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	r.mu.Lock()
	r.report.Finished = r.clock.Now()
	report := r.report
	r.mu.Unlock()

	seen := r.seen.Stats()
	fields := []zap.Field{
		zap.Int("records", index),
		zap.Int("inserted", report.Inserted),
		zap.Int("skipped", report.Skipped),
		zap.Int("errored", report.Errored),
		zap.Int("distinct_keys", seen.Keys),
		zap.Uint64("repeated_in_input", seen.Duplicates),
		zap.Duration("elapsed", report.Duration()),
	}
	if err != nil {
		r.logger.Warn("ingest stopped early", append(fields, zap.Error(err))...)
	} else {
		r.logger.Info("ingest finished", fields...)
	}
	return report, err
}

// process normalizes one raw batch, waits for the previous batch to commit,
// then commits the accepted records.
func (r *run) process(ctx context.Context, batch []pending, wait <-chan struct{}) {
	acc := make([]accepted, 0, len(batch))
	for _, p := range batch {
		if ctx.Err() != nil {
			break
		}
		rec, outcome, ok := r.admit(ctx, p.raw)
		if ok {
			acc = append(acc, accepted{index: p.index, rec: rec})
			continue
		}
		if outcome.Kind == Errored && ctx.Err() != nil {
			break
		}
		r.record(p.index, rec.Call, outcome)
	}

	select {
	case <-wait:
	case <-ctx.Done():
	}
	if len(acc) == 0 {
		return
	}
	if ctx.Err() != nil {
		r.forget(acc)
		return
	}
	r.commitBatch(ctx, acc)
}

// admit normalizes and resolves one record and runs the duplicate checks. It
// returns ok when the record should be committed; otherwise outcome says why
// not.
func (r *run) admit(ctx context.Context, raw adif.Record) (qso.Record, Outcome, bool) {
	if len(raw) == 0 {
		return qso.Record{}, skipped(ReasonMalformed, "no tag/value pairs"), false
	}
	rec, err := r.normalizer.Normalize(raw.Map(), r.owner)
	if err != nil {
		if errors.Is(err, qso.ErrMissingCall) {
			return qso.Record{}, skipped(ReasonMissingCall, err.Error()), false
		}
		return qso.Record{}, skipped(ReasonMalformed, err.Error()), false
	}
	if r.resolver != nil {
		rec.Geo = r.resolver.Resolve(rec.Call)
	}

	key := rec.Key()
	if r.seen.SeenAndRecord(key) {
		return rec, skipped(ReasonDuplicate, "repeated in input"), false
	}
	if !r.checkSink {
		return rec, Outcome{}, true
	}
	exists, err := r.sink.Exists(ctx, key)
	if err != nil {
		r.seen.Forget(key)
		return rec, errored(fmt.Sprintf("exists check: %v", err)), false
	}
	if exists {
		return rec, skipped(ReasonDuplicate, "already stored"), false
	}
	return rec, Outcome{}, true
}

func (r *run) commitBatch(ctx context.Context, acc []accepted) {
	records := make([]qso.Record, len(acc))
	for i, a := range acc {
		records[i] = a.rec
	}

	start := r.clock.Now()
	n, err := r.commit(ctx, records)
	elapsed := r.clock.Since(start)

	switch {
	case err == nil:
		n = max(0, min(n, len(acc)))
		r.metrics.observeCommit(len(acc), elapsed, false)
		for i, a := range acc {
			if i < n {
				r.record(a.index, a.rec.Call, inserted())
			} else {
				r.record(a.index, a.rec.Call, skipped(ReasonDuplicate, "rejected by sink"))
			}
		}
		r.logger.Debug("batch committed", zap.Int("accepted", len(acc)), zap.Int("inserted", n), zap.Duration("elapsed", elapsed))
	case errors.Is(err, ErrConflict):
		r.metrics.observeCommit(len(acc), elapsed, false)
		for _, a := range acc {
			r.record(a.index, a.rec.Call, skipped(ReasonDuplicate, "sink conflict"))
		}
		r.logger.Info("batch rejected on duplicate key", zap.Int("records", len(acc)), zap.Error(err))
	case ctx.Err() != nil:
		r.forget(acc)
	default:
		r.metrics.observeCommit(len(acc), elapsed, true)
		r.forget(acc)
		detail := fmt.Sprintf("batch commit: %v", err)
		for _, a := range acc {
			r.record(a.index, a.rec.Call, errored(detail))
		}
		r.logger.Warn("batch commit failed", zap.Int("records", len(acc)), zap.Error(err))
	}
}

// forget releases keys of records that were never committed so a retry of
// the same input treats them as new.
func (r *run) forget(acc []accepted) {
	for _, a := range acc {
		r.seen.Forget(a.rec.Key())
	}
}

func (r *run) record(index int, call string, o Outcome) {
	r.metrics.observeOutcome(o)
	r.mu.Lock()
	r.report.add(index, call, o)
	r.last = o
	r.mu.Unlock()
}

func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
