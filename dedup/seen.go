// Package dedup tracks which duplicate keys have been seen during an ingest
// run. The set is shard-locked so concurrent batch workers do not contend on
// a single mutex.
package dedup

import (
	"sync"

	"qsolog/qso"
)

// shardCount must remain a power of two so we can use bit masking for shard selection.
const shardCount = 64

// SeenSet is a concurrency-safe set of duplicate keys.
type SeenSet struct {
	shards [shardCount]seenShard
}

type seenShard struct {
	mu         sync.Mutex
	keys       map[qso.DuplicateKey]struct{}
	checked    uint64
	duplicates uint64
}

// Stats summarizes set activity.
type Stats struct {
	Keys       int
	Checked    uint64
	Duplicates uint64
}

// NewSeenSet returns an empty set.
func NewSeenSet() *SeenSet {
	s := &SeenSet{}
	for i := range s.shards {
		s.shards[i].keys = make(map[qso.DuplicateKey]struct{})
	}
	return s
}

func (s *SeenSet) shardFor(key qso.DuplicateKey) *seenShard {
	return &s.shards[key.Hash()&(shardCount-1)]
}

// SeenAndRecord reports whether key was already present and records it if not.
// The check and insert are atomic.
func (s *SeenSet) SeenAndRecord(key qso.DuplicateKey) bool {
	shard := s.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	shard.checked++
	if _, ok := shard.keys[key]; ok {
		shard.duplicates++
		return true
	}
	shard.keys[key] = struct{}{}
	return false
}

// Forget removes key so a later occurrence is treated as new. Used when a
// batch holding the key failed to commit.
func (s *SeenSet) Forget(key qso.DuplicateKey) {
	shard := s.shardFor(key)
	shard.mu.Lock()
	delete(shard.keys, key)
	shard.mu.Unlock()
}

// Stats returns a snapshot across all shards.
func (s *SeenSet) Stats() Stats {
	var out Stats
	for i := range s.shards {
		shard := &s.shards[i]
		shard.mu.Lock()
		out.Keys += len(shard.keys)
		out.Checked += shard.checked
		out.Duplicates += shard.duplicates
		shard.mu.Unlock()
	}
	return out
}
