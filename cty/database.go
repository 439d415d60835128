// Package cty loads the country/zone prefix databases (cty.dat text and
// cty.plist) and answers cache-backed longest-prefix callsign lookups.
package cty

import (
	"container/list"
	"strings"
	"sync"
	"sync/atomic"
)

// PrefixInfo describes the metadata stored for one prefix or exact callsign.
type PrefixInfo struct {
	Country       string  `plist:"Country"`
	Prefix        string  `plist:"Prefix"`
	ADIF          int     `plist:"ADIF"`
	CQZone        int     `plist:"CQZone"`
	ITUZone       int     `plist:"ITUZone"`
	Continent     string  `plist:"Continent"`
	Latitude      float64 `plist:"Latitude"`
	Longitude     float64 `plist:"Longitude"`
	GMTOffset     float64 `plist:"GMTOffset"`
	ExactCallsign bool    `plist:"ExactCallsign"`
	// Matched is the database key that produced this result.
	Matched string `plist:"-"`
}

// Entry is one country entity with every prefix that maps to it. Longitude is
// east-positive.
type Entry struct {
	Country       string
	CQZone        int
	ITUZone       int
	Continent     string
	Latitude      float64
	Longitude     float64
	UTCOffset     float64
	PrimaryPrefix string
	ADIF          int
	Prefixes      []string
}

// Database is an immutable prefix table with a bounded lookup cache. It is
// safe for concurrent use.
type Database struct {
	Data    map[string]PrefixInfo
	entries []Entry
	// skippedEntities counts entity records dropped as malformed by the parser.
	skippedEntities int
	// trie indexes the non-exact keys for longest-prefix matching.
	trie prefixTrie

	cacheMu   sync.Mutex
	cacheList *list.List
	cacheMap  map[string]*list.Element
	cacheCap  int

	totalLookups atomic.Uint64
	cacheHits    atomic.Uint64
	cacheEntries atomic.Uint64
	matched      atomic.Uint64
}

type cacheEntry struct {
	info *PrefixInfo
	ok   bool
}

type cacheItem struct {
	key   string
	entry cacheEntry
}

const defaultCacheCapacity = 50000

// LookupMetrics summarizes callsign lookup behavior.
type LookupMetrics struct {
	TotalLookups uint64
	CacheHits    uint64
	CacheEntries uint64
	Matched      uint64
}

// Option tunes a Database at load time.
type Option func(*options)

type options struct {
	cacheCapacity int
}

// WithCacheCapacity bounds the lookup cache. Zero or negative disables it.
func WithCacheCapacity(n int) Option {
	return func(o *options) {
		o.cacheCapacity = n
	}
}

func newDatabase(data map[string]PrefixInfo, entries []Entry, opts []Option) *Database {
	cfg := options{cacheCapacity: defaultCacheCapacity}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	prefixes := make([]string, 0, len(data))
	for k, info := range data {
		if !info.ExactCallsign {
			prefixes = append(prefixes, k)
		}
	}
	db := &Database{
		Data:     data,
		entries:  entries,
		trie:     buildPrefixTrie(prefixes),
		cacheCap: cfg.cacheCapacity,
	}
	if db.cacheCap > 0 {
		db.cacheList = list.New()
		db.cacheMap = make(map[string]*list.Element, min(db.cacheCap, 4096))
	}
	return db
}

// Len returns the number of indexed keys.
func (db *Database) Len() int {
	if db == nil {
		return 0
	}
	return len(db.Data)
}

// SkippedEntities reports how many entity records the parser dropped because
// their header did not parse.
func (db *Database) SkippedEntities() int {
	if db == nil {
		return 0
	}
	return db.skippedEntities
}

// Entries returns the country entities known to the database.
func (db *Database) Entries() []Entry {
	if db == nil {
		return nil
	}
	out := make([]Entry, len(db.entries))
	copy(out, db.entries)
	return out
}

// LookupCallsign returns metadata for the callsign or false if unknown. An
// exact-callsign key wins over any prefix; otherwise the longest prefix
// matches. Results, misses included, are memoized.
func (db *Database) LookupCallsign(cs string) (*PrefixInfo, bool) {
	if db == nil {
		return nil, false
	}
	cs = strings.ToUpper(strings.TrimSpace(cs))
	if cs == "" {
		return nil, false
	}
	db.totalLookups.Add(1)
	if entry, ok := db.cacheGet(cs); ok {
		db.cacheHits.Add(1)
		if entry.ok {
			db.matched.Add(1)
		}
		return clonePrefix(entry.info), entry.ok
	}

	info, ok := db.lookupNoCache(cs)
	if ok {
		db.matched.Add(1)
	}
	db.cacheStore(cs, cacheEntry{info: info, ok: ok})
	return clonePrefix(info), ok
}

func (db *Database) lookupNoCache(cs string) (*PrefixInfo, bool) {
	if info, ok := db.Data[cs]; ok && info.ExactCallsign {
		info.Matched = cs
		return &info, true
	}
	if key, ok := db.trie.longestPrefixKey(cs); ok {
		info := db.Data[key]
		info.Matched = key
		return &info, true
	}
	return nil, false
}

func clonePrefix(info *PrefixInfo) *PrefixInfo {
	if info == nil {
		return nil
	}
	out := *info
	return &out
}

func (db *Database) cacheGet(cs string) (cacheEntry, bool) {
	if db.cacheCap <= 0 {
		return cacheEntry{}, false
	}
	db.cacheMu.Lock()
	defer db.cacheMu.Unlock()
	elem, ok := db.cacheMap[cs]
	if !ok {
		return cacheEntry{}, false
	}
	db.cacheList.MoveToFront(elem)
	return elem.Value.(*cacheItem).entry, true
}

func (db *Database) cacheStore(cs string, entry cacheEntry) {
	if db.cacheCap <= 0 {
		return
	}
	db.cacheMu.Lock()
	defer db.cacheMu.Unlock()

	if elem, ok := db.cacheMap[cs]; ok {
		elem.Value.(*cacheItem).entry = entry
		db.cacheList.MoveToFront(elem)
		return
	}

	elem := db.cacheList.PushFront(&cacheItem{key: cs, entry: entry})
	db.cacheMap[cs] = elem
	if len(db.cacheMap) > db.cacheCap {
		if tail := db.cacheList.Back(); tail != nil {
			db.cacheList.Remove(tail)
			delete(db.cacheMap, tail.Value.(*cacheItem).key)
		}
	}
	db.cacheEntries.Store(uint64(len(db.cacheMap)))
}

// Metrics returns a snapshot of lookup/cache counters.
func (db *Database) Metrics() LookupMetrics {
	if db == nil {
		return LookupMetrics{}
	}
	return LookupMetrics{
		TotalLookups: db.totalLookups.Load(),
		CacheHits:    db.cacheHits.Load(),
		CacheEntries: db.cacheEntries.Load(),
		Matched:      db.matched.Load(),
	}
}
