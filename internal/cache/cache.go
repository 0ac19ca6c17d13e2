// Package cache memoizes aggregated article lists keyed by the normalized
// filters and the sorted source set.
//
// Entries live for a fixed TTL from insertion and are never mutated; an
// overwrite replaces the entry wholesale. At capacity the entry with the
// oldest timestamp is evicted to make room for a new key.
package cache

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/abelbrown/newsdesk/internal/model"
	"github.com/abelbrown/newsdesk/internal/otel"
)

const (
	DefaultTTL      = 5 * time.Minute
	DefaultCapacity = 50
)

// keyFields are the filter fields that identify a cache entry. Author is
// not part of the key.
type keyFields struct {
	Keyword  string `json:"keyword"`
	Category string `json:"category"`
	Source   string `json:"source"`
	DateFrom string `json:"dateFrom"`
	DateTo   string `json:"dateTo"`
}

type entry struct {
	key       string
	fields    keyFields
	data      []model.Article
	timestamp time.Time
	seq       uint64 // insertion order, breaks timestamp ties
}

// Cache is a TTL + capacity bounded response cache. Safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	ttl      time.Duration
	capacity int
	clock    func() time.Time
	seq      uint64
	log      *otel.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets how long an entry stays valid after insertion.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithCapacity sets the maximum number of entries.
func WithCapacity(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.clock = now
		}
	}
}

// WithLogger emits cache.evict and cache.clear events to l.
func WithLogger(l *otel.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// New creates an empty cache with a 5 minute TTL and room for 50 entries
// unless overridden.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:  make(map[string]*entry),
		ttl:      DefaultTTL,
		capacity: DefaultCapacity,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func fieldsOf(f model.Filters) keyFields {
	f = f.Normalized()
	return keyFields{
		Keyword:  f.Keyword,
		Category: f.Category,
		Source:   f.Source,
		DateFrom: f.DateFrom,
		DateTo:   f.DateTo,
	}
}

// Key returns the cache key for filters and sources: JSON of the normalized
// filter fields and the sorted source list. The caller's slice is not
// reordered.
func Key(filters model.Filters, sources []model.SourceID) string {
	return keyFor(fieldsOf(filters), sources)
}

func keyFor(fields keyFields, sources []model.SourceID) string {
	sorted := model.SourceStrings(sources)
	sort.Strings(sorted)

	data, _ := json.Marshal(struct {
		Filters keyFields `json:"filters"`
		Sources []string  `json:"sources"`
	}{fields, sorted})
	return string(data)
}

// Get returns the cached articles for filters and sources. An entry whose
// age has reached the TTL is a miss and is removed.
func (c *Cache) Get(filters model.Filters, sources []model.SourceID) ([]model.Article, bool) {
	key := Key(filters, sources)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.expiredLocked(e, c.clock()) {
		delete(c.entries, key)
		return nil, false
	}
	return e.data, true
}

// Set stores articles for filters and sources, stamped with the current
// time. When the cache is full and key is new, the oldest entry goes first.
func (c *Cache) Set(filters model.Filters, sources []model.SourceID, articles []model.Article) {
	fields := fieldsOf(filters)
	key := keyFor(fields, sources)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.evictOldestLocked()
	}

	c.seq++
	c.entries[key] = &entry{
		key:       key,
		fields:    fields,
		data:      articles,
		timestamp: c.clock(),
		seq:       c.seq,
	}
}

// Invalidate removes entries matching filters. A nil filters clears the
// cache. Otherwise any entry sharing the keyword, the category or the
// source with filters is removed. Fields left empty in filters never match.
func (c *Cache) Invalidate(filters *model.Filters) {
	if filters == nil {
		c.Clear()
		return
	}
	want := fieldsOf(*filters)

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if sameNonEmpty(want.Keyword, e.fields.Keyword) ||
			sameNonEmpty(want.Category, e.fields.Category) ||
			sameNonEmpty(want.Source, e.fields.Source) {
			delete(c.entries, key)
		}
	}
}

func sameNonEmpty(want, have string) bool {
	return want != "" && want == have
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = make(map[string]*entry)
	c.mu.Unlock()

	c.log.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindCacheClear, Comp: "cache", Count: n})
}

// Len returns the number of stored entries, expired ones included until
// they are touched.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) expiredLocked(e *entry, now time.Time) bool {
	return !now.Before(e.timestamp.Add(c.ttl))
}

func (c *Cache) evictOldestLocked() {
	var oldest *entry
	for _, e := range c.entries {
		if oldest == nil || e.timestamp.Before(oldest.timestamp) ||
			(e.timestamp.Equal(oldest.timestamp) && e.seq < oldest.seq) {
			oldest = e
		}
	}
	if oldest == nil {
		return
	}
	delete(c.entries, oldest.key)
	c.log.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindCacheEvict, Comp: "cache", Key: oldest.key})
}
