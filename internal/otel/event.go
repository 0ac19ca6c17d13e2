// Package otel provides structured observability for newsdesk.
//
// Events are typed structs serialized as JSONL lines. The Logger writes
// events asynchronously via a buffered channel and background drain goroutine.
// An optional RingBuffer keeps recent events in memory for the debug pane.
package otel

import (
	"encoding/json"
	"time"
)

// Level defines event severity for filtering.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// EventKind identifies the category of an observability event.
// Dot-delimited: "<subsystem>.<action>".
type EventKind string

const (
	// Provider fan-out
	KindFetchStart    EventKind = "fetch.start"
	KindFetchComplete EventKind = "fetch.complete"
	KindFetchError    EventKind = "fetch.error"
	KindFetchCancel   EventKind = "fetch.cancel"
	KindFetchFixture  EventKind = "fetch.fixture"

	// Response cache
	KindCacheHit   EventKind = "cache.hit"
	KindCacheMiss  EventKind = "cache.miss"
	KindCacheEvict EventKind = "cache.evict"
	KindCacheClear EventKind = "cache.clear"

	// Pagination controller
	KindPageRefresh  EventKind = "page.refresh"
	KindPageMore     EventKind = "page.more"
	KindPageSuppress EventKind = "page.suppress"
	KindPageError    EventKind = "page.error"

	// Preferences store
	KindStoreError EventKind = "store.error"

	// System events
	KindStartup  EventKind = "sys.startup"
	KindShutdown EventKind = "sys.shutdown"
	KindError    EventKind = "sys.error"
)

// Event is the universal observability record. Every field except Kind and
// Time is optional. Serialized as a single JSONL line.
type Event struct {
	Time      time.Time      `json:"t"`
	Level     Level          `json:"level,omitempty"`
	Kind      EventKind      `json:"kind"`
	Comp      string         `json:"comp,omitempty"`       // component: "aggregate", "paging", "cache", "main"
	SessionID string         `json:"session_id,omitempty"` // random hex, same for entire app run
	Gen       uint64         `json:"gen,omitempty"`        // controller request generation
	Dur       time.Duration  `json:"-"`                    // not serialized directly
	DurMs     float64        `json:"dur_ms,omitempty"`     // computed from Dur at marshal time
	Count     int            `json:"count,omitempty"`
	Page      int            `json:"page,omitempty"`
	Source    string         `json:"source,omitempty"`
	Key       string         `json:"key,omitempty"` // cache key
	Err       string         `json:"err,omitempty"`
	Msg       string         `json:"msg,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// MarshalJSON implements json.Marshaler, converting Dur to DurMs.
func (e Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	a := struct {
		Alias
	}{Alias: Alias(e)}
	if e.Dur > 0 {
		a.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(a)
}
