package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/abelbrown/newsdesk/internal/model"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func articles(titles ...string) []model.Article {
	out := make([]model.Article, len(titles))
	for i, t := range titles {
		out[i] = model.Article{ID: t, Title: t, URL: "https://x/" + t}
	}
	return out
}

var both = []model.SourceID{model.SourceGuardian, model.SourceNYTimes}

func TestGetMiss(t *testing.T) {
	c := New()
	if _, ok := c.Get(model.Filters{Keyword: "x"}, both); ok {
		t.Error("empty cache should miss")
	}
}

func TestTTLBoundary(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now))
	f := model.Filters{Keyword: "election"}

	c.Set(f, both, articles("a", "b"))

	clock.Advance(DefaultTTL - time.Millisecond)
	got, ok := c.Get(f, both)
	if !ok || len(got) != 2 {
		t.Fatalf("expected hit just before TTL, got ok=%v len=%d", ok, len(got))
	}

	clock.Advance(time.Millisecond)
	if _, ok := c.Get(f, both); ok {
		t.Fatal("expected miss at exactly TTL")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be evicted on lookup, Len = %d", c.Len())
	}
}

func TestCapacityEvictsOldest(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now))

	for i := 0; i < DefaultCapacity; i++ {
		c.Set(model.Filters{Keyword: fmt.Sprintf("k%d", i)}, both, articles("a"))
		clock.Advance(time.Second)
	}
	if c.Len() != DefaultCapacity {
		t.Fatalf("Len = %d, want %d", c.Len(), DefaultCapacity)
	}

	c.Set(model.Filters{Keyword: "k50"}, both, articles("a"))

	if c.Len() != DefaultCapacity {
		t.Errorf("Len = %d after 51st insert, want %d", c.Len(), DefaultCapacity)
	}
	if _, ok := c.Get(model.Filters{Keyword: "k0"}, both); ok {
		t.Error("oldest entry k0 should have been evicted")
	}
	for _, k := range []string{"k1", "k49", "k50"} {
		if _, ok := c.Get(model.Filters{Keyword: k}, both); !ok {
			t.Errorf("entry %s should still be present", k)
		}
	}
}

func TestCapacityTieBreaksOnInsertionOrder(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now), WithCapacity(2))

	c.Set(model.Filters{Keyword: "first"}, both, nil)
	c.Set(model.Filters{Keyword: "second"}, both, nil)
	c.Set(model.Filters{Keyword: "third"}, both, nil)

	if _, ok := c.Get(model.Filters{Keyword: "first"}, both); ok {
		t.Error("first inserted entry should be evicted on timestamp tie")
	}
	if _, ok := c.Get(model.Filters{Keyword: "second"}, both); !ok {
		t.Error("second entry should survive")
	}
}

func TestOverwriteAtCapacityDoesNotEvict(t *testing.T) {
	c := New(WithCapacity(2))
	a := model.Filters{Keyword: "a"}
	b := model.Filters{Keyword: "b"}

	c.Set(a, both, articles("1"))
	c.Set(b, both, articles("2"))
	c.Set(a, both, articles("3", "4"))

	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	got, ok := c.Get(a, both)
	if !ok || len(got) != 2 {
		t.Errorf("overwrite should replace data wholesale, got %v", got)
	}
	if _, ok := c.Get(b, both); !ok {
		t.Error("overwrite must not evict another key")
	}
}

func TestKeyNormalization(t *testing.T) {
	c := New()
	c.Set(model.Filters{Keyword: "  election "}, []model.SourceID{model.SourceNYTimes, model.SourceGuardian}, articles("a"))

	if _, ok := c.Get(model.Filters{Keyword: "election"}, both); !ok {
		t.Error("trimmed keyword and sorted sources should hit the same entry")
	}
	if _, ok := c.Get(model.Filters{Keyword: "election", Author: "Jane"}, both); !ok {
		t.Error("author is not part of the key")
	}
	if _, ok := c.Get(model.Filters{Keyword: "election", Category: "sports"}, both); ok {
		t.Error("different category must miss")
	}
}

func TestKeyDoesNotReorderCallerSlice(t *testing.T) {
	sources := []model.SourceID{model.SourceNYTimes, model.SourceGuardian}
	_ = Key(model.Filters{}, sources)
	if sources[0] != model.SourceNYTimes {
		t.Error("Key must not sort the caller's slice")
	}
}

func TestKeyFormat(t *testing.T) {
	got := Key(model.Filters{Keyword: "election"}, both)
	want := `{"filters":{"keyword":"election","category":"","source":"","dateFrom":"","dateTo":""},"sources":["guardian","nytimes"]}`
	if got != want {
		t.Errorf("Key = %s\nwant  %s", got, want)
	}
}

func TestInvalidateIsCoarse(t *testing.T) {
	c := New()
	c.Set(model.Filters{Keyword: "election", Category: "general"}, both, nil)
	c.Set(model.Filters{Keyword: "markets", Category: "business"}, both, nil)
	c.Set(model.Filters{Keyword: "football", Category: "sports", Source: "guardian"}, both, nil)

	// Only the category matches, and only for the second entry.
	c.Invalidate(&model.Filters{Keyword: "other", Category: "business", Source: "nytimes"})
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2 (only business entry removed)", c.Len())
	}

	c.Invalidate(&model.Filters{Keyword: "nothing", Category: "none"})
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2 (empty source must not match)", c.Len())
	}

	c.Invalidate(&model.Filters{Source: "guardian"})
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1 (only the guardian entry removed)", c.Len())
	}
	if _, ok := c.Get(model.Filters{Keyword: "election", Category: "general"}, both); !ok {
		t.Error("entry without a source should survive a source invalidation")
	}

	c.Invalidate(nil)
	if c.Len() != 0 {
		t.Errorf("nil filters should clear, Len = %d", c.Len())
	}
}

func TestInvalidateKeywordKeepsUnrelatedEntries(t *testing.T) {
	c := New()
	guardian := []model.SourceID{model.SourceGuardian}
	c.Set(model.Filters{Keyword: "election"}, guardian, nil)
	c.Set(model.Filters{Keyword: "climate"}, guardian, nil)
	c.Set(model.Filters{Category: "sports"}, guardian, nil)

	c.Invalidate(&model.Filters{Keyword: "election"})

	if c.Len() != 2 {
		t.Fatalf("entries left = %d, want 2", c.Len())
	}
	if _, ok := c.Get(model.Filters{Keyword: "climate"}, guardian); !ok {
		t.Error("unrelated keyword entry was invalidated")
	}
	if _, ok := c.Get(model.Filters{Category: "sports"}, guardian); !ok {
		t.Error("category-only entry was invalidated")
	}
	if _, ok := c.Get(model.Filters{Keyword: "election"}, guardian); ok {
		t.Error("matching entry survived")
	}
}

func TestClear(t *testing.T) {
	c := New()
	c.Set(model.Filters{Keyword: "a"}, both, nil)
	c.Set(model.Filters{Keyword: "b"}, both, nil)
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len = %d after Clear", c.Len())
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New(WithCapacity(8))
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f := model.Filters{Keyword: fmt.Sprintf("k%d", i%10)}
			for j := 0; j < 100; j++ {
				c.Set(f, both, articles("x"))
				c.Get(f, both)
				if j%25 == 0 {
					c.Invalidate(&model.Filters{Keyword: f.Keyword, Category: "x", Source: "x"})
				}
			}
		}(i)
	}
	wg.Wait()
	if c.Len() > 8 {
		t.Errorf("Len = %d exceeds capacity", c.Len())
	}
}
