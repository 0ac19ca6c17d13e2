package paging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/abelbrown/newsdesk/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeFetcher routes both fetch methods to respond. page is -1 for
// FetchArticles.
type fakeFetcher struct {
	respond func(ctx context.Context, filters model.Filters, page int) ([]model.Article, error)

	calls atomic.Int32
	mu    sync.Mutex
	pages []int
}

func (f *fakeFetcher) FetchArticles(ctx context.Context, filters model.Filters, sources []model.SourceID) ([]model.Article, error) {
	f.calls.Add(1)
	return f.respond(ctx, filters, -1)
}

func (f *fakeFetcher) FetchPage(ctx context.Context, filters model.Filters, sources []model.SourceID, page int) ([]model.Article, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.pages = append(f.pages, page)
	f.mu.Unlock()
	return f.respond(ctx, filters, page)
}

func (f *fakeFetcher) fetchedPages() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fmt.Sprint(f.pages)
}

func makeArticles(prefix string, n int) []model.Article {
	out := make([]model.Article, n)
	for i := range out {
		out[i] = model.Article{ID: fmt.Sprintf("%s-%d", prefix, i), Title: fmt.Sprintf("%s %d", prefix, i)}
	}
	return out
}

func fixed(articles []model.Article) *fakeFetcher {
	return &fakeFetcher{respond: func(context.Context, model.Filters, int) ([]model.Article, error) {
		return articles, nil
	}}
}

var (
	nytOnly = []model.SourceID{model.SourceNYTimes}
	ctx     = context.Background()
)

func TestAggregateModePaging(t *testing.T) {
	f := fixed(makeArticles("a", 30))
	c := New(f)
	defer c.Close()

	c.Refresh(ctx, model.Filters{Keyword: "x"}, nil)
	st := c.State()
	if len(st.Articles) != 12 || !st.HasMore || st.Page != 1 || st.Server {
		t.Fatalf("after refresh: len=%d hasMore=%v page=%d server=%v", len(st.Articles), st.HasMore, st.Page, st.Server)
	}

	c.LoadMore(ctx)
	st = c.State()
	if len(st.Articles) != 24 || !st.HasMore {
		t.Fatalf("after first LoadMore: len=%d hasMore=%v", len(st.Articles), st.HasMore)
	}

	c.LoadMore(ctx)
	st = c.State()
	if len(st.Articles) != 30 || st.HasMore {
		t.Fatalf("after second LoadMore: len=%d hasMore=%v", len(st.Articles), st.HasMore)
	}
	if st.Articles[29].ID != "a-29" {
		t.Errorf("last article = %s, want a-29", st.Articles[29].ID)
	}

	c.LoadMore(ctx)
	if len(c.State().Articles) != 30 {
		t.Error("LoadMore without more data must be a no-op")
	}
	if f.calls.Load() != 1 {
		t.Errorf("aggregate LoadMore must not re-fetch, calls = %d", f.calls.Load())
	}
}

func TestAggregateModeExactPage(t *testing.T) {
	c := New(fixed(makeArticles("a", 12)))
	defer c.Close()

	c.Refresh(ctx, model.Filters{}, []model.SourceID{model.SourceGuardian})
	st := c.State()
	if len(st.Articles) != 12 || st.HasMore {
		t.Errorf("len=%d hasMore=%v, want 12 and false", len(st.Articles), st.HasMore)
	}
}

func TestCustomPageSize(t *testing.T) {
	c := New(fixed(makeArticles("a", 5)), WithPageSize(2))
	defer c.Close()

	c.Refresh(ctx, model.Filters{}, nil)
	c.LoadMore(ctx)
	c.LoadMore(ctx)
	st := c.State()
	if len(st.Articles) != 5 || st.HasMore || st.Page != 3 {
		t.Errorf("len=%d hasMore=%v page=%d", len(st.Articles), st.HasMore, st.Page)
	}
}

func TestServerModePaging(t *testing.T) {
	sizes := map[int]int{0: 10, 1: 10, 2: 3}
	f := &fakeFetcher{respond: func(_ context.Context, _ model.Filters, page int) ([]model.Article, error) {
		return makeArticles(fmt.Sprintf("p%d", page), sizes[page]), nil
	}}
	c := New(f)
	defer c.Close()

	c.Refresh(ctx, model.Filters{Keyword: "x"}, nytOnly)
	st := c.State()
	if !st.Server || len(st.Articles) != 10 || !st.HasMore || st.Page != 1 {
		t.Fatalf("after refresh: server=%v len=%d hasMore=%v page=%d", st.Server, len(st.Articles), st.HasMore, st.Page)
	}

	c.LoadMore(ctx)
	st = c.State()
	if len(st.Articles) != 20 || !st.HasMore || st.Page != 2 {
		t.Fatalf("after page 1: len=%d hasMore=%v page=%d", len(st.Articles), st.HasMore, st.Page)
	}

	c.LoadMore(ctx)
	st = c.State()
	if len(st.Articles) != 23 || st.HasMore {
		t.Fatalf("after short page: len=%d hasMore=%v", len(st.Articles), st.HasMore)
	}

	c.LoadMore(ctx)
	if got := f.fetchedPages(); got != "[0 1 2]" {
		t.Errorf("pages fetched = %s, want [0 1 2]", got)
	}
}

func TestServerModeShortFirstPage(t *testing.T) {
	c := New(fixed(makeArticles("n", 9)))
	defer c.Close()

	c.Refresh(ctx, model.Filters{}, nytOnly)
	if c.State().HasMore {
		t.Error("a page shorter than the server page size means no more data")
	}
}

func TestServerModeEmptyPageStops(t *testing.T) {
	f := &fakeFetcher{respond: func(_ context.Context, _ model.Filters, page int) ([]model.Article, error) {
		if page == 0 {
			return makeArticles("n", 10), nil
		}
		return nil, nil
	}}
	c := New(f)
	defer c.Close()

	c.Refresh(ctx, model.Filters{}, nytOnly)
	c.LoadMore(ctx)
	st := c.State()
	if len(st.Articles) != 10 || st.HasMore {
		t.Errorf("len=%d hasMore=%v, want 10 and false", len(st.Articles), st.HasMore)
	}
}

// gate lets a test hold a fetch open until released.
type gate struct {
	started chan model.Filters
	release chan struct{}
}

func newGate() *gate {
	return &gate{started: make(chan model.Filters, 4), release: make(chan struct{})}
}

func TestStaleResultSuppressed(t *testing.T) {
	g := newGate()
	var cancelled atomic.Bool
	f := &fakeFetcher{respond: func(ctx context.Context, filters model.Filters, _ int) ([]model.Article, error) {
		if filters.Keyword == "A" {
			g.started <- filters
			select {
			case <-ctx.Done():
				cancelled.Store(true)
				return nil, ctx.Err()
			case <-g.release:
			}
			return makeArticles("A", 3), nil
		}
		return makeArticles("B", 2), nil
	}}
	c := New(f)
	defer c.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Refresh(ctx, model.Filters{Keyword: "A"}, nil)
	}()
	<-g.started

	c.Refresh(ctx, model.Filters{Keyword: "B"}, nil)
	<-done

	if !cancelled.Load() {
		t.Error("request A should have observed cancellation")
	}
	st := c.State()
	if len(st.Articles) != 2 || st.Articles[0].ID != "B-0" {
		t.Errorf("final state should reflect B only, got %v", st.Articles)
	}
	if st.Loading || st.Error != "" || st.Filters.Keyword != "B" {
		t.Errorf("unexpected state: loading=%v error=%q filters=%+v", st.Loading, st.Error, st.Filters)
	}
}

func TestStaleResultIgnoredEvenIfDelivered(t *testing.T) {
	g := newGate()
	bStarted := make(chan struct{})
	bRelease := make(chan struct{})
	f := &fakeFetcher{respond: func(ctx context.Context, filters model.Filters, _ int) ([]model.Article, error) {
		if filters.Keyword == "A" {
			g.started <- filters
			<-g.release // ignores cancellation
			return makeArticles("A", 3), nil
		}
		close(bStarted)
		<-bRelease
		return makeArticles("B", 2), nil
	}}
	c := New(f)
	defer c.Close()

	aDone := make(chan struct{})
	go func() {
		defer close(aDone)
		c.Refresh(ctx, model.Filters{Keyword: "A"}, nil)
	}()
	<-g.started

	bDone := make(chan struct{})
	go func() {
		defer close(bDone)
		c.Refresh(ctx, model.Filters{Keyword: "B"}, nil)
	}()
	<-bStarted

	// A completes while B is still in flight.
	close(g.release)
	<-aDone
	st := c.State()
	if len(st.Articles) != 0 || !st.Loading {
		t.Fatalf("stale A must not commit or clear loading: len=%d loading=%v", len(st.Articles), st.Loading)
	}

	close(bRelease)
	<-bDone
	st = c.State()
	if len(st.Articles) != 2 || st.Articles[0].ID != "B-0" || st.Loading {
		t.Errorf("final state should be B: %+v", st)
	}
}

func TestIdenticalInFlightRequestSuppressed(t *testing.T) {
	g := newGate()
	f := &fakeFetcher{respond: func(ctx context.Context, filters model.Filters, _ int) ([]model.Article, error) {
		g.started <- filters
		<-g.release
		return makeArticles("a", 1), nil
	}}
	c := New(f)
	defer c.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Refresh(ctx, model.Filters{Keyword: "same"}, nil)
	}()
	<-g.started

	c.Refresh(ctx, model.Filters{Keyword: "same"}, nil) // returns immediately
	close(g.release)
	<-done

	if f.calls.Load() != 1 {
		t.Errorf("duplicate request should be suppressed, calls = %d", f.calls.Load())
	}
	if len(c.State().Articles) != 1 {
		t.Error("original request should still commit")
	}
}

func TestLoadMoreIgnoredWhileLoading(t *testing.T) {
	g := newGate()
	f := &fakeFetcher{respond: func(ctx context.Context, filters model.Filters, _ int) ([]model.Article, error) {
		if filters.Keyword == "slow" {
			g.started <- filters
			<-g.release
		}
		return makeArticles("a", 20), nil
	}}
	c := New(f)
	defer c.Close()

	c.Refresh(ctx, model.Filters{}, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Refresh(ctx, model.Filters{Keyword: "slow"}, nil)
	}()
	<-g.started

	c.LoadMore(ctx)
	if len(c.State().Articles) != 12 {
		t.Error("LoadMore must not proceed while loading")
	}
	close(g.release)
	<-done
}

func TestFailureKeepsBufferAndHasMore(t *testing.T) {
	fail := errors.New("all providers failed")
	f := &fakeFetcher{respond: func(_ context.Context, filters model.Filters, _ int) ([]model.Article, error) {
		if filters.Keyword == "bad" {
			return nil, fail
		}
		return makeArticles("a", 30), nil
	}}
	c := New(f)
	defer c.Close()

	c.Refresh(ctx, model.Filters{}, nil)
	c.LoadMore(ctx)

	c.Refresh(ctx, model.Filters{Keyword: "bad"}, nil)
	st := c.State()
	if st.Error != ErrorMessage || st.Phase != PhaseError {
		t.Fatalf("error=%q phase=%v", st.Error, st.Phase)
	}
	if len(st.Articles) != 24 || !st.HasMore || st.Loading {
		t.Errorf("failure must leave data alone: len=%d hasMore=%v loading=%v", len(st.Articles), st.HasMore, st.Loading)
	}

	c.Refresh(ctx, model.Filters{Keyword: "good"}, nil)
	st = c.State()
	if st.Error != "" || st.Phase != PhaseIdle || len(st.Articles) != 12 {
		t.Errorf("next request should clear the error: %+v", st)
	}
}

func TestLoadMoreAfterFailedModeSwitch(t *testing.T) {
	f := &fakeFetcher{respond: func(_ context.Context, _ model.Filters, page int) ([]model.Article, error) {
		if page >= 0 {
			return nil, errors.New("nyt down")
		}
		return makeArticles("a", 30), nil
	}}
	c := New(f)
	defer c.Close()

	c.Refresh(ctx, model.Filters{}, nil)
	c.Refresh(ctx, model.Filters{Keyword: "x"}, nytOnly)
	st := c.State()
	if st.Error != ErrorMessage || st.Server || len(st.Articles) != 12 {
		t.Fatalf("after failed server refresh: error=%q server=%v len=%d", st.Error, st.Server, len(st.Articles))
	}

	c.LoadMore(ctx)
	st = c.State()
	if len(st.Articles) != 24 || !st.HasMore {
		t.Errorf("LoadMore should continue the aggregate window: len=%d hasMore=%v", len(st.Articles), st.HasMore)
	}
	if got := f.fetchedPages(); got != "[0]" {
		t.Errorf("pages fetched = %s, want only the failed refresh", got)
	}
	if f.calls.Load() != 2 {
		t.Errorf("calls = %d, aggregate LoadMore must not fetch", f.calls.Load())
	}
}

func TestServerLoadMoreKeepsWindowFilters(t *testing.T) {
	var mu sync.Mutex
	var keywords []string
	f := &fakeFetcher{respond: func(_ context.Context, filters model.Filters, page int) ([]model.Article, error) {
		mu.Lock()
		keywords = append(keywords, filters.Keyword)
		mu.Unlock()
		if filters.Keyword == "bad" {
			return nil, errors.New("nyt down")
		}
		return makeArticles(fmt.Sprintf("p%d", page), 10), nil
	}}
	c := New(f)
	defer c.Close()

	c.Refresh(ctx, model.Filters{Keyword: "good"}, nytOnly)
	c.Refresh(ctx, model.Filters{Keyword: "bad"}, nytOnly)
	c.LoadMore(ctx)

	st := c.State()
	if len(st.Articles) != 20 || st.Page != 2 {
		t.Errorf("len=%d page=%d, want 20 and 2", len(st.Articles), st.Page)
	}
	mu.Lock()
	defer mu.Unlock()
	if fmt.Sprint(keywords) != "[good bad good]" {
		t.Errorf("keywords fetched = %v, LoadMore should page the shown search", keywords)
	}
	if got := f.fetchedPages(); got != "[0 0 1]" {
		t.Errorf("pages fetched = %s, want [0 0 1]", got)
	}
}

func TestCloseCancelsWithoutError(t *testing.T) {
	g := newGate()
	f := &fakeFetcher{respond: func(ctx context.Context, filters model.Filters, _ int) ([]model.Article, error) {
		g.started <- filters
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	c := New(f)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Refresh(ctx, model.Filters{Keyword: "x"}, nil)
	}()
	<-g.started

	c.Close()
	<-done

	st := c.State()
	if st.Loading || st.Error != "" || st.Phase != PhaseIdle {
		t.Errorf("cancellation must not surface: %+v", st)
	}

	c.Refresh(ctx, model.Filters{Keyword: "y"}, nil)
	if f.calls.Load() != 1 {
		t.Error("Refresh after Close should be a no-op")
	}
}

func TestCallerContextCancellation(t *testing.T) {
	f := &fakeFetcher{respond: func(ctx context.Context, _ model.Filters, _ int) ([]model.Article, error) {
		<-ctx.Done()
		return nil, fmt.Errorf("wrapped: %w", ctx.Err())
	}}
	c := New(f)
	defer c.Close()

	cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	c.Refresh(cctx, model.Filters{Keyword: "x"}, nil)

	if st := c.State(); st.Error != "" || st.Loading {
		t.Errorf("cancelled request must not set error: %+v", st)
	}
}

func TestOnChangeAndRefreshCurrent(t *testing.T) {
	f := fixed(makeArticles("a", 3))
	c := New(f)
	defer c.Close()

	var mu sync.Mutex
	var phases []Phase
	c.OnChange(func(s State) {
		mu.Lock()
		phases = append(phases, s.Phase)
		mu.Unlock()
	})

	c.Refresh(ctx, model.Filters{Keyword: "k"}, []model.SourceID{model.SourceGuardian})
	c.RefreshCurrent(ctx)

	mu.Lock()
	got := fmt.Sprint(phases)
	mu.Unlock()
	if got != "[loading idle loading idle]" {
		t.Errorf("phases = %s", got)
	}
	if f.calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", f.calls.Load())
	}
	st := c.State()
	if st.Filters.Keyword != "k" || len(st.Sources) != 1 {
		t.Errorf("RefreshCurrent should reuse the last query: %+v", st)
	}
}
