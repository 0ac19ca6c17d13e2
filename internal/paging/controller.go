// Package paging owns the "refresh" and "load more" semantics of the feed.
//
// Two strategies share one contract. When the only selected source is the
// New York Times, pages come from the provider itself (server mode). Any
// other selection buffers the full merged result in memory and reveals it
// a window at a time (aggregate mode).
//
// Every accepted request bumps a generation counter. A request commits
// only while its generation is still current, and a newer request cancels
// the older one before it starts, so a superseded result is never applied.
package paging

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/abelbrown/newsdesk/internal/model"
	"github.com/abelbrown/newsdesk/internal/otel"
	"github.com/abelbrown/newsdesk/internal/provider"
)

const (
	// DefaultPageSize is the aggregate-mode window.
	DefaultPageSize = 12

	// ErrorMessage is the single user-facing failure text.
	ErrorMessage = "Failed to load articles. Please try again."
)

// Fetcher is the orchestrator contract the controller drives.
type Fetcher interface {
	FetchArticles(ctx context.Context, filters model.Filters, sources []model.SourceID) ([]model.Article, error)
	FetchPage(ctx context.Context, filters model.Filters, sources []model.SourceID, page int) ([]model.Article, error)
}

// Phase is the controller's coarse state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseError:
		return "error"
	}
	return "idle"
}

// State is a snapshot of what the caller may render.
type State struct {
	Articles []model.Article
	Loading  bool
	HasMore  bool
	Error    string
	Phase    Phase
	Page     int // aggregate: windows shown; server: next cursor
	Filters  model.Filters
	Sources  []model.SourceID
	Server   bool // mode of the shown articles, which LoadMore continues
}

// Controller is safe for concurrent use. Refresh and LoadMore block until
// their request commits, is superseded, or is suppressed; callers that
// must not block run them in a goroutine.
type Controller struct {
	fetcher        Fetcher
	pageSize       int
	serverPageSize int
	log            *otel.Logger

	mu       sync.Mutex
	filters  model.Filters
	sources  []model.SourceID
	visible  []model.Article
	buffer   []model.Article // aggregate mode only
	// filters and sources of the last successful refresh. LoadMore
	// continues this window even after a later refresh failed.
	winFilters model.Filters
	winSources []model.SourceID
	page     int
	hasMore  bool
	loading  bool
	errMsg   string
	phase    Phase
	gen      uint64
	cancel   context.CancelFunc
	lastKey  string
	onChange func(State)
	closed   bool

	wg sync.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

// WithPageSize sets the aggregate-mode window.
func WithPageSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithServerPageSize sets the full-page size of the server-paged provider.
func WithServerPageSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.serverPageSize = n
		}
	}
}

// WithLogger sets the event logger.
func WithLogger(l *otel.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// New creates a controller over fetcher.
func New(fetcher Fetcher, opts ...Option) *Controller {
	c := &Controller{
		fetcher:        fetcher,
		pageSize:       DefaultPageSize,
		serverPageSize: provider.NYTPageSize,
		sources:        model.DefaultSources(),
		winSources:     model.DefaultSources(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnChange registers fn to receive a snapshot after every state change.
// fn is called without the controller lock held.
func (c *Controller) OnChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() State {
	return State{
		Articles: slices.Clone(c.visible),
		Loading:  c.loading,
		HasMore:  c.hasMore,
		Error:    c.errMsg,
		Phase:    c.phase,
		Page:     c.page,
		Filters:  c.filters,
		Sources:  slices.Clone(c.sources),
		Server:   serverMode(c.winSources),
	}
}

// serverMode reports whether sources select the server-paged provider
// alone.
func serverMode(sources []model.SourceID) bool {
	return len(sources) == 1 && sources[0] == model.SourceNYTimes
}

// Refresh replaces the feed with the first page for filters and sources.
// Empty sources select every provider.
func (c *Controller) Refresh(ctx context.Context, filters model.Filters, sources []model.SourceID) {
	if len(sources) == 0 {
		sources = model.DefaultSources()
	}
	c.run(ctx, filters, slices.Clone(sources), true)
}

// RefreshCurrent re-runs the last refresh.
func (c *Controller) RefreshCurrent(ctx context.Context) {
	c.mu.Lock()
	filters, sources := c.filters, slices.Clone(c.sources)
	c.mu.Unlock()
	c.run(ctx, filters, sources, true)
}

// LoadMore appends the next page of the shown window. It does nothing
// while a request is in flight or when no more data exists. In aggregate
// mode no provider is called.
func (c *Controller) LoadMore(ctx context.Context) {
	c.mu.Lock()
	if c.closed || c.loading || !c.hasMore {
		c.mu.Unlock()
		return
	}
	if !serverMode(c.winSources) {
		c.revealNextLocked()
		st := c.snapshotLocked()
		fn := c.onChange
		c.mu.Unlock()

		c.log.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindPageMore, Comp: "paging", Page: st.Page, Count: len(st.Articles)})
		notify(fn, st)
		return
	}
	filters, sources := c.winFilters, slices.Clone(c.winSources)
	c.mu.Unlock()

	c.run(ctx, filters, sources, false)
}

// Close cancels the in-flight request and waits for it to return. Later
// calls are no-ops.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()
	c.wg.Wait()
}

// revealNextLocked slices the next window out of the aggregate buffer.
func (c *Controller) revealNextLocked() {
	start := c.page * c.pageSize
	if start >= len(c.buffer) {
		c.hasMore = false
		return
	}
	end := min(start+c.pageSize, len(c.buffer))
	c.visible = append(c.visible, c.buffer[start:end]...)
	c.page++
	c.hasMore = end < len(c.buffer)
}

type requestKey struct {
	Filters model.Filters    `json:"filters"`
	Sources []model.SourceID `json:"sources"`
	Reset   bool             `json:"reset"`
	Cursor  *int             `json:"cursor,omitempty"`
}

// request is one accepted fetch.
type request struct {
	ctx     context.Context
	gen     uint64
	filters model.Filters
	sources []model.SourceID
	reset   bool
	server  bool
	cursor  int
}

func (c *Controller) run(parent context.Context, filters model.Filters, sources []model.SourceID, reset bool) {
	req, ok := c.accept(parent, filters, sources, reset)
	if !ok {
		return
	}
	defer c.wg.Done()

	start := time.Now()
	var (
		articles []model.Article
		err      error
	)
	if req.server {
		articles, err = c.fetcher.FetchPage(req.ctx, req.filters, req.sources, req.cursor)
	} else {
		articles, err = c.fetcher.FetchArticles(req.ctx, req.filters, req.sources)
	}

	switch {
	case err != nil && (errors.Is(err, context.Canceled) || req.ctx.Err() != nil):
		c.log.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindFetchCancel, Comp: "paging", Gen: req.gen, Dur: time.Since(start)})
		c.commit(req.gen, func() { c.phase = PhaseIdle })
	case err != nil:
		c.log.Emit(otel.Event{Level: otel.LevelError, Kind: otel.KindPageError, Comp: "paging", Gen: req.gen, Err: err.Error(), Dur: time.Since(start)})
		c.commit(req.gen, func() {
			c.errMsg = ErrorMessage
			c.phase = PhaseError
		})
	default:
		c.commit(req.gen, func() {
			c.apply(req, articles)
			c.phase = PhaseIdle
		})
	}
}

// accept registers a new request: suppresses an identical in-flight one,
// otherwise cancels whatever is in flight and bumps the generation.
func (c *Controller) accept(parent context.Context, filters model.Filters, sources []model.SourceID, reset bool) (request, bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return request{}, false
	}

	server := serverMode(sources)
	cursor := 0
	if server && !reset {
		cursor = c.page
	}
	k := requestKey{Filters: filters, Sources: sources, Reset: reset}
	if server {
		k.Cursor = &cursor
	}
	data, _ := json.Marshal(k)
	key := string(data)

	if c.loading && key == c.lastKey {
		gen := c.gen
		c.mu.Unlock()
		c.log.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindPageSuppress, Comp: "paging", Gen: gen, Key: key})
		return request{}, false
	}

	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	c.gen++
	c.cancel = cancel
	c.lastKey = key
	c.loading = true
	c.errMsg = ""
	c.phase = PhaseLoading
	if reset {
		c.filters = filters
		c.sources = sources
	}
	c.wg.Add(1)

	req := request{ctx: ctx, gen: c.gen, filters: filters, sources: sources, reset: reset, server: server, cursor: cursor}
	st := c.snapshotLocked()
	fn := c.onChange
	c.mu.Unlock()

	kind := otel.KindPageMore
	if reset {
		kind = otel.KindPageRefresh
	}
	c.log.Emit(otel.Event{Level: otel.LevelInfo, Kind: kind, Comp: "paging", Gen: req.gen, Page: cursor, Key: key})
	notify(fn, st)
	return req, true
}

// commit applies fn and clears the loading flag if gen is still current.
// A superseded request leaves every field alone; the newer request owns
// the loading flag.
func (c *Controller) commit(gen uint64, fn func()) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	fn()
	c.loading = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	st := c.snapshotLocked()
	onChange := c.onChange
	c.mu.Unlock()

	notify(onChange, st)
}

// apply merges a successful result. Caller holds c.mu.
func (c *Controller) apply(req request, articles []model.Article) {
	if req.reset {
		c.winFilters = req.filters
		c.winSources = req.sources
	}
	switch {
	case req.server && req.reset:
		c.buffer = nil
		c.visible = slices.Clone(articles)
		c.hasMore = len(articles) >= c.serverPageSize
		c.page = 1
	case req.server:
		if len(articles) == 0 {
			c.hasMore = false
			return
		}
		c.visible = append(c.visible, articles...)
		c.hasMore = len(articles) >= c.serverPageSize
		c.page++
	default:
		c.buffer = slices.Clone(articles)
		c.visible = slices.Clone(articles[:min(c.pageSize, len(articles))])
		c.hasMore = len(articles) > c.pageSize
		c.page = 1
	}
}

func notify(fn func(State), st State) {
	if fn != nil {
		fn(st)
	}
}
