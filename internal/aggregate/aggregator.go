// Package aggregate fans a query out to the selected providers, merges the
// partial results and caches the merged feed.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/newsdesk/internal/cache"
	"github.com/abelbrown/newsdesk/internal/model"
	"github.com/abelbrown/newsdesk/internal/otel"
	"github.com/abelbrown/newsdesk/internal/provider"
)

// providerTimeout bounds one provider call inside a fan-out.
const providerTimeout = 30 * time.Second

// ErrAllProvidersFailed is matched by errors.Is on a *FailureError.
var ErrAllProvidersFailed = errors.New("all providers failed")

// FailureError is returned when every provider in a fan-out failed.
// Errs holds one *provider.Error (or other cause) per provider.
type FailureError struct {
	Errs []error
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("%v: %v", ErrAllProvidersFailed, errors.Join(e.Errs...))
}

func (e *FailureError) Unwrap() []error {
	return append([]error{ErrAllProvidersFailed}, e.Errs...)
}

// registry is the subset of *provider.Registry the aggregator needs.
type registry interface {
	Configured(ids []model.SourceID) []provider.Provider
	AnyConfigured() bool
}

// Aggregator is the fan-out/merge orchestrator. It owns its cache.
type Aggregator struct {
	providers registry
	cache     *cache.Cache
	fixtures  []model.Article
	timeout   time.Duration
	log       *otel.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithCache replaces the default cache.
func WithCache(c *cache.Cache) Option {
	return func(a *Aggregator) { a.cache = c }
}

// WithFixtures replaces the offline dataset used when no provider is
// configured.
func WithFixtures(articles []model.Article) Option {
	return func(a *Aggregator) { a.fixtures = articles }
}

// WithProviderTimeout sets the per-provider deadline inside a fan-out.
func WithProviderTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithLogger sets the event logger.
func WithLogger(l *otel.Logger) Option {
	return func(a *Aggregator) { a.log = l }
}

// New creates an Aggregator over the given providers.
func New(providers registry, opts ...Option) *Aggregator {
	a := &Aggregator{
		providers: providers,
		fixtures:  Fixtures(),
		timeout:   providerTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.cache == nil {
		a.cache = cache.New(cache.WithLogger(a.log))
	}
	return a
}

// Cache returns the aggregator's response cache.
func (a *Aggregator) Cache() *cache.Cache { return a.cache }

// FetchArticles returns the merged, deduplicated, newest-first feed for
// filters across sources (all sources when empty).
//
// Cancelling ctx returns ctx.Err() and writes nothing to the cache. A
// provider failure only drops that provider's results, unless every
// provider failed, in which case a *FailureError is returned.
func (a *Aggregator) FetchArticles(ctx context.Context, filters model.Filters, sources []model.SourceID) ([]model.Article, error) {
	return a.fetch(ctx, filters, sources, 0, false)
}

// FetchPage fetches one server-side page (0-based). Paged requests never
// read or write the cache.
func (a *Aggregator) FetchPage(ctx context.Context, filters model.Filters, sources []model.SourceID, page int) ([]model.Article, error) {
	return a.fetch(ctx, filters, sources, page, true)
}

func (a *Aggregator) fetch(ctx context.Context, filters model.Filters, sources []model.SourceID, page int, paged bool) ([]model.Article, error) {
	if len(sources) == 0 {
		sources = model.DefaultSources()
	}
	initialLoad := filters.IsEmpty()
	key := cache.Key(filters, sources)

	if !initialLoad && !paged {
		if cached, ok := a.cache.Get(filters, sources); ok {
			a.log.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindCacheHit, Comp: "aggregate", Key: key, Count: len(cached)})
			return cached, nil
		}
		a.log.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindCacheMiss, Comp: "aggregate", Key: key})
	}

	if !a.providers.AnyConfigured() {
		articles := FilterFixtures(a.fixtures, filters)
		if paged {
			articles = window(articles, page, provider.NYTPageSize)
		} else if !initialLoad {
			a.cache.Set(filters, sources, articles)
		}
		a.log.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindFetchFixture, Comp: "aggregate", Count: len(articles), Page: page})
		return articles, nil
	}

	providers := a.providers.Configured(sources)
	if len(providers) == 0 {
		return []model.Article{}, nil
	}

	merged, err := a.fanOut(ctx, providers, filters, page)
	if err != nil {
		return nil, err
	}

	articles := SortNewestFirst(Dedup(merged))
	if !paged {
		a.cache.Set(filters, sources, articles)
	}
	return articles, nil
}

type result struct {
	articles []model.Article
	err      error
}

// fanOut runs one goroutine per provider and concatenates the successful
// results in provider order.
func (a *Aggregator) fanOut(ctx context.Context, providers []provider.Provider, filters model.Filters, page int) ([]model.Article, error) {
	start := time.Now()
	a.log.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindFetchStart, Comp: "aggregate", Count: len(providers), Page: page})

	results := make([]result, len(providers))

	var g errgroup.Group
	for i, p := range providers {
		i, p := i, p
		g.Go(func() error {
			results[i] = a.fetchOne(ctx, p, filters, page)
			return nil // failures are per-provider, never fail the group
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		a.log.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindFetchCancel, Comp: "aggregate", Dur: time.Since(start)})
		return nil, err
	}

	var merged []model.Article
	var errs []error
	for i, r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			a.log.Emit(otel.Event{
				Level:  otel.LevelWarn,
				Kind:   otel.KindFetchError,
				Comp:   "aggregate",
				Source: string(providers[i].ID()),
				Err:    r.err.Error(),
			})
			continue
		}
		merged = append(merged, r.articles...)
	}

	if len(errs) == len(providers) {
		return nil, &FailureError{Errs: errs}
	}

	a.log.Emit(otel.Event{
		Level: otel.LevelInfo,
		Kind:  otel.KindFetchComplete,
		Comp:  "aggregate",
		Count: len(merged),
		Dur:   time.Since(start),
		Extra: map[string]any{"failed": len(errs)},
	})
	return merged, nil
}

func (a *Aggregator) fetchOne(ctx context.Context, p provider.Provider, filters model.Filters, page int) result {
	if ctx.Err() != nil {
		return result{err: ctx.Err()}
	}
	fetchCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	articles, err := p.FetchArticles(fetchCtx, filters, page)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			err = &provider.Error{Provider: p.ID(), Err: fmt.Errorf("timed out after %s: %w", a.timeout, err)}
		}
		return result{err: err}
	}
	a.log.Emit(otel.Event{
		Level:  otel.LevelDebug,
		Kind:   otel.KindFetchComplete,
		Comp:   "provider",
		Source: string(p.ID()),
		Count:  len(articles),
		Page:   page,
		Dur:    time.Since(start),
	})
	return result{articles: articles}
}

// Dedup drops every article whose title or url already appeared earlier
// in the sequence. First occurrence wins.
func Dedup(articles []model.Article) []model.Article {
	titles := make(map[string]bool, len(articles))
	urls := make(map[string]bool, len(articles))
	out := make([]model.Article, 0, len(articles))
	for _, a := range articles {
		dup := titles[a.Title] || urls[a.URL]
		titles[a.Title] = true
		urls[a.URL] = true
		if !dup {
			out = append(out, a)
		}
	}
	return out
}

// SortNewestFirst stable-sorts articles by publication instant, newest
// first, in place, and returns the slice.
func SortNewestFirst(articles []model.Article) []model.Article {
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].Published().After(articles[j].Published())
	})
	return articles
}

// FilterFixtures applies the live-query predicates to an offline dataset:
// keyword substring on title or description (case-insensitive), category
// membership and source id substring. The result is sorted newest first
// with images backfilled.
func FilterFixtures(fixtures []model.Article, filters model.Filters) []model.Article {
	filters = filters.Normalized()
	keyword := strings.ToLower(filters.Keyword)
	categories := filters.Categories()
	source := filters.Source
	if source == "all" {
		source = ""
	}

	out := make([]model.Article, 0, len(fixtures))
	for _, a := range fixtures {
		if keyword != "" &&
			!strings.Contains(strings.ToLower(a.Title), keyword) &&
			!strings.Contains(strings.ToLower(a.Description), keyword) {
			continue
		}
		if len(categories) > 0 && !containsCategory(categories, a.Category) {
			continue
		}
		if source != "" && !strings.Contains(a.Source.ID, source) {
			continue
		}
		out = append(out, a.WithDefaultImage())
	}
	return SortNewestFirst(out)
}

func containsCategory(tags []string, c model.Category) bool {
	for _, t := range tags {
		if model.Category(t) == c {
			return true
		}
	}
	return false
}

func window(articles []model.Article, page, size int) []model.Article {
	start := page * size
	if page < 0 || start >= len(articles) {
		return []model.Article{}
	}
	end := min(start+size, len(articles))
	return articles[start:end]
}
