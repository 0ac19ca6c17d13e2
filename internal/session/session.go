// Package session turns search-form edits, preference changes and saved
// searches into feed refreshes.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/abelbrown/newsdesk/internal/debounce"
	"github.com/abelbrown/newsdesk/internal/model"
	"github.com/abelbrown/newsdesk/internal/otel"
	"github.com/abelbrown/newsdesk/internal/prefs"
	"github.com/abelbrown/newsdesk/internal/provider"
)

// Pager is the feed controller contract a session drives.
type Pager interface {
	Refresh(ctx context.Context, filters model.Filters, sources []model.SourceID)
}

// Clearer drops every cached response.
type Clearer interface {
	Clear()
}

// Capabilities answers which providers support a feature.
type Capabilities interface {
	Supports(id model.SourceID, f provider.Feature) bool
}

// ErrNoSearch is returned when saving before any search was performed.
var ErrNoSearch = errors.New("no search performed yet")

// Session holds the search state of one user.
type Session struct {
	ctx      context.Context
	pager    Pager
	cache    Clearer
	store    *prefs.Store
	debounce *debounce.Debouncer
	log      *otel.Logger
	now      func() time.Time
	caps     Capabilities

	mu    sync.Mutex
	prefs prefs.Preferences
	last  *model.Filters // last performed search
}

// Option configures a Session.
type Option func(*Session)

// WithDebounce sets the search-as-you-type delay.
func WithDebounce(d time.Duration) Option {
	return func(s *Session) { s.debounce = debounce.New(d) }
}

// WithLogger sets the event logger.
func WithLogger(l *otel.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithCapabilities sets the provider capability lookup used for author
// filtering. Defaults to the standard providers.
func WithCapabilities(c Capabilities) Option {
	return func(s *Session) { s.caps = c }
}

// WithClock replaces time.Now for date validation.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New creates a session and loads stored preferences. ctx bounds every
// refresh the session issues, including debounced ones.
func New(ctx context.Context, pager Pager, cache Clearer, store *prefs.Store, opts ...Option) (*Session, error) {
	s := &Session{
		ctx:      ctx,
		pager:    pager,
		cache:    cache,
		store:    store,
		debounce: debounce.New(debounce.DefaultDelay),
		now:      time.Now,
		caps:     provider.Defaults(provider.DefaultNewsAPIConfig(""), provider.DefaultGuardianConfig(""), provider.DefaultNYTimesConfig("")),
	}
	for _, opt := range opts {
		opt(s)
	}

	p, err := store.LoadPreferences()
	if err != nil {
		s.log.Error(otel.KindStoreError, "session", err)
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	s.prefs = p
	return s, nil
}

// Preferences returns the current preferences.
func (s *Session) Preferences() prefs.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

// Start performs the initial load: no filters, preferred sources.
func (s *Session) Start() {
	s.pager.Refresh(s.ctx, model.Filters{}, s.Preferences().PreferredSources())
}

// SourcesFor resolves the providers a search should use. A Source filter
// naming a provider narrows to that provider; otherwise the preferred
// sources apply.
func (s *Session) SourcesFor(filters model.Filters) []model.SourceID {
	if model.IsKnownSource(filters.Source) {
		return []model.SourceID{model.SourceID(filters.Source)}
	}
	return s.Preferences().PreferredSources()
}

// FormFilters builds search filters from raw form input: keyword trimmed,
// author dropped.
func FormFilters(form model.Filters) model.Filters {
	return model.Filters{
		Keyword:  strings.TrimSpace(form.Keyword),
		Category: form.Category,
		Source:   form.Source,
		DateFrom: form.DateFrom,
		DateTo:   form.DateTo,
	}
}

// Edit schedules a search for form after the debounce delay, replacing
// any search still waiting. An invalid date range is reported and
// nothing is scheduled.
func (s *Session) Edit(form model.Filters) error {
	filters := FormFilters(form)
	if err := filters.ValidateDateRange(s.now()); err != nil {
		return err
	}
	s.debounce.Trigger(func() { s.perform(filters) })
	return nil
}

// Submit searches for form immediately, dropping any pending debounced
// search. Reports whether a search was issued; an identical consecutive
// search is skipped.
func (s *Session) Submit(form model.Filters) (bool, error) {
	filters := FormFilters(form)
	if err := filters.ValidateDateRange(s.now()); err != nil {
		return false, err
	}
	s.debounce.Stop()
	return s.perform(filters), nil
}

// FlushPending runs a pending debounced search now.
func (s *Session) FlushPending() bool {
	return s.debounce.Flush()
}

func (s *Session) perform(filters model.Filters) bool {
	s.mu.Lock()
	if s.last != nil && *s.last == filters {
		s.mu.Unlock()
		return false
	}
	s.last = &filters
	s.mu.Unlock()

	sources := s.SourcesFor(filters)
	if model.IsKnownSource(filters.Source) {
		// Narrowing to one provider drops every cached response.
		s.cache.Clear()
	}
	s.pager.Refresh(s.ctx, filters, sources)
	return true
}

// LastSearch returns the last performed search filters.
func (s *Session) LastSearch() (model.Filters, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return model.Filters{}, false
	}
	return *s.last, true
}

// SavePreferences persists p and reloads the feed with no filters over
// the new preferred sources.
func (s *Session) SavePreferences(p prefs.Preferences) error {
	if err := s.store.SavePreferences(p); err != nil {
		s.log.Error(otel.KindStoreError, "session", err)
		return fmt.Errorf("save preferences: %w", err)
	}
	s.mu.Lock()
	s.prefs = p
	s.last = nil
	s.mu.Unlock()

	s.pager.Refresh(s.ctx, model.Filters{}, p.PreferredSources())
	return nil
}

// ClearPreferences removes stored preferences and reloads every source.
func (s *Session) ClearPreferences() error {
	if err := s.store.ClearPreferences(); err != nil {
		s.log.Error(otel.KindStoreError, "session", err)
		return fmt.Errorf("clear preferences: %w", err)
	}
	s.mu.Lock()
	s.prefs = prefs.Preferences{}
	s.last = nil
	s.mu.Unlock()

	s.pager.Refresh(s.ctx, model.Filters{}, model.DefaultSources())
	return nil
}

// ApplyPreferences refreshes with the preferred categories and authors
// over the preferred sources.
func (s *Session) ApplyPreferences() {
	p := s.Preferences()
	filters := p.Filters()

	s.mu.Lock()
	s.last = &filters
	s.mu.Unlock()

	s.pager.Refresh(s.ctx, filters, p.PreferredSources())
}

// KeepForAuthors reports whether a should stay visible under the preferred
// authors. Articles from providers that filter by author server-side are
// always kept; for the rest the author must contain a preferred name,
// ignoring case.
func KeepForAuthors(a model.Article, authors []string, caps Capabilities) bool {
	if len(authors) == 0 {
		return true
	}
	if caps != nil && caps.Supports(model.SourceID(a.Source.ID), provider.FeatureAuthors) {
		return true
	}
	if a.Author == "" {
		return false
	}
	author := strings.ToLower(a.Author)
	for _, want := range authors {
		if strings.Contains(author, strings.ToLower(want)) {
			return true
		}
	}
	return false
}

// Visible filters articles by the preferred authors.
func (s *Session) Visible(articles []model.Article) []model.Article {
	authors := s.Preferences().Authors
	if len(authors) == 0 {
		return articles
	}
	out := make([]model.Article, 0, len(articles))
	for _, a := range articles {
		if KeepForAuthors(a, authors, s.caps) {
			out = append(out, a)
		}
	}
	return out
}

// SaveSearch stores the last performed search under name. Returns
// ErrNoSearch when nothing has been searched yet.
func (s *Session) SaveSearch(name string) (prefs.SavedSearch, error) {
	filters, ok := s.LastSearch()
	if !ok {
		return prefs.SavedSearch{}, ErrNoSearch
	}
	saved, err := s.store.AddSavedSearch(name, filters)
	if err != nil {
		s.log.Error(otel.KindStoreError, "session", err)
		return prefs.SavedSearch{}, fmt.Errorf("save search: %w", err)
	}
	return saved, nil
}

// SavedSearches lists the stored searches.
func (s *Session) SavedSearches() ([]prefs.SavedSearch, error) {
	return s.store.LoadSavedSearches()
}

// ApplySavedSearch runs the saved search named name.
func (s *Session) ApplySavedSearch(name string) (bool, error) {
	saved, ok, err := s.store.FindSavedSearch(name)
	if err != nil {
		return false, fmt.Errorf("find saved search: %w", err)
	}
	if !ok {
		return false, fmt.Errorf("no saved search named %q", name)
	}
	return s.Submit(saved.Filters)
}

// DeleteSavedSearch removes a saved search by id.
func (s *Session) DeleteSavedSearch(id string) (bool, error) {
	return s.store.DeleteSavedSearch(id)
}

// Close drops any pending debounced search.
func (s *Session) Close() {
	s.debounce.Stop()
}
