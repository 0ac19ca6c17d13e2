package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/abelbrown/newsdesk/internal/model"
)

// recorder captures the last request a test server received.
type recorder struct {
	mu    sync.Mutex
	path  string
	query url.Values
}

func (r *recorder) last() (string, url.Values) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path, r.query
}

// newServer returns a server answering every request with body.
func newServer(t *testing.T, status int, body any) (*httptest.Server, *recorder) {
	t.Helper()
	rec := &recorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.mu.Lock()
		rec.path = r.URL.Path
		rec.query = r.URL.Query()
		rec.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(server.Close)
	return server, rec
}

func noLimit() Option { return WithLimiter(rate.NewLimiter(rate.Inf, 1)) }

func withBase(cfg Config, base string) Config {
	cfg.BaseURL = base
	return cfg
}

func TestIsConfigured(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"", false},
		{"   ", false},
		{"demo_key_newsapi", false},
		{"demo_key_guardian", false},
		{"real-key", true},
	}
	for _, tt := range tests {
		if got := IsConfigured(tt.key); got != tt.want {
			t.Errorf("IsConfigured(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestSupportsFeature(t *testing.T) {
	n := NewNewsAPI(DefaultNewsAPIConfig("k"))
	g := NewGuardian(DefaultGuardianConfig("k"))
	y := NewNYTimes(DefaultNYTimesConfig("k"))

	if n.SupportsFeature(FeatureAuthors) || g.SupportsFeature(FeatureAuthors) {
		t.Error("only NYT should support server-side author filtering")
	}
	if !y.SupportsFeature(FeatureAuthors) {
		t.Error("NYT should support author filtering")
	}
	for _, p := range []Provider{n, g, y} {
		for _, f := range []Feature{FeatureCategories, FeatureDateRange, FeatureFullTextSearch} {
			if !p.SupportsFeature(f) {
				t.Errorf("%s should support %s", p.ID(), f)
			}
		}
	}
}

func TestNewsAPIBrowseEndpoint(t *testing.T) {
	server, rec := newServer(t, http.StatusOK, map[string]any{
		"status": "ok",
		"articles": []map[string]any{
			{"title": "Markets rally", "url": "https://a/1", "publishedAt": "2024-01-02T00:00:00Z", "source": map[string]any{"name": "Reuters"}},
			{"title": "[Removed]", "url": "https://a/2"},
		},
	})
	p := NewNewsAPI(withBase(DefaultNewsAPIConfig("key"), server.URL), noLimit())

	articles, err := p.FetchArticles(context.Background(), model.Filters{Category: "sports,business"}, 0)
	if err != nil {
		t.Fatalf("FetchArticles: %v", err)
	}

	path, q := rec.last()
	if path != "/top-headlines" {
		t.Errorf("path = %q, want /top-headlines", path)
	}
	if q.Get("category") != "sports" {
		t.Errorf("category = %q, want first category only", q.Get("category"))
	}
	if q.Get("country") != "us" {
		t.Errorf("country = %q, want us", q.Get("country"))
	}
	if q.Get("apiKey") != "key" {
		t.Errorf("apiKey not sent")
	}

	if len(articles) != 1 {
		t.Fatalf("got %d articles, want 1 ([Removed] dropped)", len(articles))
	}
	a := articles[0]
	if a.ID != "https://a/1" || a.Source.ID != "newsapi" || a.Source.Name != "Reuters" {
		t.Errorf("unexpected article: %+v", a)
	}
	if a.Category != model.CategoryBusiness {
		t.Errorf("category = %q, want inferred business", a.Category)
	}
}

func TestNewsAPISearchEndpoint(t *testing.T) {
	server, rec := newServer(t, http.StatusOK, map[string]any{"status": "ok", "articles": []any{}})
	p := NewNewsAPI(withBase(DefaultNewsAPIConfig("key"), server.URL), noLimit())

	filters := model.Filters{Keyword: "election", Category: "health,sports", DateFrom: "2024-01-01", DateTo: "2024-01-31"}
	if _, err := p.FetchArticles(context.Background(), filters, 3); err != nil {
		t.Fatalf("FetchArticles: %v", err)
	}

	path, q := rec.last()
	if path != "/everything" {
		t.Errorf("path = %q, want /everything", path)
	}
	if q.Has("category") || q.Has("country") {
		t.Error("search endpoint must not send category or country")
	}
	wantQ := "(election) AND (health OR medical OR medicine OR healthcare)"
	if q.Get("q") != wantQ {
		t.Errorf("q = %q, want %q", q.Get("q"), wantQ)
	}
	if q.Get("from") != "2024-01-01" || q.Get("to") != "2024-01-31" {
		t.Errorf("date bounds = %q..%q", q.Get("from"), q.Get("to"))
	}
	if q.Has("page") {
		t.Error("NewsAPI should not forward page")
	}
}

func TestNewsAPIErrorEnvelope(t *testing.T) {
	server, _ := newServer(t, http.StatusOK, map[string]any{"status": "error", "message": "rate limited"})
	p := NewNewsAPI(withBase(DefaultNewsAPIConfig("key"), server.URL), noLimit())

	_, err := p.FetchArticles(context.Background(), model.Filters{}, 0)
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if perr.Provider != model.SourceNewsAPI {
		t.Errorf("Provider = %q", perr.Provider)
	}
}

func TestHTTPStatusIsProviderError(t *testing.T) {
	server, _ := newServer(t, http.StatusUnauthorized, map[string]any{"message": "bad key"})
	p := NewGuardian(withBase(DefaultGuardianConfig("key"), server.URL), noLimit())

	_, err := p.FetchArticles(context.Background(), model.Filters{}, 0)
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if perr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", perr.StatusCode)
	}
	if IsCancellation(err) {
		t.Error("HTTP failure must not look like cancellation")
	}
}

func TestCancellationIsNotWrapped(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	p := NewNYTimes(withBase(DefaultNYTimesConfig("key"), server.URL), noLimit())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := p.FetchArticles(ctx, model.Filters{}, 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	var perr *Error
	if errors.As(err, &perr) {
		t.Error("cancellation must not be wrapped in *Error")
	}
}

func TestAlreadyCancelledContext(t *testing.T) {
	p := NewNewsAPI(DefaultNewsAPIConfig("key"), noLimit())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.FetchArticles(ctx, model.Filters{}, 0)
	if !IsCancellation(err) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestGuardianQueryAndNormalize(t *testing.T) {
	server, rec := newServer(t, http.StatusOK, map[string]any{
		"response": map[string]any{
			"status": "ok",
			"results": []map[string]any{
				{
					"id":                 "world/2024/jan/01/story",
					"webTitle":           "Story",
					"webUrl":             "https://g/story",
					"webPublicationDate": "2024-01-01T10:00:00Z",
					"sectionId":          "society",
					"fields":             map[string]any{"trailText": "trail", "byline": "Jane Doe"},
				},
				{"sectionName": "Football"},
			},
		},
	})
	p := NewGuardian(withBase(DefaultGuardianConfig("gkey"), server.URL), noLimit())

	filters := model.Filters{Keyword: "nhs", Category: "health,sports,unknown", DateFrom: "2024-01-01"}
	articles, err := p.FetchArticles(context.Background(), filters, 0)
	if err != nil {
		t.Fatalf("FetchArticles: %v", err)
	}

	path, q := rec.last()
	if path != "/search" {
		t.Errorf("path = %q", path)
	}
	if q.Get("section") != "society|sport|world" {
		t.Errorf("section = %q, want society|sport|world", q.Get("section"))
	}
	if q.Get("api-key") != "gkey" || q.Get("q") != "nhs" || q.Get("from-date") != "2024-01-01" {
		t.Errorf("unexpected query: %v", q)
	}

	if len(articles) != 2 {
		t.Fatalf("got %d articles, want 2", len(articles))
	}
	a := articles[0]
	if a.Category != model.CategoryHealth || a.Author != "Jane Doe" || a.Description != "trail" {
		t.Errorf("unexpected first article: %+v", a)
	}
	if a.URLToImage != model.DefaultImage {
		t.Errorf("missing thumbnail should fall back to default image")
	}

	b := articles[1]
	if b.Title != model.FallbackTitle || b.URL != model.FallbackURL || b.Description != model.FallbackDescription {
		t.Errorf("fallbacks not applied: %+v", b)
	}
	if !strings.HasPrefix(b.ID, "guardian-") {
		t.Errorf("synthetic id = %q", b.ID)
	}
	if b.Category != model.CategoryGeneral {
		t.Errorf("unmapped section should be general, got %q", b.Category)
	}
	if b.PublishedAt == "" {
		t.Error("publishedAt must be backfilled")
	}
}

func TestNYTimesQueryAndNormalize(t *testing.T) {
	server, rec := newServer(t, http.StatusOK, map[string]any{
		"status": "OK",
		"response": map[string]any{
			"docs": []map[string]any{
				{
					"_id":          "nyt://article/1",
					"headline":     map[string]any{"main": "Headline"},
					"abstract":     "Abstract",
					"web_url":      "https://nyt/1",
					"pub_date":     "2024-01-01T10:00:00+0000",
					"section_name": "Arts",
					"byline":       map[string]any{"original": "By Jane Doe"},
					"multimedia":   map[string]any{"default": map[string]any{"url": "https://img/1.jpg"}},
				},
				{
					"_id":        "nyt://article/2",
					"multimedia": []map[string]any{{"url": "images/2024/01/01/photo.jpg"}},
				},
			},
		},
	})
	p := NewNYTimes(withBase(DefaultNYTimesConfig("nkey"), server.URL), noLimit())

	filters := model.Filters{
		Keyword:  "climate",
		Category: "business,sports",
		Author:   "Jane Doe, John Roe",
		DateFrom: "2024-01-01",
		DateTo:   "2024-02-15",
	}
	articles, err := p.FetchArticles(context.Background(), filters, 2)
	if err != nil {
		t.Fatalf("FetchArticles: %v", err)
	}

	path, q := rec.last()
	if path != "/articlesearch.json" {
		t.Errorf("path = %q", path)
	}
	wantFq := `section_name:("Business" OR "Sports") AND byline:("Jane Doe" OR "John Roe")`
	if q.Get("fq") != wantFq {
		t.Errorf("fq = %q, want %q", q.Get("fq"), wantFq)
	}
	if q.Get("page") != "2" {
		t.Errorf("page = %q, want 2", q.Get("page"))
	}
	if q.Get("begin_date") != "20240101" || q.Get("end_date") != "20240215" {
		t.Errorf("dates = %q..%q", q.Get("begin_date"), q.Get("end_date"))
	}

	if len(articles) != 2 {
		t.Fatalf("got %d articles, want 2", len(articles))
	}
	a := articles[0]
	if a.Author != "Jane Doe" {
		t.Errorf("Author = %q, want byline prefix stripped", a.Author)
	}
	if a.Category != model.CategoryEntertainment {
		t.Errorf("Category = %q, want entertainment", a.Category)
	}
	if a.URLToImage != "https://img/1.jpg" {
		t.Errorf("URLToImage = %q", a.URLToImage)
	}
	if got := articles[1].URLToImage; got != "https://www.nytimes.com/images/2024/01/01/photo.jpg" {
		t.Errorf("array multimedia URL = %q", got)
	}
}

func TestNYTFilterQuerySingleValues(t *testing.T) {
	tests := []struct {
		filters model.Filters
		want    string
	}{
		{model.Filters{}, ""},
		{model.Filters{Category: "science"}, `section_name:"Science"`},
		{model.Filters{Category: "nonsense"}, `section_name:"World"`},
		{model.Filters{Author: "Jane Doe"}, `byline:("Jane Doe")`},
		{model.Filters{Category: "health", Author: "A"}, `section_name:"Health" AND byline:("A")`},
	}
	for _, tt := range tests {
		if got := nytFilterQuery(tt.filters); got != tt.want {
			t.Errorf("nytFilterQuery(%+v) = %q, want %q", tt.filters, got, tt.want)
		}
	}
}

func TestNYTimesBadStatus(t *testing.T) {
	server, _ := newServer(t, http.StatusOK, map[string]any{"status": "ERROR"})
	p := NewNYTimes(withBase(DefaultNYTimesConfig("nkey"), server.URL), noLimit())

	_, err := p.FetchArticles(context.Background(), model.Filters{}, 0)
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *Error, got %v", err)
	}
}

func TestRegistryConfigured(t *testing.T) {
	r := Defaults(
		DefaultNewsAPIConfig("demo_key_newsapi"),
		DefaultGuardianConfig("g"),
		DefaultNYTimesConfig("n"),
	)

	got := r.Configured([]model.SourceID{model.SourceNYTimes, model.SourceNewsAPI, model.SourceGuardian, model.SourceNYTimes})
	if len(got) != 2 {
		t.Fatalf("Configured returned %d providers, want 2", len(got))
	}
	if got[0].ID() != model.SourceNYTimes || got[1].ID() != model.SourceGuardian {
		t.Errorf("order not preserved: %s, %s", got[0].ID(), got[1].ID())
	}
	if !r.AnyConfigured() {
		t.Error("AnyConfigured should be true")
	}

	empty := Defaults(DefaultNewsAPIConfig(""), DefaultGuardianConfig(" "), DefaultNYTimesConfig("demo_key_nytimes"))
	if empty.AnyConfigured() {
		t.Error("no provider should be configured")
	}
	if _, ok := empty.Get(model.SourceGuardian); !ok {
		t.Error("Get should find registered provider regardless of key")
	}
}

func TestRegistrySupports(t *testing.T) {
	r := Defaults(DefaultNewsAPIConfig(""), DefaultGuardianConfig(""), DefaultNYTimesConfig(""))

	if !r.Supports(model.SourceNYTimes, FeatureAuthors) {
		t.Error("nytimes should filter authors server-side")
	}
	if r.Supports(model.SourceGuardian, FeatureAuthors) || r.Supports(model.SourceNewsAPI, FeatureAuthors) {
		t.Error("only nytimes filters authors")
	}
	if r.Supports("bbc", FeatureCategories) {
		t.Error("unknown source should support nothing")
	}
}
