package provider

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/abelbrown/newsdesk/internal/model"
)

// NewsAPI endpoint names.
const (
	EndpointEverything   = "everything"
	EndpointTopHeadlines = "top-headlines"
)

// newsAPICategories maps domain tags to NewsAPI's native categories.
var newsAPICategories = map[string]string{
	"business":      "business",
	"technology":    "technology",
	"science":       "science",
	"health":        "health",
	"sports":        "sports",
	"entertainment": "entertainment",
	"general":       "general",
}

// newsAPICategoryQuery expands a category into query terms for the
// everything endpoint, which has no category parameter.
var newsAPICategoryQuery = map[string]string{
	"business":      "business OR finance OR economy OR market",
	"technology":    "technology OR tech OR digital OR software",
	"science":       "science OR research OR study OR discovery",
	"health":        "health OR medical OR medicine OR healthcare",
	"sports":        "sports OR football OR basketball OR soccer",
	"entertainment": "entertainment OR movie OR music OR celebrity",
	"general":       "news OR breaking OR world",
}

// DefaultNewsAPIConfig returns the public NewsAPI settings for key.
func DefaultNewsAPIConfig(key string) Config {
	return Config{
		BaseURL: "https://newsapi.org/v2",
		APIKey:  key,
		Endpoints: map[string]string{
			EndpointEverything:   "/everything",
			EndpointTopHeadlines: "/top-headlines",
		},
	}
}

type newsAPIResponse struct {
	Status       string           `json:"status"`
	Code         string           `json:"code"`
	Message      string           `json:"message"`
	TotalResults int              `json:"totalResults"`
	Articles     []NewsAPIArticle `json:"articles"`
}

// NewsAPIArticle is one record of a NewsAPI response.
type NewsAPIArticle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	URL         string `json:"url"`
	URLToImage  string `json:"urlToImage"`
	PublishedAt string `json:"publishedAt"`
	Author      string `json:"author"`
	Source      struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"source"`
}

// NewsAPI talks to newsapi.org. It supports one category per request and
// no author filtering.
type NewsAPI struct {
	client
}

// NewNewsAPI creates a NewsAPI adapter.
func NewNewsAPI(cfg Config, opts ...Option) *NewsAPI {
	return &NewsAPI{client: newClient(model.SourceNewsAPI, cfg, time.Second, opts)}
}

func (p *NewsAPI) ID() model.SourceID { return model.SourceNewsAPI }
func (p *NewsAPI) Name() string       { return "NewsAPI" }

func (p *NewsAPI) IsConfigured() bool { return IsConfigured(p.cfg.APIKey) }

func (p *NewsAPI) SupportsFeature(f Feature) bool {
	switch f {
	case FeatureCategories, FeatureDateRange, FeatureFullTextSearch:
		return true
	}
	return false
}

// FetchArticles queries "everything" when a keyword or date bound is set,
// otherwise "top-headlines". page is ignored; NewsAPI results are paged
// client-side.
func (p *NewsAPI) FetchArticles(ctx context.Context, filters model.Filters, page int) ([]model.Article, error) {
	endpoint, params := p.buildQuery(filters)

	var resp newsAPIResponse
	if err := p.getJSON(ctx, endpoint, params, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "ok" {
		return nil, p.fail(0, fmt.Errorf("api status %q: %s", resp.Status, resp.Message))
	}

	articles := make([]model.Article, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		if a.Title == "" || a.Title == "[Removed]" {
			continue
		}
		articles = append(articles, p.Normalize(a))
	}
	return articles, nil
}

func (p *NewsAPI) buildQuery(filters model.Filters) (string, url.Values) {
	params := url.Values{}
	params.Set("apiKey", p.cfg.APIKey)
	params.Set("pageSize", "50")
	params.Set("language", "en")
	params.Set("sortBy", "publishedAt")

	search := filters.Keyword != "" || filters.DateFrom != "" || filters.DateTo != ""
	endpoint := EndpointTopHeadlines
	if search {
		endpoint = EndpointEverything
	}

	q := filters.Keyword
	if cats := filters.Categories(); len(cats) > 0 {
		// One category only: the first one wins.
		first := mapCategories(cats[:1], newsAPICategories, "general")[0]
		if search {
			terms := newsAPICategoryQuery[first]
			if q != "" {
				q = "(" + q + ") AND (" + terms + ")"
			} else {
				q = terms
			}
		} else {
			params.Set("category", first)
		}
	}
	if q != "" {
		params.Set("q", q)
	}
	if filters.DateFrom != "" {
		params.Set("from", filters.DateFrom)
	}
	if filters.DateTo != "" {
		params.Set("to", filters.DateTo)
	}
	if !search {
		params.Set("country", "us")
	}
	return endpoint, params
}

// Normalize maps a NewsAPI record to the canonical Article. Category is
// inferred from the text since NewsAPI articles carry none.
func (p *NewsAPI) Normalize(a NewsAPIArticle) model.Article {
	id := a.URL
	if id == "" {
		id = "newsapi-" + uuid.NewString()
	}
	return model.Article{
		ID:          id,
		Title:       model.Or(a.Title, model.FallbackTitle),
		Description: model.Or(a.Description, model.FallbackDescription),
		Content:     a.Content,
		URL:         model.Or(a.URL, model.FallbackURL),
		URLToImage:  model.Or(a.URLToImage, model.DefaultImage),
		PublishedAt: model.Or(a.PublishedAt, model.NowISO()),
		Source: model.Source{
			ID:   string(model.SourceNewsAPI),
			Name: model.Or(a.Source.Name, "Unknown Source"),
		},
		Author:   a.Author,
		Category: model.InferCategory(a.Title, a.Description),
	}
}
