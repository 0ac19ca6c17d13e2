package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abelbrown/newsdesk/internal/model"
)

// NYTPageSize is the number of documents the article search API returns
// per page. A shorter page means the result set is exhausted.
const NYTPageSize = 10

// nytFields limits the response to what Normalize reads.
const nytFields = "web_url,snippet,lead_paragraph,abstract,print_page,blog,source,multimedia,headline,byline,pub_date,document_type,news_desk,section_name,type_of_material,_id,word_count,uri"

var nytSections = map[string]string{
	"business":      "Business",
	"technology":    "Technology",
	"science":       "Science",
	"health":        "Health",
	"sports":        "Sports",
	"entertainment": "Arts",
	"general":       "World",
}

var nytSectionCategories = map[string]model.Category{
	"business":   model.CategoryBusiness,
	"technology": model.CategoryTechnology,
	"science":    model.CategoryScience,
	"health":     model.CategoryHealth,
	"sports":     model.CategorySports,
	"arts":       model.CategoryEntertainment,
	"movies":     model.CategoryEntertainment,
	"theater":    model.CategoryEntertainment,
	"world":      model.CategoryGeneral,
	"us":         model.CategoryGeneral,
	"politics":   model.CategoryGeneral,
}

// DefaultNYTimesConfig returns the public NYT article search settings.
func DefaultNYTimesConfig(key string) Config {
	return Config{
		BaseURL:   "https://api.nytimes.com/svc/search/v2",
		APIKey:    key,
		Endpoints: map[string]string{EndpointSearch: "/articlesearch.json"},
	}
}

type nytResponse struct {
	Status   string `json:"status"`
	Response struct {
		Docs []NYTimesArticle `json:"docs"`
	} `json:"response"`
}

// NYTimesArticle is one document of an article search response.
type NYTimesArticle struct {
	ID       string `json:"_id"`
	Headline struct {
		Main string `json:"main"`
	} `json:"headline"`
	Abstract    string          `json:"abstract"`
	WebURL      string          `json:"web_url"`
	PubDate     string          `json:"pub_date"`
	SectionName string          `json:"section_name"`
	Multimedia  json.RawMessage `json:"multimedia"`
	Byline      struct {
		Original string `json:"original"`
	} `json:"byline"`
}

type nytImage struct {
	URL string `json:"url"`
}

// imageURL handles both multimedia shapes the API has used: an object with
// default/thumbnail renditions, and an array with site-relative URLs.
func (a NYTimesArticle) imageURL() string {
	if len(a.Multimedia) == 0 {
		return ""
	}
	var obj struct {
		Default   *nytImage `json:"default"`
		Thumbnail *nytImage `json:"thumbnail"`
	}
	if err := json.Unmarshal(a.Multimedia, &obj); err == nil {
		if obj.Default != nil && obj.Default.URL != "" {
			return obj.Default.URL
		}
		if obj.Thumbnail != nil && obj.Thumbnail.URL != "" {
			return obj.Thumbnail.URL
		}
		return ""
	}
	var list []nytImage
	if err := json.Unmarshal(a.Multimedia, &list); err == nil && len(list) > 0 && list[0].URL != "" {
		u := list[0].URL
		if !strings.HasPrefix(u, "http") {
			u = "https://www.nytimes.com/" + strings.TrimPrefix(u, "/")
		}
		return u
	}
	return ""
}

// NYTimes talks to the NYT article search API. It is the only provider
// with server-side author filtering and real server-side pagination.
type NYTimes struct {
	client
}

// NewNYTimes creates an NYT adapter. The public API allows roughly
// five requests per minute with short bursts.
func NewNYTimes(cfg Config, opts ...Option) *NYTimes {
	return &NYTimes{client: newClient(model.SourceNYTimes, cfg, 6*time.Second, opts)}
}

func (p *NYTimes) ID() model.SourceID { return model.SourceNYTimes }
func (p *NYTimes) Name() string       { return "The New York Times" }

func (p *NYTimes) IsConfigured() bool { return IsConfigured(p.cfg.APIKey) }

func (p *NYTimes) SupportsFeature(f Feature) bool {
	switch f {
	case FeatureCategories, FeatureAuthors, FeatureDateRange, FeatureFullTextSearch:
		return true
	}
	return false
}

// FetchArticles fetches one page (0-based) of search results.
func (p *NYTimes) FetchArticles(ctx context.Context, filters model.Filters, page int) ([]model.Article, error) {
	var resp nytResponse
	if err := p.getJSON(ctx, EndpointSearch, p.buildQuery(filters, page), &resp); err != nil {
		return nil, err
	}
	if resp.Status != "OK" {
		return nil, p.fail(0, fmt.Errorf("api status %q", resp.Status))
	}

	articles := make([]model.Article, 0, len(resp.Response.Docs))
	for _, doc := range resp.Response.Docs {
		articles = append(articles, p.Normalize(doc))
	}
	return articles, nil
}

func (p *NYTimes) buildQuery(filters model.Filters, page int) url.Values {
	params := url.Values{}
	params.Set("api-key", p.cfg.APIKey)
	params.Set("sort", "newest")
	params.Set("page", strconv.Itoa(page))
	params.Set("fl", nytFields)

	if filters.Keyword != "" {
		params.Set("q", filters.Keyword)
	}
	if fq := nytFilterQuery(filters); fq != "" {
		params.Set("fq", fq)
	}
	if filters.DateFrom != "" {
		params.Set("begin_date", strings.ReplaceAll(filters.DateFrom, "-", ""))
	}
	if filters.DateTo != "" {
		params.Set("end_date", strings.ReplaceAll(filters.DateTo, "-", ""))
	}
	return params
}

// nytFilterQuery builds the fq expression: section OR-group AND byline
// OR-group.
func nytFilterQuery(filters model.Filters) string {
	var clauses []string

	if cats := filters.Categories(); len(cats) > 0 {
		sections := mapCategories(cats, nytSections, "World")
		if len(sections) == 1 {
			clauses = append(clauses, `section_name:"`+sections[0]+`"`)
		} else {
			clauses = append(clauses, `section_name:("`+strings.Join(sections, `" OR "`)+`")`)
		}
	}

	if authors := filters.Authors(); len(authors) > 0 {
		quoted := make([]string, len(authors))
		for i, a := range authors {
			quoted[i] = `"` + a + `"`
		}
		clauses = append(clauses, "byline:("+strings.Join(quoted, " OR ")+")")
	}

	return strings.Join(clauses, " AND ")
}

// Normalize maps an NYT document to the canonical Article.
func (p *NYTimes) Normalize(a NYTimesArticle) model.Article {
	id := a.ID
	if id == "" {
		id = "nytimes-" + uuid.NewString()
	}

	category, ok := nytSectionCategories[strings.ToLower(a.SectionName)]
	if !ok {
		category = model.CategoryGeneral
	}

	return model.Article{
		ID:          id,
		Title:       model.Or(a.Headline.Main, model.FallbackTitle),
		Description: model.Or(a.Abstract, model.FallbackDescription),
		URL:         model.Or(a.WebURL, model.FallbackURL),
		URLToImage:  model.Or(a.imageURL(), model.DefaultImage),
		PublishedAt: model.Or(a.PubDate, model.NowISO()),
		Source:      model.Source{ID: string(model.SourceNYTimes), Name: "The New York Times"},
		Author:      strings.Replace(a.Byline.Original, "By ", "", 1),
		Category:    category,
	}
}
