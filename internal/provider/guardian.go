package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abelbrown/newsdesk/internal/model"
)

// EndpointSearch is the search endpoint name shared by Guardian and NYT.
const EndpointSearch = "search"

var guardianSections = map[string]string{
	"business":      "business",
	"technology":    "technology",
	"science":       "science",
	"health":        "society",
	"sports":        "sport",
	"entertainment": "culture",
	"general":       "world",
}

var guardianSectionCategories = map[string]model.Category{
	"business":   model.CategoryBusiness,
	"technology": model.CategoryTechnology,
	"science":    model.CategoryScience,
	"society":    model.CategoryHealth,
	"sport":      model.CategorySports,
	"culture":    model.CategoryEntertainment,
	"world":      model.CategoryGeneral,
	"uk-news":    model.CategoryGeneral,
	"us-news":    model.CategoryGeneral,
}

// DefaultGuardianConfig returns the public Guardian content API settings.
func DefaultGuardianConfig(key string) Config {
	return Config{
		BaseURL:   "https://content.guardianapis.com",
		APIKey:    key,
		Endpoints: map[string]string{EndpointSearch: "/search"},
	}
}

type guardianResponse struct {
	Response struct {
		Status  string            `json:"status"`
		Message string            `json:"message"`
		Total   int               `json:"total"`
		Results []GuardianArticle `json:"results"`
	} `json:"response"`
}

// GuardianArticle is one record of a Guardian search response.
type GuardianArticle struct {
	ID                 string `json:"id"`
	WebTitle           string `json:"webTitle"`
	WebURL             string `json:"webUrl"`
	WebPublicationDate string `json:"webPublicationDate"`
	SectionID          string `json:"sectionId"`
	SectionName        string `json:"sectionName"`
	Fields             struct {
		TrailText string `json:"trailText"`
		Thumbnail string `json:"thumbnail"`
		BodyText  string `json:"bodyText"`
		Byline    string `json:"byline"`
	} `json:"fields"`
}

// Guardian talks to the Guardian content API. Multiple categories are sent
// in one request using its "|" section separator.
type Guardian struct {
	client
}

// NewGuardian creates a Guardian adapter.
func NewGuardian(cfg Config, opts ...Option) *Guardian {
	return &Guardian{client: newClient(model.SourceGuardian, cfg, 100*time.Millisecond, opts)}
}

func (p *Guardian) ID() model.SourceID { return model.SourceGuardian }
func (p *Guardian) Name() string       { return "The Guardian" }

func (p *Guardian) IsConfigured() bool { return IsConfigured(p.cfg.APIKey) }

func (p *Guardian) SupportsFeature(f Feature) bool {
	switch f {
	case FeatureCategories, FeatureDateRange, FeatureFullTextSearch:
		return true
	}
	return false
}

// FetchArticles runs a Guardian search. page is ignored.
func (p *Guardian) FetchArticles(ctx context.Context, filters model.Filters, page int) ([]model.Article, error) {
	var resp guardianResponse
	if err := p.getJSON(ctx, EndpointSearch, p.buildQuery(filters), &resp); err != nil {
		return nil, err
	}
	if resp.Response.Status != "ok" {
		return nil, p.fail(0, fmt.Errorf("api status %q: %s", resp.Response.Status, resp.Response.Message))
	}

	articles := make([]model.Article, 0, len(resp.Response.Results))
	for _, a := range resp.Response.Results {
		articles = append(articles, p.Normalize(a))
	}
	return articles, nil
}

func (p *Guardian) buildQuery(filters model.Filters) url.Values {
	params := url.Values{}
	params.Set("api-key", p.cfg.APIKey)
	params.Set("page-size", "50")
	params.Set("order-by", "newest")
	params.Set("show-fields", "trailText,thumbnail,bodyText,byline")

	if filters.Keyword != "" {
		params.Set("q", filters.Keyword)
	}
	if cats := filters.Categories(); len(cats) > 0 {
		params.Set("section", strings.Join(mapCategories(cats, guardianSections, "world"), "|"))
	}
	if filters.DateFrom != "" {
		params.Set("from-date", filters.DateFrom)
	}
	if filters.DateTo != "" {
		params.Set("to-date", filters.DateTo)
	}
	return params
}

// Normalize maps a Guardian record to the canonical Article.
func (p *Guardian) Normalize(a GuardianArticle) model.Article {
	id := a.ID
	if id == "" {
		id = "guardian-" + uuid.NewString()
	}

	section := strings.ToLower(a.SectionID)
	if section == "" {
		section = strings.ToLower(a.SectionName)
	}
	category, ok := guardianSectionCategories[section]
	if !ok {
		category = model.CategoryGeneral
	}

	return model.Article{
		ID:          id,
		Title:       model.Or(a.WebTitle, model.FallbackTitle),
		Description: model.Or(a.Fields.TrailText, model.FallbackDescription),
		Content:     a.Fields.BodyText,
		URL:         model.Or(a.WebURL, model.FallbackURL),
		URLToImage:  model.Or(a.Fields.Thumbnail, model.DefaultImage),
		PublishedAt: model.Or(a.WebPublicationDate, model.NowISO()),
		Source:      model.Source{ID: string(model.SourceGuardian), Name: "The Guardian"},
		Author:      a.Fields.Byline,
		Category:    category,
	}
}
