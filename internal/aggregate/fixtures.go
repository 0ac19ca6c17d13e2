package aggregate

import "github.com/abelbrown/newsdesk/internal/model"

var (
	newsAPISource  = model.Source{ID: "newsapi", Name: "Reuters"}
	guardianSource = model.Source{ID: "guardian", Name: "The Guardian"}
	nytSource      = model.Source{ID: "nytimes", Name: "The New York Times"}
)

// Fixtures returns the offline article set served when no provider has a
// usable API key. A fresh slice is returned on each call.
func Fixtures() []model.Article {
	return []model.Article{
		{
			ID:          "fixture-1",
			Title:       "Central banks signal slower pace of rate cuts",
			Description: "Policy makers in several economies say inflation data still argues for caution.",
			URL:         "https://example.com/news/rate-cuts",
			PublishedAt: "2024-03-01T09:30:00Z",
			Source:      newsAPISource,
			Author:      "Maria Lopez",
			Category:    model.CategoryBusiness,
		},
		{
			ID:          "fixture-2",
			Title:       "Chipmakers race to expand capacity for AI accelerators",
			Description: "New fabrication plants are planned across three continents.",
			URL:         "https://example.com/news/chip-capacity",
			URLToImage:  "https://images.unsplash.com/photo-1518770660439-4636190af475?w=400&h=300&fit=crop",
			PublishedAt: "2024-03-01T08:15:00Z",
			Source:      guardianSource,
			Author:      "Alex Hern",
			Category:    model.CategoryTechnology,
		},
		{
			ID:          "fixture-3",
			Title:       "Election officials prepare for record turnout",
			Description: "Counties are adding polling places and extending early voting hours.",
			URL:         "https://example.com/news/election-turnout",
			PublishedAt: "2024-02-29T21:00:00Z",
			Source:      nytSource,
			Author:      "Jane Doe",
			Category:    model.CategoryGeneral,
		},
		{
			ID:          "fixture-4",
			Title:       "Telescope captures the most distant galaxy yet observed",
			Description: "Astronomers say the light left the galaxy 13.4 billion years ago.",
			URL:         "https://example.com/news/distant-galaxy",
			PublishedAt: "2024-02-29T17:45:00Z",
			Source:      guardianSource,
			Author:      "Ian Sample",
			Category:    model.CategoryScience,
		},
		{
			ID:          "fixture-5",
			Title:       "Hospitals adopt new protocol for sepsis screening",
			Description: "Early results show faster treatment and fewer intensive care admissions.",
			URL:         "https://example.com/news/sepsis-protocol",
			PublishedAt: "2024-02-29T14:20:00Z",
			Source:      nytSource,
			Author:      "Gina Kolata",
			Category:    model.CategoryHealth,
		},
		{
			ID:          "fixture-6",
			Title:       "Underdogs clinch cup final in extra time",
			Description: "A late header sealed a win few had predicted at the start of the season.",
			URL:         "https://example.com/news/cup-final",
			PublishedAt: "2024-02-28T22:10:00Z",
			Source:      guardianSource,
			Author:      "Barney Ronay",
			Category:    model.CategorySports,
		},
		{
			ID:          "fixture-7",
			Title:       "Streaming services bet on live events to keep subscribers",
			Description: "Concerts and award shows are moving from broadcast to on-demand platforms.",
			URL:         "https://example.com/news/streaming-live",
			PublishedAt: "2024-02-28T16:00:00Z",
			Source:      newsAPISource,
			Category:    model.CategoryEntertainment,
		},
		{
			ID:          "fixture-8",
			Title:       "Retail sales rise more than expected in February",
			Description: "Consumer spending held up despite higher borrowing costs.",
			URL:         "https://example.com/news/retail-sales",
			PublishedAt: "2024-02-28T13:30:00Z",
			Source:      nytSource,
			Author:      "Jeanna Smialek",
			Category:    model.CategoryBusiness,
		},
		{
			ID:          "fixture-9",
			Title:       "Open source maintainers call for better funding models",
			Description: "A survey finds most critical projects rely on a handful of volunteers.",
			URL:         "https://example.com/news/open-source-funding",
			PublishedAt: "2024-02-27T19:05:00Z",
			Source:      newsAPISource,
			Category:    model.CategoryTechnology,
		},
		{
			ID:          "fixture-10",
			Title:       "Election debate focuses on housing costs",
			Description: "Candidates clashed over zoning reform and rent controls.",
			URL:         "https://example.com/news/election-debate",
			PublishedAt: "2024-02-27T11:40:00Z",
			Source:      guardianSource,
			Author:      "Jessica Elgot",
			Category:    model.CategoryGeneral,
		},
		{
			ID:          "fixture-11",
			Title:       "Researchers map ocean currents with autonomous drones",
			Description: "The study fills gaps left by satellite measurements.",
			URL:         "https://example.com/news/ocean-drones",
			PublishedAt: "2024-02-26T10:00:00Z",
			Source:      nytSource,
			Author:      "Henry Fountain",
			Category:    model.CategoryScience,
		},
		{
			ID:          "fixture-12",
			Title:       "Marathon organizers add heat safety measures",
			Description: "Extra water stations and earlier start times are planned for the spring race.",
			URL:         "https://example.com/news/marathon-heat",
			PublishedAt: "2024-02-25T08:30:00Z",
			Source:      newsAPISource,
			Category:    model.CategorySports,
		},
		{
			ID:          "fixture-13",
			Title:       "Clinical trial tests once-a-year cholesterol injection",
			Description: "Participants saw lasting reductions with few side effects.",
			URL:         "https://example.com/news/cholesterol-trial",
			PublishedAt: "2024-02-24T15:15:00Z",
			Source:      guardianSource,
			Author:      "Andrew Gregory",
			Category:    model.CategoryHealth,
		},
		{
			ID:          "fixture-14",
			Title:       "Museum reopens with restored Renaissance gallery",
			Description: "The two-year renovation uncovered paintings hidden behind later plaster.",
			URL:         "https://example.com/news/museum-reopens",
			PublishedAt: "2024-02-23T12:00:00Z",
			Source:      nytSource,
			Author:      "Holland Cotter",
			Category:    model.CategoryEntertainment,
		},
	}
}
