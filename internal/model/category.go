package model

import "strings"

// Category is one of the fixed domain category tags.
type Category string

const (
	CategoryBusiness      Category = "business"
	CategoryTechnology    Category = "technology"
	CategoryScience       Category = "science"
	CategoryHealth        Category = "health"
	CategorySports        Category = "sports"
	CategoryEntertainment Category = "entertainment"
	CategoryGeneral       Category = "general"
)

// Categories lists every category tag in display order.
var Categories = []Category{
	CategoryBusiness,
	CategoryTechnology,
	CategoryScience,
	CategoryHealth,
	CategorySports,
	CategoryEntertainment,
	CategoryGeneral,
}

// keywordGroups is checked in order; the first group with a hit wins.
var keywordGroups = []struct {
	category Category
	keywords []string
}{
	{CategoryBusiness, []string{"business", "finance", "market", "economy"}},
	{CategoryTechnology, []string{"tech", "digital", "software", "ai"}},
	{CategoryScience, []string{"science", "research", "study"}},
	{CategoryHealth, []string{"health", "medical", "medicine"}},
	{CategorySports, []string{"sport", "football", "basketball"}},
	{CategoryEntertainment, []string{"entertainment", "movie", "music"}},
}

// InferCategory guesses a category from free text for providers that carry
// no section taxonomy. Matching is plain substring on the lower-cased
// title + " " + description. Falls back to general.
func InferCategory(title, description string) Category {
	text := strings.ToLower(title) + " " + strings.ToLower(description)
	for _, g := range keywordGroups {
		for _, kw := range g.keywords {
			if strings.Contains(text, kw) {
				return g.category
			}
		}
	}
	return CategoryGeneral
}
