package model

// SourceID identifies one of the news providers.
type SourceID string

const (
	SourceNewsAPI  SourceID = "newsapi"
	SourceGuardian SourceID = "guardian"
	SourceNYTimes  SourceID = "nytimes"
)

// Source is the provider attribution carried on every Article.
type Source struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DefaultSources returns every known provider in canonical order.
// A fresh slice is returned on each call.
func DefaultSources() []SourceID {
	return []SourceID{SourceNewsAPI, SourceGuardian, SourceNYTimes}
}

// IsKnownSource reports whether s names one of the providers.
func IsKnownSource(s string) bool {
	switch SourceID(s) {
	case SourceNewsAPI, SourceGuardian, SourceNYTimes:
		return true
	}
	return false
}

// SourceStrings converts ids to plain strings (for cache keys and logging).
func SourceStrings(ids []SourceID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
