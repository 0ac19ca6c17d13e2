// Package model holds the canonical article representation shared by every
// provider, plus the search filters used to query them.
package model

import (
	"strings"
	"time"
)

// DefaultImage is substituted whenever a provider gives no image.
const DefaultImage = "https://images.unsplash.com/photo-1504711434969-e33886168f5c?w=400&h=300&fit=crop&crop=entropy&auto=format&q=80"

// Fallback literals used by normalization so every field is populated.
const (
	FallbackTitle       = "No Title Available"
	FallbackDescription = "No description available"
	FallbackURL         = "#"
)

// Article is the normalized entity all providers converge to.
type Article struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Content     string   `json:"content,omitempty"`
	URL         string   `json:"url"`
	URLToImage  string   `json:"urlToImage,omitempty"`
	PublishedAt string   `json:"publishedAt"`
	Source      Source   `json:"source"`
	Author      string   `json:"author,omitempty"`
	Category    Category `json:"category,omitempty"`
}

// publishedLayouts are tried in order when parsing PublishedAt.
var publishedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05-0700", // NYT pub_date
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Published parses PublishedAt as an instant. Unparsable values yield the
// zero time, which sorts last in a newest-first ordering.
func (a Article) Published() time.Time {
	s := strings.TrimSpace(a.PublishedAt)
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// WithDefaultImage returns a copy of a with URLToImage backfilled.
func (a Article) WithDefaultImage() Article {
	if a.URLToImage == "" {
		a.URLToImage = DefaultImage
	}
	return a
}

// Or returns s, or fallback when s is empty.
func Or(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// NowISO returns the current time formatted the way providers send dates.
// Used as the publishedAt fallback.
func NowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}
