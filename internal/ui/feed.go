package ui

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/newsdesk/internal/model"
)

// TimeBand returns a display string for grouping articles by age.
func TimeBand(published, now time.Time) string {
	if published.IsZero() {
		return "Undated"
	}
	age := now.Sub(published)
	switch {
	case age < 24*time.Hour:
		return "Today"
	case age < 48*time.Hour:
		return "Yesterday"
	case age < 7*24*time.Hour:
		return "This Week"
	default:
		return "Older"
	}
}

// RenderFeed renders the article list with time bands, scrolled so the
// cursor stays visible.
func RenderFeed(articles []model.Article, cursor, width, height int, now time.Time) string {
	if len(articles) == 0 {
		return HelpStyle.Render("No articles to display. Press '/' to search or 'r' to refresh.")
	}

	availableHeight := height
	if availableHeight < 1 {
		availableHeight = 1
	}
	scrollOffset := calcScrollOffset(articles, cursor, availableHeight, now)

	var b strings.Builder
	currentBand := ""
	if scrollOffset > 0 {
		currentBand = TimeBand(articles[scrollOffset-1].Published(), now)
	}
	rendered := 0
	for i := scrollOffset; i < len(articles) && rendered < availableHeight; i++ {
		a := articles[i]
		if band := TimeBand(a.Published(), now); band != currentBand {
			currentBand = band
			b.WriteString(TimeBandHeader.Render(band))
			b.WriteString("\n")
			rendered++
			if rendered >= availableHeight {
				break
			}
		}
		b.WriteString(renderArticleLine(a, i == cursor, width, now))
		b.WriteString("\n")
		rendered++
	}
	return b.String()
}

// calcScrollOffset finds the smallest index such that every line from
// there through the cursor, band headers included, fits the viewport.
func calcScrollOffset(articles []model.Article, cursor, availableHeight int, now time.Time) int {
	if len(articles) == 0 || cursor < 0 {
		return 0
	}
	if cursor >= len(articles) {
		cursor = len(articles) - 1
	}
	offset := 0
	if cursor >= availableHeight {
		offset = cursor - availableHeight + 1
	}
	for offset <= cursor {
		if visibleLineCount(articles, offset, cursor, now) <= availableHeight {
			return offset
		}
		offset++
	}
	return cursor
}

func visibleLineCount(articles []model.Article, from, to int, now time.Time) int {
	lines := 0
	currentBand := ""
	if from > 0 {
		currentBand = TimeBand(articles[from-1].Published(), now)
	}
	for i := from; i <= to && i < len(articles); i++ {
		if band := TimeBand(articles[i].Published(), now); band != currentBand {
			currentBand = band
			lines++
		}
		lines++
	}
	return lines
}

func renderArticleLine(a model.Article, selected bool, width int, now time.Time) string {
	badge := SourceBadge.Render(a.Source.Name)
	age := formatAgeShort(a.Published(), now)

	titleWidth := width - lipgloss.Width(badge) - utf8.RuneCountInString(age) - 6
	if titleWidth < 20 {
		titleWidth = 20
	}
	title := truncateRunes(a.Title, titleWidth)

	style := NormalItem
	if selected {
		style = SelectedItem
	}
	return badge + style.Render(title) + " " + MetaItem.Render(age)
}

// RenderDetail renders the selected article's description and link.
func RenderDetail(a model.Article, width int) string {
	desc := truncateRunes(a.Description, width-4)
	link := truncateRunes(a.URL, width-4)
	return MetaItem.Render("  "+desc) + "\n" + MetaItem.Render("  "+link)
}

func formatAgeShort(published, now time.Time) string {
	if published.IsZero() {
		return ""
	}
	age := now.Sub(published)
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(age.Hours()/24))
	}
}

func truncateRunes(s string, n int) string {
	if n <= 3 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-3]) + "..."
}

// RenderStatusBar renders the bottom status bar with key hints and the
// feed position.
func RenderStatusBar(cursor, total int, hasMore, server bool, width int) string {
	position := fmt.Sprintf(" %d/%d ", min(cursor+1, total), total)
	if hasMore {
		position = fmt.Sprintf(" %d/%d+ ", min(cursor+1, total), total)
	}
	if server {
		position += "[nyt] "
	}

	keys := []string{
		StatusBarKey.Render("j/k") + StatusBarText.Render(":nav"),
		StatusBarKey.Render("/") + StatusBarText.Render(":search"),
		StatusBarKey.Render("c") + StatusBarText.Render(":category"),
		StatusBarKey.Render("s") + StatusBarText.Render(":source"),
		StatusBarKey.Render("m") + StatusBarText.Render(":more"),
		StatusBarKey.Render("r") + StatusBarText.Render(":refresh"),
		StatusBarKey.Render("D") + StatusBarText.Render(":debug"),
		StatusBarKey.Render("q") + StatusBarText.Render(":quit"),
	}
	keyHints := strings.Join(keys, " ")

	padding := width - lipgloss.Width(position) - lipgloss.Width(keyHints)
	if padding < 0 {
		padding = 0
	}
	return StatusBar.Width(width).Render(position + strings.Repeat(" ", padding) + keyHints)
}

// RenderSearchBar renders the search input with the active filter tags.
func RenderSearchBar(input string, filters model.Filters, loading string, width int) string {
	content := SearchBarPrompt.Render("/") + input
	var tags []string
	if filters.Category != "" {
		tags = append(tags, "category:"+filters.Category)
	}
	if filters.Source != "" {
		tags = append(tags, "source:"+filters.Source)
	}
	if len(tags) > 0 {
		content += "  " + SearchBarTag.Render(strings.Join(tags, " "))
	}
	if loading != "" {
		content += " " + loading
	}

	padding := width - lipgloss.Width(content) - 2
	if padding < 0 {
		padding = 0
	}
	return SearchBar.Width(width).Render(content + strings.Repeat(" ", padding))
}
