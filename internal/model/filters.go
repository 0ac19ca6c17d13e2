package model

import (
	"errors"
	"strings"
	"time"
)

// dateLayout is the YYYY-MM-DD form used for DateFrom/DateTo.
const dateLayout = "2006-01-02"

// Filters describes one logical query. Empty fields mean "no constraint".
// Category and Author may hold comma-joined lists; each provider decides
// how much of a list it can honour.
type Filters struct {
	Keyword  string `json:"keyword,omitempty"`
	Category string `json:"category,omitempty"`
	Source   string `json:"source,omitempty"`
	DateFrom string `json:"dateFrom,omitempty"`
	DateTo   string `json:"dateTo,omitempty"`
	Author   string `json:"author,omitempty"`
}

// Date range validation errors.
var (
	ErrDateOrder      = errors.New("From date cannot be later than to date")
	ErrDateFromFuture = errors.New("From date cannot be in the future")
	ErrDateToFuture   = errors.New("To date cannot be in the future")
)

// IsEmpty reports whether no keyable field is set. Author alone does not
// make a query keyable.
func (f Filters) IsEmpty() bool {
	return f.Keyword == "" && f.Category == "" && f.Source == "" &&
		f.DateFrom == "" && f.DateTo == ""
}

// Normalized returns f with every field trimmed of surrounding whitespace.
func (f Filters) Normalized() Filters {
	return Filters{
		Keyword:  strings.TrimSpace(f.Keyword),
		Category: strings.TrimSpace(f.Category),
		Source:   strings.TrimSpace(f.Source),
		DateFrom: strings.TrimSpace(f.DateFrom),
		DateTo:   strings.TrimSpace(f.DateTo),
		Author:   strings.TrimSpace(f.Author),
	}
}

// Categories splits the comma-joined Category field. Returns nil when no
// category constraint applies (empty or "all").
func (f Filters) Categories() []string {
	if f.Category == "" || f.Category == "all" {
		return nil
	}
	return splitList(f.Category)
}

// Authors splits the comma-joined Author field.
func (f Filters) Authors() []string {
	return splitList(f.Author)
}

// CountActive returns how many filter fields are set.
func (f Filters) CountActive() int {
	n := 0
	for _, v := range []string{f.Keyword, f.Category, f.Source, f.DateFrom, f.DateTo, f.Author} {
		if v != "" {
			n++
		}
	}
	return n
}

// ValidateDateRange checks that DateFrom <= DateTo and that neither lies
// after now. Only applies when both bounds are present.
func (f Filters) ValidateDateRange(now time.Time) error {
	if f.DateFrom == "" || f.DateTo == "" {
		return nil
	}
	from, err := time.Parse(dateLayout, f.DateFrom)
	if err != nil {
		return err
	}
	to, err := time.Parse(dateLayout, f.DateTo)
	if err != nil {
		return err
	}
	if from.After(to) {
		return ErrDateOrder
	}
	today := now.UTC().Format(dateLayout)
	if f.DateFrom > today {
		return ErrDateFromFuture
	}
	if f.DateTo > today {
		return ErrDateToFuture
	}
	return nil
}

// Combine overlays extra on base: any non-empty field in extra wins.
func Combine(base, extra Filters) Filters {
	pick := func(a, b string) string {
		if b != "" {
			return b
		}
		return a
	}
	return Filters{
		Keyword:  pick(base.Keyword, extra.Keyword),
		Category: pick(base.Category, extra.Category),
		Source:   pick(base.Source, extra.Source),
		DateFrom: pick(base.DateFrom, extra.DateFrom),
		DateTo:   pick(base.DateTo, extra.DateTo),
		Author:   pick(base.Author, extra.Author),
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
