// Package ui provides the Bubble Tea TUI for newsdesk.
package ui

import "github.com/abelbrown/newsdesk/internal/paging"

// StateChanged carries a feed controller snapshot.
type StateChanged struct {
	State paging.State
}

// SearchDone is sent when a submitted search finishes. Issued is false
// when the search repeated the previous one and was skipped.
type SearchDone struct {
	Issued bool
	Err    error
}

// EditQueued is sent after a search-as-you-type edit was scheduled or
// rejected.
type EditQueued struct {
	Err error
}

// ActionDone is sent when a load-more or refresh request finishes.
type ActionDone struct {
	Err error
}
