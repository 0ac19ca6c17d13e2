package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/abelbrown/newsdesk/internal/otel"
)

// debugPanelChrome is the number of terminal lines consumed by DebugPanel's
// border (top + bottom = 2) and vertical padding (top + bottom = 2).
const debugPanelChrome = 4

// debugOverlay renders the debug panel showing fetch and cache counters
// plus recent events. Returns empty string if ring is nil.
func debugOverlay(ring *otel.RingBuffer, width, height int, now time.Time) string {
	if ring == nil {
		return ""
	}

	var lines []string
	lines = append(lines, DebugHeaderStyle.Render("Feed Stats"))
	lines = append(lines, fmt.Sprintf("  Fetches:    %d started, %d complete, %d errors, %d cancelled",
		ring.Count(otel.KindFetchStart), ring.Count(otel.KindFetchComplete),
		ring.Count(otel.KindFetchError), ring.Count(otel.KindFetchCancel)))
	lines = append(lines, fmt.Sprintf("  Cache:      %d hits, %d misses, %d evicted",
		ring.Count(otel.KindCacheHit), ring.Count(otel.KindCacheMiss), ring.Count(otel.KindCacheEvict)))
	lines = append(lines, fmt.Sprintf("  Paging:     %d refresh, %d more, %d suppressed",
		ring.Count(otel.KindPageRefresh), ring.Count(otel.KindPageMore), ring.Count(otel.KindPageSuppress)))
	lines = append(lines, fmt.Sprintf("  Buffer:     %d events", ring.Len()))
	lines = append(lines, "")

	lines = append(lines, DebugHeaderStyle.Render("Recent Events"))
	for _, e := range ring.Last(20) {
		line := fmt.Sprintf("  %6s  %-16s", formatAge(now.Sub(e.Time)), string(e.Kind))
		if e.Source != "" {
			line += "  " + e.Source
		}
		if e.Count > 0 {
			line += fmt.Sprintf("  n=%d", e.Count)
		}
		if e.Gen > 0 {
			line += fmt.Sprintf("  gen:%d", e.Gen)
		}
		if e.Msg != "" {
			line += "  " + truncateRunes(e.Msg, 40)
		}
		if e.Err != "" {
			line += "  ERR:" + truncateRunes(e.Err, 30)
		}
		lines = append(lines, line)
	}

	maxHeight := height - debugPanelChrome
	if maxHeight < 1 {
		maxHeight = 1
	}
	if len(lines) > maxHeight {
		lines = lines[:maxHeight]
	}

	panelWidth := 88
	if panelWidth > width-4 {
		panelWidth = width - 4
	}
	if panelWidth < 20 {
		panelWidth = 20
	}
	return DebugPanel.Width(panelWidth).Render(strings.Join(lines, "\n"))
}

// formatAge formats a duration as a compact human string.
// Negative durations from clock skew clamp to "0ms".
func formatAge(d time.Duration) string {
	if d < 0 {
		return "0ms"
	}
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
}

// debugStatusBar renders the status bar for the debug overlay.
func debugStatusBar(width int) string {
	keys := StatusBarKey.Render("D") + StatusBarText.Render(":close")
	return StatusBar.Width(width).Render("  [DEBUG]  " + keys)
}
