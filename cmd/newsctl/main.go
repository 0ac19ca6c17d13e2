// Command newsctl is the newsdesk CLI for one-off queries and maintenance.
//
// Usage:
//
//	newsctl                     Show help
//	newsctl fetch [flags]       Run one aggregated query and print it
//	newsctl prefs [show|set|clear]
//	newsctl saved [list|add|delete|run]
//	newsctl events              JSONL event log viewer
package main

import (
	"fmt"
	"os"
)

const usage = `newsctl - newsdesk query & maintenance CLI

Usage:
  newsctl <command> [flags]

Commands:
  fetch       Run one aggregated query across providers and print the feed
  prefs       Show, set or clear stored preferences
  saved       List, add, delete or run saved searches
  events      JSONL event log viewer

Environment:
  NEWSAPI_KEY        NewsAPI key
  GUARDIAN_API_KEY   Guardian content API key
  NYTIMES_API_KEY    New York Times article search key

Without any key, fetch serves the built-in sample articles.
Run 'newsctl <command> -h' for command-specific help.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(0)
	}

	cmd := os.Args[1]
	// Strip the program name + subcommand so flag sets see only their flags
	os.Args = os.Args[1:]

	switch cmd {
	case "fetch":
		runFetch()
	case "prefs":
		runPrefs()
	case "saved":
		runSaved()
	case "events":
		runEvents()
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "newsctl: unknown command %q\n\n", cmd)
		fmt.Print(usage)
		os.Exit(1)
	}
}
