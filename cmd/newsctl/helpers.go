package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/abelbrown/newsdesk/internal/aggregate"
	"github.com/abelbrown/newsdesk/internal/config"
	"github.com/abelbrown/newsdesk/internal/model"
	"github.com/abelbrown/newsdesk/internal/prefs"
)

// loadConfig reads .env files and the config file, or fatals.
func loadConfig() *config.Config {
	if err := config.LoadDotEnv(".env", filepath.Join(config.Dir(), ".env")); err != nil {
		log.Printf("warning: failed to load .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// openPrefs opens the preferences database or fatals.
func openPrefs(cfg *config.Config) *prefs.Store {
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath()), 0755); err != nil {
		log.Fatalf("failed to create data directory: %v", err)
	}
	st, err := prefs.Open(cfg.DatabasePath())
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	return st
}

// newAggregator builds an aggregator over the configured providers.
func newAggregator(cfg *config.Config) *aggregate.Aggregator {
	return aggregate.New(cfg.Registry(), aggregate.WithProviderTimeout(cfg.FetchTimeout()))
}

// parseSources turns a comma list into source ids. Empty means all.
func parseSources(s string) ([]model.SourceID, error) {
	var ids []model.SourceID
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !model.IsKnownSource(part) {
			return nil, fmt.Errorf("unknown source %q (want newsapi, guardian or nytimes)", part)
		}
		ids = append(ids, model.SourceID(part))
	}
	return ids, nil
}

// splitList splits a comma list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// printArticles prints one line per article plus its link.
func printArticles(articles []model.Article) {
	for i, a := range articles {
		fmt.Printf("%3d. [%-14s] %s  %s\n", i+1, truncate(a.Source.Name, 14), a.PublishedAt, truncate(a.Title, 90))
		fmt.Printf("     %s\n", a.URL)
	}
	fmt.Printf("\n%d articles\n", len(articles))
}

// fetchAndPrint runs one query and prints it.
func fetchAndPrint(ctx context.Context, agg *aggregate.Aggregator, filters model.Filters, sources []model.SourceID, page int) error {
	var (
		articles []model.Article
		err      error
	)
	if page > 0 {
		articles, err = agg.FetchPage(ctx, filters, sources, page)
	} else {
		articles, err = agg.FetchArticles(ctx, filters, sources)
	}
	if err != nil {
		return err
	}
	printArticles(articles)
	return nil
}

// truncate shortens a string to max runes, appending "..." if truncated.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
