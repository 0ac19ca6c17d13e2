package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/abelbrown/newsdesk/internal/model"
)

func runFetch() {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	keyword := fs.String("q", "", "Keyword")
	category := fs.String("category", "", "Category or comma list (business, technology, ...)")
	author := fs.String("author", "", "Author or comma list (NYT byline filter)")
	from := fs.String("from", "", "Earliest date, YYYY-MM-DD")
	to := fs.String("to", "", "Latest date, YYYY-MM-DD")
	sources := fs.String("sources", "", "Comma list of providers (default: all)")
	page := fs.Int("page", 0, "Server page (bypasses the cache)")
	rawJSON := fs.Bool("json", false, "Print articles as JSON")
	fs.Parse(os.Args[1:])

	cfg := loadConfig()
	ids, err := parseSources(*sources)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	filters := model.Filters{
		Keyword:  *keyword,
		Category: *category,
		Author:   *author,
		DateFrom: *from,
		DateTo:   *to,
	}
	if err := filters.ValidateDateRange(time.Now()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	agg := newAggregator(cfg)
	if !*rawJSON {
		if err := fetchAndPrint(ctx, agg, filters, ids, *page); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	var articles []model.Article
	if *page > 0 {
		articles, err = agg.FetchPage(ctx, filters, ids, *page)
	} else {
		articles, err = agg.FetchArticles(ctx, filters, ids)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(articles)
}
