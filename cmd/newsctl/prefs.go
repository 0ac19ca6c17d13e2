package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/abelbrown/newsdesk/internal/model"
	"github.com/abelbrown/newsdesk/internal/prefs"
)

func runPrefs() {
	action := "show"
	if len(os.Args) > 1 && !strings.HasPrefix(os.Args[1], "-") {
		action = os.Args[1]
		os.Args = os.Args[1:]
	}

	fs := flag.NewFlagSet("prefs "+action, flag.ExitOnError)
	sources := fs.String("sources", "", "Comma list of preferred providers")
	categories := fs.String("categories", "", "Comma list of preferred categories")
	authors := fs.String("authors", "", "Comma list of preferred authors")
	fs.Parse(os.Args[1:])

	cfg := loadConfig()
	st := openPrefs(cfg)
	defer st.Close()

	switch action {
	case "show":
		p, err := st.LoadPreferences()
		if err != nil {
			fatal(err)
		}
		printPreferences(p)

	case "set":
		if _, err := parseSources(*sources); err != nil {
			fatal(err)
		}
		p := prefs.Preferences{
			Sources:    splitList(*sources),
			Categories: splitList(*categories),
			Authors:    splitList(*authors),
		}
		if err := st.SavePreferences(p); err != nil {
			fatal(err)
		}
		printPreferences(p)

	case "clear":
		if err := st.ClearPreferences(); err != nil {
			fatal(err)
		}
		fmt.Println("Preferences cleared.")

	default:
		fmt.Fprintf(os.Stderr, "prefs: unknown action %q (want show, set or clear)\n", action)
		os.Exit(2)
	}
}

func printPreferences(p prefs.Preferences) {
	fmt.Printf("Sources:     %s\n", strings.Join(model.SourceStrings(p.PreferredSources()), ", "))
	fmt.Printf("Categories:  %s\n", orNone(strings.Join(p.Categories, ", ")))
	fmt.Printf("Authors:     %s\n", orNone(strings.Join(p.Authors, ", ")))
}

func runSaved() {
	action := "list"
	if len(os.Args) > 1 && !strings.HasPrefix(os.Args[1], "-") {
		action = os.Args[1]
		os.Args = os.Args[1:]
	}

	fs := flag.NewFlagSet("saved "+action, flag.ExitOnError)
	name := fs.String("name", "", "Saved search name")
	id := fs.String("id", "", "Saved search id (delete)")
	keyword := fs.String("q", "", "Keyword (add)")
	category := fs.String("category", "", "Category (add)")
	source := fs.String("source", "", "Single provider (add)")
	from := fs.String("from", "", "Earliest date (add)")
	to := fs.String("to", "", "Latest date (add)")
	fs.Parse(os.Args[1:])

	cfg := loadConfig()
	st := openPrefs(cfg)
	defer st.Close()

	switch action {
	case "list":
		list, err := st.LoadSavedSearches()
		if err != nil {
			fatal(err)
		}
		if len(list) == 0 {
			fmt.Println("No saved searches.")
			return
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tKEYWORD\tCATEGORY\tSOURCE\tCREATED\tID")
		for _, s := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", s.Name, orNone(s.Filters.Keyword),
				orNone(s.Filters.Category), orNone(s.Filters.Source), s.CreatedAt, s.ID)
		}
		w.Flush()

	case "add":
		saved, err := st.AddSavedSearch(*name, model.Filters{
			Keyword:  *keyword,
			Category: *category,
			Source:   *source,
			DateFrom: *from,
			DateTo:   *to,
		})
		if err != nil {
			fatal(err)
		}
		fmt.Printf("Saved %q (%s)\n", saved.Name, saved.ID)

	case "delete":
		removed, err := st.DeleteSavedSearch(*id)
		if err != nil {
			fatal(err)
		}
		if !removed {
			fmt.Fprintf(os.Stderr, "no saved search with id %q\n", *id)
			os.Exit(1)
		}
		fmt.Println("Deleted.")

	case "run":
		saved, ok, err := st.FindSavedSearch(*name)
		if err != nil {
			fatal(err)
		}
		if !ok {
			fmt.Fprintf(os.Stderr, "no saved search named %q\n", *name)
			os.Exit(1)
		}
		p, err := st.LoadPreferences()
		if err != nil {
			fatal(err)
		}
		ids := p.PreferredSources()
		if model.IsKnownSource(saved.Filters.Source) {
			ids = []model.SourceID{model.SourceID(saved.Filters.Source)}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err := fetchAndPrint(ctx, newAggregator(cfg), saved.Filters, ids, 0); err != nil {
			fatal(err)
		}

	default:
		fmt.Fprintf(os.Stderr, "saved: unknown action %q (want list, add, delete or run)\n", action)
		os.Exit(2)
	}
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
