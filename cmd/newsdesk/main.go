// Command newsdesk is the terminal news reader: one feed aggregated from
// NewsAPI, The Guardian and The New York Times.
package main

import (
	"context"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/newsdesk/internal/aggregate"
	"github.com/abelbrown/newsdesk/internal/cache"
	"github.com/abelbrown/newsdesk/internal/config"
	"github.com/abelbrown/newsdesk/internal/logging"
	"github.com/abelbrown/newsdesk/internal/model"
	"github.com/abelbrown/newsdesk/internal/otel"
	"github.com/abelbrown/newsdesk/internal/paging"
	"github.com/abelbrown/newsdesk/internal/prefs"
	"github.com/abelbrown/newsdesk/internal/session"
	"github.com/abelbrown/newsdesk/internal/ui"
)

const version = "0.1.0"

func main() {
	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := os.MkdirAll(config.Dir(), 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	// .env in the working directory first, then the data directory
	if err := config.LoadDotEnv(".env", filepath.Join(config.Dir(), ".env")); err != nil {
		log.Printf("Warning: failed to load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logging.Init(config.LogDir(), version); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.Close()

	eventFile, err := os.OpenFile(config.EventLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Fatalf("Failed to open event log: %v", err)
	}
	defer eventFile.Close()

	events := otel.NewLogger(eventFile, otel.WithFileLevel(otel.LevelInfo))
	defer events.Close()
	ring := otel.NewRingBuffer(otel.DefaultRingSize)
	events.SetRingBuffer(ring)
	events.Info(otel.KindStartup, "main", "newsdesk "+version)

	st, err := prefs.Open(cfg.DatabasePath())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer st.Close()
	logging.Info("Store initialized", "path", cfg.DatabasePath())

	registry := cfg.Registry()
	if configured := cfg.GetConfiguredProviders(); len(configured) == 0 {
		logging.Warn("No provider API keys configured, serving sample articles")
	} else {
		logging.Info("Providers configured", "sources", configured)
	}

	responses := cache.New(
		cache.WithTTL(cfg.CacheTTL()),
		cache.WithCapacity(cfg.Fetch.CacheEntries),
		cache.WithLogger(events),
	)
	agg := aggregate.New(registry,
		aggregate.WithCache(responses),
		aggregate.WithProviderTimeout(cfg.FetchTimeout()),
		aggregate.WithLogger(events),
	)
	ctrl := paging.New(agg,
		paging.WithPageSize(cfg.UI.PageSize),
		paging.WithLogger(events),
	)
	defer ctrl.Close()

	sess, err := session.New(ctx, ctrl, responses, st,
		session.WithDebounce(cfg.Debounce()),
		session.WithCapabilities(registry),
		session.WithLogger(events),
	)
	if err != nil {
		logging.Error("Failed to start session", "error", err)
		log.Fatalf("Failed to start session: %v", err)
	}
	defer sess.Close()

	app := ui.NewApp(actionsFor(ctx, sess, ctrl), ring)
	program := tea.NewProgram(app, tea.WithAltScreen())
	ctrl.OnChange(func(s paging.State) {
		program.Send(ui.StateChanged{State: s})
	})

	logging.Info("Starting UI")
	if _, err := program.Run(); err != nil {
		logging.Error("Application error", "error", err)
		log.Printf("Error running program: %v", err)
	}

	// Graceful shutdown
	cancel()
	events.Info(otel.KindShutdown, "main", "newsdesk exiting")
	logging.Info("newsdesk exiting normally")
}

// actionsFor binds the UI commands to the session and controller. Every
// command blocks inside its tea.Cmd goroutine, never in Update.
func actionsFor(ctx context.Context, sess *session.Session, ctrl *paging.Controller) ui.Actions {
	return ui.Actions{
		Start: func() tea.Cmd {
			return func() tea.Msg {
				sess.Start()
				return nil
			}
		},
		Search: func(form model.Filters) tea.Cmd {
			return func() tea.Msg {
				issued, err := sess.Submit(form)
				return ui.SearchDone{Issued: issued, Err: err}
			}
		},
		Edit: func(form model.Filters) tea.Cmd {
			return func() tea.Msg {
				return ui.EditQueued{Err: sess.Edit(form)}
			}
		},
		LoadMore: func() tea.Cmd {
			return func() tea.Msg {
				ctrl.LoadMore(ctx)
				return ui.ActionDone{}
			}
		},
		Refresh: func() tea.Cmd {
			return func() tea.Msg {
				ctrl.RefreshCurrent(ctx)
				return ui.ActionDone{}
			}
		},
		Visible: sess.Visible,
	}
}
