package ui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/newsdesk/internal/model"
	"github.com/abelbrown/newsdesk/internal/otel"
	"github.com/abelbrown/newsdesk/internal/paging"
)

// Actions are the commands the App issues. Any may be nil.
// App does NOT hold the controller or session; feed state arrives as
// StateChanged messages.
type Actions struct {
	Start    func() tea.Cmd
	Search   func(form model.Filters) tea.Cmd
	Edit     func(form model.Filters) tea.Cmd
	LoadMore func() tea.Cmd
	Refresh  func() tea.Cmd
	Visible  func([]model.Article) []model.Article
}

var (
	categoryCycle = append([]model.Category{""}, model.Categories...)
	sourceCycle   = append([]model.SourceID{""}, model.DefaultSources()...)
)

// App is the root Bubble Tea model.
type App struct {
	actions Actions
	ring    *otel.RingBuffer
	now     func() time.Time

	input textinput.Model
	spin  spinner.Model

	state     paging.State
	form      model.Filters
	cursor    int
	err       error
	width     int
	height    int
	ready     bool
	searching bool
	showDebug bool
}

// NewApp creates an App. ring may be nil, which disables the debug overlay.
func NewApp(actions Actions, ring *otel.RingBuffer) App {
	ti := textinput.New()
	ti.Placeholder = "Search articles..."
	ti.Prompt = ""
	ti.CharLimit = 200

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot

	return App{
		actions: actions,
		ring:    ring,
		now:     time.Now,
		input:   ti,
		spin:    sp,
	}
}

// Init starts the initial load.
func (a App) Init() tea.Cmd {
	cmds := []tea.Cmd{a.spin.Tick}
	if a.actions.Start != nil {
		cmds = append(cmds, a.actions.Start())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if a.searching {
			return a.handleSearchKey(msg)
		}
		return a.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = msg.Width - 30
		a.ready = true
		return a, nil

	case StateChanged:
		a.state = msg.State
		if n := len(a.visible()); a.cursor >= n {
			a.cursor = max(n-1, 0)
		}
		return a, nil

	case SearchDone:
		a.err = msg.Err
		return a, nil

	case EditQueued:
		a.err = msg.Err
		return a, nil

	case ActionDone:
		if msg.Err != nil {
			a.err = msg.Err
		}
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		return a, cmd
	}

	return a, nil
}

// handleSearchKey processes keys while the search input has focus.
func (a App) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "enter":
		a.searching = false
		a.input.Blur()
		a.form.Keyword = a.input.Value()
		return a, a.search()
	case "esc":
		a.searching = false
		a.input.Blur()
		return a, nil
	}

	before := a.input.Value()
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	if a.input.Value() == before || a.actions.Edit == nil {
		return a, cmd
	}
	a.form.Keyword = a.input.Value()
	return a, tea.Batch(cmd, a.actions.Edit(a.form))
}

// handleKeyMsg processes keyboard input outside the search input.
func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.err != nil {
		a.err = nil
	}

	articles := a.visible()
	switch msg.String() {
	case "q", "ctrl+c":
		return a, tea.Quit

	case "/":
		a.searching = true
		return a, tea.Batch(a.input.Focus(), textinput.Blink)

	case "j", "down":
		if a.cursor < len(articles)-1 {
			a.cursor++
			return a, nil
		}
		return a, a.loadMore()

	case "k", "up":
		if a.cursor > 0 {
			a.cursor--
		}
		return a, nil

	case "g", "home":
		a.cursor = 0
		return a, nil

	case "G", "end":
		if len(articles) > 0 {
			a.cursor = len(articles) - 1
		}
		return a, nil

	case "m", " ":
		return a, a.loadMore()

	case "r":
		if a.actions.Refresh != nil {
			return a, a.actions.Refresh()
		}
		return a, nil

	case "c":
		a.form.Category = string(nextInCycle(categoryCycle, model.Category(a.form.Category)))
		return a, a.search()

	case "s":
		a.form.Source = string(nextInCycle(sourceCycle, model.SourceID(a.form.Source)))
		return a, a.search()

	case "x":
		a.form = model.Filters{}
		a.input.SetValue("")
		return a, a.search()

	case "D":
		a.showDebug = !a.showDebug
		return a, nil
	}

	return a, nil
}

func (a App) search() tea.Cmd {
	if a.actions.Search == nil {
		return nil
	}
	return a.actions.Search(a.form)
}

func (a App) loadMore() tea.Cmd {
	if a.actions.LoadMore == nil || !a.state.HasMore || a.state.Loading {
		return nil
	}
	return a.actions.LoadMore()
}

func (a App) visible() []model.Article {
	if a.actions.Visible == nil {
		return a.state.Articles
	}
	return a.actions.Visible(a.state.Articles)
}

func nextInCycle[T comparable](cycle []T, cur T) T {
	for i, v := range cycle {
		if v == cur {
			return cycle[(i+1)%len(cycle)]
		}
	}
	return cycle[0]
}

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}

	if a.showDebug {
		return debugOverlay(a.ring, a.width, a.height-1, a.now()) + "\n" + debugStatusBar(a.width)
	}

	loading := ""
	if a.state.Loading {
		loading = a.spin.View() + " loading"
	}
	inputView := a.input.Value()
	if a.searching {
		inputView = a.input.View()
	}
	searchBar := RenderSearchBar(inputView, a.form, loading, a.width)

	articles := a.visible()

	// search bar, detail (2 lines) and status bar
	contentHeight := a.height - 4
	errText := a.state.Error
	if a.err != nil {
		errText = a.err.Error()
	}
	if errText != "" {
		contentHeight--
	}

	out := searchBar + "\n" + RenderFeed(articles, a.cursor, a.width, contentHeight, a.now())
	if a.cursor < len(articles) {
		out += RenderDetail(articles[a.cursor], a.width) + "\n"
	}
	if errText != "" {
		out += ErrorStyle.Width(a.width).Render("Error: "+errText) + "\n"
	}
	return out + RenderStatusBar(a.cursor, len(articles), a.state.HasMore, a.state.Server, a.width)
}

// Cursor returns the current cursor position (for testing).
func (a App) Cursor() int {
	return a.cursor
}

// Form returns the current search form (for testing).
func (a App) Form() model.Filters {
	return a.form
}

// Searching reports whether the search input has focus.
func (a App) Searching() bool {
	return a.searching
}
