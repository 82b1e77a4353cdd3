package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/vadimtrunov/marquee/internal/catalog"
	"github.com/vadimtrunov/marquee/internal/config"
	"github.com/vadimtrunov/marquee/internal/metadata/tmdb"
)

// newBrowseCmd returns the "browse" subcommand: an interactive list of
// upcoming movies with live, debounced search.
func newBrowseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse upcoming movies interactively",
		Long: "Browse upcoming movies and search as you type.\n" +
			"Use ↑/↓ to move, Enter to open a movie, Tab for the next page, Esc to go back or quit.",
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runBrowse()
		},
	}
}

func runBrowse() error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// The terminal belongs to the TUI; logs would tear the screen.
	logger := config.NewLogger(io.Discard, cfg.App)
	client := newTMDbClient(cfg, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fetcher := newFetcher(client, logger)
	session := catalog.NewSearchSession(ctx, fetcher, cfg.Search.Debounce)
	defer session.Close()

	changes, unsubscribe := watchStore(fetcher.Store())
	defer unsubscribe()

	m := newBrowseModel(ctx, fetcher, session, changes)
	m.imageURL = client.ImageURL
	p := tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		<-ctx.Done()
		p.Send(tea.Quit())
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run browse: %w", err)
	}
	return nil
}

// watchStore signals on every store change. Bursts coalesce into a single
// pending signal, and the receiver reads the latest snapshot itself, so the
// observer never blocks the writer.
func watchStore(store *catalog.Store) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	unsubscribe := store.Subscribe(func(catalog.MovieState) {
		select {
		case ch <- struct{}{}:
		default:
		}
	})
	return ch, unsubscribe
}

// stateMsg carries a fresh store snapshot into the TUI.
type stateMsg struct {
	state catalog.MovieState
}

// fetchDoneMsg reports that a fetch finished. Its outcome is already in the store.
type fetchDoneMsg struct {
	err error
}

type browseModel struct {
	ctx      context.Context
	fetcher  *catalog.Fetcher
	session  *catalog.SearchSession
	changes  <-chan struct{}
	imageURL func(string, tmdb.ImageSize) string

	input   textinput.Model
	spinner spinner.Model
	state   catalog.MovieState
	cursor  int
	detail  bool
	width   int
}

func newBrowseModel(
	ctx context.Context, f *catalog.Fetcher, session *catalog.SearchSession, changes <-chan struct{},
) browseModel {
	ti := textinput.New()
	ti.Placeholder = "Search movies..."
	ti.Prompt = "🔎 "
	ti.Focus()
	ti.CharLimit = 200

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styleInfo

	return browseModel{
		ctx:     ctx,
		fetcher: f,
		session: session,
		changes: changes,
		input:   ti,
		spinner: s,
		state:   f.Store().Snapshot(),
	}
}

// Init loads the first upcoming page and starts listening for store changes.
func (m browseModel) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		m.waitForChange(),
		m.run(catalog.Upcoming(1)),
	)
}

// Update handles key input, store snapshots, and spinner ticks.
func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case stateMsg:
		m.state = msg.state
		m.cursor = min(m.cursor, max(len(m.visible())-1, 0))
		return m, m.waitForChange()

	case fetchDoneMsg:
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m browseModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit

	case tea.KeyEsc:
		if m.detail {
			m.detail = false
			m.fetcher.Store().ClearDetails()
			return m, nil
		}
		return m, tea.Quit

	case tea.KeyUp:
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case tea.KeyDown:
		if m.cursor < len(m.visible())-1 {
			m.cursor++
		}
		return m, nil

	case tea.KeyEnter:
		movies := m.visible()
		if m.detail || len(movies) == 0 {
			return m, nil
		}
		m.detail = true
		m.fetcher.Store().ClearDetails()
		return m, m.run(catalog.DetailsAndVideos(movies[m.cursor].ID))

	case tea.KeyTab:
		if m.searching() || !m.state.HasNextPage() {
			return m, nil
		}
		m.cursor = 0
		return m, m.run(catalog.Upcoming(m.state.Page + 1))

	case tea.KeyShiftTab:
		if m.searching() || m.state.Page <= 1 {
			return m, nil
		}
		m.cursor = 0
		return m, m.run(catalog.Upcoming(m.state.Page - 1))

	case tea.KeyCtrlR:
		if m.searching() {
			m.session.Input(m.input.Value())
			return m, nil
		}
		return m, m.run(catalog.Upcoming(max(m.state.Page, 1)))
	}

	if m.detail {
		return m, nil
	}

	prev := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if value := m.input.Value(); value != prev {
		m.cursor = 0
		m.session.Input(value)
	}
	return m, cmd
}

// run executes op off the UI goroutine.
func (m browseModel) run(op catalog.Op) tea.Cmd {
	return func() tea.Msg {
		return fetchDoneMsg{err: m.fetcher.Run(m.ctx, op)}
	}
}

// waitForChange blocks until the store changes and returns its snapshot.
func (m browseModel) waitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.ctx.Done():
			return nil
		case <-m.changes:
			return stateMsg{state: m.fetcher.Store().Snapshot()}
		}
	}
}

func (m browseModel) searching() bool {
	return strings.TrimSpace(m.input.Value()) != ""
}

// visible returns the list under the cursor: search results while a query
// is typed, upcoming movies otherwise.
func (m browseModel) visible() []tmdb.Movie {
	if m.searching() {
		return m.state.SearchResults
	}
	return m.state.Upcoming
}

// View renders the search field, status line, and either the list or the
// selected movie.
func (m browseModel) View() string {
	var sb strings.Builder

	sb.WriteString(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5")).Render("Marquee"))
	sb.WriteString("\n\n")
	sb.WriteString(m.input.View())
	sb.WriteString("\n")

	switch {
	case m.state.AnyLoading() || m.session.Pending():
		sb.WriteString(m.spinner.View() + styleDim.Render(" Loading..."))
	case m.state.Error != "":
		sb.WriteString(styleError.Render(m.state.Error))
	}
	sb.WriteString("\n\n")

	if m.detail {
		sb.WriteString(m.renderDetail())
	} else {
		sb.WriteString(m.renderList())
	}

	sb.WriteString("\n")
	sb.WriteString(styleDim.Render(m.help()))
	return sb.String()
}

func (m browseModel) renderList() string {
	var sb strings.Builder
	category, title := catalog.CategoryUpcoming, "Upcoming"
	if m.searching() {
		category, title = catalog.CategorySearch, "Results"
	} else if m.state.TotalPages > 1 {
		title += fmt.Sprintf(" · page %d of %d", m.state.Page, m.state.TotalPages)
	}
	sb.WriteString(styleHeader.Render(title))
	sb.WriteString("\n")

	if m.state.ShowErrorView(category) {
		sb.WriteString(styleDim.Render("Nothing to show. Press Ctrl+R to retry."))
		sb.WriteString("\n")
		return sb.String()
	}

	movies := m.visible()
	if len(movies) == 0 && !m.state.IsLoading(category) {
		sb.WriteString(styleDim.Render("No movies found."))
		sb.WriteString("\n")
	}
	for i, mv := range movies {
		marker := "  "
		if i == m.cursor {
			marker = styleAccent.Render("› ")
		}
		sb.WriteString(marker + movieLine(i+1, mv) + "\n")
	}
	return sb.String()
}

func (m browseModel) renderDetail() string {
	d := m.state.Details
	if d == nil {
		if req := m.state.Requests[catalog.CategoryDetails]; req.Failed() {
			return styleError.Render(req.Err) + "\n"
		}
		return ""
	}

	var sb strings.Builder
	printMovieDetails(&sb, d, m.imageURL)
	if trailer, ok := tmdb.PickTrailer(m.state.Videos); ok {
		fmt.Fprintf(&sb, "%s %s\n", styleDim.Render("Trailer:"), styleInfo.Render(trailer.WatchURL()))
	}
	return sb.String()
}

func (m browseModel) help() string {
	if m.detail {
		return "esc back · ctrl+c quit"
	}
	return "↑/↓ move · enter open · tab/shift+tab page · ctrl+r retry · esc quit"
}
