package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/dive/internal/models"
	"github.com/desertthunder/dive/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	SourceListView ViewState = iota
	ConfirmView
	RunView
	ResultView
)

// PlaylistSource lists the playlists a run can start from.
type PlaylistSource interface {
	Playlists(ctx context.Context) ([]models.Playlist, error)
}

// Runner estimates and executes runs.
type Runner interface {
	Estimate(ctx context.Context, cfg models.PipelineConfig) ([]models.Artist, int, error)
	Run(ctx context.Context, cfg models.PipelineConfig, progress chan<- tasks.ProgressUpdate) (*tasks.RunResult, error)
}

// Options configures a [Model].
type Options struct {
	// Config is the starting configuration; the source and mode are picked in the TUI.
	Config models.PipelineConfig
	// OnStart is called from the run goroutine before a run begins. The
	// returned func, if any, is called with the run's outcome.
	OnStart func(cfg models.PipelineConfig) func(*tasks.RunResult, error)
	// OnFinish is called from the run goroutine once a run returns.
	OnFinish func(cfg models.PipelineConfig, result *tasks.RunResult, err error)
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	view     ViewState
	source   PlaylistSource
	runner   Runner
	cfg      models.PipelineConfig
	onStart  func(models.PipelineConfig) func(*tasks.RunResult, error)
	onFinish func(models.PipelineConfig, *tasks.RunResult, error)

	width   int
	height  int
	sources list.Model
	loaded  bool

	seeds    []models.Artist
	estimate int

	progressCh chan tasks.ProgressUpdate
	doneCh     chan runComplete
	progress   tasks.ProgressUpdate
	bar        progress.Model

	result *tasks.RunResult
	errors []string
	help   help.Model
	keys   keyMap
}

func NewModel(ctx context.Context, source PlaylistSource, runner Runner, opts Options) *Model {
	return &Model{
		ctx:      ctx,
		view:     SourceListView,
		source:   source,
		runner:   runner,
		cfg:      opts.Config,
		onStart:  opts.OnStart,
		onFinish: opts.OnFinish,
		sources:  list.New(nil, list.NewDefaultDelegate(), 0, 0),
		bar:      progress.New(progress.WithGradient("#1DB954", "#1ED760")),
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init loads the playlists shown next to the library.
func (m *Model) Init() tea.Cmd {
	return m.fetchPlaylists()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.sources.SetSize(msg.Width-4, msg.Height-8)
		m.bar.Width = max(msg.Width-8, 10)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case SourceListView:
			return m.handleSourceKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case RunView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	if m.view == SourceListView {
		m.sources, cmd = m.sources.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlaylistsFetched:
		data := msg.data.(playlistsFetched)
		items := []list.Item{librarySource()}
		if data.err != nil {
			m.addError(data.err)
		}
		for _, p := range data.playlists {
			items = append(items, sourceItem{playlist: p})
		}
		m.sources.SetItems(items)
		m.sources.Title = "Pick a source"
		m.loaded = true
		return m, nil

	case MsgEstimated:
		data := msg.data.(estimated)
		if data.err != nil {
			m.addError(data.err)
			m.view = SourceListView
			return m, nil
		}
		m.seeds, m.estimate = data.seeds, data.tracks
		m.view = ConfirmView
		return m, nil

	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		if !update.Reset {
			m.progress = update
		}
		return m, m.waitForProgress()

	case MsgRunComplete:
		data := msg.data.(runComplete)
		m.result = data.result
		if data.err != nil {
			m.addError(data.err)
		}
		m.progressCh, m.doneCh = nil, nil
		m.view = ResultView
		return m, nil
	}
	return m, nil
}

// addError records the user message for err unless it repeats the last one shown.
func (m *Model) addError(err error) {
	msg := tasks.UserMessage(err)
	if n := len(m.errors); n > 0 && m.errors[n-1] == msg {
		return
	}
	m.errors = append(m.errors, msg)
}

// Errors returns the error messages shown so far.
func (m *Model) Errors() []string { return m.errors }

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var body string
	switch m.view {
	case SourceListView:
		body = m.renderSources()
	case ConfirmView:
		body = m.renderConfirm()
	case RunView:
		body = m.renderRun()
	case ResultView:
		body = m.renderResult()
	}

	if n := len(m.errors); n > 0 && m.view != ResultView {
		body += "\n\n" + styles.err.Render(m.errors[n-1])
	}
	return body
}

func (m *Model) handleSourceKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.sources.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.sources, cmd = m.sources.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.mode):
		m.toggleMode()
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.sources.SelectedItem().(sourceItem); ok {
			m.cfg.SourcePlaylistID = item.playlist.ID
			return m, m.estimateRun()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.sources, cmd = m.sources.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back):
		m.view = SourceListView
	case key.Matches(msg, m.keys.mode):
		m.toggleMode()
		return m, m.estimateRun()
	case key.Matches(msg, m.keys.more):
		m.cfg.Threshold++
		return m, m.estimateRun()
	case key.Matches(msg, m.keys.less):
		if m.cfg.Threshold > 0 {
			m.cfg.Threshold--
			return m, m.estimateRun()
		}
	case key.Matches(msg, m.keys.yes):
		m.view = RunView
		m.result, m.progress = nil, tasks.ProgressUpdate{}
		return m, m.startRun()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.view = SourceListView
		m.result = nil
		m.errors = nil
	}
	return m, nil
}

func (m *Model) toggleMode() {
	if m.cfg.Mode == models.LookCloser {
		m.cfg.Mode = models.DiveDeeper
	} else {
		m.cfg.Mode = models.LookCloser
	}
}

func (m *Model) fetchPlaylists() tea.Cmd {
	return func() tea.Msg {
		playlists, err := m.source.Playlists(m.ctx)
		return playlistsFetchedMsg(playlists, err)
	}
}

func (m *Model) estimateRun() tea.Cmd {
	cfg := m.cfg
	return func() tea.Msg {
		seeds, tracks, err := m.runner.Estimate(m.ctx, cfg)
		return estimatedMsg(seeds, tracks, err)
	}
}

func (m *Model) startRun() tea.Cmd {
	cfg := m.cfg
	progressCh := make(chan tasks.ProgressUpdate, 64)
	doneCh := make(chan runComplete, 1)
	m.progressCh, m.doneCh = progressCh, doneCh

	go func() {
		var started func(*tasks.RunResult, error)
		if m.onStart != nil {
			started = m.onStart(cfg)
		}
		result, err := m.runner.Run(m.ctx, cfg, progressCh)
		if started != nil {
			started(result, err)
		}
		if m.onFinish != nil {
			m.onFinish(cfg, result, err)
		}
		doneCh <- runComplete{result: result, err: err}
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progressCh, doneCh := m.progressCh, m.doneCh
	if doneCh == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case update := <-progressCh:
			return progressUpdateMsg(update)
		case done := <-doneCh:
			return runCompleteMsg(done.result, done.err)
		}
	}
}

func (m *Model) renderSources() string {
	if !m.loaded {
		return styles.help.Render("Loading playlists...")
	}
	header := styles.help.Render(fmt.Sprintf("Mode: %s • Threshold: %d", m.cfg.Mode.Title(), m.cfg.Threshold))
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.mode, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s\n\n%s", m.sources.View(), header, helpView)
}

func (m *Model) renderConfirm() string {
	var b strings.Builder
	b.WriteString(styles.title.Render(fmt.Sprintf("%s into %q?", m.cfg.Mode.Title(), m.cfg.PlaylistName)))
	b.WriteString("\n")

	row := func(label string, value any) {
		fmt.Fprintf(&b, "%s%v\n", styles.label.Render(label), value)
	}
	row("Threshold", m.cfg.Threshold)
	row("Seed artists", len(m.seeds))
	row("Tracks per artist", m.cfg.TracksPerArtist)
	if m.cfg.Mode == models.DiveDeeper {
		row("Related per artist", m.cfg.RelatedPerArtist)
	}
	row("Up to", fmt.Sprintf("%d tracks", m.estimate))

	if len(m.seeds) > 0 {
		names := make([]string, 0, min(len(m.seeds), 5))
		for _, a := range m.seeds[:min(len(m.seeds), 5)] {
			names = append(names, a.Name)
		}
		if len(m.seeds) > 5 {
			names = append(names, fmt.Sprintf("and %d more", len(m.seeds)-5))
		}
		b.WriteString("\n" + styles.help.Render(strings.Join(names, ", ")) + "\n")
	}

	b.WriteString("\n" + m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no, m.keys.more, m.keys.less, m.keys.mode}))
	return b.String()
}

func (m *Model) renderRun() string {
	title := styles.title.Render(m.cfg.Mode.Title())
	stage := m.progress.Stage.Title()
	if stage == "" {
		stage = "Starting"
	}
	return fmt.Sprintf("%s\n\n%s\n%s\n%s", title, styles.ok.Render(stage), m.bar.ViewAs(m.progress.Fraction), styles.help.Render(m.progress.Message))
}

func (m *Model) renderResult() string {
	var b strings.Builder
	if n := len(m.errors); n > 0 {
		b.WriteString(styles.err.Render(m.errors[n-1]) + "\n\n")
	}

	if m.result != nil {
		b.WriteString(styles.ok.Render(fmt.Sprintf("✓ Wrote %d tracks to %d playlists", m.result.Written, len(m.result.PlaylistIDs))))
		b.WriteString("\n")
		for _, p := range m.result.Playlists {
			fmt.Fprintf(&b, "\n  • %s  %s", p.Name, styles.help.Render(p.URI))
		}
		if m.result.FailedRequests > 0 {
			b.WriteString("\n\n" + styles.warn.Render(fmt.Sprintf("%d requests failed and were skipped", m.result.FailedRequests)))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n" + m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit}))
	return b.String()
}
