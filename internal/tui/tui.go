// Package tui provides a Bubble Tea terminal user interface for rymdl.
package tui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rymdl/rymdl/internal/audio"
	"github.com/rymdl/rymdl/internal/config"
	"github.com/rymdl/rymdl/internal/model"
	"github.com/rymdl/rymdl/internal/orchestrate"
	"github.com/rymdl/rymdl/internal/organize"
	"github.com/rymdl/rymdl/internal/search"
	"github.com/rymdl/rymdl/internal/slskd"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)

	releaseStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8B500"))
)

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateLoading
	StateRunning
	StateComplete
	StateError
)

// LogEntry represents a log message in the UI.
type LogEntry struct {
	Message string
	Level   orchestrate.ProgressLevel
}

// eventBuffer collects progress events from the worker goroutines; the
// UI drains it on each tick.
type eventBuffer struct {
	mu      sync.Mutex
	entries []orchestrate.ProgressEvent
}

func (b *eventBuffer) add(event orchestrate.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, event)
}

func (b *eventBuffer) drain() []orchestrate.ProgressEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.entries
	b.entries = nil
	return out
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state     State
	textInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model
	settings  *config.Settings
	logs      []LogEntry
	err       error

	ctx    context.Context
	cancel context.CancelFunc

	coordinator *orchestrate.Coordinator
	events      *eventBuffer

	releases []model.Release
	statuses []orchestrate.ReleaseStatus
	results  []orchestrate.ReleaseResult

	verbose bool

	width  int
	height int
}

// NewModel creates a new TUI model.
func NewModel(settings *config.Settings) Model {
	ti := textinput.New()
	ti.Placeholder = "path/to/releases.txt"
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		state:     StateInput,
		textInput: ti,
		spinner:   sp,
		progress:  prog,
		settings:  settings,
		logs:      make([]LogEntry, 0),
		events:    &eventBuffer{},
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Message types
type (
	// LoadDoneMsg is sent when the release list is parsed and the
	// pipeline is wired up.
	LoadDoneMsg struct {
		Releases    []model.Release
		Coordinator *orchestrate.Coordinator
		Err         error
	}

	// BatchDoneMsg is sent when the whole batch finishes.
	BatchDoneMsg struct {
		Results []orchestrate.ReleaseResult
		Err     error
	}

	// TickMsg is for periodic progress updates.
	TickMsg struct{}
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 20
		if m.progress.Width > 80 {
			m.progress.Width = 80
		}
		if m.progress.Width < 20 {
			m.progress.Width = 20
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			return m, tea.Quit

		case "esc":
			if m.state == StateInput {
				return m, tea.Quit
			}
			if m.state == StateLoading || m.state == StateRunning {
				m.cancel()
				m.state = StateError
				m.err = fmt.Errorf("cancelled by user")
			}

		case "enter":
			if m.state == StateInput && m.textInput.Value() != "" {
				m.state = StateLoading
				return m, tea.Batch(m.loadBatch(), m.spinner.Tick)
			}

		case "v":
			if m.state == StateInput {
				m.verbose = !m.verbose
			}

		case "q":
			if m.state == StateComplete || m.state == StateError {
				return m, tea.Quit
			}

		case "r":
			if m.state == StateComplete || m.state == StateError {
				// Reset for a new batch
				m.state = StateInput
				m.logs = nil
				m.releases = nil
				m.statuses = nil
				m.results = nil
				m.err = nil
				m.coordinator = nil
				m.events = &eventBuffer{}
				m.ctx, m.cancel = context.WithCancel(context.Background())
				m.textInput.SetValue("")
				m.textInput.Focus()
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case LoadDoneMsg:
		if msg.Err != nil {
			m.state = StateError
			m.err = msg.Err
		} else {
			m.releases = msg.Releases
			m.coordinator = msg.Coordinator
			m.state = StateRunning
			cmds = append(cmds, m.startBatch(), m.tickProgress())
		}

	case BatchDoneMsg:
		m.results = msg.Results
		if m.coordinator != nil {
			m.statuses = m.coordinator.Snapshot()
		}
		if msg.Err != nil && m.ctx.Err() == nil {
			m.state = StateError
			m.err = msg.Err
		} else if m.ctx.Err() != nil {
			m.state = StateError
			m.err = fmt.Errorf("cancelled by user")
		} else {
			m.state = StateComplete
		}

	case TickMsg:
		if m.coordinator != nil && m.state == StateRunning {
			m.statuses = m.coordinator.Snapshot()
			m.appendEvents()

			done := 0
			for _, s := range m.statuses {
				if s.Done {
					done++
				}
			}
			var percent float64
			if len(m.statuses) > 0 {
				percent = float64(done) / float64(len(m.statuses))
			}
			cmds = append(cmds, m.progress.SetPercent(percent), m.tickProgress())
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	// Update text input
	if m.state == StateInput {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) appendEvents() {
	for _, event := range m.events.drain() {
		if event.Level == orchestrate.LevelVerbose && !m.verbose {
			continue
		}
		m.logs = append(m.logs, LogEntry{Message: event.Message, Level: event.Level})
	}
	// Keep only last 10 logs
	if len(m.logs) > 10 {
		m.logs = m.logs[len(m.logs)-10:]
	}
}

// tickProgress returns a command to tick progress updates.
func (m Model) tickProgress() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("rymdl"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Fetch release lists from the Soulseek network"))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateLoading:
		b.WriteString(m.viewLoading())
	case StateRunning:
		b.WriteString(m.viewRunning())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func (m Model) viewInput() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Release list file (one \"Artist - Title (Year)\" per line):"))
	b.WriteString("\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")

	verboseCheck := "[ ]"
	if m.verbose {
		verboseCheck = "[x]"
	}
	b.WriteString(infoStyle.Render("Options:"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s Verbose output (v)\n", verboseCheck))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Broker: %s", m.settings.SlskdHost)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Library: %s", m.settings.OutputDir)))
	b.WriteString("\n")

	return b.String()
}

func (m Model) viewLoading() string {
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(subtitleStyle.Render("Parsing release list..."))
	b.WriteString("\n\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewRunning() string {
	var b strings.Builder

	if len(m.statuses) > 0 {
		done := 0
		for _, s := range m.statuses {
			if s.Done {
				done++
			}
		}
		b.WriteString(successStyle.Render(fmt.Sprintf("Releases: %d/%d", done, len(m.statuses))))
		b.WriteString("\n")
		for _, s := range m.statuses {
			b.WriteString(m.renderStatus(s))
			b.WriteString("\n")
		}
		b.WriteString("\n")

		var percent float64
		if len(m.statuses) > 0 {
			percent = float64(done) / float64(len(m.statuses))
		}
		b.WriteString(m.progress.ViewAs(percent))
		b.WriteString("\n\n")
	}

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) renderStatus(s orchestrate.ReleaseStatus) string {
	name := s.Release.String()
	switch {
	case s.Done && s.Succeeded:
		return successStyle.Render("  + " + name)
	case s.Done:
		return errorStyle.Render(fmt.Sprintf("  x %s (%s)", name, s.Reason))
	case s.Phase == orchestrate.PhasePending:
		return dimStyle.Render("  . " + name)
	default:
		return releaseStyle.Render(fmt.Sprintf("  %s %s [%s]", m.spinner.View(), name, s.Phase))
	}
}

func (m Model) viewComplete() string {
	succeeded := 0
	for _, res := range m.results {
		if res.Succeeded {
			succeeded++
		}
	}

	var b strings.Builder
	box := boxStyle.Render(fmt.Sprintf(
		"Batch complete\n\n"+
			"Organized: %d/%d releases",
		succeeded,
		len(m.results),
	))
	b.WriteString(box)
	b.WriteString("\n\n")

	for _, res := range m.results {
		if res.Succeeded {
			continue
		}
		b.WriteString(warningStyle.Render(fmt.Sprintf("  x %s: %s", res.Release, res.Reason)))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("Error occurred:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
	}

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, log := range m.logs {
		var style lipgloss.Style
		prefix := "-"
		switch log.Level {
		case orchestrate.LevelError:
			style = errorStyle
			prefix = "x"
		case orchestrate.LevelWarning:
			style = warningStyle
			prefix = "!"
		case orchestrate.LevelSuccess:
			style = successStyle
			prefix = "+"
		case orchestrate.LevelInfo:
			style = infoStyle
			prefix = ">"
		default:
			style = dimStyle
		}
		b.WriteString(style.Render(prefix + " " + log.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) getHelpText() string {
	switch m.state {
	case StateInput:
		return "enter: start - v: verbose - esc: quit"
	case StateLoading, StateRunning:
		return "esc: cancel"
	case StateComplete, StateError:
		return "r: new batch - q: quit"
	}
	return ""
}

// loadBatch parses the release list and wires up the pipeline.
func (m *Model) loadBatch() tea.Cmd {
	settings := m.settings
	events := m.events
	path := m.textInput.Value()

	return func() tea.Msg {
		releases, lineErrs, err := parseReleaseFile(path, settings.StrictInput)
		if err != nil {
			return LoadDoneMsg{Err: err}
		}
		for _, le := range lineErrs {
			events.add(orchestrate.ProgressEvent{
				Message: fmt.Sprintf("Skipping line %d: %q", le.Line, le.Text),
				Level:   orchestrate.LevelWarning,
			})
		}
		if len(releases) == 0 {
			return LoadDoneMsg{Err: fmt.Errorf("%s: no parsable releases", path)}
		}

		client, err := slskd.NewClient(settings.SlskdHost, settings.SlskdAPIKey)
		if err != nil {
			return LoadDoneMsg{Err: err}
		}
		client.SearchTimeout = settings.SearchTimeoutDuration()
		client.PollDelay = settings.SearchPollDelayDuration()

		library := organize.Library{
			DownloadsDir: settings.DownloadsDir,
			OutputRoot:   settings.OutputDir,
		}

		opts := orchestrate.Options{
			Constraints: search.Constraints{
				AllowedFormats: settings.PreferredFormats,
				MinBitrate:     settings.MinBitrate,
				MinFiles:       settings.MinFiles,
			},
			PreferredFormats: settings.PreferredFormats,
			PollInterval:     settings.TransferPollIntervalDuration(),
			OnProgress:       events.add,
		}
		if settings.ModifyTags {
			opts.Tagger = audio.NewTagger(nil)
		}
		orc := orchestrate.New(client, library, opts)
		coord := orchestrate.NewCoordinator(orc, settings.MaxConcurrentReleases, settings.BatchTimeout())

		return LoadDoneMsg{Releases: releases, Coordinator: coord}
	}
}

// startBatch runs the whole batch in the background.
func (m *Model) startBatch() tea.Cmd {
	coord := m.coordinator
	ctx := m.ctx
	releases := m.releases

	return func() tea.Msg {
		if coord == nil {
			return BatchDoneMsg{Err: fmt.Errorf("no coordinator")}
		}
		results, err := coord.Run(ctx, releases)
		return BatchDoneMsg{Results: results, Err: err}
	}
}

func parseReleaseFile(path string, strict bool) ([]model.Release, []*model.LineError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return model.ParseReleaseList(f, strict)
}

// Run starts the TUI application.
func Run(settings *config.Settings) error {
	p := tea.NewProgram(NewModel(settings), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
