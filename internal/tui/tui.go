// Package tui provides a Bubble Tea terminal user interface for one
// workspace sync.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/handiism/playlist-sync/internal/app"
	"github.com/handiism/playlist-sync/internal/model"
	"github.com/handiism/playlist-sync/internal/workspace"
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

	trackStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8B500"))
)

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateRefreshing
	StateSyncing
	StateComplete
	StateError
)

// LogLevel classifies a log line.
type LogLevel int

const (
	LevelInfo LogLevel = iota
	LevelSuccess
	LevelWarning
	LevelError
)

// LogEntry represents a log message in the UI.
type LogEntry struct {
	Message string
	Level   LogLevel
}

// trackLine is a track currently owned by a work item.
type trackLine struct {
	title   string
	state   model.DownloadState
	percent int
}

const (
	maxLogs   = 10
	maxActive = 8
)

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state     State
	textInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model
	session   *app.Session
	events    chan workspace.Event
	logs      []LogEntry
	err       error

	ctx    context.Context
	cancel context.CancelFunc

	// Sync progress
	queued    int
	completed int
	failed    int
	received  map[string]int64
	active    map[string]*trackLine
	order     []string
	result    workspace.Result

	refreshed workspace.RefreshResult
	deleted   int

	width  int
	height int
}

// NewModel creates a TUI model for session and subscribes to its events.
func NewModel(session *app.Session) Model {
	settings := session.Workspace.Settings()

	ti := textinput.New()
	ti.Placeholder = "https://www.youtube.com/playlist?list=..."
	ti.SetValue(settings.PlaylistURL)
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	ctx, cancel := context.WithCancel(context.Background())

	m := Model{
		state:     StateInput,
		textInput: ti,
		spinner:   sp,
		progress:  prog,
		session:   session,
		events:    make(chan workspace.Event, 256),
		ctx:       ctx,
		cancel:    cancel,
		received:  make(map[string]int64),
		active:    make(map[string]*trackLine),
	}
	if settings.AutoSync && settings.PlaylistURL != "" {
		m.state = StateRefreshing
	}
	session.Syncer.OnEvent(m.forward)
	return m
}

// forward hands sync events to the program. Progress events are dropped
// while the UI is behind; all others are delivered.
func (m Model) forward(ev workspace.Event) {
	if ev.Kind == workspace.EventProgress {
		select {
		case m.events <- ev:
		default:
		}
		return
	}
	m.events <- ev
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick, waitForEvent(m.events)}
	if m.state == StateRefreshing {
		cmds = append(cmds, m.refresh())
	}
	return tea.Batch(cmds...)
}

// Message types
type (
	// EventMsg carries one sync event.
	EventMsg workspace.Event

	// RefreshDoneMsg is sent when the playlist has been fetched.
	RefreshDoneMsg struct {
		Result  workspace.RefreshResult
		Deleted int
		Err     error
	}

	// SyncStartMsg is sent after a batch was submitted.
	SyncStartMsg struct {
		Err error
	}
)

func waitForEvent(ch <-chan workspace.Event) tea.Cmd {
	return func() tea.Msg {
		return EventMsg(<-ch)
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(max(msg.Width-20, 20), 80)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			m.session.Syncer.Cancel()
			return m, tea.Quit

		case "esc":
			if m.state == StateInput {
				return m, tea.Quit
			}
			if m.state == StateRefreshing || m.state == StateSyncing {
				m.cancel()
				m.session.Syncer.Cancel()
				m.addLog(LevelWarning, "cancelling...")
			}

		case "enter":
			if m.state == StateInput && m.textInput.Value() != "" {
				m.state = StateRefreshing
				return m, tea.Batch(m.refresh(), m.spinner.Tick)
			}

		case "ctrl+p":
			if m.state == StateInput {
				m.toggle(func(s *workspace.Settings) { s.CreatePlaylist = !s.CreatePlaylist })
			}

		case "ctrl+d":
			if m.state == StateInput {
				m.toggle(func(s *workspace.Settings) { s.DeleteNotSyncedItems = !s.DeleteNotSyncedItems })
			}

		case "ctrl+o":
			if m.state == StateInput {
				m.toggle(func(s *workspace.Settings) { s.AutoSync = !s.AutoSync })
			}

		case "q":
			if m.state == StateComplete || m.state == StateError {
				return m, tea.Quit
			}

		case "r":
			if m.state == StateComplete || m.state == StateError {
				m.reset()
				m.textInput.Focus()
				return m, nil
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case RefreshDoneMsg:
		if msg.Err != nil {
			m.fail(msg.Err)
			break
		}
		m.refreshed = msg.Result
		m.deleted = msg.Deleted
		m.addLog(LevelInfo, fmt.Sprintf("playlist: %d tracks (%d new, %d removed)",
			msg.Result.Total, msg.Result.Added, msg.Result.Removed))
		if msg.Deleted > 0 {
			m.addLog(LevelWarning, fmt.Sprintf("cleanup deleted %d file(s)", msg.Deleted))
		}
		m.state = StateSyncing
		cmds = append(cmds, m.startSync())

	case SyncStartMsg:
		if msg.Err != nil {
			m.fail(msg.Err)
		}

	case EventMsg:
		cmds = append(cmds, m.handleEvent(workspace.Event(msg)), waitForEvent(m.events))

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	if m.state == StateInput {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// handleEvent folds a sync event into the model.
func (m *Model) handleEvent(ev workspace.Event) tea.Cmd {
	id := ev.Track.ID

	switch ev.Kind {
	case workspace.EventQueued:
		m.queued++
		m.active[id] = &trackLine{title: ev.Track.Title, state: ev.State}
		m.order = append(m.order, id)

	case workspace.EventPhase:
		if line, ok := m.active[id]; ok {
			line.state = ev.State
		}

	case workspace.EventProgress:
		m.received[id] = ev.Progress.Received
		if line, ok := m.active[id]; ok {
			line.percent = ev.Progress.Percent
		}

	case workspace.EventCompleted:
		m.completed++
		m.removeActive(id)
		c := ev.Completion
		switch {
		case c.Err != nil:
			m.failed++
			m.addLog(LevelError, fmt.Sprintf("%s: %v", ev.Track.Title, c.Err))
		case c.Cancelled:
			m.addLog(LevelWarning, ev.Track.Title+" skipped")
		default:
			m.addLog(LevelSuccess, ev.Track.Title)
		}

	case workspace.EventSyncFinished:
		m.result = ev.Result
		if m.state == StateSyncing {
			m.state = StateComplete
		}
		return m.progress.SetPercent(1)
	}

	if m.queued == 0 {
		return nil
	}
	return m.progress.SetPercent(float64(m.completed) / float64(m.queued))
}

func (m *Model) removeActive(id string) {
	delete(m.active, id)
	for i, o := range m.order {
		if o == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}

func (m *Model) addLog(level LogLevel, msg string) {
	m.logs = append(m.logs, LogEntry{Message: msg, Level: level})
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

func (m *Model) fail(err error) {
	m.state = StateError
	if m.ctx.Err() != nil {
		err = fmt.Errorf("cancelled by user")
	}
	m.err = err
}

func (m *Model) toggle(fn func(*workspace.Settings)) {
	if err := m.session.Workspace.Update(fn); err != nil {
		m.addLog(LevelError, err.Error())
	}
}

func (m *Model) reset() {
	m.state = StateInput
	m.logs = nil
	m.err = nil
	m.queued, m.completed, m.failed = 0, 0, 0
	m.received = make(map[string]int64)
	m.active = make(map[string]*trackLine)
	m.order = nil
	m.result = workspace.Result{}
	m.ctx, m.cancel = context.WithCancel(context.Background())
}

func (m Model) receivedBytes() uint64 {
	var n int64
	for _, r := range m.received {
		n += r
	}
	return uint64(n)
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("🎵 Playlist Sync"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Workspace " + m.session.Workspace.Name()))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateRefreshing:
		b.WriteString(m.viewRefreshing())
	case StateSyncing:
		b.WriteString(m.viewSyncing())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.helpText()))

	return b.String()
}

func check(on bool) string {
	if on {
		return "[×]"
	}
	return "[ ]"
}

func (m Model) viewInput() string {
	var b strings.Builder
	settings := m.session.Workspace.Settings()

	b.WriteString(subtitleStyle.Render("Playlist URL:"))
	b.WriteString("\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")

	b.WriteString(infoStyle.Render("Options:"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s Create playlist file (ctrl+p)\n", check(settings.CreatePlaylist)))
	b.WriteString(fmt.Sprintf("  %s Delete files not in the playlist (ctrl+d)\n", check(settings.DeleteNotSyncedItems)))
	b.WriteString(fmt.Sprintf("  %s Sync on startup (ctrl+o)\n", check(settings.AutoSync)))
	b.WriteString("\n")

	downloaded, total := m.session.Workspace.Counts()
	last := "never"
	if !settings.LastSync.IsZero() {
		last = humanize.Time(settings.LastSync)
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("%s • %d/%d tracks as %s • last sync %s",
		m.session.Workspace.Dir(), downloaded, total, settings.DownloadFormat, last)))
	b.WriteString("\n")

	return b.String()
}

func (m Model) viewRefreshing() string {
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(subtitleStyle.Render("Fetching playlist..."))
	b.WriteString("\n\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewSyncing() string {
	var b strings.Builder

	var percent float64
	if m.queued > 0 {
		percent = float64(m.completed) / float64(m.queued)
	}
	b.WriteString(m.progress.ViewAs(percent))
	b.WriteString("\n")

	b.WriteString(infoStyle.Render(fmt.Sprintf(
		"Tracks: %d/%d | Failed: %d | Received: %s",
		m.completed, m.queued, m.failed, humanize.Bytes(m.receivedBytes()),
	)))
	b.WriteString("\n\n")

	for i, id := range m.order {
		if i == maxActive {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  … %d more", len(m.order)-maxActive)))
			b.WriteString("\n")
			break
		}
		line := m.active[id]
		status := line.state.String()
		if line.state == model.StateDownloading {
			status = fmt.Sprintf("%3d%%", line.percent)
		}
		b.WriteString(trackStyle.Render(fmt.Sprintf("  ♪ %-12s %s", status, line.title)))
		b.WriteString("\n")
	}
	if len(m.order) > 0 {
		b.WriteString("\n")
	}

	b.WriteString(m.renderLogs())
	return b.String()
}

func (m Model) viewComplete() string {
	r := m.result
	headline := "✨ Sync Complete!"
	if !r.OK() {
		headline = fmt.Sprintf("⚠ Sync completed with %d failure(s)", r.Failed)
	}

	box := boxStyle.Render(fmt.Sprintf(
		"%s\n\n"+
			"Downloaded: %d\n"+
			"Failed: %d\n"+
			"Skipped: %d\n"+
			"Received: %s\n"+
			"Took: %s",
		headline,
		r.Succeeded,
		r.Failed,
		r.Cancelled,
		humanize.Bytes(m.receivedBytes()),
		r.Finished.Sub(r.Started).Round(time.Millisecond),
	))

	return box + "\n\n" + m.renderLogs()
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("❌ Error occurred:"))
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
		prefix := "›"
		switch log.Level {
		case LevelError:
			style = errorStyle
			prefix = "✗"
		case LevelWarning:
			style = warningStyle
			prefix = "!"
		case LevelSuccess:
			style = successStyle
			prefix = "✓"
		default:
			style = infoStyle
		}
		b.WriteString(style.Render(prefix + " " + log.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) helpText() string {
	switch m.state {
	case StateInput:
		return "enter: sync • ctrl+p: playlist file • ctrl+d: cleanup • ctrl+o: autosync • esc: quit"
	case StateRefreshing, StateSyncing:
		return "esc: cancel"
	case StateComplete, StateError:
		return "r: sync again • q: quit"
	}
	return ""
}

// refresh sets the playlist URL and fetches the playlist.
func (m *Model) refresh() tea.Cmd {
	ctx := m.ctx
	session := m.session
	url := strings.TrimSpace(m.textInput.Value())

	return func() tea.Msg {
		if url != session.Workspace.Settings().PlaylistURL {
			if err := session.Workspace.SetPlaylistURL(url); err != nil {
				return RefreshDoneMsg{Err: err}
			}
		}
		res, deleted, err := session.Refresh(ctx)
		return RefreshDoneMsg{Result: res, Deleted: len(deleted), Err: err}
	}
}

// startSync submits the batch; progress arrives as events.
func (m *Model) startSync() tea.Cmd {
	syncer := m.session.Syncer
	return func() tea.Msg {
		_, err := syncer.SyncAll()
		return SyncStartMsg{Err: err}
	}
}

// Run starts the TUI application for session.
func Run(session *app.Session) error {
	p := tea.NewProgram(NewModel(session), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
