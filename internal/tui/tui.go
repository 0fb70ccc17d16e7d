// Package tui provides a Bubble Tea terminal user interface for browsing
// and mirroring the canciones catalog.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/paginator"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/thegaspygames/canciones/internal/app"
	"github.com/thegaspygames/canciones/internal/download"
	"github.com/thegaspygames/canciones/internal/errmsg"
	"github.com/thegaspygames/canciones/internal/model"
	prog "github.com/thegaspygames/canciones/internal/progress"
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

	songStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8B500"))

	selectedStyle = songStyle.Bold(true).Reverse(true)
)

// maxLogs is how many progress lines stay on screen.
const maxLogs = 10

// State represents the current UI state.
type State int

const (
	StateLoading State = iota
	StateBrowse
	StateSearch
	StateDownloading
	StateComplete
	StateError
)

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state     State
	ctrl      *app.Controller
	newMirror func(onProgress prog.Func) *download.Manager

	textInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model
	pager     paginator.Model

	page     model.Page
	cursor   int
	logs     []prog.Event
	events   chan prog.Event
	verbose  bool
	err      error
	errOp    errmsg.Op

	ctx    context.Context
	cancel context.CancelFunc

	manager         *download.Manager
	totalFiles      int32
	downloadedFiles int32
	totalBytes      int64
	receivedBytes   int64

	width  int
	height int
}

// NewModel creates a TUI model over ctrl that shows the events received on
// events. newMirror builds the download manager used by the mirror action;
// when nil the action is disabled.
func NewModel(ctrl *app.Controller, newMirror func(onProgress prog.Func) *download.Manager, events chan prog.Event) Model {
	ti := textinput.New()
	ti.Placeholder = "Buscar por título"
	ti.CharLimit = 200
	ti.Width = 40

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 50

	pg := paginator.New()
	pg.Type = paginator.Dots
	pg.ActiveDot = subtitleStyle.Render("•")
	pg.InactiveDot = dimStyle.Render("•")

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		state:     StateLoading,
		ctrl:      ctrl,
		newMirror: newMirror,
		textInput: ti,
		spinner:   sp,
		progress:  bar,
		pager:     pg,
		events:    events,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Forward returns a progress callback that sends events to ch. Events that
// arrive while ch is full are dropped.
func Forward(ch chan<- prog.Event) prog.Func {
	return func(e prog.Event) {
		select {
		case ch <- e:
		default:
		}
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.refresh(), m.listen())
}

// Message types
type (
	// ProgressMsg carries one progress event.
	ProgressMsg struct {
		Event prog.Event
	}

	// LoadedMsg is sent when a catalog refresh completes.
	LoadedMsg struct {
		Err error
	}

	// MirrorReadyMsg is sent when the mirror has selected its songs.
	MirrorReadyMsg struct {
		Manager *download.Manager
		Err     error
	}

	// MirrorDoneMsg is sent when all downloads complete.
	MirrorDoneMsg struct {
		Err error
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
		m.progress.Width = min(max(msg.Width-20, 20), 80)
		return m, nil

	case tea.KeyMsg:
		if m.state == StateSearch {
			return m.updateSearch(msg)
		}
		if cmd, quit := m.handleKey(msg.String()); quit {
			return m, tea.Quit
		} else if cmd != nil {
			cmds = append(cmds, cmd)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case ProgressMsg:
		m.appendLog(msg.Event)
		cmds = append(cmds, m.listen())

	case LoadedMsg:
		if msg.Err != nil {
			m.setError(errmsg.OpCatalogLoad, msg.Err)
			break
		}
		m.state = StateBrowse
		m.setPage(m.ctrl.CurrentPage())

	case MirrorReadyMsg:
		if msg.Err != nil {
			m.setError(errmsg.OpDownload, msg.Err)
			break
		}
		m.manager = msg.Manager
		m.state = StateDownloading
		cmds = append(cmds, m.startMirror(), m.tickProgress())

	case MirrorDoneMsg:
		m.syncProgress()
		switch {
		case m.ctx.Err() != nil:
			m.setError(errmsg.OpDownload, errors.New("cancelled by user"))
		case msg.Err != nil:
			m.setError(errmsg.OpDownload, msg.Err)
		default:
			m.state = StateComplete
		}

	case TickMsg:
		if m.manager != nil && m.state == StateDownloading {
			m.syncProgress()
			var percent float64
			if m.totalFiles > 0 {
				percent = float64(m.downloadedFiles) / float64(m.totalFiles)
			}
			cmds = append(cmds, m.progress.SetPercent(percent), m.tickProgress())
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// handleKey applies a key outside the search box. quit is true when the
// program should exit.
func (m *Model) handleKey(key string) (cmd tea.Cmd, quit bool) {
	switch key {
	case "ctrl+c":
		m.cancel()
		return nil, true

	case "q":
		if m.state != StateDownloading && m.state != StateLoading {
			m.cancel()
			return nil, true
		}

	case "esc":
		switch m.state {
		case StateDownloading, StateLoading:
			m.cancel()
		case StateComplete, StateError:
			m.resetContext()
			m.state = StateBrowse
			m.setPage(m.ctrl.CurrentPage())
		}
	}

	if m.state != StateBrowse {
		return nil, false
	}

	switch key {
	case "/":
		m.state = StateSearch
		m.textInput.SetValue(m.ctrl.Query().Search)
		m.textInput.CursorEnd()
		return m.textInput.Focus(), false
	case "g":
		q := m.ctrl.Query()
		q.Genre = cycle(m.ctrl.Genres(), q.Genre)
		m.setPage(m.ctrl.SetQuery(q))
	case "m":
		q := m.ctrl.Query()
		q.Model = cycle(m.ctrl.Models(), q.Model)
		m.setPage(m.ctrl.SetQuery(q))
	case "c":
		m.setPage(m.ctrl.SetQuery(model.Query{Genre: model.All, Model: model.All}))
	case "right", "l", "pgdown":
		m.setPage(m.ctrl.NextPage())
	case "left", "h", "pgup":
		m.setPage(m.ctrl.PrevPage())
	case "down", "j":
		if m.cursor < len(m.page.Songs)-1 {
			m.cursor++
		}
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "v":
		m.verbose = !m.verbose
	case "r":
		m.state = StateLoading
		return tea.Batch(m.refresh(), m.spinner.Tick), false
	case "d":
		if m.newMirror != nil {
			m.state = StateLoading
			return tea.Batch(m.initializeMirror(), m.spinner.Tick), false
		}
	}
	return nil, false
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.cancel()
		return m, tea.Quit
	case "enter":
		q := m.ctrl.Query()
		q.Search = strings.TrimSpace(m.textInput.Value())
		m.setPage(m.ctrl.SetQuery(q))
		fallthrough
	case "esc":
		m.textInput.Blur()
		m.state = StateBrowse
		return m, nil
	}
	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m *Model) setPage(p model.Page) {
	m.page = p
	m.cursor = 0
	m.pager.SetTotalPages(max(p.Total, 1))
	m.pager.Page = max(p.Number-1, 0)
}

func (m *Model) setError(op errmsg.Op, err error) {
	m.state = StateError
	m.errOp = op
	m.err = err
}

func (m *Model) resetContext() {
	m.cancel()
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.err = nil
	m.manager = nil
	m.downloadedFiles, m.totalFiles = 0, 0
	m.receivedBytes, m.totalBytes = 0, 0
}

func (m *Model) appendLog(e prog.Event) {
	if e.Level == prog.LevelVerbose && !m.verbose {
		return
	}
	m.logs = append(m.logs, e)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

func (m *Model) syncProgress() {
	if m.manager == nil {
		return
	}
	m.receivedBytes, m.totalBytes, m.downloadedFiles, m.totalFiles = m.manager.GetProgress()
}

// cycle returns the option after current in [All, options...], wrapping.
func cycle(options []string, current string) string {
	all := append([]string{model.All}, options...)
	for i, o := range all {
		if o == current {
			return all[(i+1)%len(all)]
		}
	}
	return model.All
}

// tickProgress returns a command to tick progress updates.
func (m Model) tickProgress() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// listen waits for the next progress event.
func (m Model) listen() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		return ProgressMsg{Event: <-events}
	}
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	// Header
	b.WriteString(titleStyle.Render("♪ Canciones"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Catálogo de canciones generadas con IA"))
	b.WriteString("\n\n")

	switch m.state {
	case StateLoading:
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(subtitleStyle.Render("Cargando..."))
		b.WriteString("\n\n")
	case StateBrowse, StateSearch:
		b.WriteString(m.viewBrowse())
	case StateDownloading:
		b.WriteString(m.viewDownloading())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	b.WriteString(m.renderLogs())

	// Footer
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func (m Model) viewBrowse() string {
	var b strings.Builder
	q := m.ctrl.Query()

	if m.state == StateSearch {
		b.WriteString(m.textInput.View())
	} else {
		search := q.Search
		if search == "" {
			search = "-"
		}
		b.WriteString(infoStyle.Render("Búsqueda: " + search))
	}
	b.WriteString("\n")
	b.WriteString(infoStyle.Render(fmt.Sprintf("Género: %s | Modelo: %s", label(q.Genre), label(q.Model))))
	b.WriteString("\n\n")

	if m.page.Count == 0 {
		b.WriteString(warningStyle.Render("No se encontraron canciones"))
		b.WriteString("\n")
		return b.String()
	}

	for i, s := range m.page.Songs {
		line := fmt.Sprintf("  ♪ %s", s.Title)
		if i == m.cursor {
			b.WriteString(selectedStyle.Render(line))
		} else {
			b.WriteString(songStyle.Render(line))
		}
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %s · %s", s.Genre, s.AIModel)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.cursor < len(m.page.Songs) {
		b.WriteString(subtitleStyle.Render(detail(m.page.Songs[m.cursor])))
		b.WriteString("\n")
	}
	b.WriteString(m.pager.View())
	b.WriteString(dimStyle.Render(fmt.Sprintf("  página %d de %d · %d canciones", m.page.Number, m.page.Total, m.page.Count)))
	b.WriteString("\n\n")
	return b.String()
}

func detail(s model.Song) string {
	parts := []string{}
	if s.Date != "" {
		parts = append(parts, s.Date)
	}
	if s.Size > 0 {
		parts = append(parts, model.FormatSize(s.Size))
	}
	parts = append(parts, s.AIModel, s.DownloadName)
	return strings.Join(parts, " | ")
}

func label(v string) string {
	if v == "" || v == model.All {
		return "Todos"
	}
	return v
}

func (m Model) viewDownloading() string {
	var b strings.Builder

	var percent float64
	if m.totalFiles > 0 {
		percent = float64(m.downloadedFiles) / float64(m.totalFiles)
	}
	b.WriteString(m.progress.ViewAs(percent))
	b.WriteString("\n")

	b.WriteString(infoStyle.Render(fmt.Sprintf(
		"Files: %d/%d | Downloaded: %s",
		m.downloadedFiles,
		m.totalFiles,
		model.FormatSize(m.receivedBytes),
	)))
	b.WriteString("\n\n")

	return b.String()
}

func (m Model) viewComplete() string {
	box := boxStyle.Render(fmt.Sprintf(
		"✨ Download Complete!\n\n"+
			"Files: %d\n"+
			"Size: %s",
		m.downloadedFiles,
		model.FormatSize(m.receivedBytes),
	))
	return box + "\n"
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("❌ Error occurred:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString("  " + errmsg.Format(m.errOp, m.err))
	}
	b.WriteString("\n")

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, log := range m.logs {
		var style lipgloss.Style
		prefix := "•"
		switch log.Level {
		case prog.LevelError:
			style = errorStyle
			prefix = "✗"
		case prog.LevelWarning:
			style = warningStyle
			prefix = "!"
		case prog.LevelSuccess:
			style = successStyle
			prefix = "✓"
		case prog.LevelInfo:
			style = infoStyle
			prefix = "›"
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
	case StateBrowse:
		help := "/: search • g: genre • m: model • c: clear • ←/→: page • r: reload • v: verbose"
		if m.newMirror != nil {
			help += " • d: download"
		}
		return help + " • q: quit"
	case StateSearch:
		return "enter: apply • esc: cancel"
	case StateLoading, StateDownloading:
		return "esc: cancel"
	case StateComplete, StateError:
		return "esc: back • q: quit"
	}
	return ""
}

// refresh reloads the catalog.
func (m Model) refresh() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		return LoadedMsg{Err: ctrl.Refresh(ctx)}
	}
}

// initializeMirror selects the songs matching the active query.
func (m Model) initializeMirror() tea.Cmd {
	ctx, q := m.ctx, m.ctrl.Query()
	manager := m.newMirror(Forward(m.events))
	return func() tea.Msg {
		if err := manager.Initialize(ctx, q); err != nil {
			return MirrorReadyMsg{Err: err}
		}
		return MirrorReadyMsg{Manager: manager}
	}
}

// startMirror runs the downloads in background.
func (m Model) startMirror() tea.Cmd {
	ctx, manager := m.ctx, m.manager
	return func() tea.Msg {
		return MirrorDoneMsg{Err: manager.StartDownloads(ctx)}
	}
}

// Run starts the TUI application.
func Run(ctrl *app.Controller, newMirror func(onProgress prog.Func) *download.Manager, events chan prog.Event) error {
	p := tea.NewProgram(NewModel(ctrl, newMirror, events), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
