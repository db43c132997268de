// Package ui is the polychat terminal interface: the model selector, the
// transcript of rounds and response cards, the focus banner and the overlays.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"polychat/internal/commands"
	"polychat/internal/dispatch"
	"polychat/internal/events"
	"polychat/internal/export"
	"polychat/internal/faq"
	"polychat/internal/models"
)

// ViewMode represents the current view state
type ViewMode int

const (
	ViewChat ViewMode = iota
	ViewHelp
	ViewFAQ
	ViewStats
)

// Options wires the collaborators the TUI drives
type Options struct {
	Context    context.Context
	Catalog    *models.Catalog
	Dispatcher *dispatch.Dispatcher
	Events     *events.Client
	Stats      StatsSource
	FAQ        []faq.Item
	Session    dispatch.Options
	ExportDir  string
	SessionID  string
}

// resultMsg carries a settled request back into Update
type resultMsg dispatch.Result

type exportedMsg struct {
	path string
	err  error
}

type Model struct {
	width, height int
	ready         bool

	ctx        context.Context
	session    dispatch.Session
	catalog    *models.Catalog
	dispatcher *dispatch.Dispatcher
	events     *events.Client
	statsSrc   StatsSource
	exportDir  string
	sessionID  string
	startedAt  time.Time
	positions  map[string]int

	keys         KeyMap
	input        textarea.Model
	spinner      spinner.Model
	transcript   *TranscriptView
	faq          *FAQState
	stats        *StatsState
	view         ViewMode
	showSelector bool
}

func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	keys := DefaultKeyMap()

	ta := textarea.New()
	ta.Placeholder = "Ask every selected model... (Enter to send, /help for commands)"
	ta.Focus()
	ta.CharLimit = 20000
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline = keys.Newline

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(Orange)

	positions := make(map[string]int)
	names := make(map[string]string)
	for i, mdl := range opts.Catalog.All() {
		positions[mdl.ID] = i
		names[mdl.ID] = mdl.Name
	}

	return Model{
		ctx:          ctx,
		session:      dispatch.NewSession(opts.Catalog, opts.Session),
		catalog:      opts.Catalog,
		dispatcher:   opts.Dispatcher,
		events:       opts.Events,
		statsSrc:     opts.Stats,
		exportDir:    opts.ExportDir,
		sessionID:    opts.SessionID,
		startedAt:    time.Now(),
		positions:    positions,
		keys:         keys,
		input:        ta,
		spinner:      sp,
		transcript:   NewTranscriptView(80, 20),
		faq:          NewFAQState(opts.FAQ),
		stats:        NewStatsState(names),
		showSelector: true,
	}
}

// Session returns the current dispatcher state
func (m Model) Session() dispatch.Session {
	return m.session
}

func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.stats.SetMaxHeight(msg.Height)
		m.layout()
		return m, nil

	case resultMsg:
		m.session = m.session.Resolve(dispatch.Result(msg))
		m.refresh()
		return m, nil

	case exportedMsg:
		if msg.err != nil {
			m.session = m.session.Alert("Export failed: " + msg.err.Error())
		} else {
			m.session = m.session.Notice("Transcript exported to " + msg.path)
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.loading() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.transcript.Viewport, cmd = m.transcript.Viewport.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	// overlays swallow keys until closed
	switch m.view {
	case ViewHelp:
		if key.Matches(msg, m.keys.Help, m.keys.Close) {
			m.view = ViewChat
		}
		return m, nil

	case ViewFAQ:
		switch {
		case key.Matches(msg, m.keys.FAQ, m.keys.Close):
			m.view = ViewChat
		case msg.String() == "up" || msg.String() == "k":
			m.faq.Up()
		case msg.String() == "down" || msg.String() == "j":
			m.faq.Down()
		case msg.String() == "enter" || msg.String() == " ":
			m.faq.Toggle()
		}
		return m, nil

	case ViewStats:
		switch {
		case key.Matches(msg, m.keys.Stats, m.keys.Close):
			m.view = ViewChat
		case msg.String() == "up" || msg.String() == "k":
			m.stats.Up()
		case msg.String() == "down" || msg.String() == "j":
			m.stats.Down()
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		m.view = ViewHelp
		return m, nil

	case key.Matches(msg, m.keys.FAQ):
		m.view = ViewFAQ
		return m, nil

	case key.Matches(msg, m.keys.Stats):
		return m.openStats()

	case key.Matches(msg, m.keys.Send):
		return m.submit()

	case key.Matches(msg, m.keys.Continue):
		return m.continueWith(cardNumber(msg.String()))

	case key.Matches(msg, m.keys.ExitFocus) && m.session.State().Focused():
		return m.exitFocus()

	case key.Matches(msg, m.keys.PageUp, m.keys.PageDown):
		var cmd tea.Cmd
		m.transcript.Viewport, cmd = m.transcript.Viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit handles Enter: slash commands first, then a prompt
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	if c := commands.Parse(text); c != nil {
		m.input.Reset()
		return m.runCommand(c)
	}

	wasFocused := m.session.State().Focused()
	next, reqs, err := m.session.Submit(text, time.Now())
	m.session = next

	switch {
	case errors.Is(err, dispatch.ErrEmptyPrompt):
		return m, nil
	case errors.Is(err, dispatch.ErrRequestPending):
		// keep the draft so nothing typed is lost
		focused, _ := m.session.State().Model()
		m.session = m.session.Alert(fmt.Sprintf("%s is still replying. Send again once it has answered.", focused.Name))
		m.refresh()
		return m, nil
	}

	m.input.Reset()
	if err != nil {
		m.refresh()
		return m, nil
	}

	if !wasFocused {
		if round, ok := m.session.LatestRound(); ok {
			m.events.BroadcastSent(round.ID, len(reqs))
		}
	}
	cmd := m.sendAll(reqs)
	return m, cmd
}

// sendAll turns requests into commands that report back as resultMsg
func (m *Model) sendAll(reqs []dispatch.Request) tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(reqs)+1)
	for _, req := range reqs {
		cmds = append(cmds, m.send(req))
	}
	cmds = append(cmds, m.spinner.Tick)
	m.refresh()
	return tea.Batch(cmds...)
}

func (m Model) send(req dispatch.Request) tea.Cmd {
	d, ctx := m.dispatcher, m.ctx
	return func() tea.Msg {
		return resultMsg(d.Do(ctx, req))
	}
}

func (m Model) runCommand(c commands.Command) (tea.Model, tea.Cmd) {
	switch c := c.(type) {
	case commands.Help:
		m.view = ViewHelp

	case commands.ShowFAQ:
		m.view = ViewFAQ

	case commands.ToggleModels:
		m.showSelector = !m.showSelector
		m.layout()

	case commands.ToggleModel:
		mdl, ok := m.catalog.Lookup(c.Ref)
		if !ok {
			m.session = m.session.Alert("Unknown model: " + c.Ref)
			break
		}
		m.session, _ = m.session.ToggleModel(mdl.ID)
		m.layout()

	case commands.Focus:
		return m.continueWith(c.Card)

	case commands.ExitFocus:
		return m.exitFocus()

	case commands.Export:
		return m, m.export(c.Name)

	case commands.ShowStats:
		return m.openStats()

	case commands.Clear:
		m.session = m.session.Clear()

	case commands.Quit:
		return m, tea.Quit

	case commands.ParseError:
		m.session = m.session.Notice(c.Message)
	}

	m.refresh()
	return m, nil
}

// continueWith enters focus mode from card n of the latest broadcast
func (m Model) continueWith(n int) (tea.Model, tea.Cmd) {
	round, ok := m.session.LatestBroadcast()
	if !ok || n < 1 || n > len(round.Cards) {
		m.session = m.session.Alert(fmt.Sprintf("No response card %d to continue with.", n))
		m.refresh()
		return m, nil
	}

	card := round.Cards[n-1]
	next, err := m.session.ContinueWith(card.Key)
	if err != nil {
		m.session = m.session.Alert(fmt.Sprintf("%s has no reply to continue with.", card.Model.Name))
		m.refresh()
		return m, nil
	}

	m.session = next
	m.events.FocusEntered(card.Model.ID, card.Model.Name)
	m.layout()
	return m, nil
}

func (m Model) exitFocus() (tea.Model, tea.Cmd) {
	state := m.session.State()
	focused, wasFocused := state.Model()

	m.session = m.session.ExitFocus()
	if wasFocused {
		m.events.FocusExited(focused.ID, state.Len())
	}
	m.layout()
	return m, nil
}

func (m Model) openStats() (tea.Model, tea.Cmd) {
	if err := m.stats.Load(m.statsSrc); err != nil {
		m.session = m.session.Alert("Stats unavailable: " + err.Error())
		m.refresh()
		return m, nil
	}
	m.view = ViewStats
	return m, nil
}

func (m Model) export(name string) tea.Cmd {
	if strings.TrimSpace(name) == "" {
		name = "polychat"
	}
	t := &export.Transcript{
		SessionID: m.sessionID,
		Name:      name,
		CreatedAt: m.startedAt,
		Banner:    m.session.Banner(),
		Entries:   m.session.Entries(),
	}
	dir := m.exportDir
	if dir == "" {
		dir = "."
	}
	return func() tea.Msg {
		path, err := export.WriteTranscript(t, dir)
		return exportedMsg{path: path, err: err}
	}
}

// loading reports whether any card is still waiting for its reply
func (m Model) loading() bool {
	for _, e := range m.session.Entries() {
		if e.Kind != dispatch.EntryRound {
			continue
		}
		for _, c := range e.Round.Cards {
			if c.Status == dispatch.CardLoading {
				return true
			}
		}
	}
	return false
}

func (m Model) colorOf(modelID string) int {
	if i, ok := m.positions[modelID]; ok {
		return i
	}
	return -1
}

// layout sizes the transcript to whatever the header and input leave over
func (m *Model) layout() {
	if !m.ready {
		return
	}
	m.input.SetWidth(m.width - 4)

	used := lipgloss.Height(m.headerView()) + lipgloss.Height(m.inputView()) + 1
	height := m.height - used
	if height < 3 {
		height = 3
	}
	m.transcript.SetSize(m.width, height)
	m.refresh()
}

func (m *Model) refresh() {
	m.transcript.Update(m.session.Entries(), m.spinner.View(), m.colorOf)
}

func (m Model) headerView() string {
	title := TitleStyle.Render("POLYCHAT")

	if banner := m.session.Banner(); banner != "" {
		return title + "  " + BannerStyle.Render(banner) + DimStyle.Render("  Esc: exit focus")
	}

	sel := m.session.Selection()
	if !m.showSelector {
		return title + DimStyle.Render(fmt.Sprintf("  %d of %d models selected (/models to show)",
			len(sel.Selected()), m.catalog.Count()))
	}

	boxes := make([]string, 0, m.catalog.Count())
	for i, c := range sel.Choices() {
		label := fmt.Sprintf("%d %s", i+1, c.Model.Name)
		if c.Checked {
			boxes = append(boxes, CheckedStyle.Render("[x] "+label))
		} else {
			boxes = append(boxes, UncheckedStyle.Render("[ ] "+label))
		}
	}
	selector := lipgloss.NewStyle().Width(m.width).Render(strings.Join(boxes, "  "))
	return title + "\n" + selector
}

func (m Model) inputView() string {
	return ActiveBox.Width(m.width - 2).Render(m.input.View())
}

func (m Model) footerView() string {
	return DimStyle.Render("Enter: send | Alt+n: continue with card n | F1: help | F2: FAQ | F3: stats | Ctrl+C: quit")
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	switch m.view {
	case ViewHelp:
		return HelpContent(m.keys, m.width, m.height)
	case ViewFAQ:
		return m.faq.Render(m.width, m.height)
	case ViewStats:
		return m.stats.Render(m.width, m.height)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		m.transcript.Viewport.View(),
		m.inputView(),
		m.footerView(),
	)
}
