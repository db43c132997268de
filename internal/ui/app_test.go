package ui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polychat/internal/db"
	"polychat/internal/dispatch"
	"polychat/internal/faq"
	"polychat/internal/models"
)

var (
	modelA = models.Model{ID: "vendor/a", Name: "Model A"}
	modelB = models.Model{ID: "vendor/b", Name: "Model B"}
)

// recordingSender answers for vendor/a, fails for vendor/b and keeps every
// message list it was sent
type recordingSender struct {
	mu    sync.Mutex
	calls map[string][][]models.Message
}

func (r *recordingSender) Send(ctx context.Context, modelID string, messages []models.Message) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = make(map[string][][]models.Message)
	}
	r.calls[modelID] = append(r.calls[modelID], messages)
	if modelID == modelB.ID {
		return "", errors.New("model B is down")
	}
	return "reply " + messages[len(messages)-1].Content, nil
}

func (r *recordingSender) last(modelID string) []models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	calls := r.calls[modelID]
	if len(calls) == 0 {
		return nil
	}
	return calls[len(calls)-1]
}

func newTestModel(t *testing.T, opts Options) (Model, *recordingSender) {
	t.Helper()
	sender := &recordingSender{}
	opts.Catalog = models.CatalogOf(modelA, modelB)
	opts.Dispatcher = dispatch.New(sender, time.Second)
	if opts.FAQ == nil {
		opts.FAQ = []faq.Item{{Question: "Q1", Answer: "A1"}, {Question: "Q2", Answer: "A2"}}
	}

	m := New(opts)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model), sender
}

// run executes cmd and feeds every resulting message back into Update,
// skipping spinner animation
func run(m Model, cmd tea.Cmd) Model {
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case spinner.TickMsg, tea.QuitMsg:
		default:
			next, more := m.Update(msg)
			m = next.(Model)
			queue = append(queue, more)
		}
	}
	return m
}

func press(m Model, msg tea.KeyMsg) Model {
	next, cmd := m.Update(msg)
	return run(next.(Model), cmd)
}

func typeAndSend(m Model, text string) Model {
	m.input.SetValue(text)
	return press(m, tea.KeyMsg{Type: tea.KeyEnter})
}

func altDigit(n rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{n}, Alt: true}
}

func lastEntry(m Model) dispatch.Entry {
	entries := m.Session().Entries()
	return entries[len(entries)-1]
}

func rendered(m Model) string {
	return m.transcript.Render(m.Session().Entries(), "", m.colorOf)
}

func TestViewBeforeResize(t *testing.T) {
	m := New(Options{Catalog: models.CatalogOf(modelA)})
	if m.View() != "Loading..." {
		t.Errorf("Expected loading view, got %q", m.View())
	}
}

func TestBroadcastRound(t *testing.T) {
	m, sender := newTestModel(t, Options{})

	m = typeAndSend(m, "hi")

	round, ok := m.Session().LatestRound()
	require.True(t, ok)
	require.Len(t, round.Cards, 2)
	assert.Equal(t, dispatch.CardDone, round.Cards[0].Status)
	assert.Equal(t, "reply hi", round.Cards[0].Content)
	assert.Equal(t, dispatch.CardFailed, round.Cards[1].Status)

	assert.Equal(t, []models.Message{models.UserMessage("hi")}, sender.last(modelA.ID))
	assert.Equal(t, []models.Message{models.UserMessage("hi")}, sender.last(modelB.ID))
	assert.Equal(t, "", m.input.Value(), "input is cleared after sending")

	out := rendered(m)
	assert.Contains(t, out, "[1] Model A")
	assert.Contains(t, out, "Error: model B is down")
	assert.Contains(t, out, "Alt+1  continue with this")
	assert.NotContains(t, out, "Alt+2  continue with this", "failed cards cannot be continued")
}

func TestEmptyPromptIsIgnored(t *testing.T) {
	m, _ := newTestModel(t, Options{})
	m = typeAndSend(m, "   ")
	assert.Empty(t, m.Session().Entries())
}

func TestNoModelsSelectedAlerts(t *testing.T) {
	m, sender := newTestModel(t, Options{})
	m = typeAndSend(m, "/toggle 1")
	m = typeAndSend(m, "/toggle vendor/b")

	m = typeAndSend(m, "hi")

	assert.Equal(t, dispatch.EntryAlert, lastEntry(m).Kind)
	assert.Equal(t, "Please select at least one AI model.", lastEntry(m).Text)
	assert.Nil(t, sender.last(modelA.ID))
	assert.Nil(t, sender.last(modelB.ID))
}

func TestFocusFlow(t *testing.T) {
	m, sender := newTestModel(t, Options{})
	m = typeAndSend(m, "hi")

	m = press(m, altDigit('1'))
	require.True(t, m.Session().State().Focused())
	assert.Contains(t, m.View(), "Chatting with: Model A")
	assert.NotContains(t, m.View(), "[x] 1 Model A", "selector is hidden while focused")

	m = typeAndSend(m, "and then?")
	assert.Equal(t, []models.Message{
		models.UserMessage("hi"),
		models.AssistantMessage("reply hi"),
		models.UserMessage("and then?"),
	}, sender.last(modelA.ID))
	assert.Equal(t, 4, m.Session().State().Len())

	round, _ := m.Session().LatestRound()
	assert.True(t, round.Focused)
	assert.Len(t, round.Cards, 1)

	m = press(m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.Session().State().Focused())
	assert.Equal(t, "--- Focus mode ended. Now chatting with all selected models. ---", lastEntry(m).Text)
	assert.Contains(t, m.View(), "[x] 1 Model A")
}

func TestContinueWithFailedCard(t *testing.T) {
	m, _ := newTestModel(t, Options{})
	m = typeAndSend(m, "hi")

	m = press(m, altDigit('2'))
	assert.False(t, m.Session().State().Focused())
	assert.Equal(t, "Model B has no reply to continue with.", lastEntry(m).Text)

	m = typeAndSend(m, "/focus 7")
	assert.Equal(t, "No response card 7 to continue with.", lastEntry(m).Text)
}

func TestFocusCommand(t *testing.T) {
	m, _ := newTestModel(t, Options{})
	m = typeAndSend(m, "hi")
	m = typeAndSend(m, "/focus 1")
	require.True(t, m.Session().State().Focused())

	m = typeAndSend(m, "/exit")
	assert.False(t, m.Session().State().Focused())
}

func TestParseErrorBecomesNotice(t *testing.T) {
	m, _ := newTestModel(t, Options{})
	m = typeAndSend(m, "/bogus")

	assert.Equal(t, dispatch.EntryNotice, lastEntry(m).Kind)
	assert.Equal(t, "unknown command: /bogus", lastEntry(m).Text)
}

func TestFAQOverlay(t *testing.T) {
	m, _ := newTestModel(t, Options{})

	m = press(m, tea.KeyMsg{Type: tea.KeyF2})
	require.Equal(t, ViewFAQ, m.view)
	assert.NotContains(t, m.View(), "A1")

	m = press(m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Contains(t, m.View(), "A1")

	m = press(m, tea.KeyMsg{Type: tea.KeyDown})
	m = press(m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.NotContains(t, m.View(), "A1", "opening Q2 closes Q1")
	assert.Contains(t, m.View(), "A2")

	m = press(m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ViewChat, m.view)
}

func TestHelpOverlay(t *testing.T) {
	m, _ := newTestModel(t, Options{})

	m = typeAndSend(m, "/help")
	require.Equal(t, ViewHelp, m.view)
	assert.Contains(t, m.View(), "POLYCHAT HELP")

	m = press(m, tea.KeyMsg{Type: tea.KeyF1})
	assert.Equal(t, ViewChat, m.view)
}

func TestModelsCommandHidesSelector(t *testing.T) {
	m, _ := newTestModel(t, Options{})
	m = typeAndSend(m, "/models")
	assert.Contains(t, m.View(), "2 of 2 models selected")

	m = typeAndSend(m, "/toggle 9")
	assert.Equal(t, "Unknown model: 9", lastEntry(m).Text)
}

type fakeStats struct{}

func (fakeStats) ModelStats() ([]db.ModelStats, error) {
	return []db.ModelStats{{ModelID: modelA.ID, Requests: 3, Failures: 1, AvgLatency: 1500 * time.Millisecond}}, nil
}

func (fakeStats) RecentFailures(limit int) ([]db.Dispatch, error) {
	return []db.Dispatch{{ModelID: modelA.ID, Error: "rate limit exceeded (429)", CreatedAt: time.Now()}}, nil
}

func (fakeStats) ListSessions(limit int) ([]db.Session, error) {
	return []db.Session{{ID: "sess-1", Surface: "proxy", StartedAt: time.Now(), Requests: 42}}, nil
}

func TestStatsOverlay(t *testing.T) {
	m, _ := newTestModel(t, Options{})
	m = typeAndSend(m, "/stats")
	assert.Equal(t, ViewChat, m.view)
	assert.Equal(t, "Stats unavailable: stats are disabled", lastEntry(m).Text)

	m, _ = newTestModel(t, Options{Stats: fakeStats{}})
	m = press(m, tea.KeyMsg{Type: tea.KeyF3})
	require.Equal(t, ViewStats, m.view)
	view := m.View()
	assert.Contains(t, view, "Model A")
	assert.Contains(t, view, "1.5s")
	assert.Contains(t, view, "rate limit exceeded (429)")
	assert.Contains(t, view, "Recent sessions")
	assert.Contains(t, view, "42 requests")
}

func TestExportCommand(t *testing.T) {
	dir := t.TempDir()
	m, _ := newTestModel(t, Options{ExportDir: dir, SessionID: "sess-1"})
	m = typeAndSend(m, "hi")
	m = typeAndSend(m, "/export Cache Chat")

	require.Equal(t, dispatch.EntryNotice, lastEntry(m).Kind)
	require.True(t, strings.HasPrefix(lastEntry(m).Text, "Transcript exported to "))

	path := strings.TrimPrefix(lastEntry(m).Text, "Transcript exported to ")
	assert.Equal(t, dir, filepath.Dir(path))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "# Cache Chat")
	assert.Contains(t, string(content), "> reply hi")
}

func TestClearCommand(t *testing.T) {
	m, _ := newTestModel(t, Options{})
	m = typeAndSend(m, "hi")
	m = typeAndSend(m, "/clear")
	assert.Empty(t, m.Session().Entries())
}

func TestCardNumber(t *testing.T) {
	tests := map[string]int{
		"alt+1":  1,
		"alt+9":  9,
		"alt+0":  0,
		"ctrl+1": 0,
		"1":      0,
	}
	for in, want := range tests {
		if got := cardNumber(in); got != want {
			t.Errorf("cardNumber(%q) = %d, expected %d", in, got, want)
		}
	}
}

func TestGridColumns(t *testing.T) {
	tests := []struct {
		cards, width, want int
	}{
		{6, 120, 3},
		{2, 120, 2},
		{1, 120, 1},
		{4, 20, 1},
	}
	for _, tt := range tests {
		if got := gridColumns(tt.cards, tt.width); got != tt.want {
			t.Errorf("gridColumns(%d, %d) = %d, expected %d", tt.cards, tt.width, got, tt.want)
		}
	}
}
