// internal/ui/transcript.go
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"polychat/internal/dispatch"
)

// minCardWidth is the narrowest a card may get before the grid drops a column
const minCardWidth = 36

// markdownCache renders finished replies once per card and width
type markdownCache struct {
	renderers map[int]*glamour.TermRenderer
	rendered  map[string]string
}

func newMarkdownCache() *markdownCache {
	return &markdownCache{
		renderers: make(map[int]*glamour.TermRenderer),
		rendered:  make(map[string]string),
	}
}

// reset drops every cached rendering and renderer
func (c *markdownCache) reset() {
	c.renderers = make(map[int]*glamour.TermRenderer)
	c.rendered = make(map[string]string)
}

func (c *markdownCache) render(key dispatch.CardKey, content string, width int) string {
	cacheKey := fmt.Sprintf("%d/%s", width, key)
	if out, ok := c.rendered[cacheKey]; ok {
		return out
	}

	out := content
	if r := c.renderer(width); r != nil {
		if s, err := r.Render(content); err == nil {
			out = strings.Trim(s, "\n")
		}
	}
	c.rendered[cacheKey] = out
	return out
}

func (c *markdownCache) renderer(width int) *glamour.TermRenderer {
	if r, ok := c.renderers[width]; ok {
		return r
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		r = nil
	}
	c.renderers[width] = r
	return r
}

// TranscriptView wraps the rendered entries in a scrollable viewport
type TranscriptView struct {
	Viewport viewport.Model
	markdown *markdownCache
}

func NewTranscriptView(width, height int) *TranscriptView {
	vp := viewport.New(width, height)
	vp.Style = lipgloss.NewStyle()
	vp.MouseWheelEnabled = true

	return &TranscriptView{
		Viewport: vp,
		markdown: newMarkdownCache(),
	}
}

// SetSize resizes the viewport. A width change invalidates rendered replies.
func (v *TranscriptView) SetSize(width, height int) {
	if width != v.Viewport.Width {
		v.markdown.reset()
	}
	v.Viewport.Width = width
	v.Viewport.Height = height
}

// Update re-renders the transcript. It follows the bottom unless the user
// has scrolled up.
func (v *TranscriptView) Update(entries []dispatch.Entry, spin string, colorOf func(modelID string) int) {
	atBottom := v.Viewport.AtBottom()
	v.Viewport.SetContent(v.Render(entries, spin, colorOf))
	if atBottom {
		v.Viewport.GotoBottom()
	}
}

// Render draws every entry at the viewport width
func (v *TranscriptView) Render(entries []dispatch.Entry, spin string, colorOf func(modelID string) int) string {
	width := v.Viewport.Width
	if len(entries) == 0 {
		return DimStyle.Render("Ask something to compare answers from every selected model.")
	}

	var sb strings.Builder
	for _, e := range entries {
		switch e.Kind {
		case dispatch.EntryUser:
			sb.WriteString(UserStyle.Render("You:"))
			sb.WriteString("\n")
			for _, line := range strings.Split(e.Text, "\n") {
				sb.WriteString("  ")
				sb.WriteString(line)
				sb.WriteString("\n")
			}
		case dispatch.EntryNotice:
			sb.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, SystemStyle.Render(e.Text)))
			sb.WriteString("\n")
		case dispatch.EntryAlert:
			sb.WriteString(ErrorStyle.Render(e.Text))
			sb.WriteString("\n")
		case dispatch.EntryRound:
			sb.WriteString(v.renderRound(e.Round, width, spin, colorOf))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// renderRound lays the round's cards out in a grid
func (v *TranscriptView) renderRound(r dispatch.Round, width int, spin string, colorOf func(modelID string) int) string {
	cols := gridColumns(len(r.Cards), width)
	cardWidth := width/cols - 2 // border

	var rows []string
	for start := 0; start < len(r.Cards); start += cols {
		end := start + cols
		if end > len(r.Cards) {
			end = len(r.Cards)
		}
		boxes := make([]string, 0, end-start)
		for i := start; i < end; i++ {
			boxes = append(boxes, v.renderCard(r, i, cardWidth, spin, colorOf))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	}

	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (v *TranscriptView) renderCard(r dispatch.Round, i, width int, spin string, colorOf func(modelID string) int) string {
	c := r.Cards[i]
	color := colorOf(c.Model.ID)
	n := i + 1

	title := c.Model.Name
	if !r.Focused {
		title = fmt.Sprintf("[%d] %s", n, c.Model.Name)
	}

	var body string
	switch c.Status {
	case dispatch.CardLoading:
		body = spin + " " + DimStyle.Render("Waiting for response...")
	case dispatch.CardDone:
		body = v.markdown.render(c.Key, c.Content, width-2)
	case dispatch.CardFailed:
		body = ErrorStyle.Render("Error: " + c.Err)
	}

	parts := []string{CardTitleStyle(color).Render(title), body}
	if r.Continuable(c) && n <= 9 {
		parts = append(parts, DimStyle.Render(fmt.Sprintf("Alt+%d  continue with this", n)))
	}

	return CardStyle(color, width).Render(strings.Join(parts, "\n"))
}

// gridColumns picks how many cards fit side by side
func gridColumns(cards, width int) int {
	cols := width / (minCardWidth + 2)
	if cols > cards {
		cols = cards
	}
	if cols < 1 {
		cols = 1
	}
	return cols
}
