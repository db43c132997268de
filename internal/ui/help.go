// internal/ui/help.go
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"polychat/internal/faq"
)

// Help and FAQ overlay content and rendering

var (
	// Help section title style
	helpTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Cyan).
			MarginBottom(1)

	// Help section header style
	helpSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(Yellow).
				MarginTop(1)

	// Help key style (for keybindings)
	helpKeyStyle = lipgloss.NewStyle().
			Foreground(Green).
			Bold(true)

	// Help command style (for slash commands)
	helpCmdStyle = lipgloss.NewStyle().
			Foreground(Magenta)

	// Help description style
	helpDescStyle = lipgloss.NewStyle().
			Foreground(White)

	// Help dim style (for secondary info)
	helpDimStyle = lipgloss.NewStyle().
			Foreground(Dim)

	faqQuestionStyle = lipgloss.NewStyle().
				Foreground(White).
				Bold(true)

	faqCursorStyle = lipgloss.NewStyle().
			Foreground(Cyan).
			Bold(true)
)

// HelpContent returns the formatted help overlay content
func HelpContent(keys KeyMap, width, height int) string {
	var content strings.Builder

	content.WriteString(helpTitleStyle.Render("POLYCHAT HELP"))
	content.WriteString("\n\n")

	// Keybindings section
	content.WriteString(helpSectionStyle.Render("KEYBINDINGS"))
	content.WriteString("\n\n")

	for _, kb := range keys.Bindings() {
		h := kb.Help()
		key := helpKeyStyle.Width(14).Render(h.Key)
		desc := helpDescStyle.Render(h.Desc)
		content.WriteString("  " + key + "  " + desc + "\n")
	}

	// Slash commands section
	content.WriteString("\n")
	content.WriteString(helpSectionStyle.Render("SLASH COMMANDS"))
	content.WriteString("\n\n")

	commands := []struct {
		cmd  string
		desc string
	}{
		{"/help", "Show this help overlay"},
		{"/faq", "Show frequently asked questions"},
		{"/models", "Show or hide the model selector"},
		{"/toggle <n|id>", "Select or deselect a model"},
		{"/focus <n>", "Continue with card n of the latest round"},
		{"/exit", "Leave focus mode"},
		{"/export [name]", "Export the transcript to markdown"},
		{"/stats", "Show per-model request statistics"},
		{"/clear", "Clear the transcript"},
		{"/quit", "Quit polychat"},
	}

	for _, cmd := range commands {
		cmdStr := helpCmdStyle.Width(18).Render(cmd.cmd)
		desc := helpDescStyle.Render(cmd.desc)
		content.WriteString("  " + cmdStr + "  " + desc + "\n")
	}

	// Modes section
	content.WriteString("\n")
	content.WriteString(helpSectionStyle.Render("MODES"))
	content.WriteString("\n\n")

	modes := []string{
		"Broadcast: every prompt goes, alone, to each selected model.",
		"Focus: continue one card and the chat keeps that model's history.",
		"",
		"Leaving focus forgets the focused history.",
	}

	for _, line := range modes {
		if line == "" {
			content.WriteString("\n")
		} else {
			content.WriteString("  " + helpDimStyle.Render(line) + "\n")
		}
	}

	content.WriteString("\n")
	footer := helpDimStyle.Render("Press F1 or Esc to close this help")
	content.WriteString(lipgloss.PlaceHorizontal(width-8, lipgloss.Center, footer))

	return overlay(content.String(), width, height)
}

// FAQState is the FAQ overlay: an accordion plus a cursor
type FAQState struct {
	accordion *faq.Accordion
	cursor    int
}

func NewFAQState(items []faq.Item) *FAQState {
	return &FAQState{accordion: faq.New(items)}
}

// Up moves the cursor up
func (f *FAQState) Up() {
	if f.cursor > 0 {
		f.cursor--
	}
}

// Down moves the cursor down
func (f *FAQState) Down() {
	if f.cursor < f.accordion.Len()-1 {
		f.cursor++
	}
}

// Toggle opens or closes the question under the cursor
func (f *FAQState) Toggle() {
	f.accordion.Toggle(f.cursor)
}

// Render renders the FAQ overlay
func (f *FAQState) Render(width, height int) string {
	var content strings.Builder

	content.WriteString(helpTitleStyle.Render("FREQUENTLY ASKED QUESTIONS"))
	content.WriteString("\n\n")

	for i, item := range f.accordion.Items() {
		marker := "▸"
		if f.accordion.IsOpen(i) {
			marker = "▾"
		}
		cursor := "  "
		if i == f.cursor {
			cursor = faqCursorStyle.Render("> ")
		}
		content.WriteString(cursor + marker + " " + faqQuestionStyle.Render(item.Question) + "\n")

		// a closed panel has zero height
		lines := strings.Split(item.Answer, "\n")
		for _, line := range lines[:f.accordion.Height(i)] {
			content.WriteString("      " + helpDescStyle.Render(line) + "\n")
		}
	}

	content.WriteString("\n")
	content.WriteString(helpDimStyle.Render("Up/Down: Navigate | Enter/Space: Expand | Esc: Close"))

	return overlay(content.String(), width, height)
}

// overlay centers content in a bordered box
func overlay(content string, width, height int) string {
	overlayStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Cyan).
		Padding(1, 3).
		MaxWidth(width - 10).
		MaxHeight(height - 4)

	return lipgloss.Place(
		width,
		height,
		lipgloss.Center,
		lipgloss.Center,
		overlayStyle.Render(content),
	)
}
