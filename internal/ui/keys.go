package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the global key bindings
type KeyMap struct {
	Send      key.Binding
	Newline   key.Binding
	Continue  key.Binding
	ExitFocus key.Binding
	Help      key.Binding
	FAQ       key.Binding
	Stats     key.Binding
	PageUp    key.Binding
	PageDown  key.Binding
	Close     key.Binding
	Quit      key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "send to all selected models"),
		),
		Newline: key.NewBinding(
			key.WithKeys("alt+enter", "ctrl+j"),
			key.WithHelp("Alt+Enter", "insert newline"),
		),
		Continue: key.NewBinding(
			key.WithKeys("alt+1", "alt+2", "alt+3", "alt+4", "alt+5", "alt+6", "alt+7", "alt+8", "alt+9"),
			key.WithHelp("Alt+1-9", "continue with response card n"),
		),
		ExitFocus: key.NewBinding(
			key.WithKeys("ctrl+e", "esc"),
			key.WithHelp("Esc/Ctrl+E", "exit focus mode"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("F1", "toggle help"),
		),
		FAQ: key.NewBinding(
			key.WithKeys("f2"),
			key.WithHelp("F2", "toggle FAQ"),
		),
		Stats: key.NewBinding(
			key.WithKeys("f3"),
			key.WithHelp("F3", "toggle request stats"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "scroll transcript up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "scroll transcript down"),
		),
		Close: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "close overlay"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("Ctrl+C", "quit"),
		),
	}
}

// Bindings lists the bindings shown in the help overlay
func (k KeyMap) Bindings() []key.Binding {
	return []key.Binding{
		k.Send, k.Newline, k.Continue, k.ExitFocus,
		k.Help, k.FAQ, k.Stats, k.PageUp, k.PageDown, k.Quit,
	}
}

// cardNumber extracts n from an alt+n key
func cardNumber(msg string) int {
	if len(msg) == 5 && msg[:4] == "alt+" && msg[4] >= '1' && msg[4] <= '9' {
		return int(msg[4] - '0')
	}
	return 0
}
