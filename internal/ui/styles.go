// internal/ui/styles.go
package ui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	Cyan     = lipgloss.Color("#00FFFF")
	Green    = lipgloss.Color("#00FF00")
	Yellow   = lipgloss.Color("#FFD700")
	Orange   = lipgloss.Color("#FFA500")
	Red      = lipgloss.Color("#FF6B6B")
	Magenta  = lipgloss.Color("#FF00FF")
	SkyBlue  = lipgloss.Color("#87CEEB")
	Dim      = lipgloss.Color("#555555")
	White    = lipgloss.Color("#FFFFFF")
	DarkGray = lipgloss.Color("#333333")

	// cards cycle through these by catalog position
	cardPalette = []lipgloss.Color{Cyan, Green, Magenta, Orange, SkyBlue, Yellow}

	// Box styles
	ActiveBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Cyan)

	InactiveBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Dim)

	// Text styles
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Cyan)

	UserStyle = lipgloss.NewStyle().
			Foreground(SkyBlue).
			Bold(true)

	SystemStyle = lipgloss.NewStyle().
			Foreground(Yellow)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Red).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(Dim)

	BannerStyle = lipgloss.NewStyle().
			Foreground(DarkGray).
			Background(Yellow).
			Bold(true).
			Padding(0, 1)

	// Status indicators
	StatusOK   = lipgloss.NewStyle().Foreground(Green).Bold(true)
	StatusWarn = lipgloss.NewStyle().Foreground(Orange).Bold(true)
	StatusCrit = lipgloss.NewStyle().Foreground(Red).Bold(true)

	// Selector checkboxes
	CheckedStyle = lipgloss.NewStyle().
			Foreground(Cyan).
			Bold(true)

	UncheckedStyle = lipgloss.NewStyle().
			Foreground(Dim)
)

// CardColor returns the accent color for the model at catalog position i
func CardColor(i int) lipgloss.Color {
	if i < 0 {
		return White
	}
	return cardPalette[i%len(cardPalette)]
}

// CardStyle returns the bordered box for a response card
func CardStyle(i, width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(CardColor(i)).
		Padding(0, 1).
		Width(width)
}

// CardTitleStyle returns the header style for a response card
func CardTitleStyle(i int) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(CardColor(i)).Bold(true)
}
