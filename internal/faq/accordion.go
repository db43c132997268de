// Package faq implements the question/answer accordion shown in the FAQ overlay.
package faq

import "strings"

// Item is one question with its answer panel
type Item struct {
	Question string
	Answer   string
}

// Accordion keeps at most one answer panel open
type Accordion struct {
	items []Item
	open  int // -1 when every panel is closed
}

func New(items []Item) *Accordion {
	return &Accordion{items: items, open: -1}
}

// Toggle closes every panel, then reopens i unless it was the open one.
// Out of range indexes are ignored.
func (a *Accordion) Toggle(i int) {
	if i < 0 || i >= len(a.items) {
		return
	}
	wasOpen := a.open == i
	a.open = -1
	if !wasOpen {
		a.open = i
	}
}

// IsOpen reports whether panel i is expanded
func (a *Accordion) IsOpen(i int) bool {
	return i >= 0 && i == a.open
}

// Open returns the index of the open panel, or -1
func (a *Accordion) Open() int {
	return a.open
}

// Height returns the panel height in lines: zero when collapsed, the
// answer's natural line count when expanded.
func (a *Accordion) Height(i int) int {
	if !a.IsOpen(i) {
		return 0
	}
	return strings.Count(a.items[i].Answer, "\n") + 1
}

func (a *Accordion) Items() []Item {
	out := make([]Item, len(a.items))
	copy(out, a.items)
	return out
}

func (a *Accordion) Len() int {
	return len(a.items)
}
