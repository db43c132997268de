// internal/ui/stats.go
package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"polychat/internal/db"
)

// StatsSource is the subset of the stats store the overlay reads
type StatsSource interface {
	ModelStats() ([]db.ModelStats, error)
	RecentFailures(limit int) ([]db.Dispatch, error)
	ListSessions(limit int) ([]db.Session, error)
}

var errStatsDisabled = errors.New("stats are disabled")

// StatsState holds the state for the stats overlay
type StatsState struct {
	rows      []db.ModelStats
	failures  []db.Dispatch
	sessions  []db.Session
	names     map[string]string
	cursor    int
	scrollTop int
	maxHeight int
}

// NewStatsState creates a stats overlay. names maps model ids to display names.
func NewStatsState(names map[string]string) *StatsState {
	return &StatsState{
		names:     names,
		maxHeight: 20, // default, will be updated based on terminal size
	}
}

// Up moves the cursor up
func (s *StatsState) Up() {
	if s.cursor > 0 {
		s.cursor--
		if s.cursor < s.scrollTop {
			s.scrollTop = s.cursor
		}
	}
}

// Down moves the cursor down
func (s *StatsState) Down() {
	if s.cursor < len(s.rows)-1 {
		s.cursor++
		if s.cursor >= s.scrollTop+s.maxHeight {
			s.scrollTop = s.cursor - s.maxHeight + 1
		}
	}
}

// Load reads aggregates and the latest failures from the store
func (s *StatsState) Load(src StatsSource) error {
	if src == nil {
		return errStatsDisabled
	}
	rows, err := src.ModelStats()
	if err != nil {
		return fmt.Errorf("load model stats: %w", err)
	}
	failures, err := src.RecentFailures(5)
	if err != nil {
		return fmt.Errorf("load recent failures: %w", err)
	}
	sessions, err := src.ListSessions(3)
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}
	s.rows = rows
	s.failures = failures
	s.sessions = sessions
	s.cursor = 0
	s.scrollTop = 0
	return nil
}

// SetMaxHeight updates the max visible height
func (s *StatsState) SetMaxHeight(height int) {
	s.maxHeight = height - 23 // Leave room for header, failures, sessions and footer
	if s.maxHeight < 3 {
		s.maxHeight = 3
	}
}

func (s *StatsState) name(modelID string) string {
	if n, ok := s.names[modelID]; ok {
		return n
	}
	return modelID
}

// Render renders the stats overlay
func (s *StatsState) Render(width, height int) string {
	var content strings.Builder

	content.WriteString(TitleStyle.Render("REQUEST STATS"))
	content.WriteString("\n")
	content.WriteString(DimStyle.Render("Outcomes of every request sent from this machine"))
	content.WriteString("\n\n")

	if len(s.rows) == 0 {
		content.WriteString(DimStyle.Render("No requests recorded yet."))
	} else {
		visibleEnd := s.scrollTop + s.maxHeight
		if visibleEnd > len(s.rows) {
			visibleEnd = len(s.rows)
		}

		header := fmt.Sprintf("  %-24s  %8s  %8s  %10s", "Model", "Requests", "Failures", "Avg")
		content.WriteString(DimStyle.Render(header))
		content.WriteString("\n")
		content.WriteString(DimStyle.Render(strings.Repeat("-", 58)))
		content.WriteString("\n")

		for i := s.scrollTop; i < visibleEnd; i++ {
			r := s.rows[i]

			name := s.name(r.ModelID)
			if len(name) > 22 {
				name = name[:22] + ".."
			}

			failStyle := StatusOK
			if r.Failures > 0 {
				failStyle = StatusCrit
			}

			cursor := "  "
			lineStyle := DimStyle
			if i == s.cursor {
				cursor = "> "
				lineStyle = lipgloss.NewStyle().Foreground(Cyan)
			}

			line := fmt.Sprintf("%-24s  %8d  ", name, r.Requests)
			content.WriteString(cursor)
			content.WriteString(lineStyle.Render(line))
			content.WriteString(failStyle.Width(8).Align(lipgloss.Right).Render(fmt.Sprint(r.Failures)))
			content.WriteString(lineStyle.Render(fmt.Sprintf("  %10s", formatLatency(r.AvgLatency))))
			content.WriteString("\n")
		}

		if len(s.rows) > s.maxHeight {
			content.WriteString("\n")
			content.WriteString(DimStyle.Render(fmt.Sprintf("Showing %d-%d of %d",
				s.scrollTop+1, visibleEnd, len(s.rows))))
		}
	}

	if len(s.failures) > 0 {
		content.WriteString("\n\n")
		content.WriteString(SystemStyle.Render("Recent failures"))
		content.WriteString("\n")
		for _, f := range s.failures {
			msg := f.Error
			if len(msg) > 50 {
				msg = msg[:50] + ".."
			}
			ts := f.CreatedAt.Format("2006-01-02 15:04")
			if time.Since(f.CreatedAt) < 24*time.Hour {
				ts = f.CreatedAt.Format("Today 15:04")
			}
			content.WriteString(fmt.Sprintf("  %s  %s  %s\n",
				DimStyle.Render(ts), s.name(f.ModelID), ErrorStyle.Render(msg)))
		}
	}

	if len(s.sessions) > 0 {
		content.WriteString("\n\n")
		content.WriteString(SystemStyle.Render("Recent sessions"))
		content.WriteString("\n")
		for _, ss := range s.sessions {
			content.WriteString(fmt.Sprintf("  %s  %-5s  %s\n",
				DimStyle.Render(ss.StartedAt.Format("2006-01-02 15:04")),
				ss.Surface,
				fmt.Sprintf("%d requests", ss.Requests)))
		}
	}

	content.WriteString("\n\n")
	content.WriteString(DimStyle.Render("Up/Down: Navigate | Esc: Close"))

	return overlay(content.String(), width, height)
}

// formatLatency formats duration in a human-readable way
func formatLatency(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", mins, secs)
}
