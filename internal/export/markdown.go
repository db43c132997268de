// internal/export/markdown.go
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"polychat/internal/dispatch"
)

// Transcript contains the data needed to export a chat
type Transcript struct {
	SessionID string
	Name      string
	CreatedAt time.Time
	Banner    string // focus banner at export time, empty when broadcasting
	Entries   []dispatch.Entry
}

// ExportTranscript renders the visible transcript as markdown
func ExportTranscript(t *Transcript) string {
	var sb strings.Builder

	// Title header
	sb.WriteString("# ")
	sb.WriteString(t.Name)
	sb.WriteString("\n\n")

	// Metadata section
	sb.WriteString("---\n\n")
	if t.SessionID != "" {
		sb.WriteString(fmt.Sprintf("**Session:** `%s`\n\n", t.SessionID))
	}
	sb.WriteString(fmt.Sprintf("**Created:** %s\n\n", t.CreatedAt.Format("2006-01-02 15:04:05")))
	if t.Banner != "" {
		sb.WriteString(fmt.Sprintf("**%s**\n\n", t.Banner))
	}
	if models := participants(t.Entries); len(models) > 0 {
		sb.WriteString("**Models:** ")
		sb.WriteString(strings.Join(models, ", "))
		sb.WriteString("\n\n")
	}
	sb.WriteString("---\n\n")

	sb.WriteString("## Transcript\n\n")

	for _, e := range t.Entries {
		switch e.Kind {
		case dispatch.EntryUser:
			sb.WriteString("### You\n\n")
			writeContent(&sb, e.Text)
		case dispatch.EntryNotice:
			sb.WriteString("*")
			sb.WriteString(e.Text)
			sb.WriteString("*\n\n")
		case dispatch.EntryAlert:
			sb.WriteString("**")
			sb.WriteString(e.Text)
			sb.WriteString("**\n\n")
		case dispatch.EntryRound:
			writeRound(&sb, e.Round)
		}
	}

	// Footer
	sb.WriteString("---\n\n")
	sb.WriteString(fmt.Sprintf("*Exported from polychat on %s*\n", time.Now().Format("2006-01-02 15:04:05")))

	return sb.String()
}

func writeRound(sb *strings.Builder, r dispatch.Round) {
	for _, c := range r.Cards {
		sb.WriteString("#### ")
		sb.WriteString(c.Model.Name)
		sb.WriteString("\n\n")

		switch c.Status {
		case dispatch.CardDone:
			writeContent(sb, c.Content)
		case dispatch.CardFailed:
			sb.WriteString(fmt.Sprintf("> Error: %s\n\n", c.Err))
		default:
			sb.WriteString("> *(no reply yet)*\n\n")
		}
	}
	sb.WriteString("---\n\n")
}

func writeContent(sb *strings.Builder, content string) {
	content = strings.TrimSpace(content)
	if containsCodeBlock(content) {
		// Content already has code blocks, render as-is
		sb.WriteString(content)
		sb.WriteString("\n")
	} else {
		for _, line := range strings.Split(content, "\n") {
			sb.WriteString("> ")
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\n")
}

// participants lists model names in order of first appearance
func participants(entries []dispatch.Entry) []string {
	seen := map[string]bool{}
	var names []string
	for _, e := range entries {
		if e.Kind != dispatch.EntryRound {
			continue
		}
		for _, c := range e.Round.Cards {
			if !seen[c.Model.ID] {
				seen[c.Model.ID] = true
				names = append(names, c.Model.Name)
			}
		}
	}
	return names
}

// WriteTranscript writes the transcript to dir as YYYY-MM-DD-name.md
func WriteTranscript(t *Transcript, dir string) (string, error) {
	datePart := t.CreatedAt.Format("2006-01-02")
	namePart := sanitizeFilename(t.Name)
	filename := fmt.Sprintf("%s-%s.md", datePart, namePart)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	path := filepath.Join(dir, filename)

	if err := os.WriteFile(path, []byte(ExportTranscript(t)), 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}

	return path, nil
}

// sanitizeFilename removes/replaces characters unsuitable for filenames
func sanitizeFilename(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, " ", "-")

	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
			sb.WriteRune(r)
		case r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == '-' || r == '_':
			sb.WriteRune(r)
		}
	}

	result := sb.String()

	for strings.Contains(result, "--") {
		result = strings.ReplaceAll(result, "--", "-")
	}
	result = strings.Trim(result, "-")

	if result == "" {
		result = "chat"
	}
	if len(result) > 50 {
		result = result[:50]
	}

	return result
}

// containsCodeBlock checks if content already has markdown code blocks
func containsCodeBlock(content string) bool {
	return strings.Contains(content, "```")
}
