// Package commands handles slash command parsing for the polychat TUI.
package commands

import (
	"strconv"
	"strings"
)

// Command interface for all command types
type Command interface {
	Type() string
}

// Help returns help text
type Help struct{}

func (Help) Type() string { return "help" }

// ShowFAQ opens the FAQ overlay
type ShowFAQ struct{}

func (ShowFAQ) Type() string { return "faq" }

// ToggleModels toggles model selection panel
type ToggleModels struct{}

func (ToggleModels) Type() string { return "models" }

// ToggleModel flips one model's checkbox. Ref is a 1-based position or a model id.
type ToggleModel struct {
	Ref string
}

func (ToggleModel) Type() string { return "toggle" }

// Focus continues with card N (1-based) of the latest broadcast
type Focus struct {
	Card int
}

func (Focus) Type() string { return "focus" }

// ExitFocus returns to broadcasting to all selected models
type ExitFocus struct{}

func (ExitFocus) Type() string { return "exit" }

// Export writes the transcript to a markdown file
type Export struct {
	Name string
}

func (Export) Type() string { return "export" }

// ShowStats shows per-model dispatch statistics
type ShowStats struct{}

func (ShowStats) Type() string { return "stats" }

// Clear empties the transcript
type Clear struct{}

func (Clear) Type() string { return "clear" }

// Quit leaves the program
type Quit struct{}

func (Quit) Type() string { return "quit" }

// ParseError represents a command parsing error
type ParseError struct {
	Message string
}

func (ParseError) Type() string { return "error" }

// Parse parses user input and returns the appropriate Command.
// Returns nil if the input is not a slash command.
func Parse(input string) Command {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return nil
	}

	// Split into command and arguments
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "/help":
		return Help{}

	case "/faq":
		return ShowFAQ{}

	case "/models":
		return ToggleModels{}

	case "/toggle":
		if len(args) != 1 {
			return ParseError{Message: "/toggle requires a model number or id"}
		}
		return ToggleModel{Ref: args[0]}

	case "/focus":
		if len(args) != 1 {
			return ParseError{Message: "/focus requires a card number"}
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return ParseError{Message: "/focus: invalid card number: " + args[0]}
		}
		return Focus{Card: n}

	case "/exit":
		return ExitFocus{}

	case "/export":
		return Export{Name: strings.Join(args, " ")}

	case "/stats":
		return ShowStats{}

	case "/clear":
		return Clear{}

	case "/quit":
		return Quit{}

	default:
		return ParseError{Message: "unknown command: " + cmd}
	}
}

// HelpText returns the help text for all available commands.
func HelpText() string {
	return `Available commands:
  /help                  - Show this help
  /faq                   - Show frequently asked questions
  /models                - Toggle model selection panel
  /toggle <n|id>         - Select or deselect a model
  /focus <n>             - Continue with card n of the latest round
  /exit                  - Leave focus mode
  /export [name]         - Export the transcript to markdown
  /stats                 - Show per-model request statistics
  /clear                 - Clear the transcript
  /quit                  - Quit polychat`
}
