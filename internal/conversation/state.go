// Package conversation holds the broadcast/focused conversation state.
//
// State is an immutable snapshot. Every transition returns a new State and
// leaves the receiver untouched, so callers can keep old snapshots around
// and compare them.
package conversation

import (
	"errors"
	"strings"

	"polychat/internal/models"
)

// Turn is one message in a focused conversation
type Turn = models.Message

var (
	ErrNotFocused     = errors.New("conversation is not focused")
	ErrRequestPending = errors.New("a focused request is still in flight")
	ErrEmptySeed      = errors.New("focus needs a model and a seed prompt")
)

// State is the conversation snapshot.
//
// Unfocused: no model, empty history, not pending.
// Focused: model set, history starts with the two seed turns.
type State struct {
	focused bool
	model   models.Model
	history []Turn
	pending bool
}

// Empty returns the unfocused state the app starts in
func Empty() State {
	return State{}
}

// EnterFocus replaces the state wholesale with a conversation pinned to m,
// seeded with the prompt and the reply that triggered the transition.
func EnterFocus(m models.Model, seedPrompt, seedReply string) (State, error) {
	if m.ID == "" || strings.TrimSpace(seedPrompt) == "" {
		return State{}, ErrEmptySeed
	}
	return State{
		focused: true,
		model:   m,
		history: []Turn{
			models.UserMessage(seedPrompt),
			models.AssistantMessage(seedReply),
		},
	}, nil
}

// ExitFocus resets to the empty form regardless of the current state
func (s State) ExitFocus() State {
	return Empty()
}

func (s State) Focused() bool {
	return s.focused
}

// Model returns the focused model, if any
func (s State) Model() (models.Model, bool) {
	return s.model, s.focused
}

// Pending reports whether a focused request is outstanding
func (s State) Pending() bool {
	return s.pending
}

// History returns a copy of the turn sequence
func (s State) History() []Turn {
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Len returns the number of turns in history
func (s State) Len() int {
	return len(s.history)
}

// Begin appends the user's prompt and marks a request in flight.
// It returns the new state and the full message list to send: prior
// history plus the new prompt.
func (s State) Begin(prompt string) (State, []Turn, error) {
	if !s.focused {
		return s, nil, ErrNotFocused
	}
	if s.pending {
		return s, nil, ErrRequestPending
	}
	next := s.with(models.UserMessage(prompt))
	next.pending = true
	return next, next.History(), nil
}

// Complete records the assistant reply for the in-flight request
func (s State) Complete(reply string) State {
	if !s.focused || !s.pending {
		return s
	}
	next := s.with(models.AssistantMessage(reply))
	next.pending = false
	return next
}

// Fail clears the in-flight marker without touching history beyond the
// dangling user turn. With dropUserTurn set, that user turn is removed so
// the next request does not carry two user turns in a row.
func (s State) Fail(dropUserTurn bool) State {
	if !s.focused || !s.pending {
		return s
	}
	next := s
	next.pending = false
	if dropUserTurn && len(s.history) > 0 && s.history[len(s.history)-1].Role == models.RoleUser {
		next.history = make([]Turn, len(s.history)-1)
		copy(next.history, s.history)
	}
	return next
}

// with returns a copy of s with t appended. The backing array is never shared.
func (s State) with(t Turn) State {
	next := s
	next.history = make([]Turn, len(s.history), len(s.history)+1)
	copy(next.history, s.history)
	next.history = append(next.history, t)
	return next
}
