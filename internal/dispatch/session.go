// Package dispatch is the chat dispatcher: the transcript view model, the
// broadcast and focused transitions, and the runner that sends requests.
//
// Session is a value. Submit, Resolve, ContinueWith, EnterFocus and
// ExitFocus each return a new Session; network work is described by the
// Requests they return and is carried out by the caller.
package dispatch

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"polychat/internal/conversation"
	"polychat/internal/models"
)

var (
	ErrEmptyPrompt      = errors.New("empty prompt")
	ErrNoModelsSelected = errors.New("please select at least one AI model")
	ErrRequestPending   = conversation.ErrRequestPending
	ErrUnknownCard      = errors.New("no such response card")
	ErrCardNotReady     = errors.New("response card has no reply to continue with")
	ErrUnknownModel     = errors.New("unknown model")
)

// CardStatus is the lifecycle of a single model's response
type CardStatus int

const (
	CardLoading CardStatus = iota
	CardDone
	CardFailed
)

func (s CardStatus) String() string {
	switch s {
	case CardLoading:
		return "loading"
	case CardDone:
		return "done"
	case CardFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CardKey addresses a card by model and the round it belongs to, so
// concurrent completions never land on the wrong card.
type CardKey struct {
	ModelID string
	RoundID string
}

func (k CardKey) String() string {
	return "card-" + strings.ReplaceAll(k.ModelID, "/", "-") + "-" + k.RoundID
}

// Card is one model's in-flight or completed response
type Card struct {
	Key     CardKey
	Model   models.Model
	Status  CardStatus
	Content string // assistant text when Status is CardDone
	Err     string // error text when Status is CardFailed
}

// Round groups the cards produced by one submission
type Round struct {
	ID      string
	Prompt  string
	Focused bool // single-card focused round; no continue affordance
	Cards   []Card
}

// Continuable reports whether a card can seed focus mode
func (r Round) Continuable(c Card) bool {
	return !r.Focused && c.Status == CardDone
}

type EntryKind int

const (
	EntryUser EntryKind = iota
	EntryRound
	EntryNotice
	EntryAlert
)

// Entry is one item in the transcript
type Entry struct {
	Kind  EntryKind
	Text  string // user text, notice or alert
	Round Round  // set when Kind is EntryRound
}

// Request is a single call the caller must make
type Request struct {
	Key      CardKey
	Model    models.Model
	Messages []models.Message
	Focused  bool
}

// Result settles one Request
type Result struct {
	Key     CardKey
	Content string
	Err     error
	Latency time.Duration
}

// Options tune session behavior
type Options struct {
	// DropFailedTurns removes the user turn of a failed focused round from
	// history instead of leaving it unanswered.
	DropFailedTurns bool
}

// Session is the full dispatcher state: conversation, selector and transcript
type Session struct {
	state        conversation.State
	selection    Selection
	entries      []Entry
	pendingRound string
	lastRoundID  string
	opts         Options
}

func NewSession(catalog *models.Catalog, opts Options) Session {
	return Session{
		state:     conversation.Empty(),
		selection: NewSelection(catalog),
		opts:      opts,
	}
}

func (s Session) State() conversation.State {
	return s.state
}

func (s Session) Selection() Selection {
	return s.selection
}

// SelectorVisible is false while the conversation is focused
func (s Session) SelectorVisible() bool {
	return !s.state.Focused()
}

// Banner returns the focus banner text, or "" when unfocused
func (s Session) Banner() string {
	m, ok := s.state.Model()
	if !ok {
		return ""
	}
	return "Chatting with: " + m.Name
}

// Entries returns a copy of the transcript
func (s Session) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Card looks up a card by key
func (s Session) Card(key CardKey) (Card, bool) {
	if i, j := s.findCard(key); i >= 0 {
		return s.entries[i].Round.Cards[j], true
	}
	return Card{}, false
}

// Round looks up a round by ID
func (s Session) Round(id string) (Round, bool) {
	for _, e := range s.entries {
		if e.Kind == EntryRound && e.Round.ID == id {
			return e.Round, true
		}
	}
	return Round{}, false
}

// LatestRound returns the most recent round, if any
func (s Session) LatestRound() (Round, bool) {
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].Kind == EntryRound {
			return s.entries[i].Round, true
		}
	}
	return Round{}, false
}

// LatestBroadcast returns the most recent multi-model round, if any
func (s Session) LatestBroadcast() (Round, bool) {
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].Kind == EntryRound && !s.entries[i].Round.Focused {
			return s.entries[i].Round, true
		}
	}
	return Round{}, false
}

// Submit handles a prompt from the input box. The returned Session is
// always the one to continue with; err reports why nothing was sent.
func (s Session) Submit(text string, now time.Time) (Session, []Request, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return s, nil, ErrEmptyPrompt
	}
	if s.state.Focused() {
		return s.continueFocused(text, now)
	}
	return s.broadcast(text, now)
}

// broadcast sends the prompt, alone, to every checked model
func (s Session) broadcast(text string, now time.Time) (Session, []Request, error) {
	next := s.append(Entry{Kind: EntryUser, Text: text})

	selected := s.selection.Selected()
	if len(selected) == 0 {
		next = next.append(Entry{Kind: EntryAlert, Text: "Please select at least one AI model."})
		return next, nil, ErrNoModelsSelected
	}

	roundID := next.nextRoundID(now)
	round := Round{ID: roundID, Prompt: text, Cards: make([]Card, len(selected))}
	reqs := make([]Request, len(selected))
	for i, m := range selected {
		key := CardKey{ModelID: m.ID, RoundID: roundID}
		round.Cards[i] = Card{Key: key, Model: m, Status: CardLoading}
		reqs[i] = Request{
			Key:      key,
			Model:    m,
			Messages: []models.Message{models.UserMessage(text)},
		}
	}

	next = next.append(Entry{Kind: EntryRound, Round: round})
	return next, reqs, nil
}

// continueFocused sends history plus the new prompt to the focused model
func (s Session) continueFocused(text string, now time.Time) (Session, []Request, error) {
	state, messages, err := s.state.Begin(text)
	if err != nil {
		return s, nil, err
	}
	m, _ := state.Model()

	next := s.append(Entry{Kind: EntryUser, Text: text})
	next.state = state

	roundID := next.nextRoundID(now)
	key := CardKey{ModelID: m.ID, RoundID: roundID}
	next = next.append(Entry{Kind: EntryRound, Round: Round{
		ID:      roundID,
		Prompt:  text,
		Focused: true,
		Cards:   []Card{{Key: key, Model: m, Status: CardLoading}},
	}})
	next.pendingRound = roundID

	return next, []Request{{Key: key, Model: m, Messages: messages, Focused: true}}, nil
}

// Resolve applies a settled request. Only the addressed card changes; a
// successful reply to the pending focused round is appended to history.
func (s Session) Resolve(res Result) Session {
	next := s

	if s.pendingRound != "" && res.Key.RoundID == s.pendingRound && s.state.Pending() {
		if res.Err != nil {
			next.state = s.state.Fail(s.opts.DropFailedTurns)
		} else {
			next.state = s.state.Complete(res.Content)
		}
		next.pendingRound = ""
	}

	i, j := s.findCard(res.Key)
	if i < 0 {
		return next
	}

	next.entries = s.Entries()
	round := next.entries[i].Round
	cards := make([]Card, len(round.Cards))
	copy(cards, round.Cards)

	card := cards[j]
	if res.Err != nil {
		card.Status = CardFailed
		card.Err = models.ErrorMessage(res.Err)
		card.Content = ""
	} else {
		card.Status = CardDone
		card.Content = res.Content
		card.Err = ""
	}
	cards[j] = card
	round.Cards = cards
	next.entries[i].Round = round

	return next
}

// ContinueWith enters focus mode seeded from a resolved broadcast card
func (s Session) ContinueWith(key CardKey) (Session, error) {
	i, j := s.findCard(key)
	if i < 0 {
		return s, ErrUnknownCard
	}
	round := s.entries[i].Round
	card := round.Cards[j]
	if !round.Continuable(card) {
		return s, ErrCardNotReady
	}
	return s.EnterFocus(card.Model, round.Prompt, card.Content)
}

// EnterFocus replaces the conversation with one pinned to m
func (s Session) EnterFocus(m models.Model, seedPrompt, seedReply string) (Session, error) {
	state, err := conversation.EnterFocus(m, seedPrompt, seedReply)
	if err != nil {
		return s, err
	}
	next := s.append(Entry{
		Kind: EntryNotice,
		Text: fmt.Sprintf("--- Conversation now focused on %s ---", m.Name),
	})
	next.state = state
	next.pendingRound = ""
	return next, nil
}

// ExitFocus resets the conversation to the empty broadcast form
func (s Session) ExitFocus() Session {
	next := s.append(Entry{
		Kind: EntryNotice,
		Text: "--- Focus mode ended. Now chatting with all selected models. ---",
	})
	next.state = s.state.ExitFocus()
	next.pendingRound = ""
	return next
}

// ToggleModel flips a model's checkbox in the selector
func (s Session) ToggleModel(modelID string) (Session, error) {
	sel, ok := s.selection.Toggle(modelID)
	if !ok {
		return s, ErrUnknownModel
	}
	next := s
	next.selection = sel
	return next, nil
}

// WithSelection replaces the selector wholesale
func (s Session) WithSelection(sel Selection) Session {
	next := s
	next.selection = sel
	return next
}

// Notice appends an informational line to the transcript
func (s Session) Notice(text string) Session {
	return s.append(Entry{Kind: EntryNotice, Text: text})
}

// Alert appends an error line to the transcript
func (s Session) Alert(text string) Session {
	return s.append(Entry{Kind: EntryAlert, Text: text})
}

// Clear empties the transcript. Conversation state is kept.
func (s Session) Clear() Session {
	next := s
	next.entries = nil
	return next
}

func (s Session) append(e Entry) Session {
	next := s
	next.entries = make([]Entry, len(s.entries), len(s.entries)+1)
	copy(next.entries, s.entries)
	next.entries = append(next.entries, e)
	return next
}

// nextRoundID returns a timestamp-based container id, unique within the session
func (s *Session) nextRoundID(now time.Time) string {
	id := fmt.Sprintf("response-%d", now.UnixNano())
	if id == s.lastRoundID || strings.HasPrefix(s.lastRoundID, id+"-") {
		id = fmt.Sprintf("%s-%d", id, len(s.entries))
	}
	s.lastRoundID = id
	return id
}

func (s Session) findCard(key CardKey) (int, int) {
	for i, e := range s.entries {
		if e.Kind != EntryRound || e.Round.ID != key.RoundID {
			continue
		}
		for j, c := range e.Round.Cards {
			if c.Key == key {
				return i, j
			}
		}
	}
	return -1, -1
}
