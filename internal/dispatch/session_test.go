package dispatch

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polychat/internal/models"
)

var (
	modelA = models.Model{ID: "vendor/a", Name: "Model A"}
	modelB = models.Model{ID: "vendor/b", Name: "Model B"}
	t0     = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
)

func newTestSession(opts Options) Session {
	return NewSession(models.CatalogOf(modelA, modelB), opts)
}

func countKind(entries []Entry, kind EntryKind) int {
	n := 0
	for _, e := range entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func TestSubmitEmptyIsNoop(t *testing.T) {
	s := newTestSession(Options{})

	next, reqs, err := s.Submit("   \n\t", t0)
	assert.ErrorIs(t, err, ErrEmptyPrompt)
	assert.Nil(t, reqs)
	assert.Empty(t, next.Entries())
}

func TestBroadcastCreatesOneCardPerSelectedModel(t *testing.T) {
	s := newTestSession(Options{})

	next, reqs, err := s.Submit("hi", t0)
	require.NoError(t, err)
	require.Len(t, reqs, 2)

	round, ok := next.LatestRound()
	require.True(t, ok)
	assert.Equal(t, "hi", round.Prompt)
	assert.False(t, round.Focused)
	require.Len(t, round.Cards, 2)

	seen := map[CardKey]bool{}
	for i, c := range round.Cards {
		assert.Equal(t, CardLoading, c.Status)
		assert.Equal(t, round.ID, c.Key.RoundID)
		assert.False(t, seen[c.Key], "card keys must be unique")
		seen[c.Key] = true

		assert.Equal(t, c.Key, reqs[i].Key)
		assert.Equal(t, []models.Message{models.UserMessage("hi")}, reqs[i].Messages)
		assert.False(t, reqs[i].Focused)
	}

	// broadcast never touches history
	assert.Equal(t, 0, next.State().Len())
	assert.Equal(t, 1, countKind(next.Entries(), EntryUser))
}

func TestBroadcastOnlyToCheckedModels(t *testing.T) {
	s := newTestSession(Options{})
	s, err := s.ToggleModel(modelA.ID)
	require.NoError(t, err)

	_, reqs, err := s.Submit("hi", t0)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, modelB.ID, reqs[0].Model.ID)
}

func TestBroadcastWithNoModelsSelected(t *testing.T) {
	s := newTestSession(Options{})
	s, _ = s.ToggleModel(modelA.ID)
	s, _ = s.ToggleModel(modelB.ID)

	next, reqs, err := s.Submit("hi", t0)
	assert.ErrorIs(t, err, ErrNoModelsSelected)
	assert.Empty(t, reqs)
	assert.Equal(t, 0, next.State().Len())
	assert.Equal(t, 0, countKind(next.Entries(), EntryRound))
	assert.Equal(t, 1, countKind(next.Entries(), EntryAlert))
}

func TestToggleUnknownModel(t *testing.T) {
	_, err := newTestSession(Options{}).ToggleModel("nope")
	assert.ErrorIs(t, err, ErrUnknownModel)
}

func TestCardsResolveIndependently(t *testing.T) {
	s := newTestSession(Options{})
	s, reqs, _ := s.Submit("hi", t0)

	// B settles first with an error, then A succeeds
	s = s.Resolve(Result{Key: reqs[1].Key, Err: errors.New("upstream exploded")})
	a, _ := s.Card(reqs[0].Key)
	assert.Equal(t, CardLoading, a.Status)

	s = s.Resolve(Result{Key: reqs[0].Key, Content: "hello"})
	a, _ = s.Card(reqs[0].Key)
	b, _ := s.Card(reqs[1].Key)
	assert.Equal(t, CardDone, a.Status)
	assert.Equal(t, "hello", a.Content)
	assert.Equal(t, CardFailed, b.Status)
	assert.Equal(t, "upstream exploded", b.Err)

	// broadcast results never reach history
	assert.Equal(t, 0, s.State().Len())
}

func TestConcurrentRoundsDoNotCrossTalk(t *testing.T) {
	s := newTestSession(Options{})
	s, first, _ := s.Submit("one", t0)
	s, second, _ := s.Submit("two", t0) // same timestamp

	require.NotEqual(t, first[0].Key, second[0].Key)

	s = s.Resolve(Result{Key: second[0].Key, Content: "reply two"})
	c1, _ := s.Card(first[0].Key)
	c2, _ := s.Card(second[0].Key)
	assert.Equal(t, CardLoading, c1.Status)
	assert.Equal(t, "reply two", c2.Content)
}

func TestResolveDoesNotMutateEarlierSnapshot(t *testing.T) {
	s := newTestSession(Options{})
	before, reqs, _ := s.Submit("hi", t0)
	after := before.Resolve(Result{Key: reqs[0].Key, Content: "hello"})

	c, _ := before.Card(reqs[0].Key)
	assert.Equal(t, CardLoading, c.Status)
	c, _ = after.Card(reqs[0].Key)
	assert.Equal(t, CardDone, c.Status)
}

func TestContinueWithEntersFocus(t *testing.T) {
	s := newTestSession(Options{})
	s, reqs, _ := s.Submit("hi", t0)
	s = s.Resolve(Result{Key: reqs[0].Key, Content: "hello"})

	s, err := s.ContinueWith(reqs[0].Key)
	require.NoError(t, err)

	assert.True(t, s.State().Focused())
	assert.False(t, s.SelectorVisible())
	assert.Equal(t, "Chatting with: Model A", s.Banner())
	assert.Equal(t, []models.Message{
		models.UserMessage("hi"),
		models.AssistantMessage("hello"),
	}, s.State().History())

	entries := s.Entries()
	last := entries[len(entries)-1]
	assert.Equal(t, EntryNotice, last.Kind)
	assert.Equal(t, "--- Conversation now focused on Model A ---", last.Text)
}

func TestContinueWithRequiresResolvedCard(t *testing.T) {
	s := newTestSession(Options{})
	s, reqs, _ := s.Submit("hi", t0)

	_, err := s.ContinueWith(reqs[0].Key)
	assert.ErrorIs(t, err, ErrCardNotReady)

	s = s.Resolve(Result{Key: reqs[1].Key, Err: errors.New("nope")})
	_, err = s.ContinueWith(reqs[1].Key)
	assert.ErrorIs(t, err, ErrCardNotReady)

	_, err = s.ContinueWith(CardKey{ModelID: "x", RoundID: "y"})
	assert.ErrorIs(t, err, ErrUnknownCard)
}

func focusedSession(t *testing.T, opts Options) Session {
	t.Helper()
	s := newTestSession(opts)
	s, reqs, _ := s.Submit("hi", t0)
	s = s.Resolve(Result{Key: reqs[0].Key, Content: "hello"})
	s, err := s.ContinueWith(reqs[0].Key)
	require.NoError(t, err)
	return s
}

func TestFocusedRoundCarriesFullHistory(t *testing.T) {
	s := focusedSession(t, Options{})

	s, reqs, err := s.Submit("how are you", t0.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].Focused)
	assert.Equal(t, modelA.ID, reqs[0].Model.ID)
	assert.Equal(t, []models.Message{
		models.UserMessage("hi"),
		models.AssistantMessage("hello"),
		models.UserMessage("how are you"),
	}, reqs[0].Messages)

	round, _ := s.LatestRound()
	assert.True(t, round.Focused)
	assert.Len(t, round.Cards, 1)
	assert.False(t, round.Continuable(round.Cards[0]))

	s = s.Resolve(Result{Key: reqs[0].Key, Content: "fine, thanks"})
	h := s.State().History()
	require.Len(t, h, 4)
	assert.Equal(t, models.AssistantMessage("fine, thanks"), h[3])
	assert.False(t, s.State().Pending())
}

func TestFailedFocusedRoundKeepsOnlyUserTurn(t *testing.T) {
	s := focusedSession(t, Options{})
	s, reqs, _ := s.Submit("how are you", t0.Add(time.Second))

	s = s.Resolve(Result{Key: reqs[0].Key, Err: errors.New("boom")})
	h := s.State().History()
	require.Len(t, h, 3)
	assert.Equal(t, models.RoleUser, h[2].Role)

	c, _ := s.Card(reqs[0].Key)
	assert.Equal(t, CardFailed, c.Status)
	assert.Equal(t, "boom", c.Err)

	// the next round replays the unanswered turn
	_, next, err := s.Submit("hello?", t0.Add(2*time.Second))
	require.NoError(t, err)
	assert.Len(t, next[0].Messages, 4)
}

func TestFailedFocusedRoundDropsUserTurnWhenConfigured(t *testing.T) {
	s := focusedSession(t, Options{DropFailedTurns: true})
	s, reqs, _ := s.Submit("how are you", t0.Add(time.Second))

	s = s.Resolve(Result{Key: reqs[0].Key, Err: errors.New("boom")})
	assert.Equal(t, 2, s.State().Len())
}

func TestOverlappingFocusedSubmissionRejected(t *testing.T) {
	s := focusedSession(t, Options{})
	s, _, err := s.Submit("one", t0.Add(time.Second))
	require.NoError(t, err)

	same, reqs, err := s.Submit("two", t0.Add(2*time.Second))
	assert.ErrorIs(t, err, ErrRequestPending)
	assert.Nil(t, reqs)
	assert.Equal(t, len(s.Entries()), len(same.Entries()))
	assert.Equal(t, 3, same.State().Len())
}

func TestExitFocusResetsState(t *testing.T) {
	s := focusedSession(t, Options{})
	s, reqs, _ := s.Submit("pending", t0.Add(time.Second))

	s = s.ExitFocus()
	assert.False(t, s.State().Focused())
	assert.Empty(t, s.State().History())
	assert.True(t, s.SelectorVisible())
	assert.Equal(t, "", s.Banner())

	entries := s.Entries()
	assert.Equal(t, "--- Focus mode ended. Now chatting with all selected models. ---", entries[len(entries)-1].Text)

	// a late reply for the abandoned round only updates its card
	s = s.Resolve(Result{Key: reqs[0].Key, Content: "late"})
	assert.Empty(t, s.State().History())
	c, _ := s.Card(reqs[0].Key)
	assert.Equal(t, "late", c.Content)

	// exiting again is harmless
	s = s.ExitFocus()
	assert.False(t, s.State().Focused())
}

func TestPendingRoundSettlesAfterClear(t *testing.T) {
	s := focusedSession(t, Options{})
	s, reqs, _ := s.Submit("q", t0.Add(time.Second))
	s = s.Clear()
	assert.Empty(t, s.Entries())

	s = s.Resolve(Result{Key: reqs[0].Key, Content: "a"})
	assert.Equal(t, 4, s.State().Len())
	assert.False(t, s.State().Pending())
}

func TestCardKeyString(t *testing.T) {
	k := CardKey{ModelID: "openai/gpt-3.5-turbo", RoundID: "response-42"}
	assert.Equal(t, "card-openai-gpt-3.5-turbo-response-42", k.String())
}
