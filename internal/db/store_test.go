// internal/db/store_test.go
package db

import (
	"testing"
	"time"
)

func TestStore(t *testing.T) {
	// Use temp dir for test
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	store, err := Open()
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer store.Close()

	// Test create session
	if err := store.CreateSession("sess-1", "tui"); err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}

	// Test record dispatches
	records := []Dispatch{
		{SessionID: "sess-1", RoundID: "response-1", ModelID: "a/one", Mode: ModeBroadcast, OK: true, Latency: 100 * time.Millisecond, Turns: 1},
		{SessionID: "sess-1", RoundID: "response-1", ModelID: "b/two", Mode: ModeBroadcast, OK: false, Error: "rate limit exceeded (429)", Latency: 300 * time.Millisecond, Turns: 1},
		{SessionID: "sess-1", RoundID: "response-2", ModelID: "a/one", Mode: ModeFocused, OK: true, Latency: 300 * time.Millisecond, Turns: 3},
	}
	for _, r := range records {
		if err := store.RecordDispatch(r); err != nil {
			t.Fatalf("RecordDispatch() failed: %v", err)
		}
	}

	// Test model stats
	stats, err := store.ModelStats()
	if err != nil {
		t.Fatalf("ModelStats() failed: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("Expected 2 models, got %d", len(stats))
	}
	if stats[0].ModelID != "a/one" || stats[0].Requests != 2 || stats[0].Failures != 0 {
		t.Errorf("Unexpected stats for a/one: %+v", stats[0])
	}
	if stats[0].AvgLatency != 200*time.Millisecond {
		t.Errorf("Expected avg latency 200ms, got %v", stats[0].AvgLatency)
	}
	if stats[1].ModelID != "b/two" || stats[1].Failures != 1 {
		t.Errorf("Unexpected stats for b/two: %+v", stats[1])
	}

	// Test recent failures
	failures, err := store.RecentFailures(10)
	if err != nil {
		t.Fatalf("RecentFailures() failed: %v", err)
	}
	if len(failures) != 1 {
		t.Fatalf("Expected 1 failure, got %d", len(failures))
	}
	if failures[0].Error != "rate limit exceeded (429)" {
		t.Errorf("Unexpected error text %q", failures[0].Error)
	}
	if failures[0].Latency != 300*time.Millisecond {
		t.Errorf("Unexpected latency %v", failures[0].Latency)
	}

	// Test list sessions
	sessions, err := store.ListSessions(10)
	if err != nil {
		t.Fatalf("ListSessions() failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("Expected 1 session, got %d", len(sessions))
	}
	if sessions[0].Requests != 3 || sessions[0].Surface != "tui" {
		t.Errorf("Unexpected session %+v", sessions[0])
	}
}

func TestStoreEmpty(t *testing.T) {
	store, err := OpenPath(t.TempDir() + "/stats.db")
	if err != nil {
		t.Fatalf("OpenPath() failed: %v", err)
	}
	defer store.Close()

	stats, err := store.ModelStats()
	if err != nil {
		t.Fatalf("ModelStats() failed: %v", err)
	}
	if len(stats) != 0 {
		t.Errorf("Expected no stats, got %d", len(stats))
	}
}

func TestListSessionsLimit(t *testing.T) {
	store, err := OpenPath(t.TempDir() + "/stats.db")
	if err != nil {
		t.Fatalf("OpenPath() failed: %v", err)
	}
	defer store.Close()

	for _, id := range []string{"s1", "s2", "s3"} {
		if err := store.CreateSession(id, "proxy"); err != nil {
			t.Fatalf("CreateSession(%s) failed: %v", id, err)
		}
	}

	sessions, err := store.ListSessions(2)
	if err != nil {
		t.Fatalf("ListSessions() failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != "s3" {
		t.Errorf("Expected newest session first, got %s", sessions[0].ID)
	}
}
