// internal/db/store.go
package db

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Modes recorded for each dispatch
const (
	ModeBroadcast = "broadcast"
	ModeFocused   = "focused"
)

// Store records request outcomes. It never stores prompt or reply text.
type Store struct {
	db *sql.DB
}

type Session struct {
	ID        string
	Surface   string // tui, proxy
	StartedAt time.Time
	Requests  int
}

type Dispatch struct {
	ID        int64
	SessionID string
	RoundID   string
	ModelID   string
	Mode      string // broadcast, focused
	OK        bool
	Error     string
	Latency   time.Duration
	Turns     int // messages sent with the request
	CreatedAt time.Time
}

// ModelStats aggregates dispatches per model
type ModelStats struct {
	ModelID    string
	Requests   int
	Failures   int
	AvgLatency time.Duration
}

func Open() (*Store, error) {
	dataDir, err := dataDir()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}

	return OpenPath(filepath.Join(dataDir, "stats.db"))
}

// OpenPath opens (and migrates) the database at path
func OpenPath(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func dataDir() (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "polychat"), nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		surface TEXT NOT NULL,
		started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS dispatches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		round_id TEXT NOT NULL,
		model_id TEXT NOT NULL,
		mode TEXT NOT NULL DEFAULT 'broadcast',
		ok INTEGER NOT NULL,
		error TEXT,
		latency_ms INTEGER NOT NULL,
		turns INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_dispatches_model ON dispatches(model_id);
	CREATE INDEX IF NOT EXISTS idx_dispatches_session ON dispatches(session_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession registers a process run
func (s *Store) CreateSession(id, surface string) error {
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, surface) VALUES (?, ?)`,
		id, surface,
	)
	return err
}

// ListSessions returns the latest sessions with their request counts, newest first
func (s *Store) ListSessions(limit int) ([]Session, error) {
	rows, err := s.db.Query(
		`SELECT s.id, s.surface, s.started_at, COUNT(d.id)
		 FROM sessions s LEFT JOIN dispatches d ON d.session_id = s.id
		 GROUP BY s.id ORDER BY s.started_at DESC, s.rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var ss Session
		if err := rows.Scan(&ss.ID, &ss.Surface, &ss.StartedAt, &ss.Requests); err != nil {
			return nil, err
		}
		sessions = append(sessions, ss)
	}
	return sessions, rows.Err()
}

// RecordDispatch stores one request outcome
func (s *Store) RecordDispatch(d Dispatch) error {
	var errText sql.NullString
	if d.Error != "" {
		errText = sql.NullString{String: d.Error, Valid: true}
	}
	_, err := s.db.Exec(
		`INSERT INTO dispatches (session_id, round_id, model_id, mode, ok, error, latency_ms, turns)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.SessionID, d.RoundID, d.ModelID, d.Mode, d.OK, errText, d.Latency.Milliseconds(), d.Turns,
	)
	return err
}

// ModelStats returns per-model totals ordered by model ID
func (s *Store) ModelStats() ([]ModelStats, error) {
	rows, err := s.db.Query(
		`SELECT model_id, COUNT(*), SUM(CASE WHEN ok THEN 0 ELSE 1 END), AVG(latency_ms)
		 FROM dispatches GROUP BY model_id ORDER BY model_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []ModelStats
	for rows.Next() {
		var st ModelStats
		var avg float64
		if err := rows.Scan(&st.ModelID, &st.Requests, &st.Failures, &avg); err != nil {
			return nil, err
		}
		st.AvgLatency = time.Duration(avg * float64(time.Millisecond))
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// RecentFailures returns the latest failed dispatches, newest first
func (s *Store) RecentFailures(limit int) ([]Dispatch, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, round_id, model_id, mode, error, latency_ms, turns, created_at
		 FROM dispatches WHERE ok = 0 ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Dispatch
	for rows.Next() {
		var d Dispatch
		var errText sql.NullString
		var latencyMS int64
		if err := rows.Scan(&d.ID, &d.SessionID, &d.RoundID, &d.ModelID, &d.Mode, &errText, &latencyMS, &d.Turns, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Error = errText.String
		d.Latency = time.Duration(latencyMS) * time.Millisecond
		out = append(out, d)
	}
	return out, rows.Err()
}
