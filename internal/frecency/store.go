// Package frecency provides the persisted usage-recency score store.
//
// Scores decay exponentially with a configurable half-life and are
// boosted on use. The full mapping for a namespace is loaded into
// memory at Open; every mutation is written through to SQLite before
// it becomes visible, so a crash loses at most the current session's
// unsaved state.
package frecency

import (
	"database/sql"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"flakepick/internal/logging"

	_ "modernc.org/sqlite"
)

// Entry is one identity's recency record. Score is the score at the
// moment of last use; the current value decays from there.
type Entry struct {
	Ident    string
	LastUsed time.Time
	Score    float64
}

// Store handles the frecency mapping for one namespace. NOT an
// interface - concrete type.
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Store struct {
	db       *sql.DB
	mu       sync.RWMutex // Protects entries and all database operations
	ns       string
	halfLife time.Duration
	entries  map[string]Entry
}

// Open creates a Store backed by the database at dbPath, loading all
// entries for the given namespace. Creates the table if it doesn't
// exist. Uses WAL mode for better concurrent read performance
// (file-based DBs only).
//
// A corrupt store file is not fatal: it is removed and replaced with
// a fresh empty store, since losing recency history only costs
// ranking quality.
func Open(dbPath, namespace string, halfLife time.Duration) (*Store, error) {
	if halfLife <= 0 {
		return nil, fmt.Errorf("half-life must be positive, got %v", halfLife)
	}

	s, err := open(dbPath, namespace, halfLife)
	if err == nil || dbPath == ":memory:" {
		return s, err
	}

	// File-based store failed to open or load: treat as corrupt,
	// start over empty.
	logging.Warn("recency store unreadable, starting fresh", "path", dbPath, "error", err)
	os.Remove(dbPath)
	os.Remove(dbPath + "-wal")
	os.Remove(dbPath + "-shm")
	return open(dbPath, namespace, halfLife)
}

func open(dbPath, namespace string, halfLife time.Duration) (*Store, error) {
	// Build connection string based on database type
	connStr := dbPath
	if dbPath == ":memory:" {
		// For in-memory databases, use shared cache mode so all connections
		// in the pool see the same database
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// For in-memory databases, limit to 1 connection to avoid issues
	// with multiple connections getting different databases
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Enable WAL mode for file-based databases (not :memory:)
	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{
		db:       db,
		ns:       namespace,
		halfLife: halfLife,
		entries:  make(map[string]Entry),
	}

	if err := s.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if err := s.load(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load entries: %w", err)
	}

	return s, nil
}

// createTable creates the frecency table if it doesn't exist.
func (s *Store) createTable() error {
	schema := `
	CREATE TABLE IF NOT EXISTS frecency (
		ns TEXT NOT NULL,
		ident TEXT NOT NULL,
		last_used INTEGER NOT NULL,
		score REAL NOT NULL,
		PRIMARY KEY (ns, ident)
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// load reads all entries for the store's namespace into memory.
func (s *Store) load() error {
	rows, err := s.db.Query(
		"SELECT ident, last_used, score FROM frecency WHERE ns = ?", s.ns)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var e Entry
		var lastUsed int64
		if err := rows.Scan(&e.Ident, &lastUsed, &e.Score); err != nil {
			return err
		}
		e.LastUsed = time.Unix(0, lastUsed)
		s.entries[e.Ident] = e
	}

	return rows.Err()
}

// Close closes the database connection.
// Thread-safe: acquires write lock to prevent closing during in-flight operations.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Lookup returns the decayed current score for ident at the given
// time, or 0 for an identity that has never been used. Read-only:
// lookups never mutate the store.
// Thread-safe: acquires read lock.
func (s *Store) Lookup(ident string, now time.Time) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[ident]
	if !ok {
		return 0
	}
	return decayedScore(e, s.halfLife, now)
}

// Bump records a use of ident at the given time: the stored score
// decays to its current value first, then bonus is added, so rapid
// repeated bumps cannot inflate scores past their real usage. The
// row is written to the database before the in-memory entry updates;
// on a write error the store is left unchanged.
// Thread-safe: acquires write lock; the write completes fully before
// another Bump may start.
func (s *Store) Bump(ident string, bonus float64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	score := bonus
	if e, ok := s.entries[ident]; ok {
		score = decayedScore(e, s.halfLife, now) + bonus
	}

	_, err := s.db.Exec(`
		INSERT INTO frecency (ns, ident, last_used, score)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (ns, ident) DO UPDATE SET last_used = ?, score = ?
	`, s.ns, ident, now.UnixNano(), score, now.UnixNano(), score)
	if err != nil {
		return fmt.Errorf("persist bump: %w", err)
	}

	s.entries[ident] = Entry{Ident: ident, LastUsed: now, Score: score}
	return nil
}

// Len returns the number of identities with a recorded score.
// Thread-safe: acquires read lock.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// decayedScore applies exponential half-life decay to an entry.
// Elapsed time below zero counts as zero, so the result never
// exceeds the score recorded at last use even under clock skew.
func decayedScore(e Entry, halfLife time.Duration, now time.Time) float64 {
	age := now.Sub(e.LastUsed)
	if age < 0 {
		age = 0
	}

	halfLives := float64(age) / float64(halfLife)
	return e.Score * math.Pow(0.5, halfLives)
}
