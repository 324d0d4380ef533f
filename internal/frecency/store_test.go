package frecency

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testHalfLife = 30 * 24 * time.Hour

func TestOpenCreatesTable(t *testing.T) {
	s, err := Open(":memory:", "test", testHalfLife)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	var name string
	err = s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='frecency'").Scan(&name)
	if err != nil {
		t.Fatalf("frecency table not created: %v", err)
	}
	if name != "frecency" {
		t.Errorf("expected table name 'frecency', got %q", name)
	}
}

func TestOpenRejectsZeroHalfLife(t *testing.T) {
	_, err := Open(":memory:", "test", 0)
	if err == nil {
		t.Fatal("expected error for zero half-life")
	}
}

func TestLookupUnseenIsZero(t *testing.T) {
	s, err := Open(":memory:", "test", testHalfLife)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if got := s.Lookup("never-used", time.Now()); got != 0 {
		t.Errorf("expected 0 for unseen identity, got %f", got)
	}
}

func TestBumpThenLookup(t *testing.T) {
	s, err := Open(":memory:", "test", testHalfLife)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	now := time.Now()
	if err := s.Bump("tmpl", 15, now); err != nil {
		t.Fatalf("Bump failed: %v", err)
	}

	got := s.Lookup("tmpl", now)
	if got < 14.99 || got > 15.01 {
		t.Errorf("expected ~15 immediately after bump, got %f", got)
	}
}

func TestLookupDoesNotMutate(t *testing.T) {
	s, err := Open(":memory:", "test", testHalfLife)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	now := time.Now()
	if err := s.Bump("tmpl", 15, now); err != nil {
		t.Fatalf("Bump failed: %v", err)
	}

	later := now.Add(testHalfLife)
	first := s.Lookup("tmpl", later)
	second := s.Lookup("tmpl", later)
	if first != second {
		t.Errorf("repeated lookups disagree: %f then %f", first, second)
	}

	// A lookup far in the future must not decay the stored value either.
	s.Lookup("tmpl", now.Add(100*testHalfLife))
	if got := s.Lookup("tmpl", later); got != first {
		t.Errorf("lookup mutated stored state: %f became %f", first, got)
	}
}

func TestDecayIsMonotonic(t *testing.T) {
	s, err := Open(":memory:", "test", testHalfLife)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	now := time.Now()
	if err := s.Bump("tmpl", 15, now); err != nil {
		t.Fatalf("Bump failed: %v", err)
	}

	prev := s.Lookup("tmpl", now)
	for _, elapsed := range []time.Duration{
		time.Hour, 24 * time.Hour, 7 * 24 * time.Hour, testHalfLife, 3 * testHalfLife,
	} {
		got := s.Lookup("tmpl", now.Add(elapsed))
		if got > prev {
			t.Errorf("score increased with age: %f after less time, %f after %v", prev, got, elapsed)
		}
		if got < 0 {
			t.Errorf("score went negative after %v: %f", elapsed, got)
		}
		prev = got
	}
}

func TestDecayHalfLife(t *testing.T) {
	s, err := Open(":memory:", "test", testHalfLife)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	now := time.Now()
	if err := s.Bump("tmpl", 15, now); err != nil {
		t.Fatalf("Bump failed: %v", err)
	}

	// Score at exactly one half-life should be ~7.5
	got := s.Lookup("tmpl", now.Add(testHalfLife))
	if got < 7.45 || got > 7.55 {
		t.Errorf("expected ~7.5 after one half-life, got %f", got)
	}

	// And ~3.75 after two
	got = s.Lookup("tmpl", now.Add(2*testHalfLife))
	if got < 3.70 || got > 3.80 {
		t.Errorf("expected ~3.75 after two half-lives, got %f", got)
	}
}

func TestBumpDecaysBeforeAdding(t *testing.T) {
	s, err := Open(":memory:", "test", testHalfLife)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	now := time.Now()
	if err := s.Bump("tmpl", 15, now); err != nil {
		t.Fatalf("Bump failed: %v", err)
	}
	if err := s.Bump("tmpl", 15, now.Add(testHalfLife)); err != nil {
		t.Fatalf("second Bump failed: %v", err)
	}

	// 15 decayed to 7.5, plus the new 15: not the naive 30.
	got := s.Lookup("tmpl", now.Add(testHalfLife))
	if got < 22.45 || got > 22.55 {
		t.Errorf("expected ~22.5 (decay then add), got %f", got)
	}
}

func TestRapidBumpsAccumulate(t *testing.T) {
	s, err := Open(":memory:", "test", testHalfLife)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	now := time.Now()
	for i := 0; i < 3; i++ {
		if err := s.Bump("tmpl", 15, now); err != nil {
			t.Fatalf("Bump %d failed: %v", i, err)
		}
	}

	// No time passed between bumps, so nothing decays away.
	got := s.Lookup("tmpl", now)
	if got < 44.99 || got > 45.01 {
		t.Errorf("expected ~45 after three instant bumps, got %f", got)
	}
}

func TestBumpNeverLowersScore(t *testing.T) {
	s, err := Open(":memory:", "test", testHalfLife)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	now := time.Now()
	if err := s.Bump("tmpl", 15, now); err != nil {
		t.Fatalf("Bump failed: %v", err)
	}

	later := now.Add(5 * testHalfLife)
	before := s.Lookup("tmpl", later)
	if err := s.Bump("tmpl", 15, later); err != nil {
		t.Fatalf("second Bump failed: %v", err)
	}
	after := s.Lookup("tmpl", later)

	if after < before {
		t.Errorf("bump lowered score: %f before, %f after", before, after)
	}
}

func TestClockSkewClamps(t *testing.T) {
	s, err := Open(":memory:", "test", testHalfLife)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	now := time.Now()
	if err := s.Bump("tmpl", 15, now); err != nil {
		t.Fatalf("Bump failed: %v", err)
	}

	// A lookup before the recorded last use must not exceed the
	// score at use.
	got := s.Lookup("tmpl", now.Add(-time.Hour))
	if got < 14.99 || got > 15.01 {
		t.Errorf("expected ~15 under clock skew, got %f", got)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frecency.db")

	s, err := Open(path, "test", testHalfLife)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	now := time.Now()
	if err := s.Bump("tmpl", 15, now); err != nil {
		t.Fatalf("Bump failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s2, err := Open(path, "test", testHalfLife)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	got := s2.Lookup("tmpl", now)
	if got < 14.99 || got > 15.01 {
		t.Errorf("expected ~15 after reopen, got %f", got)
	}
	if s2.Len() != 1 {
		t.Errorf("expected 1 entry after reopen, got %d", s2.Len())
	}
}

func TestCorruptStoreStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frecency.db")
	if err := os.WriteFile(path, []byte("this is not a database"), 0644); err != nil {
		t.Fatalf("failed to write corrupt file: %v", err)
	}

	s, err := Open(path, "test", testHalfLife)
	if err != nil {
		t.Fatalf("Open should recover from corruption, got: %v", err)
	}
	defer s.Close()

	if s.Len() != 0 {
		t.Errorf("expected empty store after corruption recovery, got %d entries", s.Len())
	}

	// The recovered store must be fully usable.
	now := time.Now()
	if err := s.Bump("tmpl", 15, now); err != nil {
		t.Fatalf("Bump on recovered store failed: %v", err)
	}
	if got := s.Lookup("tmpl", now); got < 14.99 {
		t.Errorf("expected bump to stick on recovered store, got %f", got)
	}
}

func TestNamespacesAreIsolated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frecency.db")
	now := time.Now()

	a, err := Open(path, "picker-a", testHalfLife)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := a.Bump("tmpl", 15, now); err != nil {
		t.Fatalf("Bump failed: %v", err)
	}
	a.Close()

	b, err := Open(path, "picker-b", testHalfLife)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if got := b.Lookup("tmpl", now); got != 0 {
		t.Errorf("namespace b sees namespace a's score: %f", got)
	}
	if b.Len() != 0 {
		t.Errorf("expected namespace b to be empty, got %d entries", b.Len())
	}
	b.Close()

	a2, err := Open(path, "picker-a", testHalfLife)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer a2.Close()
	if got := a2.Lookup("tmpl", now); got < 14.99 {
		t.Errorf("namespace a lost its score: %f", got)
	}
}
