// Package pipeline runs full catalog re-scoring passes, one per query
// revision. Every keystroke supersedes the pass before it: the previous
// pass is cancelled, a fresh one is started, and only the newest
// revision's view is ever delivered downstream.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/junegunn/fzf/src/util"

	"flakepick/internal/logging"
	"flakepick/internal/match"
	"flakepick/internal/rank"
)

// defaultBatchSize is the number of items scored between cancellation
// checks within a pass.
const defaultBatchSize = 1000

// scorer is the matching surface the scheduler drives. *match.Matcher
// satisfies it; an interface so tests can inject slow or failing scorers.
type scorer interface {
	Compile(query string) match.Pattern
	Match(p match.Pattern, candidate string, slab *util.Slab) (match.Result, bool)
}

// View is the complete result of one scoring pass: every catalog item
// that matched the query, ranked best-first.
type View struct {
	Rev     uint64
	Query   string
	Entries []rank.Entry
}

// Config tunes a Scheduler.
type Config struct {
	// BatchSize is the number of items scored between cancellation
	// checks. Zero means defaultBatchSize.
	BatchSize int

	// Now supplies the timestamp used for recency scoring. Nil means
	// time.Now. A pass reads it once, so every item in a view is
	// scored against the same instant.
	Now func() time.Time
}

// Scheduler owns query revisions over a fixed catalog. SetQuery starts
// a scoring pass and cancels the one before it; views reach the sink in
// revision order, and a superseded pass never delivers.
type Scheduler struct {
	cfg      Config
	items    []rank.Item // IMMUTABLE: set at construction, never modified
	scorer   scorer      // interface for testing
	combiner *rank.Combiner

	mu     sync.Mutex
	rev    uint64
	cancel context.CancelFunc
	sink   func(View)
	closed bool

	// sendMu serializes delivery. The revision check happens inside
	// the send critical section, so a pass that finished late can
	// never slip an old view out after a newer one.
	sendMu sync.Mutex

	wg sync.WaitGroup
}

// New creates a Scheduler scoring items with the real matcher.
func New(cfg Config, items []rank.Item, m *match.Matcher, c *rank.Combiner) *Scheduler {
	return NewWithScorer(cfg, items, m, c)
}

// NewWithScorer allows injecting a custom scorer (for testing).
func NewWithScorer(cfg Config, items []rank.Item, m scorer, c *rank.Combiner) *Scheduler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}

	// Copy the item slice to ensure immutability
	itemsCopy := make([]rank.Item, len(items))
	copy(itemsCopy, items)

	return &Scheduler{
		cfg:      cfg,
		items:    itemsCopy,
		scorer:   m,
		combiner: c,
	}
}

// Len reports the catalog size the scheduler was built over.
func (s *Scheduler) Len() int {
	return len(s.items)
}

// SetSink registers the delivery callback and returns the scheduler for
// chaining. The sink runs on a scoring goroutine; it must not block
// indefinitely and must not call Close.
func (s *Scheduler) SetSink(fn func(View)) *Scheduler {
	s.mu.Lock()
	s.sink = fn
	s.mu.Unlock()
	return s
}

// SetQuery supersedes the in-flight pass with a new one for query and
// returns the new revision. The cancelled pass winds down on its own;
// its view is discarded. After Close, SetQuery is a no-op.
func (s *Scheduler) SetQuery(query string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.rev
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.rev++
	rev := s.rev

	s.wg.Add(1)
	go s.run(ctx, rev, query)
	return rev
}

// Close cancels the in-flight pass and blocks until every scoring
// goroutine has exited.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// run executes one scoring pass: compile, score in batches, sort,
// deliver. Cancellation is checked between batches, never mid-item.
func (s *Scheduler) run(ctx context.Context, rev uint64, query string) {
	defer s.wg.Done()

	p := s.scorer.Compile(query)
	slab := match.NewSlab()
	now := s.now()

	entries := make([]rank.Entry, 0, len(s.items))
	for start := 0; start < len(s.items); start += s.cfg.BatchSize {
		if ctx.Err() != nil {
			return
		}
		end := start + s.cfg.BatchSize
		if end > len(s.items) {
			end = len(s.items)
		}
		for i := start; i < end; i++ {
			if e, ok := s.scoreItem(p, i, slab, now); ok {
				entries = append(entries, e)
			}
		}
	}
	if ctx.Err() != nil {
		return
	}

	rank.Sort(entries)
	s.deliver(View{Rev: rev, Query: query, Entries: entries})
}

// scoreItem matches and scores a single catalog item. A panic while
// scoring is contained to that item: the entry is dropped and the rest
// of the pass continues.
func (s *Scheduler) scoreItem(p match.Pattern, idx int, slab *util.Slab, now time.Time) (entry rank.Entry, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logging.Warn("item scoring failed", "ident", s.items[idx].Ident, "panic", r)
			entry, ok = rank.Entry{}, false
		}
	}()

	it := s.items[idx]
	res, matched := s.scorer.Match(p, it.Match, slab)
	if !matched {
		return rank.Entry{}, false
	}
	return rank.Entry{
		Item:  it,
		Index: idx,
		Score: s.combiner.Score(it.Ident, res.Score, now),
		Spans: res.Spans,
	}, true
}

// deliver hands a finished view to the sink unless a newer revision has
// started in the meantime.
func (s *Scheduler) deliver(v View) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	current := v.Rev == s.rev
	sink := s.sink
	s.mu.Unlock()

	if !current || sink == nil {
		return
	}
	sink(v)
}

func (s *Scheduler) now() time.Time {
	if s.cfg.Now != nil {
		return s.cfg.Now()
	}
	return time.Now()
}
