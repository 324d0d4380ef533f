// Package rank merges fuzzy match scores with usage recency into a
// single ordering for the picker.
//
// Pipeline: catalog -> match -> combine -> sort -> render
//
// Design principles:
// - The combiner is a stateless function: (identity, fuzzy score, now) -> score
// - Recency lookups are read-only; scoring never mutates the store
// - Absence of a fuzzy match is a hard filter upstream; recency never
//   resurrects a non-matching item
// - Exact score ties break on catalog insertion order so equal-scored
//   items never swap places between passes
package rank

import (
	"sort"
	"time"

	"flakepick/internal/match"
)

// Item is one selectable catalog entry as the pipeline sees it: a
// stable identity for recency lookups, a display string for
// rendering, a match string fed to the fuzzy matcher, and an opaque
// payload carried through untouched.
type Item struct {
	Ident   string
	Display string
	Match   string
	Payload any
}

// Entry is a ranked item. Index is the item's catalog insertion
// order, the fixed secondary sort key.
type Entry struct {
	Item  Item
	Index int
	Score float64
	Spans []match.Span
}

// RecencyReader provides decayed usage scores for identities.
// Implementations must be read-only and safe for concurrent use.
type RecencyReader interface {
	Lookup(ident string, now time.Time) float64
}

// Weights balances the two score components. Recency dominates by
// default so frequently-chosen entries float upward even under
// mediocre fuzzy scores, while the fuzzy score remains the filter
// and the fine-grained tie-break among similarly-recent entries.
type Weights struct {
	Fuzzy   float64
	Recency float64
}

// DefaultWeights returns the standard balance: one recency bump
// (bonus 15, weight 10) outweighs typical fuzzy score differences.
func DefaultWeights() Weights {
	return Weights{Fuzzy: 1, Recency: 10}
}

// Combiner computes combined rank scores.
// Stateless apart from configuration; safe for concurrent use.
type Combiner struct {
	weights Weights
	recency RecencyReader
}

// NewCombiner creates a Combiner. A nil RecencyReader is allowed and
// contributes zero recency, so the picker degrades to pure fuzzy
// ordering without a store.
func NewCombiner(weights Weights, recency RecencyReader) *Combiner {
	return &Combiner{weights: weights, recency: recency}
}

// Score returns the combined score for an item (higher = ranked
// earlier).
func (c *Combiner) Score(ident string, fuzzy int, now time.Time) float64 {
	score := c.weights.Fuzzy * float64(fuzzy)
	if c.recency != nil {
		score += c.weights.Recency * c.recency.Lookup(ident, now)
	}
	return score
}

// Sort orders entries by combined score descending. Exact ties keep
// catalog insertion order.
func Sort(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Index < entries[j].Index
	})
}
