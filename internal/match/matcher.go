// Package match scores candidate strings against a live query using
// fzf's FuzzyMatchV2 algorithm, returning highlight spans alongside
// the score.
package match

import (
	"fmt"
	"sort"
	"unicode"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

// Case controls case sensitivity of matching.
type Case int

const (
	// CaseSmart matches case-insensitively unless the query itself
	// contains an uppercase rune.
	CaseSmart Case = iota
	// CaseRespect matches case-sensitively.
	CaseRespect
	// CaseIgnore matches case-insensitively.
	CaseIgnore
)

// Normalize controls accent folding of candidate text.
type Normalize int

const (
	// NormalizeSmart folds accents unless the query itself contains
	// a non-ASCII rune.
	NormalizeSmart Normalize = iota
	// NormalizeAlways folds accents in both query and candidates.
	NormalizeAlways
	// NormalizeNever matches text exactly as written.
	NormalizeNever
)

// ParseCase parses a configured case mode. Unknown values are an
// error; matching config cannot be safely defaulted once the picker
// is running, so callers treat this as fatal at startup.
func ParseCase(s string) (Case, error) {
	switch s {
	case "smart":
		return CaseSmart, nil
	case "strict":
		return CaseRespect, nil
	case "insensitive":
		return CaseIgnore, nil
	}
	return 0, fmt.Errorf("invalid case mode %q (want smart, strict, or insensitive)", s)
}

// ParseNormalize parses a configured normalization mode.
func ParseNormalize(s string) (Normalize, error) {
	switch s {
	case "smart":
		return NormalizeSmart, nil
	case "always":
		return NormalizeAlways, nil
	case "never":
		return NormalizeNever, nil
	}
	return 0, fmt.Errorf("invalid normalize mode %q (want smart, always, or never)", s)
}

// Config selects the matching policy. Applied identically to every
// candidate in a scoring pass.
type Config struct {
	Case      Case
	Normalize Normalize
}

// Span is a run of matched runes in the candidate string, by rune
// index. Spans are ascending and non-overlapping.
type Span struct {
	Start int
	Len   int
}

// Result is a successful match: the fzf score and the highlight
// spans against the original candidate text.
type Result struct {
	Score int
	Spans []Span
}

// Matcher scores candidates against compiled query patterns.
// Stateless apart from configuration; safe for concurrent use.
type Matcher struct {
	cfg Config
}

// New creates a Matcher, validating the configuration.
func New(cfg Config) (*Matcher, error) {
	if cfg.Case < CaseSmart || cfg.Case > CaseIgnore {
		return nil, fmt.Errorf("invalid case mode %d", cfg.Case)
	}
	if cfg.Normalize < NormalizeSmart || cfg.Normalize > NormalizeNever {
		return nil, fmt.Errorf("invalid normalize mode %d", cfg.Normalize)
	}
	return &Matcher{cfg: cfg}, nil
}

// Pattern is a query compiled once per scoring pass: the smart
// case/normalize axes are resolved against the query text here so
// every candidate in the pass sees identical policy.
type Pattern struct {
	runes         []rune
	caseSensitive bool
	normalize     bool
}

// Empty reports whether the pattern is the empty query, which
// matches every candidate with a neutral score.
func (p Pattern) Empty() bool {
	return len(p.runes) == 0
}

// Compile resolves the configured modes against a query.
func (m *Matcher) Compile(query string) Pattern {
	runes := []rune(query)

	caseSensitive := false
	switch m.cfg.Case {
	case CaseRespect:
		caseSensitive = true
	case CaseIgnore:
		caseSensitive = false
	case CaseSmart:
		for _, r := range runes {
			if unicode.IsUpper(r) {
				caseSensitive = true
				break
			}
		}
	}

	normalize := false
	switch m.cfg.Normalize {
	case NormalizeAlways:
		normalize = true
	case NormalizeNever:
		normalize = false
	case NormalizeSmart:
		normalize = true
		for _, r := range runes {
			if r > unicode.MaxASCII {
				normalize = false
				break
			}
		}
	}

	if !caseSensitive {
		for i, r := range runes {
			runes[i] = unicode.ToLower(r)
		}
	}
	if normalize {
		runes = algo.NormalizeRunes(runes)
	}

	return Pattern{runes: runes, caseSensitive: caseSensitive, normalize: normalize}
}

// NewSlab returns a reusable memory pool for scoring loops. Pass nil
// to Match for one-off calls; share one slab across a pass when
// matching many candidates to avoid per-call allocations. A slab is
// not safe for concurrent use.
func NewSlab() *util.Slab {
	return util.MakeSlab(100*1024, 2048)
}

// Match scores one candidate against a compiled pattern. The second
// return value is false when the candidate does not match at all;
// such candidates are dropped from ranked views entirely. The empty
// pattern matches everything with score 0 and no spans.
//
// Identical (pattern, candidate) inputs always produce identical
// results, with or without a slab.
func (m *Matcher) Match(p Pattern, candidate string, slab *util.Slab) (Result, bool) {
	if p.Empty() {
		return Result{}, true
	}

	// fzf's caseSensitive=false flag only partially folds case in its
	// ASCII fast path, which can miss matches when the candidate has
	// uppercase and the pattern is lowercase. Lowering the candidate
	// ourselves rune by rune (preserving rune count, so positions
	// still index the original text) and always passing
	// caseSensitive=true sidesteps that.
	text := candidate
	if !p.caseSensitive {
		lowered := []rune(candidate)
		changed := false
		for i, r := range lowered {
			l := unicode.ToLower(r)
			if l != r {
				lowered[i] = l
				changed = true
			}
		}
		if changed {
			text = string(lowered)
		}
	}

	chars := util.ToChars([]byte(text))
	result, positions := algo.FuzzyMatchV2(
		true, // caseSensitive (candidate pre-lowered when insensitive)
		p.normalize,
		true, // forward
		&chars,
		p.runes,
		true, // withPos
		slab,
	)

	if result.Score <= 0 {
		return Result{}, false
	}

	var spans []Span
	if positions != nil {
		spans = spansFromPositions(*positions)
	}

	return Result{Score: result.Score, Spans: spans}, true
}

// spansFromPositions coalesces matched rune positions into ascending
// (start, len) spans. The algorithm reports positions in reverse;
// sorting makes span construction order-independent.
func spansFromPositions(positions []int) []Span {
	if len(positions) == 0 {
		return nil
	}

	sort.Ints(positions)
	spans := []Span{{Start: positions[0], Len: 1}}
	for _, pos := range positions[1:] {
		last := &spans[len(spans)-1]
		switch {
		case pos == last.Start+last.Len:
			last.Len++
		case pos > last.Start+last.Len:
			spans = append(spans, Span{Start: pos, Len: 1})
		}
	}
	return spans
}
