package ui

import (
	"strings"

	"flakepick/internal/catalog"
	"flakepick/internal/rank"
)

// RenderEntry renders one result row, highlighting the runes the query
// matched. Spans index runes of the display text, which is the same
// string the matcher scored.
func RenderEntry(e rank.Entry, selected bool, width int) string {
	base := NormalItem
	matched := MatchedRune
	prefix := "  "
	if selected {
		base = SelectedItem
		matched = SelectedMatchedRune
		prefix = CursorColumn.Render("› ")
	}

	runes := []rune(e.Item.Display)
	limit := len(runes)
	if width > 0 && width-2 < limit {
		limit = width - 2
		if limit < 0 {
			limit = 0
		}
	}

	var b strings.Builder
	b.WriteString(prefix)

	pos := 0
	for _, sp := range e.Spans {
		start, end := sp.Start, sp.Start+sp.Len
		if start >= limit {
			break
		}
		if end > limit {
			end = limit
		}
		if start > pos {
			b.WriteString(base.Render(string(runes[pos:start])))
		}
		b.WriteString(matched.Render(string(runes[start:end])))
		pos = end
	}
	if pos < limit {
		b.WriteString(base.Render(string(runes[pos:limit])))
	}
	return b.String()
}

// entryDescription returns the template description riding in the
// item's payload, if any.
func entryDescription(e rank.Entry) string {
	tpl, ok := e.Item.Payload.(catalog.Template)
	if !ok {
		return ""
	}
	return tpl.Description
}

// condense flattens multi-line diagnostics into one error-bar line.
func condense(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
