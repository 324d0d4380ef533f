// Package catalog collects the selectable template entries from
// configured flake sources and caches them between sessions.
package catalog

import (
	"flakepick/internal/rank"
)

// Template is one selectable flake template.
type Template struct {
	Name        string `json:"name"`
	URI         string `json:"uri"`
	Source      string `json:"source,omitempty"`
	Description string `json:"description,omitempty"`
}

// Ident is the stable identity recency scores are keyed by. It folds in
// the URI so same-named templates from different flakes decay
// independently.
func (t Template) Ident() string {
	return t.URI + "-" + t.Name
}

// Ref is the flake reference nix consumes.
func (t Template) Ref() string {
	return t.URI + "#" + t.Name
}

// Display is the list line shown to the user.
func (t Template) Display() string {
	if t.Source == "" {
		return t.Ref()
	}
	return t.Source + " - " + t.Ref()
}

// MatchText is the candidate string the matcher scores. It is the same
// string as Display so highlight spans line up with the rendered line.
func (t Template) MatchText() string {
	return t.Display()
}

// Source is one configured flake to enumerate. Templates is an
// allow-list; empty means every template the flake exposes.
type Source struct {
	Name      string   `mapstructure:"name"`
	URI       string   `mapstructure:"uri"`
	Templates []string `mapstructure:"templates"`
}

// Items converts templates into ranking items, preserving catalog
// order. The template rides along as the payload so the action runner
// can recover it after a commit.
func Items(templates []Template) []rank.Item {
	items := make([]rank.Item, len(templates))
	for i, t := range templates {
		items[i] = rank.Item{
			Ident:   t.Ident(),
			Display: t.Display(),
			Match:   t.MatchText(),
			Payload: t,
		}
	}
	return items
}
