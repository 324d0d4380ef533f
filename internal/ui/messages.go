// Package ui provides the Bubble Tea picker for flakepick.
package ui

import (
	"flakepick/internal/pipeline"
	"flakepick/internal/rank"
)

// ResultsMsg carries one finished scoring pass from the scheduler.
type ResultsMsg struct {
	View pipeline.View
}

// ActionDone is sent when a committed action finishes.
type ActionDone struct {
	Item rank.Item
	Err  error
}
