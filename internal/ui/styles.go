package ui

import "github.com/charmbracelet/lipgloss"

// Colors used in the application.
var (
	colorPrimary   = lipgloss.Color("62")  // Purple
	colorSecondary = lipgloss.Color("241") // Gray
	colorMuted     = lipgloss.Color("240") // Darker gray
	colorHighlight = lipgloss.Color("212") // Pink
	colorError     = lipgloss.Color("196") // Red
)

// PromptStyle for the query input prompt.
var PromptStyle = lipgloss.NewStyle().
	Foreground(colorHighlight).
	Bold(true)

// QueryStyle for the typed query text.
var QueryStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255"))

// CursorColumn style for the pointer in front of the selected row.
var CursorColumn = lipgloss.NewStyle().
	Foreground(colorHighlight).
	Bold(true)

// SelectedItem style for the currently highlighted row.
var SelectedItem = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("255"))

// NormalItem style for unselected rows.
var NormalItem = lipgloss.NewStyle().
	Foreground(lipgloss.Color("250"))

// MatchedRune style for runes the query matched in an unselected row.
var MatchedRune = lipgloss.NewStyle().
	Foreground(colorHighlight)

// SelectedMatchedRune style for matched runes in the selected row.
var SelectedMatchedRune = lipgloss.NewStyle().
	Foreground(colorHighlight).
	Bold(true).
	Underline(true)

// CountStyle for the match counter line.
var CountStyle = lipgloss.NewStyle().
	Foreground(colorSecondary)

// DescStyle for the selected template's description.
var DescStyle = lipgloss.NewStyle().
	Foreground(colorMuted).
	Italic(true)

// SpinnerStyle for the commit-in-flight spinner.
var SpinnerStyle = lipgloss.NewStyle().
	Foreground(colorPrimary)

// ErrorStyle for displaying errors.
var ErrorStyle = lipgloss.NewStyle().
	Foreground(colorError).
	Bold(true)

// HelpStyle for the key hint line.
var HelpStyle = lipgloss.NewStyle().
	Foreground(colorMuted)
