package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"flakepick/internal/rank"
)

// defaultInlineRows is the list height when none was configured.
const defaultInlineRows = 12

// Config wires the App to its collaborators.
// IMPORTANT: App does NOT hold the scheduler or the store. It calls the
// injected funcs and receives results via messages.
type Config struct {
	// SetQuery pushes a new query into the scoring pipeline. Results
	// come back asynchronously as ResultsMsg.
	SetQuery func(query string)

	// Commit returns a Cmd that runs the action for the chosen item
	// and resolves to ActionDone.
	Commit func(item rank.Item) tea.Cmd

	// Inline is the number of list rows in inline mode.
	Inline int

	// Fullscreen stretches the list to the terminal height.
	Fullscreen bool

	// Total is the catalog size shown in the counter.
	Total int
}

// App is the root Bubble Tea model.
type App struct {
	cfg Config

	input textinput.Model
	spin  spinner.Model

	entries   []rank.Entry
	rev       uint64
	cursor    int
	width     int
	height    int
	ready     bool
	acting    bool
	committed rank.Item
	applied   bool
	err       error
}

// NewApp creates the picker model.
func NewApp(cfg Config) App {
	if cfg.Inline <= 0 {
		cfg.Inline = defaultInlineRows
	}

	ti := textinput.New()
	ti.Placeholder = "Search templates..."
	ti.Prompt = "> "
	ti.PromptStyle = PromptStyle
	ti.TextStyle = QueryStyle
	ti.Cursor.Style = PromptStyle
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return App{
		cfg:   cfg,
		input: ti,
		spin:  s,
	}
}

// Init kicks off the first scoring pass over the whole catalog.
func (a App) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if a.cfg.SetQuery != nil {
		setQuery := a.cfg.SetQuery
		cmds = append(cmds, func() tea.Msg {
			setQuery("")
			return nil
		})
	}
	return tea.Batch(cmds...)
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.input.Width = msg.Width - 4
		return a, nil

	case ResultsMsg:
		// Second staleness gate: the scheduler never delivers out of
		// order, but a view for a superseded query can still be
		// sitting in the program's queue when the newer one lands.
		if msg.View.Rev <= a.rev {
			return a, nil
		}
		a.rev = msg.View.Rev
		a.entries = msg.View.Entries
		a.cursor = 0
		return a, nil

	case ActionDone:
		a.acting = false
		if msg.Err != nil {
			a.err = msg.Err
			return a, nil
		}
		a.applied = true
		a.committed = msg.Item
		return a, tea.Quit

	case spinner.TickMsg:
		if !a.acting {
			return a, nil
		}
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		return a, cmd
	}

	// Cursor blink and other input-internal messages.
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// handleKeyMsg processes keyboard input.
func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Clear any existing error on key press
	if a.err != nil {
		a.err = nil
	}

	switch msg.String() {
	case "ctrl+c", "esc":
		return a, tea.Quit

	case "up", "ctrl+p":
		if a.cursor > 0 {
			a.cursor--
		}
		return a, nil

	case "down", "ctrl+n":
		if a.cursor < len(a.entries)-1 {
			a.cursor++
		}
		return a, nil

	case "enter":
		if a.acting || len(a.entries) == 0 || a.cfg.Commit == nil {
			return a, nil
		}
		a.acting = true
		a.committed = a.entries[a.cursor].Item
		return a, tea.Batch(a.spin.Tick, a.cfg.Commit(a.committed))
	}

	// Everything else edits the query.
	oldValue := a.input.Value()
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	if a.input.Value() != oldValue && a.cfg.SetQuery != nil {
		a.cfg.SetQuery(a.input.Value())
	}
	return a, cmd
}

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}

	var b strings.Builder

	b.WriteString(a.input.View())
	b.WriteString("\n")
	b.WriteString(a.counterLine())
	b.WriteString("\n")

	if len(a.entries) == 0 {
		b.WriteString(DescStyle.Render("  No matching templates"))
		b.WriteString("\n")
	} else {
		rows := a.listRows()
		start := 0
		if a.cursor >= rows {
			start = a.cursor - rows + 1
		}
		end := start + rows
		if end > len(a.entries) {
			end = len(a.entries)
		}
		for i := start; i < end; i++ {
			b.WriteString(RenderEntry(a.entries[i], i == a.cursor, a.width))
			b.WriteString("\n")
		}
	}

	if a.err != nil {
		b.WriteString(ErrorStyle.Render("Error: " + condense(a.err.Error()) + " (press any key to dismiss)"))
		b.WriteString("\n")
	}

	b.WriteString(HelpStyle.Render("↑↓ navigate  enter apply  esc quit"))
	return b.String()
}

// counterLine shows matched/total, the in-flight spinner, and the
// highlighted template's description.
func (a App) counterLine() string {
	line := CountStyle.Render(fmt.Sprintf("  %d/%d", len(a.entries), a.cfg.Total))
	if a.acting {
		return line + " " + a.spin.View() + CountStyle.Render("applying "+a.committed.Display+"...")
	}
	if a.cursor < len(a.entries) {
		if desc := entryDescription(a.entries[a.cursor]); desc != "" {
			line += DescStyle.Render("  · " + desc)
		}
	}
	return line
}

// listRows is the number of result rows the list may occupy.
func (a App) listRows() int {
	rows := a.cfg.Inline
	if a.cfg.Fullscreen {
		rows = a.height - 4 // query, counter, error or help
	}
	if rows < 1 {
		rows = 1
	}
	return rows
}

// Cursor returns the current cursor position (for testing).
func (a App) Cursor() int {
	return a.cursor
}

// Entries returns the entries currently shown (for testing).
func (a App) Entries() []rank.Entry {
	return a.entries
}

// Query returns the live query string.
func (a App) Query() string {
	return a.input.Value()
}

// Applied reports the successfully committed item, if any.
func (a App) Applied() (rank.Item, bool) {
	return a.committed, a.applied
}
