// Package tui is a terminal front end for a select widget. It drives the
// same widget.Widget the HTML component uses: typing debounces into
// Search, enter selects, and the final hidden value is what a form would
// submit.
package tui

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pthm/hxselect/locale"
	"github.com/pthm/hxselect/widget"
)

// DefaultDelay is the typing pause before a search is issued.
const DefaultDelay = 300 * time.Millisecond

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Remove key.Binding
	Done   key.Binding
	Cancel key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "ctrl+p"),
		key.WithHelp("↑", "previous"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "ctrl+n"),
		key.WithHelp("↓", "next"),
	),
	Select: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "select"),
	),
	Remove: key.NewBinding(
		key.WithKeys("ctrl+x"),
		key.WithHelp("ctrl+x", "remove last"),
	),
	Done: key.NewBinding(
		key.WithKeys("ctrl+s"),
		key.WithHelp("ctrl+s", "done"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc", "ctrl+c"),
		key.WithHelp("esc", "cancel"),
	),
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type debounceMsg struct {
	seq   int
	query string
}

type outcomeMsg struct {
	outcome widget.Outcome
}

// Result is what the picker hands back when it exits.
type Result struct {
	// Value is the serialized selection, as submitted by a form.
	Value    string
	Canceled bool
}

// Model is the bubbletea model of the picker.
type Model struct {
	ctx   context.Context
	w     *widget.Widget
	loc   *locale.Localizer
	delay time.Duration

	input   textinput.Model
	results []widget.Result
	cursor  int
	status  string
	failed  bool
	seq     int

	canceled bool
}

// Option configures a Model.
type Option func(*Model)

// WithDelay sets the debounce delay.
func WithDelay(d time.Duration) Option {
	return func(m *Model) {
		if d >= 0 {
			m.delay = d
		}
	}
}

// New creates a picker for w.
func New(ctx context.Context, w *widget.Widget, opts ...Option) *Model {
	ti := textinput.New()
	ti.Placeholder = w.Placeholder()
	ti.Prompt = "> "
	ti.CharLimit = 256
	ti.Focus()

	m := &Model{
		ctx:   ctx,
		w:     w,
		loc:   w.Localizer(),
		delay: DefaultDelay,
		input: ti,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case debounceMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		m.status = m.loc.T(locale.MsgSearching)
		m.failed = false
		return m, m.search(msg.query)

	case outcomeMsg:
		m.apply(msg.outcome)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Cancel):
		m.canceled = true
		return m, tea.Quit

	case key.Matches(msg, keys.Done):
		return m, tea.Quit

	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, keys.Down):
		if m.cursor < len(m.results)-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, keys.Select):
		if len(m.results) == 0 {
			return m, nil
		}
		if _, err := m.w.Select(m.results[m.cursor]); err != nil {
			m.status, m.failed = err.Error(), true
			return m, nil
		}
		m.results, m.cursor, m.status = nil, 0, ""
		if !m.w.Payload().Mode().Multiple {
			return m, tea.Quit
		}
		m.input.Reset()
		m.seq++
		return m, nil

	case key.Matches(msg, keys.Remove):
		m.removeLast()
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		m.seq++
		return m, tea.Batch(cmd, m.debounce(after))
	}
	return m, cmd
}

func (m *Model) removeLast() {
	items := m.w.Selection().Items()
	if len(items) == 0 {
		return
	}
	var err error
	if m.w.Payload().Mode().Multiple {
		_, err = m.w.Remove(items[len(items)-1].ID())
	} else {
		_, err = m.w.Clear()
	}
	if err != nil {
		m.status, m.failed = err.Error(), true
	}
}

func (m *Model) debounce(query string) tea.Cmd {
	seq := m.seq
	if m.delay == 0 {
		return func() tea.Msg { return debounceMsg{seq: seq, query: query} }
	}
	return tea.Tick(m.delay, func(time.Time) tea.Msg {
		return debounceMsg{seq: seq, query: query}
	})
}

func (m *Model) search(query string) tea.Cmd {
	ctx, w := m.ctx, m.w
	return func() tea.Msg {
		return outcomeMsg{outcome: w.Search(ctx, query)}
	}
}

func (m *Model) apply(o widget.Outcome) {
	if o.Stale {
		return
	}
	m.results, m.cursor, m.failed = o.Results, 0, false

	switch {
	case o.Skipped && o.Query != "":
		m.status = m.loc.MinChars(m.w.Payload().Config.MinSearchChars)
	case o.Skipped:
		m.status = ""
	case o.Phase == widget.PhaseSearchFailed:
		m.status, m.failed = m.loc.T(locale.MsgSearchFailed), true
	case len(o.Results) == 0:
		m.status = m.loc.T(locale.MsgNoResults)
	default:
		m.status = ""
	}
}

func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.w.Payload().Name))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")

	items := m.w.Selection().Items()
	if len(items) == 0 {
		b.WriteString(mutedStyle.Render(m.loc.T(locale.MsgEmptySelection)))
	} else {
		titles := make([]string, len(items))
		for i, it := range items {
			titles[i] = it.Title()
		}
		b.WriteString(selectedStyle.Render("✓ " + strings.Join(titles, ", ")))
	}
	b.WriteString("\n\n")

	for i, r := range m.results {
		line := "  " + r.Title()
		if i == m.cursor {
			line = cursorStyle.Render("▸ " + r.Title())
		}
		if m.w.Selection().Contains(r.ID()) {
			line += selectedStyle.Render(" ✓")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.status != "" {
		style := mutedStyle
		if m.failed {
			style = errorStyle
		}
		b.WriteString(style.Render(m.status))
		b.WriteString("\n")
	}

	help := make([]string, 0, 6)
	for _, k := range []key.Binding{keys.Up, keys.Down, keys.Select, keys.Remove, keys.Done, keys.Cancel} {
		help = append(help, k.Help().Key+" "+k.Help().Desc)
	}
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(strings.Join(help, " · ")))
	return b.String()
}

// Result returns the picker outcome.
func (m *Model) Result() Result {
	return Result{Value: m.w.HiddenValue(), Canceled: m.canceled}
}

// Run shows the picker until the user finishes or cancels.
func Run(ctx context.Context, w *widget.Widget, in io.Reader, out io.Writer, opts ...Option) (Result, error) {
	m := New(ctx, w, opts...)
	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithInput(in), tea.WithOutput(out))
	if _, err := p.Run(); err != nil {
		return Result{}, err
	}
	return m.Result(), nil
}
