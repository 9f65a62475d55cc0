// Package ui renders the terminal status panel: the active session, how many images it
// holds, the last status line, and the rescan and reset controls.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"grokcapture/internal/logging"
	"grokcapture/internal/status"
)

// Hooks connect the panel to the running capture.
type Hooks struct {
	// Session returns the active session id.
	Session func() string
	// Peek returns the next sequence number of a session, 0 if unseen.
	Peek func(sessionID string) int
	// Rescan requests a full rescan.
	Rescan func()
	// Reset sets the counter of a session back to 1.
	Reset func(sessionID string) error
}

// StatusMsg delivers a status line to the panel.
type StatusMsg string

type tickMsg time.Time

const refreshInterval = 500 * time.Millisecond

// Model is the bubbletea model of the panel.
type Model struct {
	hooks   Hooks
	styles  Styles
	spinner spinner.Model

	session  string
	images   int
	status   string
	err      error
	quitting bool
}

// NewModel creates a panel model.
func NewModel(h Hooks, styles Styles) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Status

	m := Model{hooks: h, styles: styles, spinner: sp, status: "Watching"}
	m.refresh()
	return m
}

// Sink returns a status.Sink forwarding status lines to p.
func Sink(p *tea.Program) status.Sink {
	return status.Func(func(msg string) { p.Send(StatusMsg(msg)) })
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tick(), m.spinner.Tick)
}

func (m *Model) refresh() {
	if m.hooks.Session != nil {
		m.session = m.hooks.Session()
	}
	if m.hooks.Peek != nil {
		// The counter holds the next number, so saved images trail it by one.
		m.images = m.hooks.Peek(m.session) - 1
		if m.images < 0 {
			m.images = 0
		}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "r":
			logging.UIDebug("Rescan requested from panel")
			m.status = status.Rescanning
			if m.hooks.Rescan != nil {
				m.hooks.Rescan()
			}
		case "x":
			m.refresh()
			if m.hooks.Reset == nil {
				return m, nil
			}
			if err := m.hooks.Reset(m.session); err != nil {
				m.err = err
				return m, nil
			}
			m.err = nil
			m.status = status.CounterReset(m.session)
			m.refresh()
		}

	case StatusMsg:
		m.status = string(msg)
		m.refresh()

	case tickMsg:
		m.refresh()
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) statusStyle() lipgloss.Style {
	if strings.HasPrefix(m.status, status.SavedPrefix) {
		return m.styles.Saved
	}
	return m.styles.Status
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	s := m.styles
	var b strings.Builder
	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(s.Title.Render("Grok Image Saver Active"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s\n", s.Label.Render("Session:"), s.Value.Render(m.session))
	fmt.Fprintf(&b, "%s %s\n", s.Label.Render("Images in session:"), s.Value.Render(fmt.Sprint(m.images)))
	b.WriteString(m.statusStyle().Render(m.status))
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(s.Error.Render("Error: " + m.err.Error()))
	}
	b.WriteString("\n")
	b.WriteString(s.Help.Render("r rescan • x reset counter • q quit"))
	return s.Panel.Render(b.String()) + "\n"
}
