package ui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rbright/livescribe/internal/session"
)

const commandTimeout = 5 * time.Second

// Controls is the command surface the TUI drives.
type Controls interface {
	Start(context.Context) (session.View, error)
	Stop(context.Context) (session.View, error)
	ToggleMute(context.Context) (session.View, error)
	Reset(context.Context) (session.View, error)
}

// CopyFunc exports the transcript and reports how many lines were copied.
type CopyFunc func(context.Context) (int, error)

// ViewMsg carries a fresh session view into the program.
type ViewMsg session.View

type commandDoneMsg struct {
	view *session.View
	note string
	err  error
}

// Model is the bubbletea model for the live panel.
type Model struct {
	controls Controls
	copyFn   CopyFunc
	views    <-chan session.View

	view   session.View
	width  int
	notice string
}

// NewModel builds a model seeded with initial. views feeds later snapshots; it may be nil.
func NewModel(controls Controls, copyFn CopyFunc, views <-chan session.View, initial session.View) Model {
	return Model{controls: controls, copyFn: copyFn, views: views, view: initial}
}

// NewProgram wraps m in an alt-screen program.
func NewProgram(m Model, opts ...tea.ProgramOption) *tea.Program {
	return tea.NewProgram(m, append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...)
}

func (m Model) Init() tea.Cmd {
	return waitForView(m.views)
}

func waitForView(views <-chan session.View) tea.Cmd {
	if views == nil {
		return nil
	}
	return func() tea.Msg {
		view, ok := <-views
		if !ok {
			return nil
		}
		return ViewMsg(view)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case ViewMsg:
		m.view = session.View(msg)
		return m, waitForView(m.views)

	case commandDoneMsg:
		m.notice = msg.note
		if msg.err != nil {
			m.notice = "error: " + msg.err.Error()
		}
		// With a subscription the reply view may be older than one already shown.
		if msg.view != nil && m.views == nil {
			m.view = *msg.view
		}

	case tea.KeyMsg:
		return m.handleKey(msg.String())
	}
	return m, nil
}

func (m Model) handleKey(key string) (tea.Model, tea.Cmd) {
	supported := m.view.Supported
	switch key {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "s":
		if supported && !m.view.Listening {
			return m, m.run(m.controls.Start, "")
		}
	case "x":
		if supported && m.view.Listening {
			return m, m.run(m.controls.Stop, "")
		}
	case "m", " ":
		if supported {
			return m, m.run(m.controls.ToggleMute, "")
		}
	case "r":
		return m, m.run(m.controls.Reset, "transcript cleared")
	case "c":
		return m, m.copyTranscript()
	}
	return m, nil
}

func (m Model) run(command func(context.Context) (session.View, error), note string) tea.Cmd {
	if m.controls == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		view, err := command(ctx)
		if err != nil {
			return commandDoneMsg{err: err}
		}
		return commandDoneMsg{view: &view, note: note}
	}
}

func (m Model) copyTranscript() tea.Cmd {
	if m.copyFn == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		n, err := m.copyFn(ctx)
		if err != nil {
			return commandDoneMsg{err: err}
		}
		return commandDoneMsg{note: CopyNote(n)}
	}
}

// CopyNote describes the outcome of a transcript copy of n lines.
func CopyNote(n int) string {
	if n == 0 {
		return "transcript is empty"
	}
	return fmt.Sprintf("copied %d line(s) to clipboard", n)
}

func (m Model) View() string {
	out := Render(m.view, m.width)
	if m.notice != "" {
		out += "\n" + dimStyle.Render(m.notice) + "\n"
	}
	return out
}
