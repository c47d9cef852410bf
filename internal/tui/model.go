// Package tui is the terminal front end of the deck.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/audiolibrelab/tapedeck/internal/service"
	"github.com/audiolibrelab/tapedeck/internal/tape"
)

const refreshInterval = 250 * time.Millisecond

type snapshotMsg service.Snapshot

type refreshMsg time.Time

type closedMsg struct{}

// opDoneMsg reports the result of an intent run off the update loop.
type opDoneMsg struct{ err error }

// Model renders a service.Service and turns key presses into intents.
type Model struct {
	svc     service.Service
	ctx     context.Context
	updates <-chan service.Snapshot
	stop    func()

	snap    service.Snapshot
	editing bool
	input   textinput.Model
	help    help.Model
	err     error
	width   int
}

// New subscribes to svc. The subscription ends when the program quits.
func New(ctx context.Context, svc service.Service) Model {
	updates, stop := svc.Subscribe()

	ti := textinput.New()
	ti.CharLimit = 64
	ti.Prompt = ""

	return Model{
		svc:     svc,
		ctx:     ctx,
		updates: updates,
		stop:    stop,
		snap:    svc.Snapshot(),
		input:   ti,
		help:    help.New(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForSnapshot(m.updates), refresh())
}

func waitForSnapshot(updates <-chan service.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return closedMsg{}
		}
		return snapshotMsg(snap)
	}
}

func refresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

// run executes a possibly blocking intent outside the update loop.
func run(fn func() error) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{err: fn()}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case snapshotMsg:
		m.snap = service.Snapshot(msg)
		return m, waitForSnapshot(m.updates)

	case refreshMsg:
		m.snap = m.svc.Snapshot()
		return m, refresh()

	case closedMsg:
		return m, tea.Quit

	case opDoneMsg:
		m.err = msg.err
		m.snap = m.svc.Snapshot()
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m.quit()
		}
		if m.editing {
			return m.handleEditKeys(msg)
		}
		if m.snap.PendingDelete != "" {
			return m.handlePromptKeys(msg)
		}
		return m.handleMainKeys(msg)
	}

	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.stop != nil {
		m.stop()
	}
	return m, tea.Quit
}

// handlePromptKeys confirms on y; any other key keeps the recording.
func (m Model) handlePromptKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.Confirm) {
		m.err = m.svc.ConfirmDelete()
	} else {
		m.svc.CancelDelete()
	}
	m.snap = m.svc.Snapshot()
	return m, nil
}

func (m Model) handleEditKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Commit):
		m.svc.CommitEdit()
		return m.endEdit(), nil
	case key.Matches(msg, keys.Cancel):
		m.svc.CancelEdit()
		return m.endEdit(), nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if value := m.input.Value(); value != before {
		m.err = m.svc.EditInput(value)
		m.snap = m.svc.Snapshot()
		if m.snap.Editing == nil {
			// the recording went away underneath us
			return m.endEdit(), cmd
		}
	}
	return m, cmd
}

func (m Model) endEdit() Model {
	m.editing = false
	m.input.Blur()
	m.input.SetValue("")
	m.snap = m.svc.Snapshot()
	return m
}

func (m Model) beginEdit(field tape.Field) (tea.Model, tea.Cmd) {
	if m.snap.Selected == "" {
		return m, nil
	}
	value, err := m.svc.BeginEdit(m.snap.Selected, field)
	m.snap = m.svc.Snapshot()
	if err != nil || m.snap.Editing == nil {
		m.err = err
		return m, nil
	}
	m.editing = true
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m, m.input.Focus()
}

func (m Model) handleMainKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	svc, ctx := m.svc, m.ctx

	switch {
	case key.Matches(msg, keys.Quit):
		return m.quit()

	case key.Matches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, keys.Record):
		m.err = nil
		return m, run(func() error { return svc.ToggleRecording(ctx) })

	case key.Matches(msg, keys.Play):
		return m, run(func() error { return svc.TogglePlay(ctx, "") })

	case key.Matches(msg, keys.Rewind):
		return m, run(func() error { return svc.Rewind(ctx, "") })

	case key.Matches(msg, keys.Up):
		m.moveSelection(-1)

	case key.Matches(msg, keys.Down):
		m.moveSelection(1)

	case key.Matches(msg, keys.Delete):
		svc.RequestDelete("")
		m.snap = svc.Snapshot()

	case key.Matches(msg, keys.EditName):
		return m.beginEdit(tape.FieldName)

	case key.Matches(msg, keys.EditDate):
		return m.beginEdit(tape.FieldDate)

	case key.Matches(msg, keys.EditTime):
		return m.beginEdit(tape.FieldTime)
	}

	return m, nil
}

func (m *Model) moveSelection(delta int) {
	recs := m.snap.Recordings
	if len(recs) == 0 {
		return
	}

	idx := -1
	for i, r := range recs {
		if r.ID == m.snap.Selected {
			idx = i
			break
		}
	}

	next := idx + delta
	if idx < 0 {
		next = 0
		if delta < 0 {
			next = len(recs) - 1
		}
	}
	if next < 0 || next >= len(recs) {
		return
	}

	m.err = m.svc.Select(recs[next].ID)
	m.snap = m.svc.Snapshot()
}
