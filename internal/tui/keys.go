package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Record   key.Binding
	Play     key.Binding
	Rewind   key.Binding
	Up       key.Binding
	Down     key.Binding
	Delete   key.Binding
	Confirm  key.Binding
	EditName key.Binding
	EditDate key.Binding
	EditTime key.Binding
	Commit   key.Binding
	Cancel   key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Record, k.Play, k.Rewind, k.Delete, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Record, k.Play, k.Rewind},
		{k.Up, k.Down, k.Delete},
		{k.EditName, k.EditDate, k.EditTime},
		{k.Commit, k.Cancel, k.Help, k.Quit},
	}
}

var keys = keyMap{
	Record: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "record/stop"),
	),
	Play: key.NewBinding(
		key.WithKeys(" "),
		key.WithHelp("space", "play/pause"),
	),
	Rewind: key.NewBinding(
		key.WithKeys("b"),
		key.WithHelp("b", "rewind"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Delete: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "delete"),
	),
	Confirm: key.NewBinding(
		key.WithKeys("y"),
		key.WithHelp("y", "confirm delete"),
	),
	EditName: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "edit name"),
	),
	EditDate: key.NewBinding(
		key.WithKeys("D"),
		key.WithHelp("D", "edit date"),
	),
	EditTime: key.NewBinding(
		key.WithKeys("t"),
		key.WithHelp("t", "edit time"),
	),
	Commit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "save edit"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "cancel edit"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}
