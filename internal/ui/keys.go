package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	NextFilter key.Binding
	PrevFilter key.Binding
	Hangup     key.Binding
	Help       key.Binding
}

var keys = keyMap{
	NextFilter: key.NewBinding(
		key.WithKeys("right", "l", "f"),
		key.WithHelp("→/f", "next filter"),
	),
	PrevFilter: key.NewBinding(
		key.WithKeys("left", "h"),
		key.WithHelp("←", "previous filter"),
	),
	Hangup: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q", "hang up"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "toggle help"),
	),
}

// FullHelp returns all keybindings for the help view
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NextFilter, k.PrevFilter},
		{k.Hangup, k.Help},
	}
}

// ShortHelp returns minimal keybindings for the compact help view
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextFilter, k.Hangup, k.Help}
}
