package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up          key.Binding
	Down        key.Binding
	Add         key.Binding
	Toggle      key.Binding
	CycleStatus key.Binding
	Delete      key.Binding
	Palette     key.Binding
	Filter      key.Binding
	Sort        key.Binding
	ScrollDown  key.Binding
	ScrollUp    key.Binding
	Reload      key.Binding
	Help        key.Binding
	Quit        key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up:          key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		Down:        key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		Add:         key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "quick add")),
		Toggle:      key.NewBinding(key.WithKeys("x", " "), key.WithHelp("x/space", "toggle done")),
		CycleStatus: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "cycle status")),
		Delete:      key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Palette:     key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "command palette")),
		Filter:      key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "cycle status filter")),
		Sort:        key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "cycle sort")),
		ScrollDown:  key.NewBinding(key.WithKeys("J"), key.WithHelp("J", "scroll details down")),
		ScrollUp:    key.NewBinding(key.WithKeys("K"), key.WithHelp("K", "scroll details up")),
		Reload:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Help:        key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Add, k.Toggle, k.Palette, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.ScrollUp, k.ScrollDown, k.Reload},
		{k.Add, k.Toggle, k.CycleStatus, k.Delete},
		{k.Palette, k.Filter, k.Sort, k.Help, k.Quit},
	}
}
