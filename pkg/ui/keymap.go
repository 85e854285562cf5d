package ui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
)

// keymap defines the global key bindings used by the browser and its components.
type keymap struct {
	enter   key.Binding
	back    key.Binding
	refresh key.Binding
	mkdir   key.Binding
	delete  key.Binding
	cancel  key.Binding
	quit    key.Binding
}

func newKeymap() keymap {
	return keymap{
		enter:   key.NewBinding(key.WithKeys("enter", "right", "l"), key.WithHelp("enter", "open")),
		back:    key.NewBinding(key.WithKeys("backspace", "left", "h"), key.WithHelp("backspace", "up")),
		refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		mkdir:   key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new folder")),
		delete:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		quit:    key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
	}
}

var defaultKeymap = newKeymap()

// newDelegateKeyMap disables filtering and quit keys for the list and only
// exposes navigation shortcuts.
func newDelegateKeyMap() list.KeyMap {
	return list.KeyMap{
		CursorUp:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑", "up")),
		CursorDown:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓", "down")),
		PrevPage:      key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "prev page")),
		NextPage:      key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdown", "next page")),
		GoToStart:     key.NewBinding(key.WithKeys("home"), key.WithHelp("home", "start")),
		GoToEnd:       key.NewBinding(key.WithKeys("end"), key.WithHelp("end", "end")),
		Filter:        key.NewBinding(key.WithDisabled()),
		Quit:          key.NewBinding(key.WithDisabled()),
		ShowFullHelp:  key.NewBinding(key.WithDisabled()),
		CloseFullHelp: key.NewBinding(key.WithDisabled()),
	}
}

func helpLine() string {
	k := defaultKeymap
	out := ""

	for i, b := range []key.Binding{k.enter, k.back, k.refresh, k.mkdir, k.delete, k.quit} {
		if i > 0 {
			out += " • "
		}
		out += b.Help().Key + " " + b.Help().Desc
	}

	return out
}
