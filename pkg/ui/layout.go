package ui

import tea "github.com/charmbracelet/bubbletea"

// Layout contains the computed dimensions for all panels.
type Layout struct {
	Width  int
	Height int

	ListWidth    int
	DetailWidth  int
	PanelHeight  int
	InputHeight  int
	headerHeight int
	footerHeight int
}

// NewLayout splits the window into a listing on the left and details on the
// right, with a header and a status line.
func NewLayout(msg tea.WindowSizeMsg) Layout {
	l := Layout{Width: msg.Width, Height: msg.Height, headerHeight: 1, footerHeight: 2, InputHeight: 1}

	// Borders take two cells in each direction.
	l.ListWidth = max(msg.Width*2/5-2, 10)
	l.DetailWidth = max(msg.Width-l.ListWidth-4, 10)
	l.PanelHeight = max(msg.Height-l.headerHeight-l.footerHeight-2, 3)

	return l
}
