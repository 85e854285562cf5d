package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// InputArea is the one-line prompt used to name new folders.
type InputArea struct {
	input textinput.Model
}

func NewInputArea() InputArea {
	ti := textinput.New()
	ti.Placeholder = "folder name"
	ti.Prompt = "new folder: "
	ti.CharLimit = 255
	return InputArea{input: ti}
}

func (ia InputArea) Init() tea.Cmd { return nil }

func (ia InputArea) Update(msg tea.Msg) (InputArea, tea.Cmd) {
	switch m := msg.(type) {
	case tea.KeyMsg:
		if m.Type == tea.KeyEnter {
			name := strings.TrimSpace(ia.input.Value())
			ia.input.Reset()
			return ia, func() tea.Msg { return NameEnteredMsg{Name: name} }
		}

		if key.Matches(m, defaultKeymap.cancel) {
			ia.input.Reset()
			return ia, func() tea.Msg { return NameEnteredMsg{} }
		}
	}

	var cmd tea.Cmd
	ia.input, cmd = ia.input.Update(msg)
	return ia, cmd
}

func (ia InputArea) View() string { return ia.input.View() }

func (ia *InputArea) Focus() tea.Cmd { return ia.input.Focus() }
func (ia *InputArea) Blur()          { ia.input.Blur() }
func (ia *InputArea) SetWidth(w int) { ia.input.Width = w }
