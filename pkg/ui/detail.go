package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DetailView shows the metadata of the highlighted entry and a preview.
type DetailView struct {
	viewport viewport.Model
	id       string
	meta     string
	preview  string
}

func NewDetailView() DetailView {
	vp := viewport.New(0, 0)
	vp.Style = noborderStyle
	return DetailView{viewport: vp}
}

func (dv DetailView) Init() tea.Cmd { return nil }

func (dv DetailView) Update(msg tea.Msg) (DetailView, tea.Cmd) {
	switch m := msg.(type) {
	case previewMsg:
		if m.id != dv.id {
			return dv, nil
		}
		dv.preview = m.text
		dv.render()
		return dv, nil
	}

	var cmd tea.Cmd
	dv.viewport, cmd = dv.viewport.Update(msg)
	return dv, cmd
}

func (dv DetailView) View() string { return dv.viewport.View() }

func (dv *DetailView) SetSize(w, h int) {
	dv.viewport.Width = w
	dv.viewport.Height = h
	dv.render()
}

// Show switches the view to e and clears the old preview.
func (dv *DetailView) Show(e entry) {
	if e.id == dv.id {
		return
	}

	rows := [][2]string{
		{"name", e.name},
		{"id", e.id},
		{"type", e.mimeType},
	}

	if e.root != nil {
		rows = append(rows, [2]string{"root", e.root.ID}, [2]string{"free", humanBytes(e.root.AvailableBytes)})
	} else {
		rows = append(rows, [2]string{"modified", e.modified.Format(time.RFC1123)})
		if !e.dir {
			rows = append(rows, [2]string{"size", humanBytes(e.size)})
		}
	}

	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(row[0]), row[1])
	}

	dv.id = e.id
	dv.meta = strings.Join(lines, "\n")
	dv.preview = ""
	dv.render()
	dv.viewport.GotoTop()
}

func (dv *DetailView) Clear() {
	dv.id, dv.meta, dv.preview = "", "", ""
	dv.render()
}

func (dv *DetailView) render() {
	content := dv.meta
	if dv.preview != "" {
		content += "\n\n" + dv.preview
	}
	dv.viewport.SetContent(content)
}
