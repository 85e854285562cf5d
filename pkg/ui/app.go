package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/theapemachine/docprovider/pkg/documents"
	"github.com/theapemachine/docprovider/pkg/notify"
)

const previewBytes = 4096

/*
Browser is a terminal file manager over a documents.Provider. It starts at
the roots, descends on enter and climbs back with backspace. When a hub is
given, the open directory refreshes itself whenever its children change.
*/
type Browser struct {
	ctx      context.Context
	cancel   context.CancelFunc
	provider *documents.Provider
	hub      *notify.Hub
	sub      *notify.Subscription

	layout   Layout
	list     EntryList
	detail   DetailView
	input    InputArea
	naming   bool
	trail    []entry
	status   string
	err      error
	quitting bool
}

func New(ctx context.Context, provider *documents.Provider, hub *notify.Hub) *Browser {
	ctx, cancel := context.WithCancel(ctx)

	return &Browser{
		ctx:      ctx,
		cancel:   cancel,
		provider: provider,
		hub:      hub,
		list:     NewEntryList(),
		detail:   NewDetailView(),
		input:    NewInputArea(),
	}
}

// Run starts the program on the alternate screen and blocks until quit.
func Run(ctx context.Context, provider *documents.Provider, hub *notify.Hub) error {
	_, err := tea.NewProgram(New(ctx, provider, hub), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func (b *Browser) Init() tea.Cmd {
	return b.loadRoots()
}

// current is the directory being shown, or false at the roots.
func (b *Browser) current() (entry, bool) {
	if len(b.trail) == 0 {
		return entry{}, false
	}
	return b.trail[len(b.trail)-1], true
}

func (b *Browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		b.layout = NewLayout(m)
		b.list.SetSize(b.layout.ListWidth, b.layout.PanelHeight)
		b.detail.SetSize(b.layout.DetailWidth, b.layout.PanelHeight)
		b.input.SetWidth(b.layout.Width - 16)
		return b, nil

	case rootsMsg:
		entries := make([]entry, len(m.roots))
		for i, root := range m.roots {
			entries[i] = entryFromRoot(root)
		}
		b.list.SetTitle("Roots")
		b.list.SetEntries(entries)
		return b, b.selectionChanged()

	case childrenMsg:
		if dir, ok := b.current(); !ok || dir.id != m.parentID {
			return b, nil
		}
		entries := make([]entry, len(m.docs))
		for i, doc := range m.docs {
			entries[i] = entryFromDocument(doc)
		}
		b.list.SetTitle(b.path())
		b.list.SetEntries(entries)
		return b, b.selectionChanged()

	case changedMsg:
		if m.sub != b.sub {
			return b, nil
		}
		cmd := b.waitForChange()
		if dir, ok := b.current(); ok {
			return b, tea.Batch(cmd, b.loadChildren(dir.id))
		}
		return b, cmd

	case EntrySelectedMsg:
		if !m.Entry.dir {
			return b, nil
		}
		b.trail = append(b.trail, m.Entry)
		b.list.SetEntries(nil)
		return b, tea.Batch(b.loadChildren(m.Entry.id), b.watch(m.Entry.id))

	case NameEnteredMsg:
		b.naming = false
		b.input.Blur()
		if m.Name == "" {
			return b, nil
		}
		if dir, ok := b.current(); ok {
			return b, b.mkdir(dir.id, m.Name)
		}
		return b, nil

	case previewMsg:
		var cmd tea.Cmd
		b.detail, cmd = b.detail.Update(m)
		return b, cmd

	case statusMsg:
		b.status, b.err = m.text, nil
		return b, nil

	case errorMsg:
		b.err = m.err
		return b, nil

	case tea.KeyMsg:
		if b.naming {
			var cmd tea.Cmd
			b.input, cmd = b.input.Update(m)
			return b, cmd
		}
		return b.handleKey(m)
	}

	return b, nil
}

func (b *Browser) handleKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(m, defaultKeymap.quit):
		b.quitting = true
		b.cancel()
		return b, tea.Quit

	case key.Matches(m, defaultKeymap.back):
		if len(b.trail) == 0 {
			return b, nil
		}
		b.trail = b.trail[:len(b.trail)-1]
		if dir, ok := b.current(); ok {
			return b, tea.Batch(b.loadChildren(dir.id), b.watch(dir.id))
		}
		b.unwatch()
		return b, b.loadRoots()

	case key.Matches(m, defaultKeymap.refresh):
		if dir, ok := b.current(); ok {
			return b, b.loadChildren(dir.id)
		}
		return b, b.loadRoots()

	case key.Matches(m, defaultKeymap.mkdir):
		if _, ok := b.current(); !ok {
			return b, nil
		}
		b.naming = true
		return b, b.input.Focus()

	case key.Matches(m, defaultKeymap.delete):
		e, ok := b.list.Selected()
		if _, inDir := b.current(); !ok || !inDir {
			return b, nil
		}
		return b, b.remove(e)
	}

	var cmd tea.Cmd
	b.list, cmd = b.list.Update(m)
	return b, tea.Batch(cmd, b.selectionChanged())
}

func (b *Browser) View() string {
	if b.quitting {
		return ""
	}

	header := headerStyle.Width(b.layout.Width).Render("docprovider  " + b.path())

	listPanel := activeStyle.Render(b.list.View())
	detailPanel := inactiveStyle.Width(b.layout.DetailWidth).Height(b.layout.PanelHeight).Render(b.detail.View())
	body := lipgloss.JoinHorizontal(lipgloss.Top, listPanel, detailPanel)

	footer := statusBarStyle.Render(helpLine())

	switch {
	case b.naming:
		footer = b.input.View()
	case b.err != nil:
		footer = errorStyle.Render("error: ") + b.err.Error()
	case b.status != "":
		footer = okStyle.Render(b.status)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (b *Browser) path() string {
	if len(b.trail) == 0 {
		return "/"
	}

	names := make([]string, len(b.trail))
	for i, e := range b.trail {
		names[i] = e.name
	}

	return "/" + strings.Join(names, "/")
}

/*
selectionChanged shows the highlighted entry and, for text files, fetches
a preview of its first bytes.
*/
func (b *Browser) selectionChanged() tea.Cmd {
	e, ok := b.list.Selected()
	if !ok {
		b.detail.Clear()
		return nil
	}

	b.detail.Show(e)

	if e.dir || !strings.HasPrefix(e.mimeType, "text/") {
		return nil
	}

	return b.loadPreview(e.id)
}

func (b *Browser) loadRoots() tea.Cmd {
	return func() tea.Msg {
		roots, err := b.provider.Roots(b.ctx)
		if err != nil {
			return errorMsg{err}
		}
		return rootsMsg{roots: roots}
	}
}

func (b *Browser) loadChildren(id string) tea.Cmd {
	return func() tea.Msg {
		docs, err := b.provider.Children(b.ctx, id, "")
		if err != nil {
			return errorMsg{err}
		}
		return childrenMsg{parentID: id, docs: docs}
	}
}

func (b *Browser) loadPreview(id string) tea.Cmd {
	return func() tea.Msg {
		handle, err := b.provider.Open(b.ctx, id, "r")
		if err != nil {
			return errorMsg{err}
		}
		defer handle.Close()

		data, err := io.ReadAll(io.LimitReader(handle, previewBytes))
		if err != nil {
			return errorMsg{err}
		}

		if !utf8.Valid(data) {
			return previewMsg{id: id, text: "(binary)"}
		}

		return previewMsg{id: id, text: string(data)}
	}
}

func (b *Browser) mkdir(parentID, name string) tea.Cmd {
	return func() tea.Msg {
		if _, err := b.provider.Create(b.ctx, parentID, documents.MimeTypeDir, name); err != nil {
			return errorMsg{err}
		}
		return b.loadChildren(parentID)()
	}
}

func (b *Browser) remove(e entry) tea.Cmd {
	dir, _ := b.current()

	return tea.Sequence(
		func() tea.Msg {
			if err := b.provider.Delete(b.ctx, e.id); err != nil {
				return errorMsg{err}
			}
			return statusMsg{text: fmt.Sprintf("deleted %s", e.name)}
		},
		b.loadChildren(dir.id),
	)
}

/*
watch moves the change subscription to id. Without a hub the browser only
refreshes on demand.
*/
func (b *Browser) watch(id string) tea.Cmd {
	if b.hub == nil {
		return nil
	}

	b.unwatch()
	b.sub = b.hub.Subscribe(b.ctx, id)
	return b.waitForChange()
}

func (b *Browser) unwatch() {
	if b.sub != nil {
		b.sub.Cancel()
		b.sub = nil
	}
}

func (b *Browser) waitForChange() tea.Cmd {
	sub := b.sub
	if sub == nil {
		return nil
	}

	return func() tea.Msg {
		change, ok := <-sub.C
		if !ok {
			return nil
		}
		return changedMsg{sub: sub, change: change}
	}
}
