package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/theapemachine/docprovider/pkg/documents"
)

/*
entry is one row in the listing. Roots and documents both become entries so
the browser can treat the roots view as just another directory.
*/
type entry struct {
	id       string
	name     string
	mimeType string
	size     int64
	modified time.Time
	dir      bool
	root     *documents.Root
}

func entryFromRoot(root documents.Root) entry {
	return entry{id: root.DocumentID, name: root.Title, mimeType: documents.MimeTypeDir, dir: true, root: &root}
}

func entryFromDocument(doc documents.Document) entry {
	return entry{
		id:       doc.ID,
		name:     doc.DisplayName,
		mimeType: doc.MimeType,
		size:     doc.Size,
		modified: doc.LastModified,
		dir:      doc.IsDir(),
	}
}

func (e entry) Title() string {
	if e.dir {
		return e.name + "/"
	}
	return e.name
}

func (e entry) Description() string {
	switch {
	case e.root != nil:
		return fmt.Sprintf("%s free", humanBytes(e.root.AvailableBytes))
	case e.dir:
		return "folder · " + e.modified.Format(time.DateTime)
	}

	return fmt.Sprintf("%s · %s", humanBytes(e.size), e.modified.Format(time.DateTime))
}

func (e entry) FilterValue() string { return e.name }

func humanBytes(n int64) string {
	if n < 0 {
		return "unknown"
	}
	return humanize.IBytes(uint64(n))
}

// EntryList is a bubbletea component displaying the current directory.
type EntryList struct {
	list list.Model
}

func NewEntryList() EntryList {
	delegate := list.NewDefaultDelegate()
	delegate.SetSpacing(0)
	delegate.ShortHelpFunc = func() []key.Binding { return []key.Binding{} }
	delegate.FullHelpFunc = func() [][]key.Binding { return [][]key.Binding{} }

	l := list.New(nil, delegate, 0, 0)
	l.Title = "Roots"
	l.Styles.Title = titleStyle
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	l.KeyMap = newDelegateKeyMap()

	return EntryList{list: l}
}

func (el EntryList) Init() tea.Cmd { return nil }

func (el EntryList) Update(msg tea.Msg) (EntryList, tea.Cmd) {
	switch m := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(m, defaultKeymap.enter) {
			if it, ok := el.list.SelectedItem().(entry); ok {
				return el, func() tea.Msg { return EntrySelectedMsg{Entry: it} }
			}
			return el, nil
		}
	}

	var cmd tea.Cmd
	el.list, cmd = el.list.Update(msg)
	return el, cmd
}

func (el EntryList) View() string { return el.list.View() }

func (el *EntryList) SetSize(w, h int) { el.list.SetSize(w, h) }

func (el *EntryList) SetTitle(title string) { el.list.Title = title }

// Selected returns the highlighted entry, if any.
func (el EntryList) Selected() (entry, bool) {
	it, ok := el.list.SelectedItem().(entry)
	return it, ok
}

/*
SetEntries replaces the listing, keeping the cursor on the entry with the
same ID when it is still present.
*/
func (el *EntryList) SetEntries(entries []entry) {
	current, hadCurrent := el.Selected()

	items := make([]list.Item, len(entries))
	selected := 0

	for i, e := range entries {
		items[i] = e
		if hadCurrent && e.id == current.id {
			selected = i
		}
	}

	el.list.SetItems(items)
	el.list.Select(selected)
}

func (el EntryList) Len() int { return len(el.list.Items()) }
