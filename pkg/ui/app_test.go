package ui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theapemachine/docprovider/pkg/documents"
	"github.com/theapemachine/docprovider/pkg/notify"
)

func newTestBrowser(t *testing.T) (*Browser, afero.Fs) {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/a.txt", []byte("hello"), 0o644))
	require.NoError(t, fs.Mkdir("/data/b", 0o755))

	hub := notify.NewHub()
	provider, err := documents.NewProvider([]documents.RootConfig{
		{ID: "docs", Title: "Documents", Path: "/data", Flags: documents.DefaultRootFlags},
	}, documents.WithFilesystem(fs), documents.WithNotifier(hub))
	require.NoError(t, err)

	b := New(context.Background(), provider, hub)
	t.Cleanup(b.cancel)

	b.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return b, fs
}

func TestBrowserNavigation(t *testing.T) {
	b, _ := newTestBrowser(t)

	b.Update(b.Init()())
	require.Equal(t, 1, b.list.Len())

	root, ok := b.list.Selected()
	require.True(t, ok)
	assert.Equal(t, documents.DocumentID("docs", ""), root.id)
	assert.Equal(t, "/", b.path())

	b.Update(EntrySelectedMsg{Entry: root})
	assert.Equal(t, "/Documents", b.path())
	require.NotNil(t, b.sub)

	b.Update(b.loadChildren(root.id)())
	assert.Equal(t, 2, b.list.Len())

	first, _ := b.list.Selected()
	assert.Equal(t, "a.txt", first.name)
	assert.Equal(t, first.id, b.detail.id)

	// Files do not open as directories.
	b.Update(EntrySelectedMsg{Entry: first})
	assert.Len(t, b.trail, 1)

	b.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Empty(t, b.trail)
	assert.Nil(t, b.sub)
}

func TestBrowserIgnoresStaleListings(t *testing.T) {
	b, _ := newTestBrowser(t)
	b.Update(b.Init()())

	b.Update(childrenMsg{parentID: "elsewhere", docs: []documents.Document{{ID: "x"}}})
	assert.Equal(t, 1, b.list.Len())
}

func TestBrowserPreview(t *testing.T) {
	b, _ := newTestBrowser(t)
	id := documents.DocumentID("docs", "a.txt")

	_, listed := b.loadChildren(documents.DocumentID("docs", ""))().(childrenMsg)
	require.True(t, listed)

	msg := b.loadPreview(id)()
	assert.Equal(t, previewMsg{id: id, text: "hello"}, msg)

	_, isErr := b.loadPreview("missing")().(errorMsg)
	assert.True(t, isErr)
}

func TestBrowserMkdirAndDelete(t *testing.T) {
	b, fs := newTestBrowser(t)
	rootID := documents.DocumentID("docs", "")
	b.trail = []entry{{id: rootID, name: "Documents", dir: true}}

	msg := b.mkdir(rootID, "notes")()
	children, ok := msg.(childrenMsg)
	require.True(t, ok)
	assert.Len(t, children.docs, 3)

	exists, _ := afero.DirExists(fs, "/data/notes")
	assert.True(t, exists)

	b.Update(children)
	b.Update(NameEnteredMsg{})
	assert.False(t, b.naming)

	_, isErr := b.mkdir(rootID, "../escape")().(errorMsg)
	assert.True(t, isErr)
}

func TestBrowserView(t *testing.T) {
	b, _ := newTestBrowser(t)
	b.Update(b.Init()())

	view := b.View()
	assert.Contains(t, view, "docprovider")
	assert.Contains(t, view, "Documents")

	b.Update(errorMsg{err: assert.AnError})
	assert.Contains(t, b.View(), assert.AnError.Error())

	_, cmd := b.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, "", b.View())
}

func TestHumanBytes(t *testing.T) {
	assert.Equal(t, "512 B", humanBytes(512))
	assert.Equal(t, "1.0 KiB", humanBytes(1024))
	assert.Equal(t, "1.5 MiB", humanBytes(1536*1024))
}
