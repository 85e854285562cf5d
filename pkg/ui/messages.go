package ui

import (
	"github.com/theapemachine/docprovider/pkg/documents"
	"github.com/theapemachine/docprovider/pkg/notify"
)

// Message types for internal events
type rootsMsg struct{ roots []documents.Root }
type childrenMsg struct {
	parentID string
	docs     []documents.Document
}
type previewMsg struct {
	id   string
	text string
}
type changedMsg struct {
	sub    *notify.Subscription
	change notify.Change
}
type errorMsg struct{ err error }
type statusMsg struct{ text string }

// EntrySelectedMsg is sent when the user opens an entry in the listing.
type EntrySelectedMsg struct{ Entry entry }

// NameEnteredMsg carries the name typed into the input line.
type NameEnteredMsg struct{ Name string }
