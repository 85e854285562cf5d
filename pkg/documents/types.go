// Package documents maps opaque document identifiers onto root-contained
// directory trees and serves the namespace operations a file picker needs:
// roots, stat, listing, create, delete, open, search and recents.
package documents

import (
	"context"
	"io"
	"time"
)

const (
	// MimeTypeDir is the sentinel MIME type reported for directories.
	MimeTypeDir = "vnd.android.document/directory"

	// DefaultMimeType is used when no type can be derived from a name.
	DefaultMimeType = "application/octet-stream"

	// DefaultAvailableBytes is reported when a root has no capacity and the
	// host filesystem cannot be asked for free space.
	DefaultAvailableBytes int64 = 1_000_000_000
)

/*
Root is a top-level entry point into the namespace. Roots are built once from
configuration and never change while the provider lives.
*/
type Root struct {
	ID             string    `json:"rootId"`
	DocumentID     string    `json:"documentId"`
	Title          string    `json:"title"`
	Summary        string    `json:"summary,omitempty"`
	MimeTypes      []string  `json:"mimeTypes,omitempty"`
	AvailableBytes int64     `json:"availableBytes"`
	Icon           string    `json:"icon,omitempty"`
	Flags          RootFlags `json:"flags"`
}

/*
Document describes one node of the tree, a directory or a regular file.
Documents are never cached; every value is read from the filesystem at call
time.
*/
type Document struct {
	ID           string        `json:"documentId"`
	RootID       string        `json:"rootId"`
	DisplayName  string        `json:"displayName"`
	MimeType     string        `json:"mimeType"`
	LastModified time.Time     `json:"lastModified"`
	Size         int64         `json:"size"`
	Flags        DocumentFlags `json:"flags"`
}

// IsDir reports whether the document is a directory.
func (doc Document) IsDir() bool {
	return doc.MimeType == MimeTypeDir
}

/*
RootConfig describes a root to mount. Path is the base directory on the
backing filesystem; it is created when missing.
*/
type RootConfig struct {
	ID        string
	Title     string
	Summary   string
	Path      string
	MimeTypes []string
	Icon      string
	Capacity  int64
	Flags     RootFlags
}

/*
Authorizer decides whether the caller in ctx may see rootID. Roots the
caller may not see are left out of the root list, and their documents are
not found.
*/
type Authorizer func(ctx context.Context, rootID string) bool

/*
ClosedEvent is delivered to a CloseHook after a handle opened with write
intent has been closed.
*/
type ClosedEvent struct {
	Document Document
	RootID   string
	RelPath  string
	Open     func() (io.ReadCloser, error)
}

/*
CloseHook receives write-close events, typically to propagate local changes
to a remote store. Implementations must not block.
*/
type CloseHook interface {
	DocumentClosed(event ClosedEvent)
}
