package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/theapemachine/docprovider/pkg/client"
	"github.com/theapemachine/docprovider/pkg/documents"
	"github.com/theapemachine/docprovider/pkg/errors"
)

/*
namespace is what the document commands need, implemented by the local
provider and by a remote server.
*/
type namespace interface {
	Roots(ctx context.Context) ([]documents.Root, error)
	Document(ctx context.Context, id string) (documents.Document, error)
	Children(ctx context.Context, parentID, order string) ([]documents.Document, error)
	IsChild(ctx context.Context, parentID, childID string) (bool, error)
	Create(ctx context.Context, parentID, mimeType, displayName string) (documents.Document, error)
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, rootID, query string, limit int) ([]documents.Document, error)
	Recent(ctx context.Context, rootID string, limit int) ([]documents.Document, error)
	Read(ctx context.Context, id string, w io.Writer) (int64, error)
	Write(ctx context.Context, id string, r io.Reader, appendMode bool) (documents.Document, error)
	Close(ctx context.Context) error
}

type localNamespace struct {
	*stack
}

func (ns localNamespace) Roots(ctx context.Context) ([]documents.Root, error) {
	return ns.provider.Roots(ctx)
}

func (ns localNamespace) Document(ctx context.Context, id string) (documents.Document, error) {
	return ns.provider.Document(ctx, id)
}

func (ns localNamespace) Children(ctx context.Context, parentID, order string) ([]documents.Document, error) {
	return ns.provider.Children(ctx, parentID, order)
}

func (ns localNamespace) IsChild(ctx context.Context, parentID, childID string) (bool, error) {
	return ns.provider.IsChild(ctx, parentID, childID), nil
}

func (ns localNamespace) Create(ctx context.Context, parentID, mimeType, displayName string) (documents.Document, error) {
	id, err := ns.provider.Create(ctx, parentID, mimeType, displayName)
	if err != nil {
		return documents.Document{}, err
	}
	return ns.provider.Document(ctx, id)
}

func (ns localNamespace) Delete(ctx context.Context, id string) error {
	return ns.provider.Delete(ctx, id)
}

func (ns localNamespace) Search(ctx context.Context, rootID, query string, limit int) ([]documents.Document, error) {
	return ns.provider.Search(ctx, rootID, query, limit)
}

func (ns localNamespace) Recent(ctx context.Context, rootID string, limit int) ([]documents.Document, error) {
	return ns.provider.Recent(ctx, rootID, limit)
}

func (ns localNamespace) Read(ctx context.Context, id string, w io.Writer) (int64, error) {
	handle, err := ns.provider.Open(ctx, id, "r")
	if err != nil {
		return 0, err
	}
	defer handle.Close()

	return io.Copy(w, handle)
}

func (ns localNamespace) Write(ctx context.Context, id string, r io.Reader, appendMode bool) (documents.Document, error) {
	mode := "wt"
	if appendMode {
		mode = "wa"
	}

	handle, err := ns.provider.Open(ctx, id, mode)
	if err != nil {
		return documents.Document{}, err
	}

	if _, err := io.Copy(handle, r); err != nil {
		handle.Close()
		return documents.Document{}, errors.New(errors.IOFailure, "write", id, err)
	}

	if err := handle.Close(); err != nil {
		return documents.Document{}, errors.New(errors.IOFailure, "write", id, err)
	}

	return ns.provider.Document(ctx, id)
}

type remoteNamespace struct {
	*client.DocumentClient
}

func (remoteNamespace) Close(context.Context) error { return nil }

var (
	remoteFlag string
	tokenFlag  string
)

func remoteToken() string {
	if tokenFlag != "" {
		return tokenFlag
	}
	return os.Getenv("DOCPROVIDER_TOKEN")
}

/*
openNamespace connects to --remote when given, and otherwise mounts the
configured roots in-process.
*/
func openNamespace(ctx context.Context) (namespace, error) {
	if remoteFlag != "" {
		return remoteNamespace{client.NewDocumentClient(remoteFlag, remoteToken())}, nil
	}

	st, err := newStack(ctx, cfg, stackOptions{})
	if err != nil {
		return nil, err
	}

	return localNamespace{st}, nil
}

/*
resolveArg turns a command argument into a document ID. "root:a/b" walks
the named root by display name, a bare "root:" is the root itself, and
anything else is taken as a document ID.
*/
func resolveArg(ctx context.Context, ns namespace, arg string) (documents.Document, error) {
	rootID, rel, ok := strings.Cut(arg, ":")
	if !ok {
		return ns.Document(ctx, arg)
	}

	roots, err := ns.Roots(ctx)
	if err != nil {
		return documents.Document{}, err
	}

	var current documents.Document
	found := false

	for _, root := range roots {
		if root.ID == rootID {
			if current, err = ns.Document(ctx, root.DocumentID); err != nil {
				return documents.Document{}, err
			}
			found = true
			break
		}
	}

	if !found {
		return documents.Document{}, errors.Newf(errors.NotFound, "resolve", "", "no root %q", rootID)
	}

	for _, name := range strings.Split(rel, "/") {
		if name == "" || name == "." {
			continue
		}

		children, err := ns.Children(ctx, current.ID, "")
		if err != nil {
			return documents.Document{}, err
		}

		next := -1
		for i, child := range children {
			if child.DisplayName == name {
				next = i
				break
			}
		}

		if next < 0 {
			return documents.Document{}, errors.Newf(errors.NotFound, "resolve", "", "%s has no entry %q", current.DisplayName, name)
		}

		current = children[next]
	}

	return current, nil
}

// splitParent separates "root:a/b/name" into the parent reference and name.
func splitParent(arg string) (parent, name string, err error) {
	i := strings.LastIndex(arg, "/")
	if i < 0 {
		rootID, rest, ok := strings.Cut(arg, ":")
		if !ok || rest == "" {
			return "", "", fmt.Errorf("expected root:path/name, got %q", arg)
		}
		return rootID + ":", rest, nil
	}

	return arg[:i], arg[i+1:], nil
}
