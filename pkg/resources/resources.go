/*
Package resources publishes the document namespace as MCP resources, so a
client can attach documents to a conversation as context rather than
calling tools to read them.
*/
package resources

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/theapemachine/docprovider/pkg/documents"
	"github.com/theapemachine/docprovider/pkg/errors"
)

const (
	RootsURI         = "docprovider://roots"
	DocumentTemplate = "docprovider://documents/{id}"

	// DefaultMaxBytes caps how much of a file one read returns.
	DefaultMaxBytes = 1 << 20
)

// DocumentURI is the resource URI of document id.
func DocumentURI(id string) string {
	uri, _ := ExpandTemplate(DocumentTemplate, map[string]string{"id": id})
	return uri
}

/*
DocumentResources serves the roots list as a static resource and every
document through the template. Directories read as a JSON listing of their
children; files read as text when they are valid UTF-8, as a blob otherwise.
*/
type DocumentResources struct {
	provider *documents.Provider
	maxBytes int64
}

func NewDocumentResources(provider *documents.Provider) *DocumentResources {
	return &DocumentResources{provider: provider, maxBytes: DefaultMaxBytes}
}

func (dr *DocumentResources) Register(srv *server.MCPServer) {
	srv.AddResource(
		mcp.NewResource(
			RootsURI,
			"Document roots",
			mcp.WithResourceDescription("The roots visible to you, with the document ID of each root directory."),
			mcp.WithMIMEType("application/json"),
		),
		dr.HandleRoots,
	)

	srv.AddResourceTemplate(
		mcp.NewResourceTemplate(
			DocumentTemplate,
			"Document",
			mcp.WithTemplateDescription("A document by ID. Directories list their children."),
		),
		dr.HandleDocument,
	)
}

func (dr *DocumentResources) HandleRoots(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	roots, err := dr.provider.Roots(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(roots)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: RootsURI, MIMEType: "application/json", Text: string(data)},
	}, nil
}

func (dr *DocumentResources) HandleDocument(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	vars, err := matchTemplate(DocumentTemplate, req.Params.URI)
	if err != nil {
		return nil, errors.New(errors.InvalidArgument, "resource", "", err)
	}

	id := vars["id"]

	doc, err := dr.provider.Document(ctx, id)
	if err != nil {
		return nil, err
	}

	if doc.IsDir() {
		return dr.listing(ctx, req.Params.URI, id)
	}

	handle, err := dr.provider.Open(ctx, id, "r")
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	data, err := io.ReadAll(io.LimitReader(handle, dr.maxBytes))
	if err != nil {
		return nil, errors.New(errors.IOFailure, "resource", id, err)
	}

	if utf8.Valid(data) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: req.Params.URI, MIMEType: doc.MimeType, Text: string(data)},
		}, nil
	}

	return []mcp.ResourceContents{
		mcp.BlobResourceContents{URI: req.Params.URI, MIMEType: doc.MimeType, Blob: base64.StdEncoding.EncodeToString(data)},
	}, nil
}

type listingEntry struct {
	documents.Document
	URI string `json:"uri"`
}

func (dr *DocumentResources) listing(ctx context.Context, uri, id string) ([]mcp.ResourceContents, error) {
	children, err := dr.provider.Children(ctx, id, "")
	if err != nil {
		return nil, err
	}

	entries := make([]listingEntry, len(children))
	for i, child := range children {
		entries[i] = listingEntry{Document: child, URI: DocumentURI(child.ID)}
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: uri, MIMEType: "application/json", Text: string(data)},
	}, nil
}
