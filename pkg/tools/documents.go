package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/theapemachine/docprovider/pkg/auth"
	"github.com/theapemachine/docprovider/pkg/documents"
	"github.com/theapemachine/docprovider/pkg/resources"
)

// DefaultMaxRead caps how many bytes read_document returns.
const DefaultMaxRead = 1 << 20

/*
DocumentTools exposes a documents.Provider as MCP tools, so a model can
browse and edit the same namespace the HTTP API serves.
*/
type DocumentTools struct {
	provider *documents.Provider
	maxRead  int64
}

func NewDocumentTools(provider *documents.Provider) *DocumentTools {
	return &DocumentTools{provider: provider, maxRead: DefaultMaxRead}
}

/*
NewMCPServer builds an MCP server with every document tool and the document
resources registered.
*/
func NewMCPServer(provider *documents.Provider, version string) *server.MCPServer {
	srv := server.NewMCPServer(
		"docprovider",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithLogging(),
	)

	NewDocumentTools(provider).Register(srv)
	resources.NewDocumentResources(provider).Register(srv)
	return srv
}

/*
NewHTTPHandler serves srv over streamable HTTP. When svc is set, the bearer
token on each request decides which roots the tools can see.
*/
func NewHTTPHandler(srv *server.MCPServer, svc *auth.Service) http.Handler {
	return server.NewStreamableHTTPServer(
		srv,
		server.WithStateLess(true),
		server.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			if svc == nil {
				return auth.WithPrincipal(ctx, auth.Principal{Subject: "local"})
			}

			principal, err := svc.AuthenticateRequest(r)
			if err != nil {
				log.Warn("anonymous mcp request", "error", err)
				return ctx
			}

			return auth.WithPrincipal(ctx, principal)
		}),
	)
}

func (dt *DocumentTools) Register(srv *server.MCPServer) {
	srv.AddTool(mcp.NewTool(
		"list_roots",
		mcp.WithDescription("Lists the document roots you can browse, with their root document IDs."),
	), dt.handleListRoots)

	srv.AddTool(mcp.NewTool(
		"get_document",
		mcp.WithDescription("Returns the metadata of one document."),
		mcp.WithString("document_id", mcp.Description("Opaque document ID."), mcp.Required()),
	), dt.handleGetDocument)

	srv.AddTool(mcp.NewTool(
		"list_children",
		mcp.WithDescription("Lists the direct children of a directory document."),
		mcp.WithString("parent_id", mcp.Description("Directory document ID."), mcp.Required()),
		mcp.WithString("order", mcp.Description("name, modified or size, prefixed with - for descending.")),
	), dt.handleListChildren)

	srv.AddTool(mcp.NewTool(
		"is_child",
		mcp.WithDescription("Reports whether a document lives anywhere below a directory."),
		mcp.WithString("parent_id", mcp.Required()),
		mcp.WithString("child_id", mcp.Required()),
	), dt.handleIsChild)

	srv.AddTool(mcp.NewTool(
		"create_document",
		mcp.WithDescription("Creates an empty file or a directory under a parent directory and returns it."),
		mcp.WithString("parent_id", mcp.Required()),
		mcp.WithString("display_name", mcp.Description("Name of the new entry, without any path separators."), mcp.Required()),
		mcp.WithString("mime_type", mcp.Description("MIME type; use "+documents.MimeTypeDir+" for a directory."), mcp.Required()),
	), dt.handleCreate)

	srv.AddTool(mcp.NewTool(
		"read_document",
		mcp.WithDescription("Reads a file. Text comes back as is, anything else base64 encoded."),
		mcp.WithString("document_id", mcp.Required()),
	), dt.handleRead)

	srv.AddTool(mcp.NewTool(
		"write_document",
		mcp.WithDescription("Replaces the content of a file, or appends to it."),
		mcp.WithString("document_id", mcp.Required()),
		mcp.WithString("content", mcp.Required()),
		mcp.WithBoolean("append", mcp.Description("Append instead of replacing.")),
	), dt.handleWrite)

	srv.AddTool(mcp.NewTool(
		"delete_document",
		mcp.WithDescription("Deletes a file or a directory with everything below it."),
		mcp.WithString("document_id", mcp.Required()),
	), dt.handleDelete)

	srv.AddTool(mcp.NewTool(
		"search_documents",
		mcp.WithDescription("Finds documents in a root whose name contains the query."),
		mcp.WithString("root_id", mcp.Required()),
		mcp.WithString("query", mcp.Required()),
		mcp.WithNumber("limit"),
	), dt.handleSearch)

	srv.AddTool(mcp.NewTool(
		"recent_documents",
		mcp.WithDescription("Lists the most recently modified files in a root."),
		mcp.WithString("root_id", mcp.Required()),
		mcp.WithNumber("limit"),
	), dt.handleRecent)
}

func stringArg(req mcp.CallToolRequest, key string) (string, bool) {
	value, ok := req.GetArguments()[key].(string)
	return value, ok && value != ""
}

func intArg(req mcp.CallToolRequest, key string) int {
	// JSON numbers arrive as float64.
	switch v := req.GetArguments()[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}

	return 0
}

func missing(key string) *mcp.CallToolResult {
	return mcp.NewToolResultError(key + " parameter is required")
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	return mcp.NewToolResultText(string(b)), nil
}

/*
failed reports provider errors to the model rather than the transport, so
it can correct itself.
*/
func failed(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(err.Error()), nil
}

func (dt *DocumentTools) handleListRoots(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	roots, err := dt.provider.Roots(ctx)
	if err != nil {
		return failed(err)
	}

	return jsonResult(roots)
}

func (dt *DocumentTools) handleGetDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, ok := stringArg(req, "document_id")
	if !ok {
		return missing("document_id"), nil
	}

	doc, err := dt.provider.Document(ctx, id)
	if err != nil {
		return failed(err)
	}

	return jsonResult(doc)
}

func (dt *DocumentTools) handleListChildren(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, ok := stringArg(req, "parent_id")
	if !ok {
		return missing("parent_id"), nil
	}

	order, _ := stringArg(req, "order")

	docs, err := dt.provider.Children(ctx, id, order)
	if err != nil {
		return failed(err)
	}

	return jsonResult(docs)
}

func (dt *DocumentTools) handleIsChild(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	parent, ok := stringArg(req, "parent_id")
	if !ok {
		return missing("parent_id"), nil
	}

	child, ok := stringArg(req, "child_id")
	if !ok {
		return missing("child_id"), nil
	}

	return jsonResult(dt.provider.IsChild(ctx, parent, child))
}

func (dt *DocumentTools) handleCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	parent, ok := stringArg(req, "parent_id")
	if !ok {
		return missing("parent_id"), nil
	}

	name, ok := stringArg(req, "display_name")
	if !ok {
		return missing("display_name"), nil
	}

	mimeType, ok := stringArg(req, "mime_type")
	if !ok {
		return missing("mime_type"), nil
	}

	id, err := dt.provider.Create(ctx, parent, mimeType, name)
	if err != nil {
		return failed(err)
	}

	doc, err := dt.provider.Document(ctx, id)
	if err != nil {
		return failed(err)
	}

	return jsonResult(doc)
}

type readResult struct {
	Document  documents.Document `json:"document"`
	Encoding  string             `json:"encoding"`
	Content   string             `json:"content"`
	Truncated bool               `json:"truncated,omitempty"`
}

func (dt *DocumentTools) handleRead(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, ok := stringArg(req, "document_id")
	if !ok {
		return missing("document_id"), nil
	}

	handle, err := dt.provider.Open(ctx, id, "r")
	if err != nil {
		return failed(err)
	}
	defer handle.Close()

	data, err := io.ReadAll(io.LimitReader(handle, dt.maxRead+1))
	if err != nil {
		return failed(err)
	}

	out := readResult{Document: handle.Document(), Encoding: "utf-8"}

	if int64(len(data)) > dt.maxRead {
		data = cutRune(data[:dt.maxRead])
		out.Truncated = true
	}

	if utf8.Valid(data) {
		out.Content = string(data)
	} else {
		out.Encoding = "base64"
		out.Content = base64.StdEncoding.EncodeToString(data)
	}

	return jsonResult(out)
}

// cutRune drops a trailing rune the read cap split, so text stays text.
func cutRune(data []byte) []byte {
	for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(data[i]) {
			continue
		}

		if !utf8.FullRune(data[i:]) && utf8.Valid(data[:i]) {
			return data[:i]
		}
		break
	}

	return data
}

func (dt *DocumentTools) handleWrite(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, ok := stringArg(req, "document_id")
	if !ok {
		return missing("document_id"), nil
	}

	content, ok := req.GetArguments()["content"].(string)
	if !ok {
		return missing("content"), nil
	}

	mode := "wt"
	if appendMode, _ := req.GetArguments()["append"].(bool); appendMode {
		mode = "wa"
	}

	handle, err := dt.provider.Open(ctx, id, mode)
	if err != nil {
		return failed(err)
	}

	if _, err := io.Copy(handle, strings.NewReader(content)); err != nil {
		handle.Close()
		return failed(err)
	}

	if err := handle.Close(); err != nil {
		return failed(err)
	}

	return mcp.NewToolResultText(fmt.Sprintf("wrote %d bytes", len(content))), nil
}

func (dt *DocumentTools) handleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, ok := stringArg(req, "document_id")
	if !ok {
		return missing("document_id"), nil
	}

	if err := dt.provider.Delete(ctx, id); err != nil {
		return failed(err)
	}

	return mcp.NewToolResultText("deleted"), nil
}

func (dt *DocumentTools) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, ok := stringArg(req, "root_id")
	if !ok {
		return missing("root_id"), nil
	}

	query, ok := stringArg(req, "query")
	if !ok {
		return missing("query"), nil
	}

	docs, err := dt.provider.Search(ctx, root, query, intArg(req, "limit"))
	if err != nil {
		return failed(err)
	}

	return jsonResult(docs)
}

func (dt *DocumentTools) handleRecent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, ok := stringArg(req, "root_id")
	if !ok {
		return missing("root_id"), nil
	}

	docs, err := dt.provider.Recent(ctx, root, intArg(req, "limit"))
	if err != nil {
		return failed(err)
	}

	return jsonResult(docs)
}
