// Package client talks to a remote docprovider server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/docprovider/pkg/auth"
	"github.com/theapemachine/docprovider/pkg/documents"
	"github.com/theapemachine/docprovider/pkg/errors"
	"github.com/theapemachine/docprovider/pkg/notify"
	"github.com/theapemachine/docprovider/pkg/service"
)

/*
DocumentClient mirrors the documents.Provider API over HTTP. Metadata goes
through JSON-RPC, content through the REST endpoints, and changes through
the SSE stream. Errors carry the same kinds the provider returns.
*/
type DocumentClient struct {
	baseURL   string
	token     string
	http      *http.Client
	rpcClient *service.RPCClient
}

// NewDocumentClient creates a client for the server at baseURL.
func NewDocumentClient(baseURL, token string) *DocumentClient {
	baseURL = strings.TrimRight(baseURL, "/")
	httpClient := &http.Client{Timeout: 60 * time.Second}

	return &DocumentClient{
		baseURL: baseURL,
		token:   token,
		http:    httpClient,
		rpcClient: &service.RPCClient{
			Endpoint: baseURL + "/rpc",
			Token:    token,
			HTTP:     httpClient,
		},
	}
}

func (client *DocumentClient) call(ctx context.Context, method string, params, result any) error {
	err := client.rpcClient.Call(ctx, method, params, result)

	if rpcErr, ok := errors.As[*errors.RpcError](err); ok {
		return errors.FromRPC(method, rpcErr)
	}

	return err
}

func (client *DocumentClient) Roots(ctx context.Context) (roots []documents.Root, err error) {
	err = client.call(ctx, "roots/list", nil, &roots)
	return roots, err
}

func (client *DocumentClient) Root(ctx context.Context, rootID string) (root documents.Root, err error) {
	err = client.call(ctx, "roots/get", map[string]string{"rootId": rootID}, &root)
	return root, err
}

func (client *DocumentClient) Document(ctx context.Context, id string) (doc documents.Document, err error) {
	err = client.call(ctx, "documents/get", map[string]string{"documentId": id}, &doc)
	return doc, err
}

func (client *DocumentClient) Children(ctx context.Context, parentID, order string) (docs []documents.Document, err error) {
	err = client.call(ctx, "documents/children", map[string]string{"parentId": parentID, "order": order}, &docs)
	return docs, err
}

func (client *DocumentClient) IsChild(ctx context.Context, parentID, childID string) (ok bool, err error) {
	err = client.call(ctx, "documents/isChild", map[string]string{"parentId": parentID, "childId": childID}, &ok)
	return ok, err
}

func (client *DocumentClient) Create(ctx context.Context, parentID, mimeType, displayName string) (doc documents.Document, err error) {
	err = client.call(ctx, "documents/create", map[string]string{
		"parentId":    parentID,
		"mimeType":    mimeType,
		"displayName": displayName,
	}, &doc)
	return doc, err
}

func (client *DocumentClient) Delete(ctx context.Context, id string) error {
	return client.call(ctx, "documents/delete", map[string]string{"documentId": id}, nil)
}

func (client *DocumentClient) Search(ctx context.Context, rootID, query string, limit int) (docs []documents.Document, err error) {
	err = client.call(ctx, "documents/search", map[string]any{"rootId": rootID, "query": query, "limit": limit}, &docs)
	return docs, err
}

func (client *DocumentClient) Recent(ctx context.Context, rootID string, limit int) (docs []documents.Document, err error) {
	err = client.call(ctx, "documents/recent", map[string]any{"rootId": rootID, "limit": limit}, &docs)
	return docs, err
}

func (client *DocumentClient) do(req *http.Request, op, id string) (*http.Response, error) {
	if client.token != "" {
		req.Header.Set("Authorization", "Bearer "+client.token)
	}

	resp, err := client.http.Do(req)
	if err != nil {
		return nil, errors.New(errors.IOFailure, op, id, err)
	}

	if resp.StatusCode < http.StatusBadRequest {
		return resp, nil
	}

	defer resp.Body.Close()

	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)

	if body.Error == "" {
		body.Error = resp.Status
	}

	return nil, errors.Newf(errors.KindFromStatus(resp.StatusCode), op, id, "%s", body.Error)
}

/*
Refresh trades refreshToken for a new token pair and uses the new token for
later calls. The token it replaces stops working on the server.
*/
func (client *DocumentClient) Refresh(ctx context.Context, refreshToken string) (*auth.TokenInfo, error) {
	body, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, client.baseURL+"/auth/refresh", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.do(req, "refresh", "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var tok auth.TokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, errors.New(errors.IOFailure, "refresh", "", err)
	}

	client.token = tok.Token
	client.rpcClient.Token = tok.Token

	return &tok, nil
}

// Revoke revokes the token the client authenticates with.
func (client *DocumentClient) Revoke(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, client.baseURL+"/auth/revoke", nil)
	if err != nil {
		return err
	}

	resp, err := client.do(req, "revoke", "")
	if err != nil {
		return err
	}

	return resp.Body.Close()
}

/*
Read copies the content of document id into w.
*/
func (client *DocumentClient) Read(ctx context.Context, id string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, client.baseURL+"/documents/"+url.PathEscape(id)+"/content", nil)
	if err != nil {
		return 0, err
	}

	resp, err := client.do(req, "read", id)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	return io.Copy(w, resp.Body)
}

/*
Write replaces the content of document id with r, or appends r when
appendMode is set.
*/
func (client *DocumentClient) Write(ctx context.Context, id string, r io.Reader, appendMode bool) (doc documents.Document, err error) {
	mode := "wt"
	if appendMode {
		mode = "wa"
	}

	target := client.baseURL + "/documents/" + url.PathEscape(id) + "/content?mode=" + mode

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, r)
	if err != nil {
		return doc, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := client.do(req, "write", id)
	if err != nil {
		return doc, err
	}
	defer resp.Body.Close()

	err = json.NewDecoder(resp.Body).Decode(&doc)
	return doc, err
}

/*
Watch follows the change stream for parentID, or for everything when it is
empty, calling fn for each change until ctx ends. A dropped connection is
retried; changes published while disconnected are missed.
*/
func (client *DocumentClient) Watch(ctx context.Context, parentID string, fn func(notify.Change)) error {
	target := client.baseURL + "/events"
	if parentID != "" {
		target += "?parent=" + url.QueryEscape(parentID)
	}

	stream := NewEventStream(target)
	if client.token != "" {
		stream.Headers["Authorization"] = "Bearer " + client.token
	}

	err := stream.Subscribe(ctx, func(event *Event) {
		var change notify.Change
		if err := json.Unmarshal(event.Data, &change); err != nil {
			log.Warn("skipping malformed event", "event", event.Event, "error", err)
			return
		}

		fn(change)
	})

	if status, ok := errors.As[*StatusError](err); ok {
		var body struct {
			Error string `json:"error"`
		}
		if json.Unmarshal([]byte(status.Body), &body) != nil || body.Error == "" {
			body.Error = http.StatusText(status.Code)
		}
		return errors.Newf(errors.KindFromStatus(status.Code), "watch", parentID, "%s", body.Error)
	}

	if err != nil {
		return errors.New(errors.IOFailure, "watch", parentID, err)
	}

	return nil
}
