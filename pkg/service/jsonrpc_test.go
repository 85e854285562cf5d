package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theapemachine/docprovider/pkg/errors"
)

func TestJSONRPCServerClientRoundTrip(t *testing.T) {
	srv := NewRPCServer()

	srv.Register("echo", func(ctx context.Context, params json.RawMessage) (any, *errors.RpcError) {
		var v string
		if err := json.Unmarshal(params, &v); err != nil {
			return nil, errors.ErrInvalidParams
		}
		return v, nil
	})

	ts, errTS := newTestServer(srv)
	if errTS != nil {
		t.Skip("network disabled in environment; skipping test")
	}
	defer ts.Close()

	client := &RPCClient{Endpoint: ts.URL}

	var out string
	require.NoError(t, client.Call(context.Background(), "echo", "hello", &out))
	assert.Equal(t, "hello", out)

	err := client.Call(context.Background(), "does.not.exist", nil, nil)
	rpcErr, ok := errors.As[*errors.RpcError](err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrMethodNotFound.Code, rpcErr.Code)
}

func TestJSONRPCServerHandlerReturnsError(t *testing.T) {
	srv := NewRPCServer()
	srv.Register("fail", func(ctx context.Context, params json.RawMessage) (any, *errors.RpcError) {
		return nil, &errors.RpcError{Code: 123, Message: "boom"}
	})

	ts, errTS := newTestServer(srv)
	if errTS != nil {
		t.Skip("network disabled in environment; skipping test")
	}
	defer ts.Close()

	client := &RPCClient{Endpoint: ts.URL}
	err := client.Call(context.Background(), "fail", nil, nil)

	rpcErr, ok := errors.As[*errors.RpcError](err)
	require.True(t, ok)
	assert.Equal(t, 123, rpcErr.Code)
	assert.Equal(t, "boom", rpcErr.Message)
}

func TestJSONRPCHandleBatchAndNotifications(t *testing.T) {
	srv := NewRPCServer()
	srv.Register("ping", func(ctx context.Context, params json.RawMessage) (any, *errors.RpcError) {
		return "pong", nil
	})

	out, ok := srv.Handle(context.Background(), []byte(`[
		{"jsonrpc":"2.0","id":1,"method":"ping"},
		{"jsonrpc":"2.0","method":"ping"},
		{"jsonrpc":"1.0","id":2,"method":"ping"}
	]`))
	require.True(t, ok)

	var responses []RPCResponse
	require.NoError(t, json.Unmarshal(out, &responses))
	require.Len(t, responses, 2)
	assert.Equal(t, "pong", responses[0].Result)
	assert.Equal(t, errors.ErrInvalidRequest.Code, responses[1].Error.Code)

	_, ok = srv.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","method":"ping"}`))
	assert.False(t, ok)

	out, ok = srv.Handle(context.Background(), []byte(`{not json`))
	require.True(t, ok)
	assert.Contains(t, string(out), "-32700")

	out, _ = srv.Handle(context.Background(), []byte(`   `))
	assert.Contains(t, string(out), "-32600")
}

// newTestServer wraps httptest.NewServer but converts the panic that is thrown
// when the environment forbids listening on sockets into a regular error so
// the caller can gracefully skip the test.
func newTestServer(h http.Handler) (*httptest.Server, error) {
	var srv *httptest.Server
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("listener not permitted: %v", r)
			}
		}()
		srv = httptest.NewServer(h)
	}()
	return srv, err
}
