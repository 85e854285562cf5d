package service

// A small, self-contained JSON-RPC 2.0 helper. Method handlers receive the raw
// params and return a result or an *errors.RpcError.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/theapemachine/docprovider/pkg/errors"
)

// --------------------------- Wire Types ------------------------------------

type RPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"` // accepts string | number | null
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type RPCResponse struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      json.RawMessage  `json:"id,omitempty"`
	Result  any              `json:"result,omitempty"`
	Error   *errors.RpcError `json:"error,omitempty"`
}

// --------------------------- Server  ---------------------------------------

// HandlerFunc processes the raw params field and returns a result or an error.
// Returning (nil, nil) is treated as null-result (i.e. {"result":null}).
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, *errors.RpcError)

// RPCServer multiplexes JSON-RPC method names to handler functions.
type RPCServer struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func NewRPCServer() *RPCServer {
	return &RPCServer{
		handlers: make(map[string]HandlerFunc),
	}
}

func (s *RPCServer) Register(method string, h HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// Methods lists the registered method names.
func (s *RPCServer) Methods() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.handlers))
	for m := range s.handlers {
		out = append(out, m)
	}

	return out
}

/*
Handle runs a single request or a batch and returns the encoded response.
ok is false when nothing should be written back because every request was a
notification.
*/
func (s *RPCServer) Handle(ctx context.Context, body []byte) (out []byte, ok bool) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return encode(newErrorResponse(nil, errors.ErrInvalidRequest)), true
	}

	// Batch requests start with '['
	if body[0] == '[' {
		var batch []RPCRequest
		if err := json.Unmarshal(body, &batch); err != nil {
			return encode(newErrorResponse(nil, errors.ErrParseError)), true
		}

		if len(batch) == 0 {
			return encode(newErrorResponse(nil, errors.ErrInvalidRequest)), true
		}

		var responses []RPCResponse
		for _, req := range batch {
			resp := s.handle(ctx, &req)
			// Notifications have no ID, skip sending a response.
			if len(req.ID) != 0 {
				responses = append(responses, resp)
			}
		}

		if len(responses) == 0 {
			return nil, false
		}

		return encode(responses), true
	}

	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return encode(newErrorResponse(nil, errors.ErrParseError)), true
	}

	resp := s.handle(ctx, &req)
	if len(req.ID) == 0 {
		return nil, false
	}

	return encode(resp), true
}

func (s *RPCServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "only POST supported", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		_, _ = w.Write(encode(newErrorResponse(nil, errors.ErrParseError)))
		return
	}

	out, ok := s.Handle(r.Context(), body)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(out)
}

func (s *RPCServer) handle(ctx context.Context, req *RPCRequest) RPCResponse {
	if req.JSONRPC != "2.0" {
		return newErrorResponse(req.ID, errors.ErrInvalidRequest)
	}

	s.mu.RLock()
	h, ok := s.handlers[req.Method]
	s.mu.RUnlock()
	if !ok {
		return newErrorResponse(req.ID, errors.ErrMethodNotFound.WithMessagef("Method not found: %s", req.Method))
	}

	result, rpcErr := h(ctx, req.Params)
	if rpcErr != nil {
		return newErrorResponse(req.ID, rpcErr)
	}

	return RPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
	}
}

func newErrorResponse(id json.RawMessage, e *errors.RpcError) RPCResponse {
	if e == nil {
		e = errors.ErrInternal
	}
	return RPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   e,
	}
}

func encode(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(newErrorResponse(nil, errors.ErrInternal.WithMessagef("%v", err)))
	}
	return b
}

// bind decodes params into out, mapping failures to Invalid params.
func bind(params json.RawMessage, out any) *errors.RpcError {
	if len(params) == 0 {
		return errors.ErrInvalidParams.WithMessagef("missing params")
	}

	if err := json.Unmarshal(params, out); err != nil {
		return errors.ErrInvalidParams.WithMessagef("failed to unmarshal params: %v", err)
	}

	return nil
}

// --------------------------- Client  ---------------------------------------

// RPCClient is a minimal wrapper around http.Client to perform JSON-RPC calls.
type RPCClient struct {
	Endpoint string
	Token    string
	HTTP     *http.Client

	mu     sync.Mutex
	nextID int
}

/*
Call invokes method and decodes the result into result. A JSON-RPC error
comes back as an *errors.RpcError.
*/
func (c *RPCClient) Call(ctx context.Context, method string, params any, result any) error {
	if c.HTTP == nil {
		c.HTTP = http.DefaultClient
	}

	c.mu.Lock()
	c.nextID++
	reqID := c.nextID
	c.mu.Unlock()

	id, _ := json.Marshal(reqID)

	payload := RPCRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
	}
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return err
		}
		payload.Params = b
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	if c.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return errors.ErrUnauthorized
	}

	var rpcResp struct {
		Result json.RawMessage  `json:"result"`
		Error  *errors.RpcError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if result != nil && len(rpcResp.Result) > 0 {
		return json.Unmarshal(rpcResp.Result, result)
	}
	return nil
}
