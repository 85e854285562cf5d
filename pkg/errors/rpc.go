package errors

import (
	"fmt"
	"time"
)

/*
RpcError represents a JSON-RPC error response.
*/
type RpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

/*
Error implements the error interface for RpcError.
*/
func (e *RpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// Convenience errors (JSON‑RPC reserved codes  -32600 .. -32000)
// Application specific codes should use other ranges.
var (
	ErrParseError     = &RpcError{Code: -32700, Message: "Parse error"}
	ErrInvalidRequest = &RpcError{Code: -32600, Message: "Invalid Request"}
	ErrMethodNotFound = &RpcError{Code: -32601, Message: "Method not found"}
	ErrInvalidParams  = &RpcError{Code: -32602, Message: "Invalid params"}
	ErrInternal       = &RpcError{Code: -32603, Message: "Internal error"}

	// Document namespace errors (-32000 to -32099)
	ErrDocumentNotFound = &RpcError{Code: -32004, Message: "Document not found"}
	ErrDocumentExists   = &RpcError{Code: -32005, Message: "Document already exists"}
	ErrUnsupported      = &RpcError{Code: -32006, Message: "Operation not supported"}
	ErrIOFailure        = &RpcError{Code: -32007, Message: "I/O failure"}
	ErrUnauthorized     = &RpcError{Code: -32008, Message: "Unauthorized"}
	ErrNotImplemented   = &RpcError{Code: -32099, Message: "Method not implemented"}
)

// WithMessagef creates a *copy* of an RpcError with a formatted message.
// It does not modify the original error variable.
func (e *RpcError) WithMessagef(format string, args ...any) *RpcError {
	newErr := *e
	newErr.Message = fmt.Sprintf(format, args...)
	return &newErr
}

/*
ToRPC converts any error returned by the document layer into the JSON-RPC
error carrying the matching code. The original message is preserved.
*/
func ToRPC(err error) *RpcError {
	if err == nil {
		return nil
	}

	if rpcErr, ok := As[*RpcError](err); ok {
		return rpcErr
	}

	var base *RpcError

	switch KindOf(err) {
	case NotFound:
		base = ErrDocumentNotFound
	case AlreadyExists:
		base = ErrDocumentExists
	case Unsupported:
		base = ErrUnsupported
	case InvalidArgument:
		base = ErrInvalidParams
	case IOFailure:
		base = ErrIOFailure
	default:
		base = ErrInternal
	}

	return base.WithMessagef("%s", err.Error())
}

// RetryConfig holds configuration for retry behavior.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig returns a sensible default retry configuration.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  time.Second,
		MaxDelay:      time.Minute,
		BackoffFactor: 2.0,
	}
}

// RetryWithBackoff executes a function with exponential backoff retry logic.
func RetryWithBackoff(config *RetryConfig, fn func() error) error {
	var err error
	delay := config.InitialDelay

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		if attempt == config.MaxAttempts-1 {
			break
		}

		time.Sleep(delay)
		delay = time.Duration(float64(delay) * config.BackoffFactor)
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	return fmt.Errorf("after %d attempts, last error: %w", config.MaxAttempts, err)
}

/*
FromRPC is the inverse of ToRPC: document codes come back as an Error of
the matching kind wrapping e. Other codes are returned as they are.
*/
func FromRPC(op string, e *RpcError) error {
	var kind Kind

	switch e.Code {
	case ErrDocumentNotFound.Code:
		kind = NotFound
	case ErrDocumentExists.Code:
		kind = AlreadyExists
	case ErrUnsupported.Code:
		kind = Unsupported
	case ErrInvalidParams.Code:
		kind = InvalidArgument
	case ErrIOFailure.Code:
		kind = IOFailure
	default:
		return e
	}

	return New(kind, op, "", e)
}
