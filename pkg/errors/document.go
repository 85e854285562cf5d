package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"net/http"
)

/*
Kind classifies a failure of the document layer. Callers branch on the kind,
never on the message.
*/
type Kind uint8

const (
	Unknown Kind = iota
	NotFound
	AlreadyExists
	Unsupported
	IOFailure
	InvalidArgument
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case AlreadyExists:
		return "already exists"
	case Unsupported:
		return "unsupported"
	case IOFailure:
		return "i/o failure"
	case InvalidArgument:
		return "invalid argument"
	}

	return "unknown"
}

// Error implements error so a bare Kind can be the target of errors.Is.
func (k Kind) Error() string {
	return k.String()
}

/*
Error is the typed failure returned by every document operation.
*/
type Error struct {
	Kind Kind
	Op   string
	ID   string
	Err  error
}

/*
New builds an Error. The cause may be nil.
*/
func New(kind Kind, op, id string, cause error) *Error {
	return &Error{Kind: kind, Op: op, ID: id, Err: cause}
}

/*
Newf builds an Error whose cause is a formatted message.
*/
func Newf(kind Kind, op, id, format string, args ...any) *Error {
	return New(kind, op, id, fmt.Errorf(format, args...))
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.String()

	if e.ID != "" {
		msg += " (" + e.ID + ")"
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, errors.NotFound) match on the kind.
func (e *Error) Is(target error) bool {
	if k, ok := target.(Kind); ok {
		return e.Kind == k
	}

	return false
}

/*
FromFS converts a filesystem error into an Error of the matching kind.
Anything unrecognised is an IOFailure.
*/
func FromFS(op, id string, err error) error {
	if err == nil {
		return nil
	}

	if _, ok := As[*Error](err); ok {
		return err
	}

	switch {
	case stderrors.Is(err, fs.ErrNotExist):
		return New(NotFound, op, id, err)
	case stderrors.Is(err, fs.ErrExist):
		return New(AlreadyExists, op, id, err)
	case stderrors.Is(err, fs.ErrInvalid):
		return New(InvalidArgument, op, id, err)
	}

	return New(IOFailure, op, id, err)
}

/*
KindOf returns the kind carried anywhere in the chain of err.
*/
func KindOf(err error) Kind {
	if e, ok := As[*Error](err); ok {
		return e.Kind
	}

	return Unknown
}

/*
HTTPStatus maps an error onto the status code used by the HTTP surface.
*/
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case NotFound:
		return http.StatusNotFound
	case AlreadyExists:
		return http.StatusConflict
	case Unsupported:
		return http.StatusMethodNotAllowed
	case InvalidArgument:
		return http.StatusBadRequest
	}

	return http.StatusInternalServerError
}

/*
As is a generic wrapper around the standard errors.As.
*/
func As[T error](err error) (T, bool) {
	var target T
	ok := stderrors.As(err, &target)
	return target, ok
}

/*
KindFromStatus is the inverse of HTTPStatus.
*/
func KindFromStatus(status int) Kind {
	switch status {
	case http.StatusNotFound:
		return NotFound
	case http.StatusConflict:
		return AlreadyExists
	case http.StatusMethodNotAllowed:
		return Unsupported
	case http.StatusBadRequest:
		return InvalidArgument
	}

	if status >= http.StatusInternalServerError {
		return IOFailure
	}

	return Unknown
}
