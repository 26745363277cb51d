// Package errs carries the bridge's error taxonomy. Handlers map a Kind to an
// HTTP status; everything else wraps with %w and lets KindOf walk the chain.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	Internal Kind = iota
	Auth
	NotFound
	HostUnreachable
	Validation
)

func (k Kind) String() string {
	switch k {
	case Auth:
		return "auth"
	case NotFound:
		return "not_found"
	case HostUnreachable:
		return "host_unreachable"
	case Validation:
		return "validation"
	default:
		return "internal"
	}
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg != "" {
			return e.Msg + ": " + e.Err.Error()
		}
		return e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func E(k Kind, format string, args ...any) error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(k Kind, msg string, err error) error {
	return &Error{Kind: k, Msg: msg, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain, or Internal
// when the chain carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case Auth:
		return http.StatusUnauthorized
	case NotFound:
		return http.StatusNotFound
	case HostUnreachable:
		return http.StatusServiceUnavailable
	case Validation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
