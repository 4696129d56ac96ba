package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Failure kinds. Every error returned by Client wraps exactly one of them.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrNetwork      = errors.New("network error")
	ErrServer       = errors.New("server error")
)

// APIError describes a failed backend call
type APIError struct {
	Kind    error
	Status  int
	Message string
}

func (e *APIError) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("%v (HTTP %d): %s", e.Kind, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("%v (HTTP %d)", e.Kind, e.Status)
	case e.Message != "":
		return fmt.Sprintf("%v: %s", e.Kind, e.Message)
	default:
		return e.Kind.Error()
	}
}

// Unwrap exposes the failure kind to errors.Is
func (e *APIError) Unwrap() error {
	return e.Kind
}

// kindForStatus maps an HTTP status >= 400 to a failure kind
func kindForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusNotFound:
		return ErrNotFound
	case status >= 500:
		return ErrServer
	default:
		return ErrConflict
	}
}

// KindOf returns the failure kind wrapped by err, or nil if err is not a client failure
func KindOf(err error) error {
	for _, kind := range []error{ErrUnauthorized, ErrForbidden, ErrNotFound, ErrConflict, ErrNetwork, ErrServer} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
