package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

var (
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrBackendRejected    = errors.New("backend rejected request")
	ErrEmptyResponse      = errors.New("backend returned no usable text")
)

// BackendError carries the failing backend's name, the error kind and the
// underlying cause. errors.Is matches both the kind and the cause.
type BackendError struct {
	Backend string
	Kind    error
	Err     error
}

func (e *BackendError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Backend, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Backend, e.Kind, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

func (e *BackendError) Is(target error) bool { return target == e.Kind }

func unavailable(backend string, err error) error {
	return &BackendError{Backend: backend, Kind: ErrBackendUnavailable, Err: err}
}

func rejected(backend string, err error) error {
	return &BackendError{Backend: backend, Kind: ErrBackendRejected, Err: err}
}

func empty(backend string) error {
	return &BackendError{Backend: backend, Kind: ErrEmptyResponse}
}

// KindOf returns the error kind sentinel carried by err, or nil.
func KindOf(err error) error {
	for _, kind := range []error{ErrBackendUnavailable, ErrBackendRejected, ErrEmptyResponse} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// classifyTransport sorts an error that carries no HTTP status: anything
// network or deadline shaped is unavailability, the rest is a rejection.
func classifyTransport(backend string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return unavailable(backend, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return unavailable(backend, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return unavailable(backend, err)
	}
	return rejected(backend, err)
}

// classifyStatus sorts a non-2xx response. 5xx means the server could not
// serve the request at all; 4xx (quota, bad request, policy) is a refusal.
func classifyStatus(backend string, status int, err error) error {
	if status >= http.StatusInternalServerError {
		return unavailable(backend, err)
	}
	return rejected(backend, err)
}
