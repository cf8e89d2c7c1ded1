package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrUnauthenticated is returned when the server has no session for the
	// credentials the client sent.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrNotFound is returned for a 404 on an addressed resource.
	ErrNotFound = errors.New("not found")
)

// APIError is a non-2xx response from the task service. Callers extract it
// with errors.As:
//
//	var apiErr *api.APIError
//	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict { ... }
type APIError struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int `json:"-"`
	// Message is the server-provided, user-presentable description.
	// Empty when the server did not send one.
	Message string `json:"message"`
	// Code is an optional machine-readable error code.
	Code string `json:"code,omitempty"`

	method string
	path   string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("api: %s %s: %d: %s", e.method, e.path, e.StatusCode, msg)
}

// Is maps status codes onto the package sentinels so errors.Is works on
// wrapped APIErrors.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthenticated:
		return e.StatusCode == http.StatusUnauthorized
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// IsUnauthorized reports whether err means the request carried no valid
// session (401) or the session may not perform it (403).
func IsUnauthorized(err error) bool {
	if errors.Is(err, ErrUnauthenticated) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden
}

// UserMessage returns the server-provided message carried by err, or
// fallback when there is none.
func UserMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	return fallback
}
