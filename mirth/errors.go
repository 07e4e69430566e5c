package mirth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Common errors
var (
	// ErrInvalidConfig indicates invalid client configuration
	ErrInvalidConfig = errors.New("invalid mirth configuration")
	// ErrLoginFailed indicates the server rejected the credentials
	ErrLoginFailed = errors.New("mirth login failed")
	// ErrUnauthorized indicates a missing or expired session
	ErrUnauthorized = errors.New("unauthorized: not logged in or session expired")
	// ErrNotFound indicates resource not found
	ErrNotFound = errors.New("resource not found")
)

// APIError represents a Mirth API error response
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("mirth API error: status %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps well-known status codes onto sentinel errors so callers can
// use errors.Is without inspecting status codes themselves.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	}
	return nil
}

// IsNotFound checks if the error indicates a not found response
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsUnauthorized checks if the error indicates an authentication failure
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// ConnectorFailure describes a single destination connector that reported
// an ERROR status for a delivered message.
type ConnectorFailure struct {
	MetaDataID    int
	ConnectorName string
	Reason        string
}

func (f ConnectorFailure) String() string {
	name := f.ConnectorName
	if name == "" {
		name = fmt.Sprintf("connector %d", f.MetaDataID)
	}
	return fmt.Sprintf("%s: %s", name, f.Reason)
}

// PostError indicates a message was accepted by a channel but one or more
// of its connectors finished in the ERROR state.
type PostError struct {
	MessageID int64
	Failures  []ConnectorFailure
}

// Error implements the error interface
func (e *PostError) Error() string {
	reasons := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		reasons[i] = f.String()
	}
	return fmt.Sprintf("message %d failed on %d connector(s): %s",
		e.MessageID, len(e.Failures), strings.Join(reasons, "; "))
}
