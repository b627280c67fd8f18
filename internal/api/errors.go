package api

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError represents an HTTP-level failure talking to the download backend.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend API error: %s returned %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// RemoteError represents a success=false envelope from the backend.
// Pollers treat it identically to a transport error.
type RemoteError struct {
	Endpoint string
	Message  string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("backend reported failure on %s: %s", e.Endpoint, e.Message)
}

// IsNotFound reports whether err is an HTTP 404 from the backend, e.g. a
// sequential-progress request for a job without chunk-level tracking.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}
